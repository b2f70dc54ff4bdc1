package service

import (
	"context"
	"time"

	"learnhub/internal/domain"
	"learnhub/internal/events"
	"learnhub/internal/models"
	"learnhub/internal/pricing"

	"github.com/rs/zerolog"
)

// PricingService resolves prices against the active flash sale, which is read
// through the cache and refreshed from the database on a miss.
type PricingService struct {
	catalog  domain.CatalogRepository
	sales    domain.FlashSaleRepository
	cache    domain.Cache
	eventBus domain.EventPublisher
	ttl      time.Duration
	now      func() time.Time
	logger   *zerolog.Logger
}

func NewPricingService(
	catalog domain.CatalogRepository,
	sales domain.FlashSaleRepository,
	cache domain.Cache,
	eventBus domain.EventPublisher,
	logger *zerolog.Logger,
) *PricingService {
	return &PricingService{
		catalog:  catalog,
		sales:    sales,
		cache:    cache,
		eventBus: eventBus,
		ttl:      time.Duration(models.FlashSaleCacheTTL) * time.Second,
		now:      time.Now,
		logger:   orNop(logger),
	}
}

// ActiveFlashSale returns the live flash sale or nil. The cache holds the
// enabled sale whatever its window, so liveness is decided on every read.
func (s *PricingService) ActiveFlashSale(ctx context.Context) (*models.FlashSale, error) {
	now := s.now()

	if s.cache != nil {
		sale, found, err := s.cache.GetActiveFlashSale(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Flash sale cache read failed")
		} else if found {
			return liveOrNil(sale, now), nil
		}
	}

	sale, err := s.sales.GetEnabledFlashSale(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetActiveFlashSale(ctx, sale, s.ttl); err != nil {
			s.logger.Warn().Err(err).Msg("Flash sale cache write failed")
		}
	}
	return liveOrNil(sale, now), nil
}

func liveOrNil(sale *models.FlashSale, now time.Time) *models.FlashSale {
	if !sale.LiveAt(now) {
		return nil
	}
	return sale
}

func (s *PricingService) PriceItem(ctx context.Context, ref models.ItemRef) (*models.CatalogItem, pricing.Result, error) {
	item, err := s.catalog.GetCatalogItem(ctx, ref)
	if err != nil {
		return nil, pricing.Result{}, err
	}
	sale, err := s.ActiveFlashSale(ctx)
	if err != nil {
		return nil, pricing.Result{}, err
	}
	return item, pricing.Resolve(pricing.FromCatalog(item), sale), nil
}

func (s *PricingService) PriceSlot(ctx context.Context, slot *models.Slot) (pricing.Result, error) {
	sale, err := s.ActiveFlashSale(ctx)
	if err != nil {
		return pricing.Result{}, err
	}
	return pricing.Resolve(pricing.FromSlot(slot), sale), nil
}

func (s *PricingService) CreateFlashSale(ctx context.Context, sale *models.FlashSale) error {
	if err := sale.Validate(); err != nil {
		return err
	}
	if err := s.sales.CreateFlashSale(ctx, sale); err != nil {
		return err
	}
	s.logger.Info().Int64("flash_sale_id", sale.ID).Int("entries", len(sale.Entries)).Msg("Flash sale created")

	if sale.IsActive {
		s.invalidate(ctx)
		s.publishActivated(sale)
	}
	return nil
}

// ActivateFlashSale makes id the only active sale.
func (s *PricingService) ActivateFlashSale(ctx context.Context, id int64) error {
	if err := s.sales.ActivateFlashSale(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)

	sale, err := s.sales.GetFlashSale(ctx, id)
	if err != nil {
		s.logger.Warn().Err(err).Int64("flash_sale_id", id).Msg("Activated flash sale could not be reloaded")
		return nil
	}
	s.publishActivated(sale)
	return nil
}

func (s *PricingService) DeactivateFlashSale(ctx context.Context, id int64) error {
	if err := s.sales.DeactivateFlashSale(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.logger.Info().Int64("flash_sale_id", id).Msg("Flash sale deactivated")
	return nil
}

func (s *PricingService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateActiveFlashSale(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Flash sale cache invalidation failed")
	}
}

func (s *PricingService) publishActivated(sale *models.FlashSale) {
	if s.eventBus == nil {
		return
	}
	payload := events.FlashSalePayload{FlashSaleID: sale.ID, Title: sale.DisplayTitle(), Entries: len(sale.Entries)}
	if err := s.eventBus.PublishJSON(events.EventFlashSaleActivated, payload); err != nil {
		s.logger.Error().Err(err).Int64("flash_sale_id", sale.ID).Msg("publish event error")
	}
}
