package service

import (
	"context"
	"strings"
	"time"

	"learnhub/internal/availability"
	"learnhub/internal/domain"
	"learnhub/internal/models"
	"learnhub/internal/pricing"

	"github.com/rs/zerolog"
)

type SlotService struct {
	slots   domain.SlotRepository
	pricing domain.PricingService
	loc     *time.Location
	now     func() time.Time
	logger  *zerolog.Logger
}

func NewSlotService(slots domain.SlotRepository, pricing domain.PricingService, loc *time.Location, logger *zerolog.Logger) *SlotService {
	if loc == nil {
		loc = time.UTC
	}
	return &SlotService{
		slots:   slots,
		pricing: pricing,
		loc:     loc,
		now:     time.Now,
		logger:  orNop(logger),
	}
}

func normalizeSlot(slot *models.Slot) error {
	kind, err := models.ParseSlotKind(string(slot.Kind))
	if err != nil {
		return err
	}
	slot.Kind = kind
	slot.StartTime = strings.TrimSpace(slot.StartTime)
	slot.EndTime = strings.TrimSpace(slot.EndTime)
	slot.Currency = strings.ToUpper(strings.TrimSpace(slot.Currency))
	if slot.Currency == "" {
		slot.Currency = models.DefaultCurrency
	}
	return slot.Validate()
}

func (s *SlotService) CreateSlot(ctx context.Context, slot *models.Slot) (*domain.SlotView, error) {
	if err := normalizeSlot(slot); err != nil {
		return nil, err
	}
	if err := s.slots.CreateSlot(ctx, slot); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("slot_id", slot.ID).Str("kind", string(slot.Kind)).Msg("Slot created")
	return s.view(slot, s.activeSale(ctx)), nil
}

// UpdateSlot rejects a capacity below the seats already booked.
func (s *SlotService) UpdateSlot(ctx context.Context, slot *models.Slot) (*domain.SlotView, error) {
	if err := normalizeSlot(slot); err != nil {
		return nil, err
	}
	if err := s.slots.UpdateSlot(ctx, slot); err != nil {
		return nil, err
	}
	return s.view(slot, s.activeSale(ctx)), nil
}

func (s *SlotService) DeactivateSlot(ctx context.Context, id int64) error {
	if err := s.slots.DeactivateSlot(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Int64("slot_id", id).Msg("Slot deactivated")
	return nil
}

func (s *SlotService) ReorderSlot(ctx context.Context, id, sortOrder int64) error {
	return s.slots.ReorderSlot(ctx, id, sortOrder)
}

func (s *SlotService) GetSlot(ctx context.Context, id int64) (*domain.SlotView, error) {
	slot, err := s.slots.GetSlot(ctx, id)
	if err != nil {
		return nil, err
	}
	v := s.view(slot, nil)
	if s.pricing != nil {
		price, err := s.pricing.PriceSlot(ctx, slot)
		if err != nil {
			s.logger.Warn().Err(err).Int64("slot_id", id).Msg("Slot priced without flash sale")
		} else {
			v.Pricing = price
		}
	}
	return v, nil
}

func (s *SlotService) ListSlots(ctx context.Context, f models.SlotFilter) ([]*domain.SlotView, error) {
	slots, err := s.slots.ListSlots(ctx, f)
	if err != nil {
		return nil, err
	}

	sale := s.activeSale(ctx)
	views := make([]*domain.SlotView, 0, len(slots))
	for _, slot := range slots {
		views = append(views, s.view(slot, sale))
	}
	return views, nil
}

// activeSale degrades to regular prices when the flash sale cannot be loaded.
func (s *SlotService) activeSale(ctx context.Context) *models.FlashSale {
	if s.pricing == nil {
		return nil
	}
	sale, err := s.pricing.ActiveFlashSale(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Active flash sale unavailable, using regular prices")
		return nil
	}
	return sale
}

func (s *SlotService) view(slot *models.Slot, sale *models.FlashSale) *domain.SlotView {
	return &domain.SlotView{
		Slot:         slot,
		Availability: availability.ForSlot(slot, s.now(), s.loc),
		Pricing:      pricing.Resolve(pricing.FromSlot(slot), sale),
	}
}
