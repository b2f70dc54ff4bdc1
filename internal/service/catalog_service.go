package service

import (
	"context"
	"strings"
	"sync"

	"learnhub/internal/domain"
	"learnhub/internal/models"

	"github.com/rs/zerolog"
)

// CatalogService keeps listings in memory per item type until the next upsert.
type CatalogService struct {
	repo   domain.CatalogRepository
	logger *zerolog.Logger
	items  map[models.ItemType][]*models.CatalogItem
	// generation changes on every Refresh; a listing loaded under an older
	// generation is returned but not cached.
	generation uint64
	mu         sync.RWMutex
}

func NewCatalogService(repo domain.CatalogRepository, logger *zerolog.Logger) *CatalogService {
	return &CatalogService{
		repo:   repo,
		logger: orNop(logger),
		items:  make(map[models.ItemType][]*models.CatalogItem),
	}
}

func (s *CatalogService) UpsertItem(ctx context.Context, item *models.CatalogItem) error {
	t, err := models.ParseItemType(string(item.Type))
	if err != nil {
		return err
	}
	item.Type = t
	item.Title = strings.TrimSpace(item.Title)
	item.Currency = strings.ToUpper(strings.TrimSpace(item.Currency))
	if item.Currency == "" {
		item.Currency = models.DefaultCurrency
	}
	if err := item.Validate(); err != nil {
		return err
	}

	if err := s.repo.UpsertCatalogItem(ctx, item); err != nil {
		return err
	}
	s.Refresh()
	s.logger.Info().Str("type", string(item.Type)).Int64("id", item.ID).Msg("Catalog item saved")
	return nil
}

// ListItems lists one item type, or every type when itemType is empty.
func (s *CatalogService) ListItems(ctx context.Context, itemType models.ItemType) ([]*models.CatalogItem, error) {
	if itemType != "" {
		t, err := models.ParseItemType(string(itemType))
		if err != nil {
			return nil, err
		}
		itemType = t
	}

	s.mu.RLock()
	cached, ok := s.items[itemType]
	generation := s.generation
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	items, err := s.repo.ListCatalogItems(ctx, itemType)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.generation == generation {
		s.items[itemType] = items
	}
	s.mu.Unlock()
	return items, nil
}

// Refresh drops every cached listing.
func (s *CatalogService) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[models.ItemType][]*models.CatalogItem)
	s.generation++
}
