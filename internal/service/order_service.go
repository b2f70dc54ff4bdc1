package service

import (
	"context"
	"fmt"
	"time"

	"learnhub/internal/apperr"
	"learnhub/internal/domain"
	"learnhub/internal/events"
	"learnhub/internal/metrics"
	"learnhub/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const maxOrderPage = 500

type OrderService struct {
	orders   domain.OrderRepository
	pricing  domain.PricingService
	eventBus domain.EventPublisher
	now      func() time.Time
	logger   *zerolog.Logger
}

func NewOrderService(orders domain.OrderRepository, pricing domain.PricingService, eventBus domain.EventPublisher, logger *zerolog.Logger) *OrderService {
	return &OrderService{
		orders:   orders,
		pricing:  pricing,
		eventBus: eventBus,
		now:      time.Now,
		logger:   orNop(logger),
	}
}

// Checkout prices the item under the active flash sale and records the order.
// Free items are recorded as paid with a zero amount.
func (s *OrderService) Checkout(ctx context.Context, who domain.Requester, kind string, itemID int64) (*models.Order, error) {
	if who.UserID == "" {
		return nil, fmt.Errorf("checkout requires a signed-in user: %w", apperr.ErrForbidden)
	}
	k, err := models.ParseOrderKind(kind)
	if err != nil {
		return nil, err
	}
	if itemID <= 0 {
		return nil, apperr.Validation("item_id", "must be positive")
	}

	item, price, err := s.pricing.PriceItem(ctx, models.ItemRef{Type: k.ItemType(), ID: itemID})
	if err != nil {
		return nil, err
	}
	if !item.IsActive {
		return nil, apperr.Validation("item_id", "%s %d is not on sale", k, itemID)
	}

	status := models.OrderStatusPending
	if price.IsFree {
		status = models.OrderStatusPaid
	}

	order, err := models.NormalizeOrder(models.RawOrder{
		Reference:      uuid.NewString(),
		Kind:           string(k),
		ItemID:         itemID,
		Title:          item.Title,
		UserID:         who.UserID,
		Email:          who.Email,
		AmountPaid:     models.Int64Ptr(price.EffectivePrice),
		OriginalAmount: models.Int64Ptr(price.OriginalPrice),
		Currency:       item.Currency,
		Status:         string(status),
		FlashSaleTitle: price.FlashSaleTitle,
		CreatedAt:      s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	if err := s.orders.CreateOrder(ctx, &order); err != nil {
		return nil, err
	}

	metrics.IncOrderCreated(string(order.Kind))
	s.logger.Info().
		Int64("order_id", order.ID).
		Str("reference", order.Reference).
		Str("kind", string(order.Kind)).
		Int64("amount", order.Amount).
		Msg("Order created")
	s.publishEvent(&order)

	return &order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, f models.OrderFilter) ([]models.Order, error) {
	if f.Limit <= 0 || f.Limit > maxOrderPage {
		f.Limit = maxOrderPage
	}
	return s.orders.ListOrders(ctx, f)
}

func (s *OrderService) publishEvent(o *models.Order) {
	if s.eventBus == nil {
		return
	}
	payload := events.OrderPayload{
		OrderID:   o.ID,
		Reference: o.Reference,
		Kind:      string(o.Kind),
		ItemID:    o.ItemID,
		Amount:    o.Amount,
		Currency:  o.Currency,
		UserID:    o.UserID,
	}
	if err := s.eventBus.PublishJSON(events.EventOrderCreated, payload); err != nil {
		s.logger.Error().Err(err).Int64("order_id", o.ID).Msg("publish event error")
	}
}
