package models

import (
	"strings"
	"time"

	"learnhub/internal/apperr"
)

// OrderKind is the closed set of things a user can order.
type OrderKind string

const (
	OrderKindEbook        OrderKind = "EBOOK"
	OrderKindBundle       OrderKind = "BUNDLE"
	OrderKindCourse       OrderKind = "COURSE"
	OrderKindWebinar      OrderKind = "WEBINAR"
	OrderKindGuidance     OrderKind = "GUIDANCE"
	OrderKindMentorship   OrderKind = "MENTORSHIP"
	OrderKindOfflineBatch OrderKind = "OFFLINE_BATCH"
)

var AllOrderKinds = []OrderKind{
	OrderKindEbook, OrderKindBundle, OrderKindCourse, OrderKindWebinar,
	OrderKindGuidance, OrderKindMentorship, OrderKindOfflineBatch,
}

// ParseOrderKind accepts any casing and dashes or underscores as separators.
func ParseOrderKind(raw string) (OrderKind, error) {
	k := OrderKind(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), "-", "_")))
	for _, known := range AllOrderKinds {
		if k == known {
			return k, nil
		}
	}
	return "", apperr.Validation("kind", "unknown order kind %q", raw)
}

// ItemType is the catalog type priced for this kind of order.
func (k OrderKind) ItemType() ItemType {
	switch k {
	case OrderKindEbook:
		return ItemTypeEbook
	case OrderKindBundle:
		return ItemTypeBundle
	case OrderKindCourse:
		return ItemTypeCourse
	case OrderKindWebinar:
		return ItemTypeWebinar
	case OrderKindGuidance:
		return ItemTypeGuidance
	case OrderKindMentorship:
		return ItemTypeMentorship
	case OrderKindOfflineBatch:
		return ItemTypeOfflineBatch
	}
	return ""
}

type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "PENDING"
	OrderStatusPaid     OrderStatus = "PAID"
	OrderStatusFailed   OrderStatus = "FAILED"
	OrderStatusRefunded OrderStatus = "REFUNDED"
)

// ParseOrderStatus folds the spellings different order sources use.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "", "PENDING", "CREATED", "INITIATED":
		return OrderStatusPending, nil
	case "PAID", "SUCCESS", "COMPLETED", "CAPTURED":
		return OrderStatusPaid, nil
	case "FAILED", "CANCELLED", "CANCELED":
		return OrderStatusFailed, nil
	case "REFUNDED":
		return OrderStatusRefunded, nil
	}
	return "", apperr.Validation("status", "unknown order status %q", raw)
}

// Order is the uniform record every order kind normalizes into.
type Order struct {
	ID             int64       `json:"id"`
	Reference      string      `json:"reference"`
	Kind           OrderKind   `json:"kind"`
	ItemID         int64       `json:"item_id"`
	ItemTitle      string      `json:"item_title"`
	UserID         string      `json:"user_id"`
	UserEmail      string      `json:"user_email"`
	Amount         int64       `json:"amount"`
	OriginalAmount int64       `json:"original_amount"`
	Currency       string      `json:"currency"`
	Status         OrderStatus `json:"status"`
	FlashSaleTitle string      `json:"flash_sale_title,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// RawOrder is an order row as read from storage or an upstream source,
// before kind, status, amounts and currency are normalized.
type RawOrder struct {
	ID             int64
	Reference      string
	Kind           string
	ItemID         int64
	Title          string
	UserID         string
	Email          string
	AmountPaid     *int64
	Price          *int64
	OriginalAmount *int64
	Currency       string
	Status         string
	FlashSaleTitle string
	CreatedAt      time.Time
}

// NormalizeOrder is the single conversion from any order source into Order.
func NormalizeOrder(raw RawOrder) (Order, error) {
	kind, err := ParseOrderKind(raw.Kind)
	if err != nil {
		return Order{}, err
	}
	status, err := ParseOrderStatus(raw.Status)
	if err != nil {
		return Order{}, err
	}
	if raw.ItemID <= 0 {
		return Order{}, apperr.Validation("item_id", "must be positive")
	}

	amount := firstNonNegative(raw.AmountPaid, raw.Price)
	original := firstNonNegative(raw.OriginalAmount, raw.Price)
	if original < amount {
		original = amount
	}

	currency := strings.ToUpper(strings.TrimSpace(raw.Currency))
	if currency == "" {
		currency = DefaultCurrency
	}

	return Order{
		ID:             raw.ID,
		Reference:      raw.Reference,
		Kind:           kind,
		ItemID:         raw.ItemID,
		ItemTitle:      strings.TrimSpace(raw.Title),
		UserID:         raw.UserID,
		UserEmail:      strings.ToLower(strings.TrimSpace(raw.Email)),
		Amount:         amount,
		OriginalAmount: original,
		Currency:       currency,
		Status:         status,
		FlashSaleTitle: raw.FlashSaleTitle,
		CreatedAt:      raw.CreatedAt,
	}, nil
}

func firstNonNegative(vals ...*int64) int64 {
	for _, v := range vals {
		if v != nil {
			if *v < 0 {
				return 0
			}
			return *v
		}
	}
	return 0
}
