package domain

import (
	"context"
	"time"

	"learnhub/internal/availability"
	"learnhub/internal/booking"
	"learnhub/internal/models"
	"learnhub/internal/pricing"
)

type SlotRepository interface {
	CreateSlot(ctx context.Context, slot *models.Slot) error
	GetSlot(ctx context.Context, id int64) (*models.Slot, error)
	UpdateSlot(ctx context.Context, slot *models.Slot) error
	ListSlots(ctx context.Context, f models.SlotFilter) ([]*models.Slot, error)
	DeactivateSlot(ctx context.Context, id int64) error
	ReorderSlot(ctx context.Context, id, sortOrder int64) error
}

type BookingRepository interface {
	CreateBookingWithCapacity(ctx context.Context, b *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	GetBookingWithSlot(ctx context.Context, id int64) (*models.BookingWithSlot, error)
	UpdateBookingStatusWithVersion(ctx context.Context, b *models.Booking, status models.BookingStatus) error
	ListBookingsBySlot(ctx context.Context, slotID int64) ([]*models.BookingWithSlot, error)
	ListBookingsByDateRange(ctx context.Context, from, to time.Time) ([]*models.BookingWithSlot, error)
	ListBookingsByEmail(ctx context.Context, email string) ([]*models.BookingWithSlot, error)
	ListLinkReminderCandidates(ctx context.Context, from, to time.Time) ([]*models.BookingWithSlot, error)
	MarkLinkNotified(ctx context.Context, bookingID int64, at time.Time) (bool, error)
}

type CatalogRepository interface {
	UpsertCatalogItem(ctx context.Context, item *models.CatalogItem) error
	GetCatalogItem(ctx context.Context, ref models.ItemRef) (*models.CatalogItem, error)
	ListCatalogItems(ctx context.Context, itemType models.ItemType) ([]*models.CatalogItem, error)
}

type FlashSaleRepository interface {
	CreateFlashSale(ctx context.Context, sale *models.FlashSale) error
	GetFlashSale(ctx context.Context, id int64) (*models.FlashSale, error)
	ActivateFlashSale(ctx context.Context, id int64) error
	DeactivateFlashSale(ctx context.Context, id int64) error
	GetEnabledFlashSale(ctx context.Context) (*models.FlashSale, error)
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, o *models.Order) error
	ListOrders(ctx context.Context, f models.OrderFilter) ([]models.Order, error)
}

type NotificationTaskRepository interface {
	CreateNotificationTask(ctx context.Context, task *models.NotificationTask) error
	GetPendingNotificationTasks(ctx context.Context, limit int) ([]models.NotificationTask, error)
	ClaimNotificationTask(ctx context.Context, id int64) (bool, error)
	ReleaseNotificationClaims(ctx context.Context) (int64, error)
	UpdateNotificationTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

// Cache holds short-lived shared state: the active flash sale and rate-limit counters.
type Cache interface {
	// GetActiveFlashSale reports found=false on a miss. A cached "no sale" is found with a nil sale.
	GetActiveFlashSale(ctx context.Context) (sale *models.FlashSale, found bool, err error)
	SetActiveFlashSale(ctx context.Context, sale *models.FlashSale, ttl time.Duration) error
	InvalidateActiveFlashSale(ctx context.Context) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// NotificationQueue accepts e-mails for asynchronous delivery.
type NotificationQueue interface {
	Enqueue(ctx context.Context, task *models.NotificationTask) error
}

// Requester is the identity attached to a request; zero for guests.
type Requester struct {
	UserID string
	Email  string
	Role   string
}

// SlotView is a slot with its computed availability and price.
type SlotView struct {
	*models.Slot
	Availability availability.SlotAvailability `json:"availability"`
	Pricing      pricing.Result                `json:"pricing"`
}

type SlotService interface {
	CreateSlot(ctx context.Context, slot *models.Slot) (*SlotView, error)
	UpdateSlot(ctx context.Context, slot *models.Slot) (*SlotView, error)
	DeactivateSlot(ctx context.Context, id int64) error
	ReorderSlot(ctx context.Context, id, sortOrder int64) error
	GetSlot(ctx context.Context, id int64) (*SlotView, error)
	ListSlots(ctx context.Context, f models.SlotFilter) ([]*SlotView, error)
}

// BookingRequest is what a requester submits to book a slot.
type BookingRequest struct {
	SlotID  int64  `json:"slot_id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

type BookingService interface {
	CreateBooking(ctx context.Context, who Requester, req BookingRequest) (*models.Booking, error)
	TransitionStatus(ctx context.Context, bookingID int64, status string) (*models.Booking, error)
	GetLinkStatus(ctx context.Context, bookingID int64, email string, now time.Time) (*booking.LinkStatus, error)
	ListSlotBookings(ctx context.Context, slotID int64) ([]*models.BookingWithSlot, error)
	ListBookings(ctx context.Context, from, to time.Time) ([]*models.BookingWithSlot, error)
	ListMyBookings(ctx context.Context, who Requester) ([]*models.BookingWithSlot, error)
}

type PricingService interface {
	ActiveFlashSale(ctx context.Context) (*models.FlashSale, error)
	PriceItem(ctx context.Context, ref models.ItemRef) (*models.CatalogItem, pricing.Result, error)
	PriceSlot(ctx context.Context, slot *models.Slot) (pricing.Result, error)
	CreateFlashSale(ctx context.Context, sale *models.FlashSale) error
	ActivateFlashSale(ctx context.Context, id int64) error
	DeactivateFlashSale(ctx context.Context, id int64) error
}

type OrderService interface {
	Checkout(ctx context.Context, who Requester, kind string, itemID int64) (*models.Order, error)
	ListOrders(ctx context.Context, f models.OrderFilter) ([]models.Order, error)
}

type CatalogService interface {
	UpsertItem(ctx context.Context, item *models.CatalogItem) error
	ListItems(ctx context.Context, itemType models.ItemType) ([]*models.CatalogItem, error)
}
