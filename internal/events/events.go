package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventBookingCreated     = "booking_created"
	EventBookingConfirmed   = "booking_confirmed"
	EventBookingCancelled   = "booking_cancelled"
	EventBookingCompleted   = "booking_completed"
	EventFlashSaleActivated = "flash_sale_activated"
	EventOrderCreated       = "order_created"
)

// StatusEvent maps a booking status onto the event emitted when a booking enters it.
func StatusEvent(status string) string {
	switch status {
	case "CONFIRMED":
		return EventBookingConfirmed
	case "CANCELLED":
		return EventBookingCancelled
	case "COMPLETED":
		return EventBookingCompleted
	}
	return EventBookingCreated
}

// BookingEventPayload describes the minimal booking snapshot for event consumers.
type BookingEventPayload struct {
	BookingID  int64     `json:"booking_id"`
	SlotID     int64     `json:"slot_id"`
	SlotKind   string    `json:"slot_kind"`
	UserID     string    `json:"user_id,omitempty"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Status     string    `json:"status"`
	PrevStatus string    `json:"prev_status,omitempty"`
	Date       time.Time `json:"date"`
	StartTime  string    `json:"start_time"`
}

// FlashSalePayload is published when a sale becomes the active one.
type FlashSalePayload struct {
	FlashSaleID int64  `json:"flash_sale_id"`
	Title       string `json:"title"`
	Entries     int    `json:"entries"`
}

// OrderPayload is published after checkout persists an order.
type OrderPayload struct {
	OrderID   int64  `json:"order_id"`
	Reference string `json:"reference"`
	Kind      string `json:"kind"`
	ItemID    int64  `json:"item_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	UserID    string `json:"user_id,omitempty"`
}

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
	Processed bool
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type. Handler errors are dropped.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event. A nil bus is a no-op.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}

	b.Publish(&event)
	return nil
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
