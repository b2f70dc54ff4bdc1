package models

const (
	// DateLayout is the storage and wire format for slot dates.
	DateLayout = "2006-01-02"
	// ClockLayout is the storage and wire format for slot start/end times.
	ClockLayout = "15:04"

	DefaultCurrency = "INR"

	// DefaultFlashSaleTitle is shown when an active flash sale has no title.
	DefaultFlashSaleTitle = "Flash Sale"
)

// Notification task types.
const (
	TaskBookingCreated       = "booking_created"
	TaskBookingStatusChanged = "booking_status_changed"
	TaskLinkAvailable        = "link_available"
)

// Notification task statuses.
const (
	TaskStatusPending    = "pending"
	TaskStatusRetry      = "retry"
	TaskStatusProcessing = "processing"
	TaskStatusCompleted  = "completed"
	TaskStatusFailed     = "failed"
)

const (
	// WorkerQueueSize is the capacity of the in-memory notification queue.
	WorkerQueueSize = 128

	// FlashSaleCacheTTL bounds how long an active flash sale is served from cache.
	FlashSaleCacheTTL = 5 * 60 // seconds
)
