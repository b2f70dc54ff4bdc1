package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"learnhub/internal/apperr"
	"learnhub/internal/availability"
	"learnhub/internal/booking"
	"learnhub/internal/config"
	"learnhub/internal/domain"
	"learnhub/internal/events"
	"learnhub/internal/metrics"
	"learnhub/internal/models"
	"learnhub/internal/notify"

	"github.com/rs/zerolog"
)

const (
	maxNameLength    = 120
	maxPhoneLength   = 32
	maxMessageLength = 1000
)

type BookingService struct {
	slots    domain.SlotRepository
	bookings domain.BookingRepository
	cache    domain.Cache
	eventBus domain.EventPublisher
	queue    domain.NotificationQueue
	cfg      config.BookingConfig
	gate     booking.Gate
	loc      *time.Location
	now      func() time.Time
	logger   *zerolog.Logger
}

func NewBookingService(
	slots domain.SlotRepository,
	bookings domain.BookingRepository,
	cache domain.Cache,
	eventBus domain.EventPublisher,
	queue domain.NotificationQueue,
	cfg config.BookingConfig,
	logger *zerolog.Logger,
) *BookingService {
	if cfg.DefaultSessionLength <= 0 {
		cfg.DefaultSessionLength = time.Hour
	}
	return &BookingService{
		slots:    slots,
		bookings: bookings,
		cache:    cache,
		eventBus: eventBus,
		queue:    queue,
		cfg:      cfg,
		gate:     booking.NewGate(cfg.LinkLeadTime),
		loc:      cfg.Location(),
		now:      time.Now,
		logger:   orNop(logger),
	}
}

// CreateBooking books one seat on req.SlotID. The seat is claimed in the same
// transaction as the insert, so the last seat can be taken only once.
func (s *BookingService) CreateBooking(ctx context.Context, who domain.Requester, req domain.BookingRequest) (*models.Booking, error) {
	b, err := newBooking(who, req)
	if err != nil {
		return nil, err
	}

	if err := s.checkRateLimit(ctx, b.Email); err != nil {
		return nil, err
	}

	slot, err := s.slots.GetSlot(ctx, b.SlotID)
	if err != nil {
		return nil, err
	}
	if err := s.checkBookable(slot); err != nil {
		return nil, err
	}

	if err := s.bookings.CreateBookingWithCapacity(ctx, b); err != nil {
		if errors.Is(err, apperr.ErrCapacityExceeded) {
			metrics.IncBookingRejected("capacity")
		}
		return nil, err
	}
	slot.BookedCount++

	metrics.IncBookingCreated(string(slot.Kind))
	s.logger.Info().
		Int64("booking_id", b.ID).
		Int64("slot_id", slot.ID).
		Str("email", b.Email).
		Msg("Booking created")

	bw := &models.BookingWithSlot{Booking: *b, Slot: *slot}
	s.publishEvent(events.EventBookingCreated, bw, "")
	s.enqueueNotification(ctx, models.TaskBookingCreated, bw, notify.BookingCreated(bw))

	return b, nil
}

func newBooking(who domain.Requester, req domain.BookingRequest) (*models.Booking, error) {
	if req.SlotID <= 0 {
		return nil, apperr.Validation("slot_id", "must be positive")
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.Validation("name", "is required")
	}
	if len(name) > maxNameLength {
		return nil, apperr.Validation("name", "must be at most %d characters", maxNameLength)
	}

	email := strings.TrimSpace(req.Email)
	if email == "" {
		email = who.Email
	}
	if email == "" {
		return nil, apperr.Validation("email", "is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return nil, apperr.Validation("email", "%q is not a valid address", email)
	}

	phone := strings.TrimSpace(req.Phone)
	if len(phone) > maxPhoneLength {
		return nil, apperr.Validation("phone", "must be at most %d characters", maxPhoneLength)
	}
	message := strings.TrimSpace(req.Message)
	if len(message) > maxMessageLength {
		return nil, apperr.Validation("message", "must be at most %d characters", maxMessageLength)
	}

	return &models.Booking{
		SlotID:  req.SlotID,
		UserID:  who.UserID,
		Name:    name,
		Email:   strings.ToLower(email),
		Phone:   phone,
		Message: message,
		Status:  models.StatusPending,
	}, nil
}

// checkRateLimit is skipped when the cache itself fails; the capacity guard
// still holds without it.
func (s *BookingService) checkRateLimit(ctx context.Context, email string) error {
	if s.cache == nil || s.cfg.RateLimitRequests <= 0 {
		return nil
	}
	allowed, err := s.cache.CheckRateLimit(ctx, "booking:"+email, s.cfg.RateLimitRequests, s.cfg.RateLimitWindow)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Booking rate limit unavailable")
		return nil
	}
	if !allowed {
		metrics.IncBookingRejected("rate_limited")
		return apperr.ErrRateLimited
	}
	return nil
}

func (s *BookingService) checkBookable(slot *models.Slot) error {
	now := s.now()
	avail := availability.ForSlot(slot, now, s.loc)
	if avail.Bookable {
		if s.cfg.MaxAdvanceDays > 0 {
			limit := now.In(s.loc).AddDate(0, 0, s.cfg.MaxAdvanceDays).Format(models.DateLayout)
			if slot.Date.Format(models.DateLayout) > limit {
				metrics.IncBookingRejected("too_far")
				return apperr.Validation("slot_id", "bookings open %d days in advance", s.cfg.MaxAdvanceDays)
			}
		}
		return nil
	}

	if !avail.HasSeats() {
		metrics.IncBookingRejected("capacity")
		return fmt.Errorf("slot %d: %w", slot.ID, apperr.ErrCapacityExceeded)
	}
	metrics.IncBookingRejected("not_bookable")
	return apperr.Validation("slot_id", "slot is not open for booking")
}

// TransitionStatus applies an admin status change. Moving to the current status
// is a no-op. Notification failures are logged and never undo the change.
func (s *BookingService) TransitionStatus(ctx context.Context, bookingID int64, status string) (*models.Booking, error) {
	to, err := models.ParseBookingStatus(status)
	if err != nil {
		return nil, err
	}

	bw, err := s.bookings.GetBookingWithSlot(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	prev := bw.Status

	probe := bw.Booking
	changed, err := booking.Transition(&probe, to)
	if err != nil {
		return nil, err
	}
	if !changed {
		return &bw.Booking, nil
	}

	if err := s.bookings.UpdateBookingStatusWithVersion(ctx, &bw.Booking, to); err != nil {
		return nil, err
	}

	metrics.IncBookingTransition(string(to))
	s.logger.Info().
		Int64("booking_id", bw.ID).
		Str("from", string(prev)).
		Str("to", string(to)).
		Msg("Booking status changed")

	s.publishEvent(events.StatusEvent(string(to)), bw, prev)
	s.enqueueNotification(ctx, models.TaskBookingStatusChanged, bw, notify.StatusChanged(bw, prev))

	return &bw.Booking, nil
}

// GetLinkStatus evaluates the meeting-link gate for the requester who made the
// booking. Any other e-mail gets NotFound so booking ids cannot be probed.
func (s *BookingService) GetLinkStatus(ctx context.Context, bookingID int64, email string, now time.Time) (*booking.LinkStatus, error) {
	bw, err := s.bookings.GetBookingWithSlot(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(strings.TrimSpace(email), bw.Email) {
		return nil, apperr.NotFound("booking", bookingID)
	}

	w, err := booking.WindowForSlot(&bw.Slot, s.loc, s.cfg.DefaultSessionLength)
	if err != nil {
		return nil, fmt.Errorf("slot %d schedule: %w", bw.SlotID, err)
	}
	st := s.gate.State(&bw.Booking, w, bw.Slot.MeetingLink, now)
	return &st, nil
}

func (s *BookingService) ListSlotBookings(ctx context.Context, slotID int64) ([]*models.BookingWithSlot, error) {
	if _, err := s.slots.GetSlot(ctx, slotID); err != nil {
		return nil, err
	}
	return s.bookings.ListBookingsBySlot(ctx, slotID)
}

func (s *BookingService) ListBookings(ctx context.Context, from, to time.Time) ([]*models.BookingWithSlot, error) {
	if to.Before(from) {
		return nil, apperr.Validation("to", "must not be before from")
	}
	return s.bookings.ListBookingsByDateRange(ctx, from, to)
}

// ListMyBookings returns the requester's own bookings by e-mail.
func (s *BookingService) ListMyBookings(ctx context.Context, who domain.Requester) ([]*models.BookingWithSlot, error) {
	if who.Email == "" {
		return nil, fmt.Errorf("listing bookings requires a signed-in user: %w", apperr.ErrForbidden)
	}
	return s.bookings.ListBookingsByEmail(ctx, who.Email)
}

func (s *BookingService) publishEvent(eventType string, bw *models.BookingWithSlot, prev models.BookingStatus) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:  bw.ID,
		SlotID:     bw.SlotID,
		SlotKind:   string(bw.Slot.Kind),
		UserID:     bw.UserID,
		Name:       bw.Name,
		Email:      bw.Email,
		Status:     string(bw.Status),
		PrevStatus: string(prev),
		Date:       bw.Slot.Date,
		StartTime:  bw.Slot.StartTime,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", bw.ID).Msg("publish event error")
	}
}

func (s *BookingService) enqueueNotification(ctx context.Context, taskType string, bw *models.BookingWithSlot, msg notify.Message) {
	if s.queue == nil {
		return
	}

	payload, err := msg.Encode()
	if err != nil {
		s.logger.Error().Err(err).Int64("booking_id", bw.ID).Msg("encode notification")
		return
	}

	task := &models.NotificationTask{
		TaskType:  taskType,
		BookingID: bw.ID,
		Recipient: bw.Email,
		Payload:   payload,
	}
	if err := s.queue.Enqueue(ctx, task); err != nil {
		s.logger.Warn().
			Err(apperr.External("notification queue", err)).
			Int64("booking_id", bw.ID).
			Str("task", taskType).
			Msg("Notification not queued")
	}
}

func orNop(logger *zerolog.Logger) *zerolog.Logger {
	if logger == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return logger
}
