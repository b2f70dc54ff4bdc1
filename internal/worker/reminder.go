package worker

import (
	"context"
	"time"

	"learnhub/internal/booking"
	"learnhub/internal/domain"
	"learnhub/internal/models"
	"learnhub/internal/notify"

	"github.com/rs/zerolog"
)

// ReminderStore is the part of the booking repository the reminder needs.
type ReminderStore interface {
	ListLinkReminderCandidates(ctx context.Context, from, to time.Time) ([]*models.BookingWithSlot, error)
	MarkLinkNotified(ctx context.Context, bookingID int64, at time.Time) (bool, error)
}

// LinkReminder e-mails the meeting link once per confirmed booking, as soon as
// the link window opens.
type LinkReminder struct {
	store         ReminderStore
	queue         domain.NotificationQueue
	gate          booking.Gate
	loc           *time.Location
	sessionLength time.Duration
	interval      time.Duration
	now           func() time.Time
	logger        *zerolog.Logger
}

func NewLinkReminder(
	store ReminderStore,
	queue domain.NotificationQueue,
	gate booking.Gate,
	loc *time.Location,
	sessionLength, interval time.Duration,
	logger *zerolog.Logger,
) *LinkReminder {
	if loc == nil {
		loc = time.UTC
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &LinkReminder{
		store:         store,
		queue:         queue,
		gate:          gate,
		loc:           loc,
		sessionLength: sessionLength,
		interval:      interval,
		now:           time.Now,
		logger:        logger,
	}
}

func (r *LinkReminder) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info().Dur("interval", r.interval).Msg("Link reminder started")
	for {
		if _, err := r.RunOnce(ctx); err != nil {
			r.logger.Error().Err(err).Msg("Link reminder run failed")
		}
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("Link reminder stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce enqueues reminders for every booking whose link is visible now and
// returns how many were sent.
func (r *LinkReminder) RunOnce(ctx context.Context) (int, error) {
	now := r.now()
	local := now.In(r.loc)
	from := local.AddDate(0, 0, -1)
	to := local.Add(r.gate.Lead).AddDate(0, 0, 1)

	candidates, err := r.store.ListLinkReminderCandidates(ctx, from, to)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, b := range candidates {
		if b.Slot.MeetingLink == "" {
			continue
		}
		w, err := booking.WindowForSlot(&b.Slot, r.loc, r.sessionLength)
		if err != nil {
			r.logger.Warn().Err(err).Int64("booking_id", b.ID).Msg("Slot has an invalid schedule")
			continue
		}
		if !r.gate.CanAccess(&b.Booking, w, now) {
			continue
		}

		claimed, err := r.store.MarkLinkNotified(ctx, b.ID, now)
		if err != nil {
			return sent, err
		}
		if !claimed {
			continue
		}

		payload, err := notify.LinkAvailable(b, b.Slot.MeetingLink, w.Start).Encode()
		if err != nil {
			return sent, err
		}
		task := &models.NotificationTask{
			TaskType:  models.TaskLinkAvailable,
			BookingID: b.ID,
			Recipient: b.Email,
			Payload:   payload,
		}
		if err := r.queue.Enqueue(ctx, task); err != nil {
			r.logger.Error().Err(err).Int64("booking_id", b.ID).Msg("Failed to enqueue link reminder")
			continue
		}
		sent++
	}

	if sent > 0 {
		r.logger.Info().Int("sent", sent).Msg("Link reminders queued")
	}
	return sent, nil
}
