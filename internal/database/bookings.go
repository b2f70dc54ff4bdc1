package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"learnhub/internal/apperr"
	"learnhub/internal/booking"
	"learnhub/internal/models"
)

const bookingColumns = `b.id, b.slot_id, b.user_id, b.name, b.email, b.phone, b.message, b.status,
                        b.created_at, b.updated_at, b.version, b.link_notified_at`

const bookingWithSlotColumns = bookingColumns + `,
                        s.id, s.kind, s.title, s.date, s.start_time, s.end_time, s.price, s.currency, s.capacity,
                        s.booked_count, s.is_active, s.sort_order, s.meeting_link, s.created_at, s.updated_at`

func bookingDest(b *models.Booking) []any {
	return []any{
		&b.ID, &b.SlotID, &b.UserID, &b.Name, &b.Email, &b.Phone, &b.Message, &b.Status,
		&b.CreatedAt, &b.UpdatedAt, &b.Version, &b.LinkNotifiedAt,
	}
}

func scanBookingWithSlot(row rowScanner) (*models.BookingWithSlot, error) {
	var (
		bw      models.BookingWithSlot
		dateStr string
	)
	s := &bw.Slot
	dest := append(bookingDest(&bw.Booking),
		&s.ID, &s.Kind, &s.Title, &dateStr, &s.StartTime, &s.EndTime, &s.Price, &s.Currency, &s.Capacity,
		&s.BookedCount, &s.IsActive, &s.SortOrder, &s.MeetingLink, &s.CreatedAt, &s.UpdatedAt,
	)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	d, err := time.Parse(models.DateLayout, dateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse slot date %s: %w", dateStr, err)
	}
	s.Date = d
	return &bw, nil
}

// CreateBookingWithCapacity takes one seat on the slot and inserts the booking in a
// single transaction. The seat is claimed with a conditional increment, so two
// requests racing for the last seat cannot both succeed.
func (db *DB) CreateBookingWithCapacity(ctx context.Context, b *models.Booking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	ts := now()

	claim := `UPDATE slots SET booked_count = booked_count + 1, updated_at = ?
              WHERE id = ? AND is_active = 1 AND (capacity IS NULL OR booked_count < capacity)`
	result, err := tx.ExecContext(ctx, claim, ts, b.SlotID)
	if err != nil {
		return fmt.Errorf("failed to claim seat in tx: %w", err)
	}
	if rowsAffected(result) == 0 {
		var active bool
		err := tx.QueryRowContext(ctx, `SELECT is_active FROM slots WHERE id = ?`, b.SlotID).Scan(&active)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return apperr.NotFound("slot", b.SlotID)
		case err != nil:
			return fmt.Errorf("failed to check slot in tx: %w", err)
		case !active:
			return apperr.Validation("slot_id", "slot is not open for booking")
		}
		return fmt.Errorf("slot %d: %w", b.SlotID, apperr.ErrCapacityExceeded)
	}

	if b.Status == "" {
		b.Status = models.StatusPending
	}
	insert := `INSERT INTO bookings (
				slot_id, user_id, name, email, phone, message, status, created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`
	result, err = tx.ExecContext(ctx, insert,
		b.SlotID,
		b.UserID,
		b.Name,
		strings.ToLower(strings.TrimSpace(b.Email)),
		b.Phone,
		b.Message,
		b.Status,
		ts,
		ts,
	)
	if err != nil {
		return fmt.Errorf("failed to insert booking in tx: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id in tx: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking: %w", err)
	}

	b.ID = id
	b.Email = strings.ToLower(strings.TrimSpace(b.Email))
	b.CreatedAt = ts
	b.UpdatedAt = ts
	b.Version = 1
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	var b models.Booking
	query := `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.id = ?`
	err := db.QueryRowContext(ctx, query, id).Scan(bookingDest(&b)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("booking", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &b, nil
}

// GetBookingWithSlot loads a booking together with its slot.
func (db *DB) GetBookingWithSlot(ctx context.Context, id int64) (*models.BookingWithSlot, error) {
	query := `SELECT ` + bookingWithSlotColumns + `
              FROM bookings b JOIN slots s ON s.id = b.slot_id WHERE b.id = ?`
	bw, err := scanBookingWithSlot(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("booking", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return bw, nil
}

// UpdateBookingStatusWithVersion moves b to status if nobody changed it since b was read.
// Seats are released when the new status no longer holds one. b is updated in place.
func (db *DB) UpdateBookingStatusWithVersion(ctx context.Context, b *models.Booking, status models.BookingStatus) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	ts := now()
	query := `UPDATE bookings SET status = ?, version = version + 1, updated_at = ?
              WHERE id = ? AND version = ? AND status = ?`
	result, err := tx.ExecContext(ctx, query, status, ts, b.ID, b.Version, b.Status)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	if rowsAffected(result) == 0 {
		return apperr.ErrConcurrentModification
	}

	switch booking.SeatDelta(b.Status, status) {
	case -1:
		_, err = tx.ExecContext(ctx,
			`UPDATE slots SET booked_count = booked_count - 1, updated_at = ? WHERE id = ? AND booked_count > 0`,
			ts, b.SlotID)
		if err != nil {
			return fmt.Errorf("failed to release seat: %w", err)
		}
	case 1:
		result, err = tx.ExecContext(ctx,
			`UPDATE slots SET booked_count = booked_count + 1, updated_at = ?
             WHERE id = ? AND (capacity IS NULL OR booked_count < capacity)`,
			ts, b.SlotID)
		if err != nil {
			return fmt.Errorf("failed to claim seat: %w", err)
		}
		if rowsAffected(result) == 0 {
			return fmt.Errorf("slot %d: %w", b.SlotID, apperr.ErrCapacityExceeded)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit status change: %w", err)
	}

	b.Status = status
	b.Version++
	b.UpdatedAt = ts
	return nil
}

func (db *DB) queryBookingsWithSlot(ctx context.Context, where string, args ...any) ([]*models.BookingWithSlot, error) {
	query := `SELECT ` + bookingWithSlotColumns + `
              FROM bookings b JOIN slots s ON s.id = b.slot_id
              WHERE ` + where + `
              ORDER BY s.date ASC, s.start_time ASC, b.created_at ASC, b.id ASC`
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var out []*models.BookingWithSlot
	for rows.Next() {
		bw, err := scanBookingWithSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		out = append(out, bw)
	}
	return out, rows.Err()
}

func (db *DB) ListBookingsBySlot(ctx context.Context, slotID int64) ([]*models.BookingWithSlot, error) {
	return db.queryBookingsWithSlot(ctx, "b.slot_id = ?", slotID)
}

// ListBookingsByDateRange returns bookings whose slot date falls in [from, to].
func (db *DB) ListBookingsByDateRange(ctx context.Context, from, to time.Time) ([]*models.BookingWithSlot, error) {
	return db.queryBookingsWithSlot(ctx, "s.date >= ? AND s.date <= ?",
		from.Format(models.DateLayout), to.Format(models.DateLayout))
}

func (db *DB) ListBookingsByEmail(ctx context.Context, email string) ([]*models.BookingWithSlot, error) {
	return db.queryBookingsWithSlot(ctx, "b.email = ?", strings.ToLower(strings.TrimSpace(email)))
}

// ListLinkReminderCandidates returns confirmed bookings on slots dated within
// [from, to] that have not yet been told their link is available.
func (db *DB) ListLinkReminderCandidates(ctx context.Context, from, to time.Time) ([]*models.BookingWithSlot, error) {
	return db.queryBookingsWithSlot(ctx,
		"b.status = ? AND b.link_notified_at IS NULL AND s.date >= ? AND s.date <= ?",
		models.StatusConfirmed, from.Format(models.DateLayout), to.Format(models.DateLayout))
}

// MarkLinkNotified records the link reminder once. It reports false when another
// run already claimed the booking.
func (db *DB) MarkLinkNotified(ctx context.Context, bookingID int64, at time.Time) (bool, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE bookings SET link_notified_at = ? WHERE id = ? AND link_notified_at IS NULL`,
		at.UTC(), bookingID)
	if err != nil {
		return false, fmt.Errorf("failed to mark link notified: %w", err)
	}
	return rowsAffected(result) == 1, nil
}
