package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"learnhub/internal/apperr"
	"learnhub/internal/models"
)

const slotColumns = `id, kind, title, date, start_time, end_time, price, currency, capacity,
                     booked_count, is_active, sort_order, meeting_link, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSlot(row rowScanner) (*models.Slot, error) {
	var s models.Slot
	var dateStr string
	err := row.Scan(
		&s.ID, &s.Kind, &s.Title, &dateStr, &s.StartTime, &s.EndTime, &s.Price, &s.Currency, &s.Capacity,
		&s.BookedCount, &s.IsActive, &s.SortOrder, &s.MeetingLink, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Date, err = time.Parse(models.DateLayout, dateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse slot date %s: %w", dateStr, err)
	}
	return &s, nil
}

func (db *DB) CreateSlot(ctx context.Context, slot *models.Slot) error {
	if slot.Currency == "" {
		slot.Currency = models.DefaultCurrency
	}
	query := `INSERT INTO slots (
				kind, title, date, start_time, end_time, price, currency, capacity,
				booked_count, is_active, sort_order, meeting_link, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?, ?)`
	ts := now()
	result, err := db.ExecContext(ctx, query,
		slot.Kind,
		slot.Title,
		slot.Date.Format(models.DateLayout),
		strings.TrimSpace(slot.StartTime),
		strings.TrimSpace(slot.EndTime),
		slot.Price,
		slot.Currency,
		slot.Capacity,
		slot.IsActive,
		slot.SortOrder,
		slot.MeetingLink,
		ts,
		ts,
	)
	if err != nil {
		return fmt.Errorf("failed to create slot: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	slot.ID = id
	slot.BookedCount = 0
	slot.CreatedAt = ts
	slot.UpdatedAt = ts
	return nil
}

func (db *DB) GetSlot(ctx context.Context, id int64) (*models.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM slots WHERE id = ?`
	slot, err := scanSlot(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("slot", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get slot: %w", err)
	}
	return slot, nil
}

// UpdateSlot rewrites the editable fields. Capacity cannot drop below the seats already taken.
func (db *DB) UpdateSlot(ctx context.Context, slot *models.Slot) error {
	query := `UPDATE slots SET kind = ?, title = ?, date = ?, start_time = ?, end_time = ?, price = ?,
	                 currency = ?, capacity = ?, is_active = ?, sort_order = ?, meeting_link = ?, updated_at = ?
              WHERE id = ? AND (? IS NULL OR ? >= booked_count)`
	ts := now()
	result, err := db.ExecContext(ctx, query,
		slot.Kind, slot.Title, slot.Date.Format(models.DateLayout),
		strings.TrimSpace(slot.StartTime), strings.TrimSpace(slot.EndTime),
		slot.Price, slot.Currency, slot.Capacity, slot.IsActive, slot.SortOrder, slot.MeetingLink, ts,
		slot.ID, slot.Capacity, slot.Capacity,
	)
	if err != nil {
		return fmt.Errorf("failed to update slot: %w", err)
	}
	if rowsAffected(result) == 0 {
		current, err := db.GetSlot(ctx, slot.ID)
		if err != nil {
			return err
		}
		return apperr.Validation("capacity", "cannot be lower than the %d seats already booked", current.BookedCount)
	}

	updated, err := db.GetSlot(ctx, slot.ID)
	if err != nil {
		return err
	}
	*slot = *updated
	return nil
}

func (db *DB) ListSlots(ctx context.Context, f models.SlotFilter) ([]*models.Slot, error) {
	var (
		where []string
		args  []any
	)
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, f.Kind)
	}
	if !f.From.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, f.From.Format(models.DateLayout))
	}
	if !f.To.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, f.To.Format(models.DateLayout))
	}
	if f.ActiveOnly {
		where = append(where, "is_active = 1")
	}

	query := `SELECT ` + slotColumns + ` FROM slots`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date ASC, sort_order ASC, start_time ASC, id ASC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	defer rows.Close()

	var slots []*models.Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

// DeactivateSlot is the only way to remove a slot; bookings keep referencing it.
func (db *DB) DeactivateSlot(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `UPDATE slots SET is_active = 0, updated_at = ? WHERE id = ?`, now(), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate slot: %w", err)
	}
	if rowsAffected(result) == 0 {
		return apperr.NotFound("slot", id)
	}
	return nil
}

func (db *DB) ReorderSlot(ctx context.Context, id, sortOrder int64) error {
	result, err := db.ExecContext(ctx, `UPDATE slots SET sort_order = ?, updated_at = ? WHERE id = ?`, sortOrder, now(), id)
	if err != nil {
		return fmt.Errorf("failed to reorder slot: %w", err)
	}
	if rowsAffected(result) == 0 {
		return apperr.NotFound("slot", id)
	}
	return nil
}
