package database

import (
	"context"
	"fmt"
	"strings"

	"learnhub/internal/models"
)

// CreateOrder stores an already normalized order.
func (db *DB) CreateOrder(ctx context.Context, o *models.Order) error {
	raw := models.RawOrder{
		Reference:      o.Reference,
		Kind:           string(o.Kind),
		ItemID:         o.ItemID,
		Title:          o.ItemTitle,
		UserID:         o.UserID,
		Email:          o.UserEmail,
		AmountPaid:     models.Int64Ptr(o.Amount),
		Price:          models.Int64Ptr(o.OriginalAmount),
		OriginalAmount: models.Int64Ptr(o.OriginalAmount),
		Currency:       o.Currency,
		Status:         string(o.Status),
		FlashSaleTitle: o.FlashSaleTitle,
	}
	if err := db.InsertRawOrder(ctx, &raw); err != nil {
		return err
	}
	o.ID = raw.ID
	o.CreatedAt = raw.CreatedAt
	return nil
}

// InsertRawOrder stores an order as received from an upstream source. Kind,
// status and amounts are normalized on read.
func (db *DB) InsertRawOrder(ctx context.Context, raw *models.RawOrder) error {
	query := `INSERT INTO orders (
				reference, kind, item_id, item_title, user_id, user_email,
				amount_paid, price, original_amount, currency, status, flash_sale_title, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if raw.CreatedAt.IsZero() {
		raw.CreatedAt = now()
	}
	result, err := db.ExecContext(ctx, query,
		raw.Reference,
		raw.Kind,
		raw.ItemID,
		raw.Title,
		raw.UserID,
		raw.Email,
		raw.AmountPaid,
		raw.Price,
		raw.OriginalAmount,
		raw.Currency,
		raw.Status,
		raw.FlashSaleTitle,
		raw.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	raw.ID = id
	return nil
}

// ListOrders returns uniform orders across every kind, newest first. Rows that
// cannot be normalized are skipped and logged.
func (db *DB) ListOrders(ctx context.Context, f models.OrderFilter) ([]models.Order, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Kind != "" {
		where = append(where, "UPPER(REPLACE(kind, '-', '_')) = ?")
		args = append(args, string(f.Kind))
	}

	query := `SELECT id, reference, kind, item_id, item_title, user_id, user_email,
	                 amount_paid, price, original_amount, currency, status, flash_sale_title, created_at
              FROM orders`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var raw models.RawOrder
		err := rows.Scan(
			&raw.ID, &raw.Reference, &raw.Kind, &raw.ItemID, &raw.Title, &raw.UserID, &raw.Email,
			&raw.AmountPaid, &raw.Price, &raw.OriginalAmount, &raw.Currency, &raw.Status, &raw.FlashSaleTitle, &raw.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		o, err := models.NormalizeOrder(raw)
		if err != nil {
			db.logger.Warn().Err(err).Int64("order_id", raw.ID).Str("kind", raw.Kind).Msg("Skipping order that cannot be normalized")
			continue
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}
