package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"learnhub/internal/apperr"
	"learnhub/internal/models"
)

// CreateFlashSale stores a sale and its entries. A sale created active
// switches off every other sale in the same transaction.
func (db *DB) CreateFlashSale(ctx context.Context, sale *models.FlashSale) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if sale.IsActive {
		if _, err := tx.ExecContext(ctx, `UPDATE flash_sales SET is_active = 0 WHERE is_active = 1`); err != nil {
			return fmt.Errorf("failed to deactivate other flash sales: %w", err)
		}
	}

	ts := now()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO flash_sales (title, starts_at, ends_at, is_active, created_at) VALUES (?, ?, ?, ?, ?)`,
		sale.Title, nullableTime(sale.StartsAt), nullableTime(sale.EndsAt), sale.IsActive, ts)
	if err != nil {
		return fmt.Errorf("failed to create flash sale: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	for _, e := range sale.Entries {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO flash_sale_entries (flash_sale_id, item_type, item_id, discount_price) VALUES (?, ?, ?, ?)`,
			id, e.ItemType, e.ItemID, e.DiscountPrice)
		if err != nil {
			return fmt.Errorf("failed to add flash sale entry %s/%d: %w", e.ItemType, e.ItemID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit flash sale: %w", err)
	}
	sale.ID = id
	sale.CreatedAt = ts
	return nil
}

func (db *DB) GetFlashSale(ctx context.Context, id int64) (*models.FlashSale, error) {
	var (
		sale           models.FlashSale
		startsAt, ends *time.Time
	)
	err := db.QueryRowContext(ctx,
		`SELECT id, title, starts_at, ends_at, is_active, created_at FROM flash_sales WHERE id = ?`, id,
	).Scan(&sale.ID, &sale.Title, &startsAt, &ends, &sale.IsActive, &sale.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("flash sale", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get flash sale: %w", err)
	}
	sale.StartsAt = timeOrZero(startsAt)
	sale.EndsAt = timeOrZero(ends)

	entries, err := db.flashSaleEntries(ctx, id)
	if err != nil {
		return nil, err
	}
	sale.Entries = entries
	return &sale, nil
}

func (db *DB) flashSaleEntries(ctx context.Context, saleID int64) ([]models.FlashSaleEntry, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT item_type, item_id, discount_price FROM flash_sale_entries WHERE flash_sale_id = ? ORDER BY item_type, item_id`,
		saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get flash sale entries: %w", err)
	}
	defer rows.Close()

	var entries []models.FlashSaleEntry
	for rows.Next() {
		var e models.FlashSaleEntry
		if err := rows.Scan(&e.ItemType, &e.ItemID, &e.DiscountPrice); err != nil {
			return nil, fmt.Errorf("failed to scan flash sale entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ActivateFlashSale makes id the only active sale.
func (db *DB) ActivateFlashSale(ctx context.Context, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `UPDATE flash_sales SET is_active = 0 WHERE id != ? AND is_active = 1`, id); err != nil {
		return fmt.Errorf("failed to deactivate other flash sales: %w", err)
	}
	result, err := tx.ExecContext(ctx, `UPDATE flash_sales SET is_active = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to activate flash sale: %w", err)
	}
	if rowsAffected(result) == 0 {
		return apperr.NotFound("flash sale", id)
	}
	return tx.Commit()
}

func (db *DB) DeactivateFlashSale(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `UPDATE flash_sales SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate flash sale: %w", err)
	}
	if rowsAffected(result) == 0 {
		return apperr.NotFound("flash sale", id)
	}
	return nil
}

// GetEnabledFlashSale returns the sale switched on by an admin, or nil. Its
// StartsAt/EndsAt window is not checked; callers use LiveAt.
func (db *DB) GetEnabledFlashSale(ctx context.Context) (*models.FlashSale, error) {
	var id int64
	err := db.QueryRowContext(ctx,
		`SELECT id FROM flash_sales WHERE is_active = 1 ORDER BY id DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active flash sale: %w", err)
	}

	return db.GetFlashSale(ctx, id)
}
