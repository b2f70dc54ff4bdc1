package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"learnhub/internal/apperr"
	"learnhub/internal/models"
)

const catalogColumns = `item_type, id, title, is_free, price, sale_price, currency, is_active, created_at, updated_at`

func scanCatalogItem(row rowScanner) (*models.CatalogItem, error) {
	var item models.CatalogItem
	err := row.Scan(
		&item.Type, &item.ID, &item.Title, &item.IsFree, &item.Price, &item.SalePrice,
		&item.Currency, &item.IsActive, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UpsertCatalogItem stores the priced view of a course, e-book, webinar and so on.
// Items are keyed by (type, id) because each type lives in its own id space.
func (db *DB) UpsertCatalogItem(ctx context.Context, item *models.CatalogItem) error {
	if item.Currency == "" {
		item.Currency = models.DefaultCurrency
	}
	query := `INSERT INTO catalog_items (item_type, id, title, is_free, price, sale_price, currency, is_active, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(item_type, id) DO UPDATE SET
                title = excluded.title,
                is_free = excluded.is_free,
                price = excluded.price,
                sale_price = excluded.sale_price,
                currency = excluded.currency,
                is_active = excluded.is_active,
                updated_at = excluded.updated_at`
	ts := now()
	_, err := db.ExecContext(ctx, query,
		item.Type,
		item.ID,
		item.Title,
		item.IsFree,
		item.Price,
		item.SalePrice,
		item.Currency,
		item.IsActive,
		ts,
		ts,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert catalog item: %w", err)
	}

	stored, err := db.GetCatalogItem(ctx, item.Ref())
	if err != nil {
		return err
	}
	*item = *stored
	return nil
}

func (db *DB) GetCatalogItem(ctx context.Context, ref models.ItemRef) (*models.CatalogItem, error) {
	query := `SELECT ` + catalogColumns + ` FROM catalog_items WHERE item_type = ? AND id = ?`
	item, err := scanCatalogItem(db.QueryRowContext(ctx, query, ref.Type, ref.ID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound(string(ref.Type), ref.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog item: %w", err)
	}
	return item, nil
}

// ListCatalogItems lists items of one type, or of every type when itemType is empty.
func (db *DB) ListCatalogItems(ctx context.Context, itemType models.ItemType) ([]*models.CatalogItem, error) {
	query := `SELECT ` + catalogColumns + ` FROM catalog_items`
	var args []any
	if itemType != "" {
		query += ` WHERE item_type = ?`
		args = append(args, itemType)
	}
	query += ` ORDER BY item_type, id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog items: %w", err)
	}
	defer rows.Close()

	var items []*models.CatalogItem
	for rows.Next() {
		item, err := scanCatalogItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan catalog item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
