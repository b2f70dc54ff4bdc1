package models

import (
	"strings"
	"time"

	"learnhub/internal/apperr"
)

// ItemType identifies a catalog table; together with an id it addresses a priced item.
type ItemType string

const (
	ItemTypeCourse        ItemType = "COURSE"
	ItemTypeEbook         ItemType = "EBOOK"
	ItemTypeWebinar       ItemType = "WEBINAR"
	ItemTypeBundle        ItemType = "BUNDLE"
	ItemTypeMentorship    ItemType = "MENTORSHIP"
	ItemTypeOfflineBatch  ItemType = "OFFLINE_BATCH"
	ItemTypeMockInterview ItemType = "MOCK_INTERVIEW"
	ItemTypeGuidance      ItemType = "GUIDANCE"
)

func ParseItemType(raw string) (ItemType, error) {
	t := ItemType(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), "-", "_")))
	switch t {
	case ItemTypeCourse, ItemTypeEbook, ItemTypeWebinar, ItemTypeBundle,
		ItemTypeMentorship, ItemTypeOfflineBatch, ItemTypeMockInterview, ItemTypeGuidance:
		return t, nil
	}
	return "", apperr.Validation("item_type", "unknown item type %q", raw)
}

type ItemRef struct {
	Type ItemType `json:"type"`
	ID   int64    `json:"id"`
}

// CatalogItem is the priced part of a course, e-book, webinar, bundle, mentorship or batch.
type CatalogItem struct {
	ID        int64     `json:"id" yaml:"id"`
	Type      ItemType  `json:"type" yaml:"type"`
	Title     string    `json:"title" yaml:"title"`
	IsFree    bool      `json:"is_free" yaml:"is_free"`
	Price     *int64    `json:"price" yaml:"price"`
	SalePrice *int64    `json:"sale_price" yaml:"sale_price"`
	Currency  string    `json:"currency" yaml:"currency"`
	IsActive  bool      `json:"is_active" yaml:"is_active"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

func (c *CatalogItem) Ref() ItemRef { return ItemRef{Type: c.Type, ID: c.ID} }

func (c *CatalogItem) Validate() error {
	if _, err := ParseItemType(string(c.Type)); err != nil {
		return err
	}
	if c.ID <= 0 {
		return apperr.Validation("id", "must be positive")
	}
	if strings.TrimSpace(c.Title) == "" {
		return apperr.Validation("title", "is required")
	}
	if c.Price != nil && *c.Price < 0 {
		return apperr.Validation("price", "must not be negative")
	}
	if c.SalePrice != nil && *c.SalePrice < 0 {
		return apperr.Validation("sale_price", "must not be negative")
	}
	return nil
}
