package models

import (
	"strings"
	"time"

	"learnhub/internal/apperr"
)

type FlashSale struct {
	ID        int64            `json:"id" yaml:"id"`
	Title     string           `json:"title" yaml:"title"`
	StartsAt  time.Time        `json:"starts_at" yaml:"starts_at"`
	EndsAt    time.Time        `json:"ends_at" yaml:"ends_at"`
	IsActive  bool             `json:"is_active" yaml:"is_active"`
	Entries   []FlashSaleEntry `json:"entries" yaml:"entries"`
	CreatedAt time.Time        `json:"created_at" yaml:"-"`
}

// FlashSaleEntry overrides the price of one item. A nil DiscountPrice falls back to the item's own prices.
type FlashSaleEntry struct {
	ItemType      ItemType `json:"item_type" yaml:"item_type"`
	ItemID        int64    `json:"item_id" yaml:"item_id"`
	DiscountPrice *int64   `json:"discount_price" yaml:"discount_price"`
}

// Entry finds the override for ref, if any.
func (f *FlashSale) Entry(ref ItemRef) (*FlashSaleEntry, bool) {
	if f == nil {
		return nil, false
	}
	for i := range f.Entries {
		e := &f.Entries[i]
		if e.ItemType == ref.Type && e.ItemID == ref.ID {
			return e, true
		}
	}
	return nil, false
}

// DisplayTitle never returns an empty string.
func (f *FlashSale) DisplayTitle() string {
	if f == nil || strings.TrimSpace(f.Title) == "" {
		return DefaultFlashSaleTitle
	}
	return f.Title
}

// LiveAt reports whether the sale is switched on and now falls inside its window.
// A zero EndsAt means open-ended.
func (f *FlashSale) LiveAt(now time.Time) bool {
	if f == nil || !f.IsActive {
		return false
	}
	if !f.StartsAt.IsZero() && now.Before(f.StartsAt) {
		return false
	}
	if !f.EndsAt.IsZero() && !now.Before(f.EndsAt) {
		return false
	}
	return true
}

func (f *FlashSale) Validate() error {
	if !f.EndsAt.IsZero() && !f.EndsAt.After(f.StartsAt) {
		return apperr.Validation("ends_at", "must be after starts_at")
	}
	if len(f.Entries) == 0 {
		return apperr.Validation("entries", "at least one entry is required")
	}
	seen := make(map[ItemRef]bool, len(f.Entries))
	for i := range f.Entries {
		e := &f.Entries[i]
		t, err := ParseItemType(string(e.ItemType))
		if err != nil {
			return err
		}
		e.ItemType = t
		if e.ItemID <= 0 {
			return apperr.Validation("entries.item_id", "must be positive")
		}
		if e.DiscountPrice != nil && *e.DiscountPrice < 0 {
			return apperr.Validation("entries.discount_price", "must not be negative")
		}
		ref := ItemRef{Type: e.ItemType, ID: e.ItemID}
		if seen[ref] {
			return apperr.Validation("entries", "duplicate entry for %s %d", ref.Type, ref.ID)
		}
		seen[ref] = true
	}
	return nil
}
