// Package pricing resolves what a catalog item or slot actually costs,
// taking the item's own sale price and an optional active flash sale into account.
package pricing

import (
	"math"

	"learnhub/internal/models"
)

// Item is the pricing view of anything sellable.
type Item struct {
	Ref       models.ItemRef
	IsFree    bool
	Price     *int64
	SalePrice *int64
}

type Result struct {
	IsFree          bool   `json:"is_free"`
	Price           int64  `json:"price"`
	SalePrice       *int64 `json:"sale_price,omitempty"`
	EffectivePrice  int64  `json:"effective_price"`
	OriginalPrice   int64  `json:"original_price"`
	HasFlashSale    bool   `json:"has_flash_sale"`
	FlashSaleTitle  string `json:"flash_sale_title,omitempty"`
	DiscountPercent int    `json:"discount_percent"`
}

// HasDiscount is true only when the buyer pays less than the reference price.
func (r Result) HasDiscount() bool {
	return r.EffectivePrice < r.OriginalPrice
}

// Resolve computes the effective and original price of item.
// sale may be nil; callers pass the currently active flash sale only.
func Resolve(item Item, sale *models.FlashSale) Result {
	if item.IsFree {
		return Result{IsFree: true}
	}

	base := clamp(item.Price)
	salePrice := clamp(item.SalePrice)

	res := Result{
		Price:          valueOr(base, 0),
		SalePrice:      salePrice,
		EffectivePrice: valueOr(salePrice, valueOr(base, 0)),
		OriginalPrice:  valueOr(base, 0),
	}

	if entry, ok := sale.Entry(item.Ref); ok {
		res.EffectivePrice = valueOr(clamp(entry.DiscountPrice), valueOr(salePrice, valueOr(base, 0)))
		res.OriginalPrice = valueOr(salePrice, valueOr(base, 0))
		res.HasFlashSale = true
		res.FlashSaleTitle = sale.DisplayTitle()
	}

	res.DiscountPercent = DiscountPercent(res.OriginalPrice, res.EffectivePrice)
	return res
}

// DiscountPercent is round((original-effective)/original*100), 0 when original is 0
// or when there is no discount.
func DiscountPercent(original, effective int64) int {
	if original <= 0 || effective >= original {
		return 0
	}
	if effective < 0 {
		effective = 0
	}
	return int(math.Round(float64(original-effective) / float64(original) * 100))
}

// FromCatalog builds the pricing view of a catalog item.
func FromCatalog(c *models.CatalogItem) Item {
	return Item{Ref: c.Ref(), IsFree: c.IsFree, Price: c.Price, SalePrice: c.SalePrice}
}

// FromSlot builds the pricing view of a slot. Slots carry a single price and no sale price.
func FromSlot(s *models.Slot) Item {
	price := s.Price
	return Item{
		Ref:   models.ItemRef{Type: s.Kind.ItemType(), ID: s.ID},
		Price: &price,
	}
}

func clamp(v *int64) *int64 {
	if v == nil {
		return nil
	}
	if *v < 0 {
		zero := int64(0)
		return &zero
	}
	c := *v
	return &c
}

func valueOr(v *int64, fallback int64) int64 {
	if v == nil {
		return fallback
	}
	return *v
}
