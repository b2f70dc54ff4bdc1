package models

import "time"

// SlotFilter narrows slot listings. Zero values mean no restriction.
type SlotFilter struct {
	Kind       SlotKind
	From       time.Time
	To         time.Time
	ActiveOnly bool
}

// OrderFilter narrows order listings. Empty fields mean no restriction.
type OrderFilter struct {
	UserID string
	Kind   OrderKind
	Limit  int
}
