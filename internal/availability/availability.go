// Package availability turns a slot's capacity and booked count into
// remaining seats, a color-coded severity and a bookable flag.
package availability

import (
	"fmt"
	"time"

	"learnhub/internal/models"
)

type Severity string

const (
	SeverityFull    Severity = "full"
	SeverityLow     Severity = "low"
	SeverityMedium  Severity = "medium"
	SeverityHealthy Severity = "healthy"
)

// Color is the UI hint for a severity.
func (s Severity) Color() string {
	switch s {
	case SeverityFull, SeverityLow:
		return "red"
	case SeverityMedium:
		return "orange"
	default:
		return "green"
	}
}

const (
	lowRatio    = 0.2
	mediumRatio = 0.5
)

type Availability struct {
	// Remaining is nil for unlimited slots.
	Remaining *int64   `json:"remaining"`
	Text      string   `json:"remaining_text"`
	Severity  Severity `json:"severity"`
	Color     string   `json:"color"`
}

// Unlimited reports whether the slot has no capacity limit.
func (a Availability) Unlimited() bool { return a.Remaining == nil }

// HasSeats reports whether at least one more booking fits.
func (a Availability) HasSeats() bool { return a.Remaining == nil || *a.Remaining > 0 }

// Compute derives remaining seats and severity. A nil capacity is unlimited.
func Compute(capacity *int64, booked int64) Availability {
	if capacity == nil {
		return newAvailability(nil, "Unlimited", SeverityHealthy)
	}

	remaining := *capacity - booked
	if remaining < 0 {
		remaining = 0
	}
	if remaining == 0 || *capacity <= 0 {
		return newAvailability(&remaining, "Slot full", SeverityFull)
	}

	ratio := float64(remaining) / float64(*capacity)
	severity := SeverityHealthy
	switch {
	case ratio <= lowRatio:
		severity = SeverityLow
	case ratio <= mediumRatio:
		severity = SeverityMedium
	}
	return newAvailability(&remaining, remainingText(remaining), severity)
}

func newAvailability(remaining *int64, text string, severity Severity) Availability {
	return Availability{Remaining: remaining, Text: text, Severity: severity, Color: severity.Color()}
}

func remainingText(n int64) string {
	if n == 1 {
		return "1 slot left"
	}
	return fmt.Sprintf("%d slots left", n)
}

type SlotAvailability struct {
	Availability
	Bookable bool `json:"bookable"`
}

// ForSlot adds bookability to Compute: seats left, slot active and its date not
// before today in loc.
func ForSlot(slot *models.Slot, now time.Time, loc *time.Location) SlotAvailability {
	a := Compute(slot.Capacity, slot.BookedCount)
	return SlotAvailability{
		Availability: a,
		Bookable:     a.HasSeats() && slot.IsActive && !IsPastDate(slot.Date, now, loc),
	}
}

// IsPastDate compares calendar dates only; a slot later today is not in the past.
func IsPastDate(date, now time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	return date.Format(models.DateLayout) < now.In(loc).Format(models.DateLayout)
}
