package models

import (
	"fmt"
	"strings"
	"time"

	"learnhub/internal/apperr"
)

type SlotKind string

const (
	SlotKindMockInterview SlotKind = "MOCK_INTERVIEW"
	SlotKindGuidance      SlotKind = "GUIDANCE"
)

func ParseSlotKind(raw string) (SlotKind, error) {
	k := SlotKind(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), "-", "_")))
	switch k {
	case SlotKindMockInterview, SlotKindGuidance:
		return k, nil
	}
	return "", apperr.Validation("kind", "unknown slot kind %q", raw)
}

// ItemType maps a slot kind onto the catalog item type used for pricing.
func (k SlotKind) ItemType() ItemType {
	if k == SlotKindGuidance {
		return ItemTypeGuidance
	}
	return ItemTypeMockInterview
}

// Slot is a bookable time window. Capacity nil means unlimited.
type Slot struct {
	ID          int64     `json:"id" yaml:"id"`
	Kind        SlotKind  `json:"kind" yaml:"kind"`
	Title       string    `json:"title" yaml:"title"`
	Date        time.Time `json:"date" yaml:"-"`
	StartTime   string    `json:"start_time" yaml:"start_time"`
	EndTime     string    `json:"end_time,omitempty" yaml:"end_time"`
	Price       int64     `json:"price" yaml:"price"`
	Currency    string    `json:"currency" yaml:"currency"`
	Capacity    *int64    `json:"capacity" yaml:"capacity"`
	BookedCount int64     `json:"booked_count" yaml:"-"`
	IsActive    bool      `json:"is_active" yaml:"is_active"`
	SortOrder   int64     `json:"sort_order" yaml:"sort_order"`
	MeetingLink string    `json:"-" yaml:"meeting_link"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"-"`
}

// StartAt combines the slot date and start time in loc.
func (s *Slot) StartAt(loc *time.Location) (time.Time, error) {
	return combine(s.Date, s.StartTime, loc)
}

// EndAt returns the scheduled end. Slots without an end time last defaultLength.
func (s *Slot) EndAt(loc *time.Location, defaultLength time.Duration) (time.Time, error) {
	if strings.TrimSpace(s.EndTime) == "" {
		start, err := s.StartAt(loc)
		if err != nil {
			return time.Time{}, err
		}
		return start.Add(defaultLength), nil
	}
	return combine(s.Date, s.EndTime, loc)
}

// Validate checks the invariants an administrator can break on create or edit.
func (s *Slot) Validate() error {
	if _, err := ParseSlotKind(string(s.Kind)); err != nil {
		return err
	}
	if s.Date.IsZero() {
		return apperr.Validation("date", "is required")
	}
	start, err := time.Parse(ClockLayout, strings.TrimSpace(s.StartTime))
	if err != nil {
		return apperr.Validation("start_time", "expected HH:MM, got %q", s.StartTime)
	}
	if strings.TrimSpace(s.EndTime) != "" {
		end, err := time.Parse(ClockLayout, strings.TrimSpace(s.EndTime))
		if err != nil {
			return apperr.Validation("end_time", "expected HH:MM, got %q", s.EndTime)
		}
		if !end.After(start) {
			return apperr.Validation("end_time", "must be after start_time")
		}
	}
	if s.Price < 0 {
		return apperr.Validation("price", "must not be negative")
	}
	if s.Capacity != nil && *s.Capacity <= 0 {
		return apperr.Validation("capacity", "must be a positive integer when set")
	}
	return nil
}

// ParseDate parses a YYYY-MM-DD date at midnight UTC.
func ParseDate(raw string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, apperr.Validation("date", "expected YYYY-MM-DD, got %q", raw)
	}
	return d, nil
}

func combine(date time.Time, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.Parse(ClockLayout, strings.TrimSpace(clock))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse clock %q: %w", clock, err)
	}
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, loc), nil
}
