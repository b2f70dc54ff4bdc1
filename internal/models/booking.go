package models

import (
	"strings"
	"time"

	"learnhub/internal/apperr"
)

type BookingStatus string

const (
	StatusPending   BookingStatus = "PENDING"
	StatusConfirmed BookingStatus = "CONFIRMED"
	StatusCancelled BookingStatus = "CANCELLED"
	StatusCompleted BookingStatus = "COMPLETED"
)

// AllBookingStatuses lists the statuses in lifecycle order.
var AllBookingStatuses = []BookingStatus{StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted}

// ParseBookingStatus accepts any casing; anything outside the four statuses is a validation error.
func ParseBookingStatus(raw string) (BookingStatus, error) {
	s := BookingStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return s, nil
	}
	return "", apperr.Validation("status", "unknown booking status %q", raw)
}

// IsTerminal reports whether no further transitions are allowed.
func (s BookingStatus) IsTerminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// HoldsSeat reports whether a booking in this status counts against slot capacity.
func (s BookingStatus) HoldsSeat() bool {
	return s != StatusCancelled
}

type Booking struct {
	ID             int64         `json:"id"`
	SlotID         int64         `json:"slot_id"`
	UserID         string        `json:"user_id,omitempty"`
	Name           string        `json:"name"`
	Email          string        `json:"email"`
	Phone          string        `json:"phone"`
	Message        string        `json:"message,omitempty"`
	Status         BookingStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	Version        int64         `json:"version"`
	LinkNotifiedAt *time.Time    `json:"link_notified_at,omitempty"`
}

// BookingWithSlot is a booking joined with the slot it references.
type BookingWithSlot struct {
	Booking
	Slot Slot `json:"slot"`
}
