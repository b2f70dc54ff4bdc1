// Package booking holds the booking lifecycle rules and the time gate
// that decides when a session's meeting link is shown to the requester.
package booking

import (
	"learnhub/internal/apperr"
	"learnhub/internal/models"
)

var transitions = map[models.BookingStatus][]models.BookingStatus{
	models.StatusPending:   {models.StatusConfirmed, models.StatusCancelled, models.StatusCompleted},
	models.StatusConfirmed: {models.StatusCompleted, models.StatusCancelled},
}

// CanTransition reports whether a booking in from may move to to.
// Staying in the same status is always allowed; terminal statuses allow nothing else.
func CanTransition(from, to models.BookingStatus) bool {
	if from == to {
		return true
	}
	if from.IsTerminal() {
		return false
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves b to the requested status. It returns false when b already
// had that status. Unknown statuses are validation errors and disallowed moves
// are *apperr.TransitionError.
func Transition(b *models.Booking, to models.BookingStatus) (bool, error) {
	to, err := models.ParseBookingStatus(string(to))
	if err != nil {
		return false, err
	}
	if b.Status == to {
		return false, nil
	}
	if !CanTransition(b.Status, to) {
		return false, &apperr.TransitionError{From: string(b.Status), To: string(to)}
	}
	b.Status = to
	return true, nil
}

// SeatDelta is the change to the slot's booked count when moving between statuses.
func SeatDelta(from, to models.BookingStatus) int64 {
	switch {
	case from.HoldsSeat() && !to.HoldsSeat():
		return -1
	case !from.HoldsSeat() && to.HoldsSeat():
		return 1
	}
	return 0
}
