package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"learnhub/internal/apperr"
	"learnhub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBooking(slotID int64, email string) *models.Booking {
	return &models.Booking{SlotID: slotID, Name: "Asha", Email: email, Phone: "+91 90000 00000"}
}

func TestCreateBookingWithCapacity(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	slot := createTestSlot(t, db, models.Int64Ptr(2))

	b := newBooking(slot.ID, " Asha@Example.com ")
	require.NoError(t, db.CreateBookingWithCapacity(ctx, b))
	assert.NotZero(t, b.ID)
	assert.Equal(t, models.StatusPending, b.Status)
	assert.Equal(t, "asha@example.com", b.Email)
	assert.Equal(t, int64(1), b.Version)

	require.NoError(t, db.CreateBookingWithCapacity(ctx, newBooking(slot.ID, "b@example.com")))

	err := db.CreateBookingWithCapacity(ctx, newBooking(slot.ID, "c@example.com"))
	assert.ErrorIs(t, err, apperr.ErrCapacityExceeded)

	got, err := db.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.BookedCount)

	stored, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.Email, stored.Email)
	assert.Nil(t, stored.LinkNotifiedAt)
}

func TestCreateBookingAtCapacityFails(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	slot := createTestSlot(t, db, models.Int64Ptr(5))

	for i := 0; i < 5; i++ {
		require.NoError(t, db.CreateBookingWithCapacity(ctx, newBooking(slot.ID, fmt.Sprintf("u%d@example.com", i))))
	}
	err := db.CreateBookingWithCapacity(ctx, newBooking(slot.ID, "late@example.com"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrCapacityExceeded)

	bookings, err := db.ListBookingsBySlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Len(t, bookings, 5)
}

func TestCreateBookingRejectsMissingOrInactiveSlot(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	err := db.CreateBookingWithCapacity(ctx, newBooking(12345, "a@example.com"))
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	slot := createTestSlot(t, db, nil)
	require.NoError(t, db.DeactivateSlot(ctx, slot.ID))
	err = db.CreateBookingWithCapacity(ctx, newBooking(slot.ID, "a@example.com"))
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCreateBookingUnlimited(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	slot := createTestSlot(t, db, nil)

	for i := 0; i < 20; i++ {
		require.NoError(t, db.CreateBookingWithCapacity(ctx, newBooking(slot.ID, "x@example.com")))
	}
	got, err := db.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), got.BookedCount)
}

func TestConcurrentBooking(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	slot := createTestSlot(t, db, models.Int64Ptr(3))

	const numGoroutines = 10
	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	results := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			results <- db.CreateBookingWithCapacity(ctx, newBooking(slot.ID, fmt.Sprintf("user%d@example.com", id)))
		}(i)
	}
	wg.Wait()
	close(results)

	var ok, full int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, apperr.ErrCapacityExceeded):
			full++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 3, ok)
	assert.Equal(t, 7, full)

	got, err := db.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.BookedCount)
}

func TestUpdateBookingStatusWithVersion(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	slot := createTestSlot(t, db, models.Int64Ptr(1))

	b := newBooking(slot.ID, "a@example.com")
	require.NoError(t, db.CreateBookingWithCapacity(ctx, b))

	stale := *b

	require.NoError(t, db.UpdateBookingStatusWithVersion(ctx, b, models.StatusConfirmed))
	assert.Equal(t, models.StatusConfirmed, b.Status)
	assert.Equal(t, int64(2), b.Version)

	err := db.UpdateBookingStatusWithVersion(ctx, &stale, models.StatusCancelled)
	assert.ErrorIs(t, err, apperr.ErrConcurrentModification)

	require.NoError(t, db.UpdateBookingStatusWithVersion(ctx, b, models.StatusCancelled))
	got, err := db.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.BookedCount, "cancelling releases the seat")

	require.NoError(t, db.CreateBookingWithCapacity(ctx, newBooking(slot.ID, "next@example.com")))
}

func TestCompletingKeepsSeat(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	slot := createTestSlot(t, db, models.Int64Ptr(2))

	b := newBooking(slot.ID, "a@example.com")
	require.NoError(t, db.CreateBookingWithCapacity(ctx, b))
	require.NoError(t, db.UpdateBookingStatusWithVersion(ctx, b, models.StatusCompleted))

	got, err := db.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.BookedCount)
}

func TestListBookings(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	slot := createTestSlot(t, db, nil)

	require.NoError(t, db.CreateBookingWithCapacity(ctx, newBooking(slot.ID, "a@example.com")))
	require.NoError(t, db.CreateBookingWithCapacity(ctx, newBooking(slot.ID, "b@example.com")))

	byEmail, err := db.ListBookingsByEmail(ctx, "A@example.com")
	require.NoError(t, err)
	require.Len(t, byEmail, 1)
	assert.Equal(t, slot.ID, byEmail[0].Slot.ID)
	assert.Equal(t, slot.Date, byEmail[0].Slot.Date)

	inRange, err := db.ListBookingsByDateRange(ctx, slot.Date, slot.Date)
	require.NoError(t, err)
	assert.Len(t, inRange, 2)

	outside, err := db.ListBookingsByDateRange(ctx, slot.Date.AddDate(0, 0, 1), slot.Date.AddDate(0, 0, 5))
	require.NoError(t, err)
	assert.Empty(t, outside)

	bw, err := db.GetBookingWithSlot(ctx, byEmail[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "14:00", bw.Slot.StartTime)

	_, err = db.GetBookingWithSlot(ctx, 999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = db.GetBooking(ctx, 999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestLinkReminderCandidates(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	slot := createTestSlot(t, db, nil)

	pending := newBooking(slot.ID, "p@example.com")
	confirmed := newBooking(slot.ID, "c@example.com")
	require.NoError(t, db.CreateBookingWithCapacity(ctx, pending))
	require.NoError(t, db.CreateBookingWithCapacity(ctx, confirmed))
	require.NoError(t, db.UpdateBookingStatusWithVersion(ctx, confirmed, models.StatusConfirmed))

	candidates, err := db.ListLinkReminderCandidates(ctx, slot.Date, slot.Date)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, confirmed.ID, candidates[0].ID)

	claimed, err := db.MarkLinkNotified(ctx, confirmed.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = db.MarkLinkNotified(ctx, confirmed.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, claimed)

	candidates, err = db.ListLinkReminderCandidates(ctx, slot.Date, slot.Date)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}
