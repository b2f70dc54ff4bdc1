package service

import (
	"context"
	"testing"
	"time"

	"learnhub/internal/apperr"
	"learnhub/internal/availability"
	"learnhub/internal/models"
	"learnhub/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotService(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	pricing := NewPricingService(db, db, repository.NewMemoryCache(), nil, testLogger())
	svc := NewSlotService(db, pricing, time.UTC, testLogger())

	var created int64

	t.Run("Create", func(t *testing.T) {
		v, err := svc.CreateSlot(ctx, &models.Slot{
			Kind: "guidance", Date: daysFromNow(t, 2), StartTime: " 10:00 ", EndTime: "11:00",
			Price: 700, Capacity: models.Int64Ptr(10), IsActive: true,
		})
		require.NoError(t, err)
		created = v.ID
		assert.Equal(t, models.SlotKindGuidance, v.Kind)
		assert.Equal(t, "10:00", v.StartTime)
		assert.Equal(t, models.DefaultCurrency, v.Currency)
		assert.Equal(t, "10 slots left", v.Availability.Text)
		assert.True(t, v.Availability.Bookable)
		assert.Equal(t, int64(700), v.Pricing.EffectivePrice)
	})

	t.Run("CreateInvalid", func(t *testing.T) {
		_, err := svc.CreateSlot(ctx, &models.Slot{Kind: "guidance", Date: daysFromNow(t, 2), StartTime: "10:00", EndTime: "09:00"})
		assert.ErrorIs(t, err, apperr.ErrValidation)

		_, err = svc.CreateSlot(ctx, &models.Slot{Kind: "workshop", Date: daysFromNow(t, 2), StartTime: "10:00"})
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("AvailabilityTracksBookings", func(t *testing.T) {
		for i := 0; i < 9; i++ {
			require.NoError(t, db.CreateBookingWithCapacity(ctx, &models.Booking{SlotID: created, Name: "x", Email: "x@example.com"}))
		}
		v, err := svc.GetSlot(ctx, created)
		require.NoError(t, err)
		assert.Equal(t, "1 slot left", v.Availability.Text)
		assert.Equal(t, availability.SeverityLow, v.Availability.Severity)
		assert.True(t, v.Availability.Bookable)
	})

	t.Run("CapacityBelowBooked", func(t *testing.T) {
		slot, err := db.GetSlot(ctx, created)
		require.NoError(t, err)
		slot.Capacity = models.Int64Ptr(5)
		_, err = svc.UpdateSlot(ctx, slot)
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("Update", func(t *testing.T) {
		slot, err := db.GetSlot(ctx, created)
		require.NoError(t, err)
		slot.Capacity = nil
		slot.Title = "Open office hours"
		v, err := svc.UpdateSlot(ctx, slot)
		require.NoError(t, err)
		assert.Equal(t, "Unlimited", v.Availability.Text)
		assert.Equal(t, "Open office hours", v.Title)
	})

	t.Run("ListAndDeactivate", func(t *testing.T) {
		_, err := svc.CreateSlot(ctx, &models.Slot{
			Kind: models.SlotKindMockInterview, Date: daysFromNow(t, 4), StartTime: "09:00", Price: 1500, IsActive: true,
		})
		require.NoError(t, err)

		all, err := svc.ListSlots(ctx, models.SlotFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 2)

		guidance, err := svc.ListSlots(ctx, models.SlotFilter{Kind: models.SlotKindGuidance})
		require.NoError(t, err)
		require.Len(t, guidance, 1)

		require.NoError(t, svc.DeactivateSlot(ctx, created))
		active, err := svc.ListSlots(ctx, models.SlotFilter{ActiveOnly: true})
		require.NoError(t, err)
		assert.Len(t, active, 1)

		v, err := svc.GetSlot(ctx, created)
		require.NoError(t, err)
		assert.False(t, v.Availability.Bookable)
	})

	t.Run("Reorder", func(t *testing.T) {
		require.NoError(t, svc.ReorderSlot(ctx, created, 7))
		v, err := svc.GetSlot(ctx, created)
		require.NoError(t, err)
		assert.Equal(t, int64(7), v.SortOrder)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := svc.GetSlot(ctx, 12345)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})
}
