package availability

import (
	"testing"
	"time"

	"learnhub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name      string
		capacity  *int64
		booked    int64
		remaining int64
		text      string
		severity  Severity
	}{
		{"almost full", models.Int64Ptr(10), 9, 1, "1 slot left", SeverityLow},
		{"full", models.Int64Ptr(5), 5, 0, "Slot full", SeverityFull},
		{"overbooked clamps", models.Int64Ptr(5), 7, 0, "Slot full", SeverityFull},
		{"exactly one fifth", models.Int64Ptr(10), 8, 2, "2 slots left", SeverityLow},
		{"half", models.Int64Ptr(10), 5, 5, "5 slots left", SeverityMedium},
		{"just above half", models.Int64Ptr(10), 4, 6, "6 slots left", SeverityHealthy},
		{"empty", models.Int64Ptr(3), 0, 3, "3 slots left", SeverityHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Compute(tt.capacity, tt.booked)
			require.NotNil(t, a.Remaining)
			assert.Equal(t, tt.remaining, *a.Remaining)
			assert.Equal(t, tt.text, a.Text)
			assert.Equal(t, tt.severity, a.Severity)
			assert.Equal(t, tt.severity.Color(), a.Color)
			assert.Equal(t, tt.remaining == 0, a.Severity == SeverityFull)
		})
	}
}

func TestComputeUnlimited(t *testing.T) {
	for _, booked := range []int64{0, 1, 1000} {
		a := Compute(nil, booked)
		assert.True(t, a.Unlimited())
		assert.True(t, a.HasSeats())
		assert.Equal(t, "Unlimited", a.Text)
		assert.Equal(t, SeverityHealthy, a.Severity)
		assert.Equal(t, "green", a.Color)
	}
}

func TestComputeIsPure(t *testing.T) {
	assert.Equal(t, Compute(models.Int64Ptr(4), 1), Compute(models.Int64Ptr(4), 1))
}

func TestForSlot(t *testing.T) {
	loc := time.UTC
	now := time.Date(2025, 3, 10, 18, 0, 0, 0, loc)
	today, _ := models.ParseDate("2025-03-10")
	yesterday, _ := models.ParseDate("2025-03-09")

	slot := func() *models.Slot {
		return &models.Slot{Date: today, StartTime: "09:00", IsActive: true, Capacity: models.Int64Ptr(10), BookedCount: 9}
	}

	t.Run("LastSeatIsBookable", func(t *testing.T) {
		a := ForSlot(slot(), now, loc)
		assert.True(t, a.Bookable)
		assert.Equal(t, SeverityLow, a.Severity)
		assert.Equal(t, "red", a.Color)
	})

	t.Run("FullIsNotBookable", func(t *testing.T) {
		s := slot()
		s.BookedCount = 10
		a := ForSlot(s, now, loc)
		assert.False(t, a.Bookable)
		assert.Equal(t, SeverityFull, a.Severity)
	})

	t.Run("Inactive", func(t *testing.T) {
		s := slot()
		s.IsActive = false
		assert.False(t, ForSlot(s, now, loc).Bookable)
	})

	t.Run("PastDate", func(t *testing.T) {
		s := slot()
		s.Date = yesterday
		assert.False(t, ForSlot(s, now, loc).Bookable)
	})

	t.Run("UnlimitedActiveFuture", func(t *testing.T) {
		s := slot()
		s.Capacity = nil
		s.BookedCount = 500
		a := ForSlot(s, now, loc)
		assert.True(t, a.Bookable)
		assert.Equal(t, "Unlimited", a.Text)
	})

	t.Run("DateUsesLocation", func(t *testing.T) {
		ist := time.FixedZone("IST", 5*3600+1800)
		// 20:00 UTC on the 9th is already the 10th in IST.
		late := time.Date(2025, 3, 9, 20, 0, 0, 0, time.UTC)
		s := slot()
		s.Date = yesterday
		assert.True(t, ForSlot(s, late, time.UTC).Bookable)
		assert.False(t, ForSlot(s, late, ist).Bookable)
	})
}
