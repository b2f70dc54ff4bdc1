package booking

import (
	"testing"
	"time"

	"learnhub/internal/apperr"
	"learnhub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		from    models.BookingStatus
		to      models.BookingStatus
		allowed bool
	}{
		{models.StatusPending, models.StatusConfirmed, true},
		{models.StatusPending, models.StatusCancelled, true},
		{models.StatusPending, models.StatusCompleted, true},
		{models.StatusConfirmed, models.StatusCompleted, true},
		{models.StatusConfirmed, models.StatusCancelled, true},
		{models.StatusConfirmed, models.StatusPending, false},
		{models.StatusCancelled, models.StatusConfirmed, false},
		{models.StatusCancelled, models.StatusPending, false},
		{models.StatusCompleted, models.StatusCancelled, false},
		{models.StatusCompleted, models.StatusConfirmed, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			b := &models.Booking{Status: tt.from}
			changed, err := Transition(b, tt.to)
			if !tt.allowed {
				var te *apperr.TransitionError
				require.ErrorAs(t, err, &te)
				assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
				assert.Equal(t, tt.from, b.Status)
				return
			}
			require.NoError(t, err)
			assert.True(t, changed)
			assert.Equal(t, tt.to, b.Status)
		})
	}
}

func TestTransitionSameStatusIsNoop(t *testing.T) {
	for _, s := range models.AllBookingStatuses {
		b := &models.Booking{Status: s}
		changed, err := Transition(b, s)
		require.NoError(t, err)
		assert.False(t, changed)
	}
}

func TestTransitionUnknownStatus(t *testing.T) {
	b := &models.Booking{Status: models.StatusPending}
	_, err := Transition(b, "ARCHIVED")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, models.StatusPending, b.Status)

	changed, err := Transition(b, "confirmed")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, models.StatusConfirmed, b.Status)
}

func TestTerminalStatusesAreFinal(t *testing.T) {
	for _, from := range models.AllBookingStatuses {
		if !from.IsTerminal() {
			continue
		}
		for _, to := range models.AllBookingStatuses {
			assert.Equal(t, from == to, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	assert.True(t, CanTransition(models.StatusPending, models.StatusCancelled))
}

func TestSeatDelta(t *testing.T) {
	assert.Equal(t, int64(-1), SeatDelta(models.StatusPending, models.StatusCancelled))
	assert.Equal(t, int64(-1), SeatDelta(models.StatusConfirmed, models.StatusCancelled))
	assert.Equal(t, int64(0), SeatDelta(models.StatusPending, models.StatusConfirmed))
	assert.Equal(t, int64(0), SeatDelta(models.StatusConfirmed, models.StatusCompleted))
}

func sessionWindow() Window {
	return Window{
		Start: time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC),
	}
}

func TestCanAccessLink(t *testing.T) {
	w := sessionWindow()
	confirmed := &models.Booking{Status: models.StatusConfirmed}
	at := func(h, m, s int) time.Time { return time.Date(2025, 3, 10, h, m, s, 0, time.UTC) }

	cases := []struct {
		now  time.Time
		want bool
	}{
		{at(13, 0, 0), false},
		{at(13, 49, 59), false},
		{at(13, 50, 0), true},
		{at(13, 50, 1), true},
		{at(13, 51, 0), true},
		{at(14, 30, 0), true},
		{at(15, 0, 0), true},
		{at(15, 0, 1), false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CanAccessLink(confirmed, w, c.now), c.now.Format(time.TimeOnly))
	}

	for _, s := range []models.BookingStatus{models.StatusPending, models.StatusCancelled, models.StatusCompleted} {
		assert.False(t, CanAccessLink(&models.Booking{Status: s}, w, at(14, 30, 0)), s)
	}
	assert.False(t, CanAccessLink(nil, w, at(14, 30, 0)))
}

func TestWindowForSlot(t *testing.T) {
	date, _ := models.ParseDate("2025-03-10")
	slot := &models.Slot{Date: date, StartTime: "14:00"}

	w, err := WindowForSlot(slot, time.UTC, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, sessionWindow(), w)
	assert.Equal(t, time.Date(2025, 3, 10, 13, 50, 0, 0, time.UTC), w.Opens(DefaultLeadTime))

	slot.StartTime = "bogus"
	_, err = WindowForSlot(slot, time.UTC, time.Hour)
	assert.Error(t, err)
}

func TestGateState(t *testing.T) {
	w := sessionWindow()
	g := NewGate(0)
	assert.Equal(t, DefaultLeadTime, g.Lead)

	confirmed := &models.Booking{Status: models.StatusConfirmed}
	const link = "https://meet.example.com/abc"

	t.Run("Unconfirmed", func(t *testing.T) {
		st := g.State(&models.Booking{Status: models.StatusPending}, w, link, w.Start)
		assert.Equal(t, PhaseUnconfirmed, st.Phase)
		assert.Empty(t, st.Link)
	})

	t.Run("UpcomingFar", func(t *testing.T) {
		st := g.State(confirmed, w, link, w.Start.Add(-2*time.Hour))
		assert.Equal(t, PhaseUpcoming, st.Phase)
		assert.Equal(t, "Starting soon", st.Message)
		assert.Equal(t, 60, st.PollAfterSeconds)
		assert.Empty(t, st.Link)
	})

	t.Run("UpcomingNear", func(t *testing.T) {
		st := g.State(confirmed, w, link, w.Start.Add(-20*time.Minute))
		assert.Equal(t, PhaseUpcoming, st.Phase)
		assert.Equal(t, 30, st.PollAfterSeconds)
	})

	t.Run("Live", func(t *testing.T) {
		st := g.State(confirmed, w, link, w.Start.Add(-5*time.Minute))
		assert.Equal(t, PhaseLive, st.Phase)
		assert.Equal(t, link, st.Link)
		assert.Zero(t, st.PollAfterSeconds)
	})

	t.Run("LiveWithoutLink", func(t *testing.T) {
		st := g.State(confirmed, w, "", w.Start)
		assert.Equal(t, PhaseLive, st.Phase)
		assert.Equal(t, 30, st.PollAfterSeconds)
	})

	t.Run("Ended", func(t *testing.T) {
		st := g.State(confirmed, w, link, w.End.Add(time.Second))
		assert.Equal(t, PhaseEnded, st.Phase)
		assert.Empty(t, st.Link)
	})
}
