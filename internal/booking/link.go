package booking

import (
	"time"

	"learnhub/internal/models"
)

// DefaultLeadTime is how long before the start a link becomes visible.
const DefaultLeadTime = 10 * time.Minute

const (
	pollSoon    = 30 * time.Second
	pollLater   = 60 * time.Second
	soonHorizon = 15 * time.Minute
)

// Window is a scheduled session. Slots, mentorship sessions and webinars all gate
// their links on one.
type Window struct {
	Start time.Time
	End   time.Time
}

// WindowForSlot builds the session window of a slot in loc.
func WindowForSlot(slot *models.Slot, loc *time.Location, defaultLength time.Duration) (Window, error) {
	start, err := slot.StartAt(loc)
	if err != nil {
		return Window{}, err
	}
	end, err := slot.EndAt(loc, defaultLength)
	if err != nil {
		return Window{}, err
	}
	return Window{Start: start, End: end}, nil
}

// Opens is the first instant the link is visible.
func (w Window) Opens(lead time.Duration) time.Time {
	return w.Start.Add(-lead)
}

// Contains is true for Opens(lead) <= now <= End.
func (w Window) Contains(now time.Time, lead time.Duration) bool {
	return !now.Before(w.Opens(lead)) && !now.After(w.End)
}

type LinkPhase string

const (
	// PhaseUnconfirmed: the booking is not confirmed, so no link is ever shown.
	PhaseUnconfirmed LinkPhase = "unconfirmed"
	PhaseUpcoming    LinkPhase = "upcoming"
	PhaseLive        LinkPhase = "live"
	PhaseEnded       LinkPhase = "ended"
)

// LinkStatus is what the requester sees when checking a booking.
type LinkStatus struct {
	Phase            LinkPhase `json:"phase"`
	Link             string    `json:"link,omitempty"`
	Message          string    `json:"message"`
	StartsAt         time.Time `json:"starts_at"`
	EndsAt           time.Time `json:"ends_at"`
	OpensAt          time.Time `json:"opens_at"`
	PollAfterSeconds int       `json:"poll_after_seconds,omitempty"`
}

// Gate evaluates link access for a fixed lead time.
type Gate struct {
	Lead time.Duration
}

func NewGate(lead time.Duration) Gate {
	if lead <= 0 {
		lead = DefaultLeadTime
	}
	return Gate{Lead: lead}
}

// CanAccess is true for a confirmed booking inside the window.
func (g Gate) CanAccess(b *models.Booking, w Window, now time.Time) bool {
	return b != nil && b.Status == models.StatusConfirmed && w.Contains(now, g.Lead)
}

// State computes the link status at now. The link is included only when CanAccess holds.
func (g Gate) State(b *models.Booking, w Window, link string, now time.Time) LinkStatus {
	st := LinkStatus{StartsAt: w.Start, EndsAt: w.End, OpensAt: w.Opens(g.Lead)}

	switch {
	case b == nil || b.Status != models.StatusConfirmed:
		st.Phase = PhaseUnconfirmed
		st.Message = "The meeting link is shared once your booking is confirmed"
	case now.After(w.End):
		st.Phase = PhaseEnded
		st.Message = "This session has ended"
	case now.Before(st.OpensAt):
		st.Phase = PhaseUpcoming
		st.Message = "Starting soon"
		st.PollAfterSeconds = int(pollLater.Seconds())
		if st.OpensAt.Sub(now) <= soonHorizon {
			st.PollAfterSeconds = int(pollSoon.Seconds())
		}
	default:
		st.Phase = PhaseLive
		st.Link = link
		st.Message = "Your session is live"
		if link == "" {
			st.Message = "Your session is live; the host has not shared a link yet"
			st.PollAfterSeconds = int(pollSoon.Seconds())
		}
	}
	return st
}

// CanAccessLink applies the default ten minute lead time.
func CanAccessLink(b *models.Booking, w Window, now time.Time) bool {
	return NewGate(DefaultLeadTime).CanAccess(b, w, now)
}
