package notify

import (
	"fmt"
	"strings"
	"time"

	"learnhub/internal/models"
)

var kindTitles = map[models.SlotKind]string{
	models.SlotKindGuidance:      "guidance session",
	models.SlotKindMockInterview: "mock interview",
}

func sessionName(s *models.Slot) string {
	if strings.TrimSpace(s.Title) != "" {
		return s.Title
	}
	if t, ok := kindTitles[s.Kind]; ok {
		return t
	}
	return "session"
}

func when(s *models.Slot) string {
	return s.Date.Format(models.DateLayout) + " " + s.StartTime
}

// BookingCreated acknowledges a new booking request.
func BookingCreated(b *models.BookingWithSlot) Message {
	name := sessionName(&b.Slot)
	return Message{
		To:      b.Email,
		Name:    b.Name,
		Subject: fmt.Sprintf("Booking received: %s on %s", name, when(&b.Slot)),
		Body: fmt.Sprintf(
			"Hi %s,\n\nWe received your booking #%d for the %s on %s.\nCurrent status: %s.\n\nWe will e-mail you again when it is confirmed.\n",
			b.Name, b.ID, name, when(&b.Slot), b.Status),
	}
}

// StatusChanged tells the requester the booking moved from prev to its current status.
func StatusChanged(b *models.BookingWithSlot, prev models.BookingStatus) Message {
	name := sessionName(&b.Slot)
	var line string
	switch b.Status {
	case models.StatusConfirmed:
		line = "Your booking is confirmed. The meeting link will be available shortly before the start."
	case models.StatusCancelled:
		line = "Your booking has been cancelled."
	case models.StatusCompleted:
		line = "Your session is marked as completed. Thank you for attending."
	default:
		line = fmt.Sprintf("Your booking status is now %s.", b.Status)
	}
	return Message{
		To:      b.Email,
		Name:    b.Name,
		Subject: fmt.Sprintf("Booking #%d: %s", b.ID, strings.ToLower(string(b.Status))),
		Body: fmt.Sprintf("Hi %s,\n\n%s\n\n%s on %s (was %s).\n",
			b.Name, line, name, when(&b.Slot), prev),
	}
}

// LinkAvailable sends the meeting link once the access window opens.
func LinkAvailable(b *models.BookingWithSlot, link string, start time.Time) Message {
	name := sessionName(&b.Slot)
	return Message{
		To:      b.Email,
		Name:    b.Name,
		Subject: fmt.Sprintf("Your %s starts soon", name),
		Body: fmt.Sprintf("Hi %s,\n\nYour %s starts at %s.\nJoin here: %s\n",
			b.Name, name, start.Format("2006-01-02 15:04 MST"), link),
	}
}
