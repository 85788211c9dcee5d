package calendar

import (
	"strings"

	gcal "google.golang.org/api/calendar/v3"

	"github.com/pfrederiksen/geop-sync/internal/lesson"
)

// DefaultTimeZone is attached to lesson times, which the portal sends without
// an offset.
const DefaultTimeZone = "Europe/Rome"

// Google Calendar event color ids.
const (
	ColorExam        = "3"  // lilac
	ColorFirstLesson = "7"  // turquoise
	ColorPresent     = "10" // dark green
	ColorAbsent      = "11" // red
	ColorDefault     = "8"  // grey
)

// Color picks the event color. Rules are evaluated in order and the first
// match wins.
func Color(l *lesson.Lesson) string {
	class := strings.ToLower(l.ClassEvent)
	status := strings.ToUpper(l.Status)

	switch {
	case strings.Contains(class, "esame"):
		return ColorExam
	case strings.Contains(class, "prima_lezione"):
		return ColorFirstLesson
	case strings.Contains(status, "PRESENTE"):
		return ColorPresent
	case strings.Contains(status, "ASSENTE"):
		return ColorAbsent
	default:
		return ColorDefault
	}
}

// Payload builds the event body used to insert or update a lesson.
// Reminders are disabled explicitly so the calendar's defaults do not apply.
func Payload(l *lesson.Lesson, timeZone string) *gcal.Event {
	if timeZone == "" {
		timeZone = DefaultTimeZone
	}

	return &gcal.Event{
		Summary:     l.Summary(),
		Location:    l.Location(),
		Description: l.Description(),
		ColorId:     Color(l),
		Start: &gcal.EventDateTime{
			DateTime: l.Start,
			TimeZone: timeZone,
		},
		End: &gcal.EventDateTime{
			DateTime: l.End,
			TimeZone: timeZone,
		},
		Reminders: &gcal.EventReminders{
			UseDefault:      false,
			ForceSendFields: []string{"UseDefault"},
		},
	}
}
