package lesson

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pfrederiksen/geop-sync/internal/annotation"
)

// SuspendedPrefix marks placeholder rows for days without teaching.
const SuspendedPrefix = "SOSPENSIONE DIDATTICA"

// EventID is the portal identifier of a record. The portal sends numbers but
// strings are accepted as well.
type EventID string

// UnmarshalJSON accepts a JSON number, string or null.
func (id *EventID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	switch {
	case s == "null":
		*id = ""
	case strings.HasPrefix(s, `"`):
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return fmt.Errorf("decoding event id: %w", err)
		}
		*id = EventID(v)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("decoding event id: %w", err)
		}
		*id = EventID(n.String())
	}
	return nil
}

// IsSentinel reports whether id is the portal's "no event" value.
func (id EventID) IsSentinel() bool {
	return id == "0"
}

// Raw is one record of the portal's calendar feed, as delivered.
type Raw struct {
	ID         EventID `json:"id"`
	Title      string  `json:"title"`
	Tooltip    string  `json:"tooltip"`
	ClassEvent string  `json:"ClasseEvento"`
	Start      string  `json:"start"`
	End        string  `json:"end"`
}

// Skip reports whether a raw record is a placeholder that must never reach the
// calendar: the sentinel id, a teaching suspension, or a row without a tooltip.
func Skip(raw Raw) bool {
	if raw.ID.IsSentinel() {
		return true
	}
	if strings.HasPrefix(strings.TrimSpace(raw.Title), SuspendedPrefix) {
		return true
	}
	return strings.TrimSpace(raw.Tooltip) == ""
}

// Lesson is a portal record merged with its parsed tooltip. It is also the
// record persisted in the local snapshot. Empty optional fields were absent
// from the tooltip.
type Lesson struct {
	ID         EventID `json:"id"`
	Title      string  `json:"title"`
	Status     string  `json:"status"`
	Subject    string  `json:"subject,omitempty"`
	Room       string  `json:"room,omitempty"`
	Course     string  `json:"course,omitempty"`
	Teacher    string  `json:"teacher,omitempty"`
	Topic      string  `json:"topic,omitempty"`
	Modality   string  `json:"modality,omitempty"`
	ClassEvent string  `json:"class_event,omitempty"`
	Start      string  `json:"start"`
	End        string  `json:"end"`
}

// FromRaw builds a Lesson from a raw record and its parsed tooltip.
func FromRaw(raw Raw, a annotation.Annotation) *Lesson {
	return &Lesson{
		ID:         raw.ID,
		Title:      strings.TrimSpace(raw.Title),
		Status:     a.Status,
		Subject:    a.Value(annotation.Subject),
		Room:       a.Value(annotation.Room),
		Course:     a.Value(annotation.Course),
		Teacher:    a.Value(annotation.Teacher),
		Topic:      a.Value(annotation.Topic),
		Modality:   a.Value(annotation.Modality),
		ClassEvent: raw.ClassEvent,
		Start:      raw.Start,
		End:        raw.End,
	}
}

// Parse drops placeholder records and parses the tooltip of every other one.
// It returns the lessons in feed order and the number of skipped records.
func Parse(raws []Raw) ([]*Lesson, int) {
	lessons := make([]*Lesson, 0, len(raws))
	skipped := 0

	for _, raw := range raws {
		if Skip(raw) {
			skipped++
			continue
		}
		lessons = append(lessons, FromRaw(raw, annotation.Extract(raw.Tooltip)))
	}

	return lessons, skipped
}

// Summary is the calendar title of the lesson.
func (l *Lesson) Summary() string {
	return fmt.Sprintf("%s - %s", l.Subject, l.Teacher)
}

// Location is the room, followed by the modality when one is known.
func (l *Lesson) Location() string {
	if l.Modality == "" {
		return l.Room
	}
	return fmt.Sprintf("%s - %s", l.Room, l.Modality)
}

// Description leads with the attendance status, then the topic when known or
// the lesson details otherwise.
func (l *Lesson) Description() string {
	if l.Topic != "" {
		return fmt.Sprintf("%s - %s", l.Status, l.Topic)
	}
	return fmt.Sprintf("%s - %s - %s - %s", l.Status, l.Subject, l.Teacher, l.Room)
}
