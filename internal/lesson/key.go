package lesson

import (
	"fmt"
	"strings"
)

// ManagedPrefixes are the summary prefixes of calendar events owned by the
// sync. Events with any other summary are never read or modified.
var ManagedPrefixes = []string{
	"UFS",
	"UFT",
	"PW",
	"Extra Orario",
	"Extraorario",
	"SIMULAZIONE ESAME FINALE",
}

// Key identifies one logical lesson across the portal and the calendar.
type Key struct {
	Prefix string `json:"prefix"`
	Start  string `json:"start"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s@%s", k.Prefix, k.Start)
}

// SubjectPrefix returns the part of a subject before the first " - ",
// typically the course code ("UFS02 - Reti" -> "UFS02").
func SubjectPrefix(subject string) string {
	prefix, _, _ := strings.Cut(subject, " - ")
	return strings.TrimSpace(prefix)
}

// NormalizeStart strips the UTC offset from a timestamp that has a time of
// day, so "2025-03-25T08:40:00+01:00" and "2025-03-25T08:40:00" compare equal.
// Date-only values are returned unchanged.
func NormalizeStart(s string) string {
	s = strings.TrimSpace(s)
	t := strings.IndexByte(s, 'T')
	if t < 0 {
		return s
	}
	clock := s[t:]
	if i := strings.IndexByte(clock, '+'); i >= 0 {
		return s[:t+i]
	}
	if i := strings.IndexByte(clock, '-'); i >= 0 {
		return s[:t+i]
	}
	return strings.TrimSuffix(s, "Z")
}

// KeyOf builds the identity key for a subject or summary and a start time.
func KeyOf(subject, start string) Key {
	return Key{Prefix: SubjectPrefix(subject), Start: NormalizeStart(start)}
}

// IsManaged reports whether a calendar summary belongs to the synced set.
func IsManaged(summary string) bool {
	for _, p := range ManagedPrefixes {
		if strings.HasPrefix(summary, p) {
			return true
		}
	}
	return false
}

// Remote is a managed event as read back from the calendar.
type Remote struct {
	ID          string `json:"id"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Start       string `json:"start"` // dateTime, or date for all-day events
	End         string `json:"end"`
}

// Canonical is the comparable form of an event from either source. Exactly one
// of Lesson and Remote is set, pointing back at the record it came from.
type Canonical struct {
	Key            Key
	Status         string
	Location       string
	Description    string
	Start          string
	End            string
	Classification string

	Lesson *Lesson
	Remote *Remote
}

// NormalizeLocal converts a lesson to canonical form. It reports false for a
// lesson without a subject, which has no identity and cannot be synced.
func NormalizeLocal(l *Lesson) (Canonical, bool) {
	if strings.TrimSpace(l.Subject) == "" {
		return Canonical{}, false
	}
	return Canonical{
		Key:            KeyOf(l.Subject, l.Start),
		Status:         l.Status,
		Location:       l.Location(),
		Description:    l.Description(),
		Start:          l.Start,
		End:            l.End,
		Classification: l.ClassEvent,
		Lesson:         l,
	}, true
}

// NormalizeRemote converts a calendar event to canonical form.
func NormalizeRemote(r *Remote) Canonical {
	return Canonical{
		Key:         KeyOf(r.Summary, r.Start),
		Location:    r.Location,
		Description: r.Description,
		Start:       r.Start,
		End:         r.End,
		Remote:      r,
	}
}

// NormalizeLessons converts lessons to canonical form in order, skipping the
// ones without identity. It returns the number skipped.
func NormalizeLessons(lessons []*Lesson) ([]Canonical, int) {
	out := make([]Canonical, 0, len(lessons))
	skipped := 0
	for _, l := range lessons {
		c, ok := NormalizeLocal(l)
		if !ok {
			skipped++
			continue
		}
		out = append(out, c)
	}
	return out, skipped
}

// NormalizeRemotes converts calendar events to canonical form in order.
func NormalizeRemotes(remotes []*Remote) []Canonical {
	out := make([]Canonical, 0, len(remotes))
	for _, r := range remotes {
		out = append(out, NormalizeRemote(r))
	}
	return out
}
