package lesson

import (
	"fmt"
	"sort"
	"time"
)

// DateLayout is the portal's date format for range bounds.
const DateLayout = "2006-01-02"

// Range is a half-open interval of days [Start, End).
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// WeeksRange returns the range starting on the Monday of now's week and
// spanning the given number of weeks. A non-zero maxEnd caps the end date.
func WeeksRange(now time.Time, weeks int, maxEnd time.Time) (Range, error) {
	if weeks <= 0 {
		return Range{}, fmt.Errorf("weeks must be positive, got %d", weeks)
	}

	today := midnight(now)
	offset := (int(today.Weekday()) + 6) % 7 // days since Monday
	start := today.AddDate(0, 0, -offset)
	end := start.AddDate(0, 0, 7*weeks)

	if !maxEnd.IsZero() {
		limit := midnight(maxEnd.In(now.Location()))
		if limit.Before(end) {
			end = limit
		}
	}
	if end.Before(start) {
		end = start
	}

	return Range{Start: start, End: end}, nil
}

// ParseRange parses "YYYY-MM-DD" bounds in loc.
func ParseRange(start, end string, loc *time.Location) (Range, error) {
	s, err := time.ParseInLocation(DateLayout, start, loc)
	if err != nil {
		return Range{}, fmt.Errorf("parsing start date: %w", err)
	}
	e, err := time.ParseInLocation(DateLayout, end, loc)
	if err != nil {
		return Range{}, fmt.Errorf("parsing end date: %w", err)
	}
	if e.Before(s) {
		return Range{}, fmt.Errorf("end date %s is before start date %s", end, start)
	}
	return Range{Start: s, End: e}, nil
}

// StartDate formats the inclusive start for the portal.
func (r Range) StartDate() string {
	return r.Start.Format(DateLayout)
}

// EndDate formats the exclusive end for the portal.
func (r Range) EndDate() string {
	return r.End.Format(DateLayout)
}

func (r Range) String() string {
	return r.StartDate() + ".." + r.EndDate()
}

// Weekdays returns every Monday-to-Friday day in the range.
func (r Range) Weekdays() []time.Time {
	days := make([]time.Time, 0)
	for d := midnight(r.Start); d.Before(r.End); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		days = append(days, d)
	}
	return days
}

// Clock is a time of day.
type Clock struct {
	Hour   int
	Minute int
}

// Default per-day listing window.
var (
	DefaultDayStart = Clock{Hour: 8, Minute: 40}
	DefaultDayEnd   = Clock{Hour: 17, Minute: 40}
)

// ParseClock parses "HH:MM".
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return Clock{}, fmt.Errorf("parsing clock %q: %w", s, err)
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// DayWindow returns the [from, to) window of day in loc.
func DayWindow(day time.Time, loc *time.Location, from, to Clock) (time.Time, time.Time) {
	y, m, d := day.Date()
	return time.Date(y, m, d, from.Hour, from.Minute, 0, 0, loc),
		time.Date(y, m, d, to.Hour, to.Minute, 0, 0, loc)
}

// ParseTime parses a lesson or calendar timestamp. Values without an offset
// are read in loc. Returns the zero time if no format matches.
// Supports formats: "2025-03-25T08:40:00", RFC3339, "2025-03-25 08:40:00", "2025-03-25"
func ParseTime(s string, loc *time.Location) time.Time {
	if s == "" {
		return time.Time{}
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}

	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05", DateLayout} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t
		}
	}

	return time.Time{}
}

// SortByStart orders lessons by start time; unparseable starts go last and
// keep their relative order.
func SortByStart(lessons []*Lesson, loc *time.Location) {
	sort.SliceStable(lessons, func(i, j int) bool {
		ti := ParseTime(lessons[i].Start, loc)
		tj := ParseTime(lessons[j].Start, loc)

		if !ti.IsZero() && !tj.IsZero() {
			return ti.Before(tj)
		}
		return !ti.IsZero() && tj.IsZero()
	})
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
