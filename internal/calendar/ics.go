package calendar

import (
	"crypto/sha1"
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/pfrederiksen/geop-sync/internal/lesson"
)

const productID = "-//geop-sync//lessons//IT"

// UID derives a stable iCalendar UID from a lesson's identity key.
func UID(k lesson.Key) string {
	h := sha1.New()
	h.Write([]byte(k.Prefix + "|" + k.Start))
	return fmt.Sprintf("%x@geop-sync", h.Sum(nil))
}

// GenerateICS renders lessons as an iCalendar document. Lessons without an
// identity or with unparseable times are left out; the count is returned.
func GenerateICS(lessons []*lesson.Lesson, loc *time.Location, now time.Time) (string, int) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName("Lezioni")
	cal.SetXWRTimezone(loc.String())

	omitted := 0
	for _, l := range lessons {
		c, ok := lesson.NormalizeLocal(l)
		if !ok {
			omitted++
			continue
		}
		start := lesson.ParseTime(l.Start, loc)
		end := lesson.ParseTime(l.End, loc)
		if start.IsZero() || end.IsZero() {
			omitted++
			continue
		}

		ev := cal.AddEvent(UID(c.Key))
		ev.SetDtStampTime(now.UTC())
		ev.SetStartAt(start)
		ev.SetEndAt(end)
		ev.SetSummary(l.Summary())
		ev.SetLocation(l.Location())
		ev.SetDescription(l.Description())
		ev.SetStatus(ical.ObjectStatusConfirmed)
	}

	return cal.Serialize(ical.WithNewLineWindows), omitted
}
