package calendar

import (
	"strings"
	"testing"
	"time"

	"github.com/pfrederiksen/geop-sync/internal/lesson"
)

func TestGenerateICS(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		t.Skipf("timezone unavailable: %v", err)
	}

	lessons := []*lesson.Lesson{
		{Status: "PRESENTE", Subject: "UFS02 - Reti", Teacher: "Rossi", Room: "101", Start: "2025-03-25T08:40:00", End: "2025-03-25T12:40:00"},
		{Status: "ASSENTE", Subject: "UFT01", Teacher: "Smith", Room: "12", Modality: "Fad", Start: "2025-03-26T14:00:00", End: "2025-03-26T17:40:00"},
	}
	now := time.Date(2025, 3, 20, 10, 0, 0, 0, time.UTC)

	ics, omitted := GenerateICS(lessons, loc, now)

	if omitted != 0 {
		t.Errorf("omitted = %d, want 0", omitted)
	}

	requiredFields := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:" + productID,
		"METHOD:PUBLISH",
		"X-WR-CALNAME:Lezioni",
		"BEGIN:VEVENT",
		"SUMMARY:UFS02 - Reti - Rossi",
		"LOCATION:12 - Fad",
		"DTSTART:20250325T074000Z",
		"DTEND:20250325T114000Z",
		"UID:" + UID(lesson.Key{Prefix: "UFS02", Start: "2025-03-25T08:40:00"}),
		"END:VEVENT",
		"END:VCALENDAR",
	}

	for _, field := range requiredFields {
		if !strings.Contains(ics, field) {
			t.Errorf("ICS missing required field: %s", field)
		}
	}

	if got := strings.Count(ics, "BEGIN:VEVENT"); got != 2 {
		t.Errorf("got %d VEVENTs, want 2", got)
	}

	if !strings.Contains(ics, "\r\n") {
		t.Error("ICS should use \\r\\n line endings")
	}
	if bare := strings.Count(ics, "\n") - strings.Count(ics, "\r\n"); bare != 0 {
		t.Errorf("ICS has %d bare \\n line endings", bare)
	}
}

func TestGenerateICS_OmitsUnusableLessons(t *testing.T) {
	lessons := []*lesson.Lesson{
		{Status: "PRESENTE", Teacher: "Rossi", Start: "2025-03-25T08:40:00", End: "2025-03-25T12:40:00"},
		{Status: "PRESENTE", Subject: "UFS02", Start: "domani", End: "2025-03-25T12:40:00"},
		{Status: "PRESENTE", Subject: "UFS03", Start: "2025-03-25T08:40:00", End: "2025-03-25T12:40:00"},
	}

	ics, omitted := GenerateICS(lessons, time.UTC, time.Now())

	if omitted != 2 {
		t.Errorf("omitted = %d, want 2", omitted)
	}
	if got := strings.Count(ics, "BEGIN:VEVENT"); got != 1 {
		t.Errorf("got %d VEVENTs, want 1", got)
	}
}

func TestUID_Stable(t *testing.T) {
	k := lesson.Key{Prefix: "UFS02", Start: "2025-03-25T08:40:00"}

	if UID(k) != UID(k) {
		t.Error("UID should be deterministic")
	}
	if UID(k) == UID(lesson.Key{Prefix: "UFS03", Start: k.Start}) {
		t.Error("different keys should not share a UID")
	}
	if !strings.HasSuffix(UID(k), "@geop-sync") {
		t.Errorf("UID = %q, want @geop-sync suffix", UID(k))
	}
}
