package storage

import (
	"testing"
	"time"

	"github.com/pfrederiksen/geop-sync/internal/lesson"
)

func TestDiff(t *testing.T) {
	r := lesson.Range{
		Start: time.Date(2025, 3, 24, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 4, 7, 0, 0, 0, 0, time.UTC),
	}

	previous := &Snapshot{Lessons: []*lesson.Lesson{
		{Status: "Registro lezione da compilare", Subject: "UFS02 - Reti", Teacher: "Rossi", Room: "101", Start: "2025-03-25T08:40:00"},
		{Status: "PRESENTE", Subject: "UFT01", Room: "12", Start: "2025-03-26T08:40:00"},
		{Status: "PRESENTE", Subject: "UFS03", Start: "2025-03-27T08:40:00"},
		{Status: "PRESENTE", Subject: "UFS09", Start: "2025-03-17T08:40:00"}, // before the range
	}}
	current := &Snapshot{Range: r, Lessons: []*lesson.Lesson{
		{Status: "PRESENTE", Subject: "UFS02 - Reti", Teacher: "Rossi", Room: "101", Start: "2025-03-25T08:40:00"},
		{Status: "PRESENTE", Subject: "UFT01", Room: "14", Start: "2025-03-26T08:40:00"},
		{Status: "Registro lezione da compilare", Subject: "PW - Progetto", Start: "2025-03-31T08:40:00"},
		{Status: "", Subject: "", Start: "2025-03-31T14:00:00"}, // no identity
	}}

	changes := Diff(previous, current)

	want := []Change{
		{Key: lesson.Key{Prefix: "UFS02", Start: "2025-03-25T08:40:00"}, Type: ChangeStatus, OldValue: "Registro lezione da compilare", NewValue: "PRESENTE"},
		{Key: lesson.Key{Prefix: "UFT01", Start: "2025-03-26T08:40:00"}, Type: ChangeLocation, OldValue: "12", NewValue: "14"},
		{Key: lesson.Key{Prefix: "PW", Start: "2025-03-31T08:40:00"}, Type: ChangeNew, NewValue: "PW - Progetto - "},
		{Key: lesson.Key{Prefix: "UFS03", Start: "2025-03-27T08:40:00"}, Type: ChangeRemoved, OldValue: "UFS03 - "},
	}

	if len(changes) != len(want) {
		t.Fatalf("got %d changes, want %d: %+v", len(changes), len(want), changes)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("change %d = %+v, want %+v", i, changes[i], want[i])
		}
	}
}

func TestDiff_Unchanged(t *testing.T) {
	lessons := []*lesson.Lesson{
		{Status: "PRESENTE", Subject: "UFS02", Room: "101", Start: "2025-03-25T08:40:00"},
	}
	previous := &Snapshot{Lessons: lessons}
	current := &Snapshot{Lessons: []*lesson.Lesson{{Status: "PRESENTE", Subject: "UFS02", Room: "101", Start: "2025-03-25T08:40:00"}}}

	if changes := Diff(previous, current); len(changes) != 0 {
		t.Errorf("Diff() = %+v, want no changes", changes)
	}
}

func TestDiff_NilPrevious(t *testing.T) {
	current := &Snapshot{Lessons: []*lesson.Lesson{{Subject: "UFS02", Start: "2025-03-25T08:40:00"}}}

	if changes := Diff(nil, current); changes != nil {
		t.Errorf("Diff(nil, ...) = %+v, want nil", changes)
	}
}

func TestDiff_DuplicatesReportedOnce(t *testing.T) {
	previous := &Snapshot{}
	current := &Snapshot{Lessons: []*lesson.Lesson{
		{Status: "ASSENTE", Subject: "UFS02", Start: "2025-03-25T08:40:00"},
		{Status: "PRESENTE", Subject: "UFS02", Start: "2025-03-25T08:40:00"},
	}}

	changes := Diff(previous, current)
	if len(changes) != 1 || changes[0].Type != ChangeNew {
		t.Errorf("Diff() = %+v, want one new lesson", changes)
	}
}
