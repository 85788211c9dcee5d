package storage

import (
	"github.com/pfrederiksen/geop-sync/internal/lesson"
)

// ChangeType classifies a difference between two snapshots.
type ChangeType string

const (
	ChangeNew      ChangeType = "new"
	ChangeRemoved  ChangeType = "removed"
	ChangeStatus   ChangeType = "status"
	ChangeLocation ChangeType = "location"
)

// Change is one lesson-level difference between two snapshots
type Change struct {
	Key      lesson.Key `json:"key"`
	Type     ChangeType `json:"type"`
	OldValue string     `json:"old_value,omitempty"`
	NewValue string     `json:"new_value,omitempty"`
}

// Diff compares the current snapshot against the previous one. Lessons are
// matched by identity key. Removals are only reported for lessons inside the
// current range. A nil previous snapshot reports nothing.
func Diff(previous, current *Snapshot) []Change {
	if previous == nil || current == nil {
		return nil
	}

	prev := index(previous.Lessons)
	curr := index(current.Lessons)
	seen := make(map[lesson.Key]bool, len(curr))

	changes := make([]Change, 0)
	for _, l := range current.Lessons {
		c, ok := lesson.NormalizeLocal(l)
		if !ok || seen[c.Key] {
			continue
		}
		seen[c.Key] = true

		now := curr[c.Key]
		old, existed := prev[c.Key]
		if !existed {
			changes = append(changes, Change{Key: c.Key, Type: ChangeNew, NewValue: now.Summary()})
			continue
		}
		if old.Status != now.Status {
			changes = append(changes, Change{Key: c.Key, Type: ChangeStatus, OldValue: old.Status, NewValue: now.Status})
		}
		if old.Location() != now.Location() {
			changes = append(changes, Change{Key: c.Key, Type: ChangeLocation, OldValue: old.Location(), NewValue: now.Location()})
		}
	}

	from, to := current.Range.StartDate(), current.Range.EndDate()
	for _, l := range previous.Lessons {
		c, ok := lesson.NormalizeLocal(l)
		if !ok || seen[c.Key] {
			continue
		}
		seen[c.Key] = true

		if c.Key.Start < from || c.Key.Start >= to {
			continue
		}
		changes = append(changes, Change{Key: c.Key, Type: ChangeRemoved, OldValue: prev[c.Key].Summary()})
	}

	return changes
}

func index(lessons []*lesson.Lesson) map[lesson.Key]*lesson.Lesson {
	m := make(map[lesson.Key]*lesson.Lesson, len(lessons))
	for _, l := range lessons {
		if c, ok := lesson.NormalizeLocal(l); ok {
			m[c.Key] = l
		}
	}
	return m
}
