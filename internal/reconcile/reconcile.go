package reconcile

import (
	"strings"

	"github.com/pfrederiksen/geop-sync/internal/lesson"
)

// PendingPlaceholder starts the description of a lesson whose attendance has
// not been recorded yet.
const PendingPlaceholder = "Registro lezione da compilare"

// FinalStatuses are the attendance states that replace the placeholder.
var FinalStatuses = []string{"PRESENTE", "ASSENTE"}

// Kind tags an Operation.
type Kind string

const (
	Add    Kind = "add"
	Update Kind = "update"
	Delete Kind = "delete"
)

// Operation is one change to apply to the calendar. Add carries Local only,
// Delete carries Remote only, Update carries both.
type Operation struct {
	Kind   Kind
	Local  *lesson.Canonical
	Remote *lesson.Canonical
	Reason string
}

// Key returns the identity key the operation applies to.
func (op Operation) Key() lesson.Key {
	if op.Local != nil {
		return op.Local.Key
	}
	return op.Remote.Key
}

// Side names the source a duplicate was found in.
type Side string

const (
	Local  Side = "local"
	Remote Side = "remote"
)

// Duplicate reports an identity key shared by more than one event of the same
// source. Of duplicated lessons only the last takes part in reconciliation;
// every duplicated calendar event is compared against that lesson.
type Duplicate struct {
	Side  Side
	Key   lesson.Key
	Count int
}

// Plan is the outcome of a reconciliation.
type Plan struct {
	// Operations in execution order: deletes and updates, then adds.
	Operations []Operation
	// Unchanged has one key per calendar event that already matches.
	Unchanged  []lesson.Key
	Duplicates []Duplicate
}

// Count returns the number of operations of a kind.
func (p *Plan) Count(kind Kind) int {
	n := 0
	for _, op := range p.Operations {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

// Empty reports whether the plan has no operations.
func (p *Plan) Empty() bool {
	return len(p.Operations) == 0
}

// index maps keys to the last event seen with that key, remembering the order
// in which keys first appeared.
type index struct {
	order  []lesson.Key
	events map[lesson.Key]*lesson.Canonical
	counts map[lesson.Key]int
}

func buildIndex(events []lesson.Canonical) *index {
	idx := &index{
		order:  make([]lesson.Key, 0, len(events)),
		events: make(map[lesson.Key]*lesson.Canonical, len(events)),
		counts: make(map[lesson.Key]int, len(events)),
	}
	for i := range events {
		ev := &events[i]
		if _, seen := idx.events[ev.Key]; !seen {
			idx.order = append(idx.order, ev.Key)
		}
		idx.events[ev.Key] = ev
		idx.counts[ev.Key]++
	}
	return idx
}

func (idx *index) duplicates(side Side) []Duplicate {
	dups := make([]Duplicate, 0)
	for _, k := range idx.order {
		if n := idx.counts[k]; n > 1 {
			dups = append(dups, Duplicate{Side: side, Key: k, Count: n})
		}
	}
	return dups
}

// Reconcile compares the lessons (local) with the managed calendar events
// (remote) of the same window.
//
// Remote events whose key is missing locally are deleted. Matched pairs are
// updated when the attendance was recorded since the event was written or
// the location changed. Lessons missing remotely are added.
func Reconcile(local, remote []lesson.Canonical) *Plan {
	plan := &Plan{
		Operations: make([]Operation, 0),
		Unchanged:  make([]lesson.Key, 0),
	}

	locals := buildIndex(local)
	remotes := buildIndex(remote)

	plan.Duplicates = append(locals.duplicates(Local), remotes.duplicates(Remote)...)

	// Every remote event is checked, so each copy of a duplicated key is
	// kept current.
	for i := range remote {
		r := &remote[i]

		l, ok := locals.events[r.Key]
		if !ok {
			plan.Operations = append(plan.Operations, Operation{
				Kind:   Delete,
				Remote: r,
				Reason: "not in portal",
			})
			continue
		}

		if reason := needsUpdate(l, r); reason != "" {
			plan.Operations = append(plan.Operations, Operation{
				Kind:   Update,
				Local:  l,
				Remote: r,
				Reason: reason,
			})
			continue
		}

		plan.Unchanged = append(plan.Unchanged, r.Key)
	}

	for _, k := range locals.order {
		if _, ok := remotes.events[k]; ok {
			continue
		}
		plan.Operations = append(plan.Operations, Operation{
			Kind:   Add,
			Local:  locals.events[k],
			Reason: "not in calendar",
		})
	}

	return plan
}

// needsUpdate returns why a matched pair must be rewritten, or "" if it
// already matches.
func needsUpdate(local, remote *lesson.Canonical) string {
	if isFinal(local.Status) && strings.HasPrefix(remote.Description, PendingPlaceholder) {
		return "attendance recorded"
	}
	if local.Location != remote.Location {
		return "location changed"
	}
	return ""
}

func isFinal(status string) bool {
	for _, s := range FinalStatuses {
		if status == s {
			return true
		}
	}
	return false
}
