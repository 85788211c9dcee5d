package cli

import (
	"sort"
	"strings"
)

// SortOrder represents the available sorting options
type SortOrder string

const (
	SortByPlan    SortOrder = "plan"
	SortByDate    SortOrder = "date"
	SortByKind    SortOrder = "kind"
	SortBySummary SortOrder = "summary"
)

var kindRank = map[string]int{"delete": 0, "update": 1, "add": 2}

// sortOperations sorts operations for display. SortByPlan keeps the
// execution order.
func sortOperations(ops []OperationResult, sortOrder SortOrder) {
	switch sortOrder {
	case SortByDate:
		sort.SliceStable(ops, func(i, j int) bool {
			return compareByStart(ops[i], ops[j])
		})
	case SortByKind:
		sort.SliceStable(ops, func(i, j int) bool {
			if ops[i].Kind != ops[j].Kind {
				return kindRank[string(ops[i].Kind)] < kindRank[string(ops[j].Kind)]
			}
			// Same kind, sort by start
			return compareByStart(ops[i], ops[j])
		})
	case SortBySummary:
		sort.SliceStable(ops, func(i, j int) bool {
			if ops[i].Summary != ops[j].Summary {
				return strings.ToLower(ops[i].Summary) < strings.ToLower(ops[j].Summary)
			}
			return compareByStart(ops[i], ops[j])
		})
	}
}

// compareByStart compares two operations by their normalized start.
// Normalized starts are fixed-width local times, so they order as strings.
func compareByStart(i, j OperationResult) bool {
	if i.Start != j.Start {
		return i.Start < j.Start
	}
	return i.Key < j.Key
}
