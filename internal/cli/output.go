package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/pfrederiksen/geop-sync/internal/reconcile"
	"github.com/pfrederiksen/geop-sync/internal/storage"
	"github.com/pfrederiksen/geop-sync/internal/syncer"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// OperationResult is one planned or applied calendar operation.
type OperationResult struct {
	Kind    reconcile.Kind `json:"kind"`
	Key     string         `json:"key"`
	Start   string         `json:"start"`
	Summary string         `json:"summary"`
	Reason  string         `json:"reason,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// DuplicateResult reports an identity key seen more than once.
type DuplicateResult struct {
	Side  reconcile.Side `json:"side"`
	Key   string         `json:"key"`
	Count int            `json:"count"`
}

// OutputResult contains data to be output
type OutputResult struct {
	RunID      string            `json:"run_id"`
	CheckedAt  time.Time         `json:"checked_at"`
	From       string            `json:"from"`
	To         string            `json:"to"`
	DryRun     bool              `json:"dry_run,omitempty"`
	Records    int               `json:"records"`
	Lessons    int               `json:"lessons"`
	Remote     int               `json:"remote"`
	OutOfView  int               `json:"out_of_view,omitempty"`
	Operations []OperationResult `json:"operations"`
	Duplicates []DuplicateResult `json:"duplicates,omitempty"`
	Changes    []storage.Change  `json:"changes,omitempty"`
	Added      int               `json:"added"`
	Updated    int               `json:"updated"`
	Deleted    int               `json:"deleted"`
	Failed     int               `json:"failed"`
	DurationMS int64             `json:"duration_ms"`
}

// NewOutputResult flattens a sync report for printing.
func NewOutputResult(report *syncer.Report, now time.Time) *OutputResult {
	result := &OutputResult{
		RunID:      report.RunID.String(),
		CheckedAt:  now,
		From:       report.Range.StartDate(),
		To:         report.Range.EndDate(),
		DryRun:     report.DryRun,
		Records:    report.Records,
		Lessons:    report.Lessons,
		Remote:     report.Remote,
		OutOfView:  report.OutOfView,
		Operations: make([]OperationResult, 0),
		Changes:    report.Changes,
		Added:      report.Added,
		Updated:    report.Updated,
		Deleted:    report.Deleted,
		Failed:     report.Failed(),
		DurationMS: report.Duration.Milliseconds(),
	}

	failed := make(map[string]string, len(report.Failures))
	for _, f := range report.Failures {
		failed[opID(f.Operation)] = f.Err.Error()
	}

	if report.Plan != nil {
		for _, op := range report.Plan.Operations {
			result.Operations = append(result.Operations, OperationResult{
				Kind:    op.Kind,
				Key:     op.Key().String(),
				Start:   op.Key().Start,
				Summary: syncer.Summary(op),
				Reason:  op.Reason,
				Error:   failed[opID(op)],
			})
		}
		for _, d := range report.Plan.Duplicates {
			result.Duplicates = append(result.Duplicates, DuplicateResult{
				Side:  d.Side,
				Key:   d.Key.String(),
				Count: d.Count,
			})
		}
	}

	return result
}

func opID(op reconcile.Operation) string {
	return string(op.Kind) + " " + op.Key().String()
}

// WriteOutput writes the result in the specified format
func WriteOutput(w io.Writer, result *OutputResult, format OutputFormat, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, result)
	case FormatText:
		return writeText(w, result, verbose)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// writeJSON outputs results as JSON
func writeJSON(w io.Writer, result *OutputResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// writeText outputs results as human-readable text
func writeText(w io.Writer, result *OutputResult, verbose bool) error {
	header := "Sync"
	if result.DryRun {
		header = "Plan"
	}
	fmt.Fprintf(w, "%s %s .. %s: %d lessons, %d calendar events\n",
		header, result.From, result.To, result.Lessons, result.Remote)

	if verbose {
		for _, c := range result.Changes {
			if c.OldValue != "" || c.NewValue != "" {
				fmt.Fprintf(w, "  changed %-8s %s: %q -> %q\n", c.Type, c.Key, c.OldValue, c.NewValue)
			} else {
				fmt.Fprintf(w, "  changed %-8s %s\n", c.Type, c.Key)
			}
		}
	}

	if len(result.Operations) == 0 {
		fmt.Fprintln(w, "Calendar is up to date.")
	}

	for _, op := range result.Operations {
		status := "OK"
		switch {
		case op.Error != "":
			status = "FAILED"
		case result.DryRun:
			status = "PLANNED"
		}
		fmt.Fprintf(w, "%-7s %-6s %s (%s)\n", status, op.Kind, op.Summary, op.Key)
		if verbose && op.Reason != "" {
			fmt.Fprintf(w, "        reason: %s\n", op.Reason)
		}
		if op.Error != "" {
			fmt.Fprintf(w, "        error: %s\n", op.Error)
		}
	}

	if result.OutOfView > 0 {
		fmt.Fprintf(w, "NOTE    %d lessons are outside the synced calendar view\n", result.OutOfView)
	}
	for _, d := range result.Duplicates {
		fmt.Fprintf(w, "WARNING %d %s events share key %s\n", d.Count, d.Side, d.Key)
	}

	if result.DryRun {
		fmt.Fprintf(w, "\nTotal: %d operations planned\n", len(result.Operations))
		return nil
	}
	fmt.Fprintf(w, "\nTotal: %d added, %d updated, %d deleted, %d failed\n",
		result.Added, result.Updated, result.Deleted, result.Failed)
	return nil
}
