package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pfrederiksen/geop-sync/internal/audit"
	"github.com/pfrederiksen/geop-sync/internal/calendar"
	"github.com/pfrederiksen/geop-sync/internal/lesson"
	"github.com/pfrederiksen/geop-sync/internal/logger"
	"github.com/pfrederiksen/geop-sync/internal/reconcile"
	"github.com/pfrederiksen/geop-sync/internal/remote"
	"github.com/pfrederiksen/geop-sync/internal/storage"
)

// Portal fetches the raw calendar records of a student.
type Portal interface {
	Fetch(ctx context.Context, username, password string, r lesson.Range) ([]lesson.Raw, error)
}

// Snapshots persists the parsed lessons between the fetch and the
// reconciliation.
type Snapshots interface {
	Save(*storage.Snapshot) error
	Load() (*storage.Snapshot, error)
}

// Options configures a Driver.
type Options struct {
	Username string
	Password string
	// TimeZone is attached to event times written to the calendar.
	TimeZone string
	// CallTimeout bounds every network call; zero means 30s.
	CallTimeout time.Duration
	// Location and the day window must match the calendar listing. Zero
	// values select UTC and 08:40-17:40.
	Location *time.Location
	DayStart lesson.Clock
	DayEnd   lesson.Clock
	// DryRun stops after planning.
	DryRun bool
}

// Driver runs sync cycles. A Driver must not run two cycles at once.
type Driver struct {
	portal   Portal
	calendar remote.Calendar
	store    Snapshots
	audit    audit.Recorder
	opts     Options
}

// New creates a Driver. A nil recorder disables auditing.
func New(portal Portal, cal remote.Calendar, store Snapshots, rec audit.Recorder, opts Options) *Driver {
	if rec == nil {
		rec = audit.Nop{}
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 30 * time.Second
	}
	if opts.TimeZone == "" {
		opts.TimeZone = calendar.DefaultTimeZone
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.DayStart == (lesson.Clock{}) && opts.DayEnd == (lesson.Clock{}) {
		opts.DayStart, opts.DayEnd = lesson.DefaultDayStart, lesson.DefaultDayEnd
	}
	return &Driver{
		portal:   portal,
		calendar: cal,
		store:    store,
		audit:    rec,
		opts:     opts,
	}
}

// Failure is an operation that could not be applied.
type Failure struct {
	Operation reconcile.Operation
	Err       error
}

// Report summarizes one cycle.
type Report struct {
	RunID  uuid.UUID
	Range  lesson.Range
	DryRun bool

	Records      int // raw records from the portal
	Skipped      int // placeholder records dropped
	Lessons      int // lessons persisted
	Unidentified int // lessons without a subject, never synced
	OutOfView    int // lessons the calendar listing cannot see, never synced
	Remote       int // managed events listed

	Changes  []storage.Change
	Plan     *reconcile.Plan
	Added    int
	Updated  int
	Deleted  int
	Failures []Failure

	Duration time.Duration
}

// Failed returns the number of operations that could not be applied.
func (r *Report) Failed() int {
	return len(r.Failures)
}

// Run executes one cycle over r.
func (d *Driver) Run(ctx context.Context, r lesson.Range) (*Report, error) {
	start := time.Now()
	report := &Report{
		RunID:  audit.NewRunID(),
		Range:  r,
		DryRun: d.opts.DryRun,
	}
	fields := logger.Fields{"run_id": report.RunID.String(), "range": r.String()}

	logger.Info("Sync cycle started", fields)

	raws, err := d.fetch(ctx, r)
	if err != nil {
		return nil, err
	}
	lessons, skipped := lesson.Parse(raws)
	report.Records = len(raws)
	report.Skipped = skipped

	previous, err := d.store.Load()
	if err != nil && !errors.Is(err, storage.ErrNoSnapshot) {
		logger.Warn("Previous snapshot unreadable", logger.Fields{"error": err.Error()})
	}

	if err := d.store.Save(&storage.Snapshot{Range: r, Lessons: lessons}); err != nil {
		return nil, fmt.Errorf("saving snapshot: %w", err)
	}
	snapshot, err := d.store.Load()
	if err != nil {
		return nil, fmt.Errorf("reading snapshot back: %w", err)
	}
	report.Lessons = len(snapshot.Lessons)

	report.Changes = storage.Diff(previous, snapshot)
	for _, c := range report.Changes {
		logger.Info("Lesson changed on portal", logger.Fields{
			"key":  c.Key.String(),
			"type": string(c.Type),
			"old":  c.OldValue,
			"new":  c.NewValue,
		})
	}

	local, unidentified := lesson.NormalizeLessons(snapshot.Lessons)
	report.Unidentified = unidentified
	if unidentified > 0 {
		logger.Warn("Lessons without subject skipped", logger.Fields{"count": unidentified})
	}

	local = d.inView(local, r, report)

	remotes, err := d.list(ctx, r)
	if err != nil {
		return nil, err
	}
	report.Remote = len(remotes)

	plan := reconcile.Reconcile(local, lesson.NormalizeRemotes(remotes))
	report.Plan = plan

	for _, dup := range plan.Duplicates {
		logger.Warn("Duplicate identity key", logger.Fields{
			"side":  string(dup.Side),
			"key":   dup.Key.String(),
			"count": dup.Count,
		})
	}

	logger.Info("Sync plan computed", logger.Fields{
		"run_id":      report.RunID.String(),
		"add":         plan.Count(reconcile.Add),
		"update":      plan.Count(reconcile.Update),
		"delete":      plan.Count(reconcile.Delete),
		"unchanged":   len(plan.Unchanged),
		"out_of_view": report.OutOfView,
		"dry_run":     d.opts.DryRun,
	})

	if !d.opts.DryRun {
		d.execute(ctx, report)
	}

	report.Duration = time.Since(start)
	logger.RecordTiming("sync.cycle", report.Duration)
	logger.SetGauge("sync.lessons", float64(report.Lessons))

	logger.Info("Sync cycle finished", logger.Fields{
		"run_id":   report.RunID.String(),
		"added":    report.Added,
		"updated":  report.Updated,
		"deleted":  report.Deleted,
		"failed":   report.Failed(),
		"duration": report.Duration.String(),
	})

	return report, nil
}

func (d *Driver) fetch(ctx context.Context, r lesson.Range) ([]lesson.Raw, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.opts.CallTimeout)
	defer cancel()

	raws, err := d.portal.Fetch(callCtx, d.opts.Username, d.opts.Password, r)
	if err != nil {
		return nil, fmt.Errorf("fetching portal events: %w", err)
	}
	return raws, nil
}

// inView keeps the lessons a listing of r can return: managed subject, start
// on one of r's weekdays, overlap with the day window.
func (d *Driver) inView(local []lesson.Canonical, r lesson.Range, report *Report) []lesson.Canonical {
	days := make(map[string]bool)
	for _, day := range r.Weekdays() {
		days[day.Format(lesson.DateLayout)] = true
	}

	kept := make([]lesson.Canonical, 0, len(local))
	for _, c := range local {
		reason := d.outOfView(c, days)
		if reason == "" {
			kept = append(kept, c)
			continue
		}
		report.OutOfView++
		logger.Info("Lesson not synced", logger.Fields{
			"key":     c.Key.String(),
			"summary": c.Lesson.Summary(),
			"reason":  reason,
		})
	}
	return kept
}

// outOfView returns why c cannot be listed back from the calendar, or "".
func (d *Driver) outOfView(c lesson.Canonical, days map[string]bool) string {
	if !lesson.IsManaged(c.Lesson.Summary()) {
		return "unmanaged subject"
	}

	loc := d.opts.Location
	start := lesson.ParseTime(c.Start, loc)
	if start.IsZero() {
		return "unparseable start"
	}
	start = start.In(loc)
	if !days[start.Format(lesson.DateLayout)] {
		return "not on a synced weekday"
	}

	end := lesson.ParseTime(c.End, loc)
	if end.IsZero() || end.Before(start) {
		end = start
	}
	// The listing returns events overlapping the window.
	from, to := lesson.DayWindow(start, loc, d.opts.DayStart, d.opts.DayEnd)
	if !start.Before(to) || !end.After(from) {
		return "outside the day window"
	}
	return ""
}

// list collects the managed events of every weekday in r.
func (d *Driver) list(ctx context.Context, r lesson.Range) ([]*lesson.Remote, error) {
	all := make([]*lesson.Remote, 0)
	for _, day := range r.Weekdays() {
		callCtx, cancel := context.WithTimeout(ctx, d.opts.CallTimeout)
		events, err := d.calendar.List(callCtx, day)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("listing calendar: %w", err)
		}
		all = append(all, events...)
	}
	return all, nil
}

// execute applies the plan in order. Operation failures are collected, not
// returned.
func (d *Driver) execute(ctx context.Context, report *Report) {
	for _, op := range report.Plan.Operations {
		if ctx.Err() != nil {
			report.Failures = append(report.Failures, Failure{Operation: op, Err: ctx.Err()})
			continue
		}

		err := d.apply(ctx, op)
		d.record(ctx, report.RunID, op, err)

		if err != nil {
			report.Failures = append(report.Failures, Failure{Operation: op, Err: err})
			logger.IncrCounter("sync.ops.failed")
			logger.Error("Calendar operation failed", opFields(op), err)
			continue
		}

		switch op.Kind {
		case reconcile.Add:
			report.Added++
		case reconcile.Update:
			report.Updated++
		case reconcile.Delete:
			report.Deleted++
		}
		logger.IncrCounter("sync.ops." + string(op.Kind))
		logger.Info("Calendar operation applied", opFields(op))
	}
}

func (d *Driver) apply(ctx context.Context, op reconcile.Operation) error {
	callCtx, cancel := context.WithTimeout(ctx, d.opts.CallTimeout)
	defer cancel()

	switch op.Kind {
	case reconcile.Add:
		_, err := d.calendar.Insert(callCtx, calendar.Payload(op.Local.Lesson, d.opts.TimeZone))
		return err
	case reconcile.Update:
		return d.calendar.Update(callCtx, op.Remote.Remote.ID, calendar.Payload(op.Local.Lesson, d.opts.TimeZone))
	case reconcile.Delete:
		return d.calendar.Delete(callCtx, op.Remote.Remote.ID)
	default:
		return fmt.Errorf("unknown operation kind %q", op.Kind)
	}
}

func (d *Driver) record(ctx context.Context, runID uuid.UUID, op reconcile.Operation, opErr error) {
	k := op.Key()
	entry := audit.Entry{
		RunID:   runID,
		Kind:    string(op.Kind),
		Prefix:  k.Prefix,
		Start:   k.Start,
		Summary: Summary(op),
		OK:      opErr == nil,
	}
	if opErr != nil {
		entry.Error = opErr.Error()
	}

	callCtx, cancel := context.WithTimeout(ctx, d.opts.CallTimeout)
	defer cancel()

	if err := d.audit.Record(callCtx, entry); err != nil {
		logger.Warn("Failed to record audit entry", logger.Fields{"error": err.Error()})
	}
}

// Summary names the lesson an operation applies to.
func Summary(op reconcile.Operation) string {
	if op.Local != nil && op.Local.Lesson != nil {
		return op.Local.Lesson.Summary()
	}
	if op.Remote != nil && op.Remote.Remote != nil {
		return op.Remote.Remote.Summary
	}
	return ""
}

func opFields(op reconcile.Operation) logger.Fields {
	return logger.Fields{
		"kind":    string(op.Kind),
		"key":     op.Key().String(),
		"summary": Summary(op),
		"reason":  op.Reason,
	}
}
