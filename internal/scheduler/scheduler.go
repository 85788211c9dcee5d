// Package scheduler runs a job on a cron schedule until its context ends.
//
// Runs never overlap: a tick that arrives while the previous run is still
// going is skipped. The job also runs once immediately on start.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pfrederiksen/geop-sync/internal/logger"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Run executes job according to expr (standard five-field cron or a
// descriptor such as "@every 30m") and blocks until ctx is done and the
// running job, if any, has returned.
func Run(ctx context.Context, expr string, loc *time.Location, job Job) error {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return fmt.Errorf("parsing schedule %q: %w", expr, err)
	}
	if loc == nil {
		loc = time.Local
	}

	cl := cronLogger{}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	id := c.Schedule(schedule, cron.FuncJob(func() {
		start := time.Now()
		if err := job(ctx); err != nil {
			logger.Error("Scheduled run failed", logger.Fields{
				"duration": time.Since(start).String(),
			}, err)
			return
		}
		logger.Debug("Scheduled run finished", logger.Fields{
			"duration": time.Since(start).String(),
		})
	}))

	c.Start()
	logger.Info("Scheduler started", logger.Fields{
		"schedule": expr,
		"next":     c.Entry(id).Next.Format(time.RFC3339),
	})

	// The immediate run goes through the same wrapper as the ticks, so it
	// also blocks overlapping ticks.
	first := make(chan struct{})
	go func() {
		defer close(first)
		c.Entry(id).WrappedJob.Run()
	}()

	<-ctx.Done()
	<-c.Stop().Done()
	<-first
	logger.Info("Scheduler stopped", nil)

	return nil
}

// cronLogger forwards cron's key/value logging to the structured logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debug("cron: "+msg, fields(keysAndValues))
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Error("cron: "+msg, fields(keysAndValues), err)
}

func fields(keysAndValues []interface{}) logger.Fields {
	f := make(logger.Fields, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		f[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return f
}
