package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/geop-sync/internal/logger"
	"github.com/pfrederiksen/geop-sync/internal/scheduler"
)

// Flag to config key bindings shared by sync and plan.
var syncBindings = map[string]string{
	"sync.weeks":  "weeks",
	"calendar.id": "calendar",
}

func addSyncFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&flagWeeks, "weeks", 6, "Number of weeks to sync, starting this Monday")
	cmd.Flags().String("calendar", "", "Google calendar id (default from config)")
	cmd.Flags().StringVar(&flagFormat, "format", "text", "Output format: text or json")
	cmd.Flags().StringVar(&flagSort, "sort", "plan", "Sort operations by: plan, date, kind, summary")
}

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync cycle, or keep syncing on the configured schedule",
		RunE:  runSync,
	}
	addSyncFlags(cmd)
	cmd.Flags().BoolVar(&flagWatch, "watch", false, "Keep running and sync on the configured schedule")
	cmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Compute the plan without touching the calendar")
	return cmd
}

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the operations the next sync would apply",
		RunE: func(cmd *cobra.Command, args []string) error {
			flagDryRun = true
			flagWatch = false
			return runSync(cmd, args)
		},
	}
	addSyncFlags(cmd)
	return cmd
}

func parseFormat(s string) (OutputFormat, error) {
	format := OutputFormat(strings.ToLower(s))
	if format != FormatText && format != FormatJSON {
		return "", fmt.Errorf("invalid format: %s (must be 'text' or 'json')", s)
	}
	return format, nil
}

func parseSort(s string) error {
	switch SortOrder(s) {
	case SortByPlan, SortByDate, SortByKind, SortBySummary:
		return nil
	}
	return fmt.Errorf("invalid sort order: %s (must be 'plan', 'date', 'kind' or 'summary')", s)
}

// runSync is the sync and plan command logic
func runSync(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(flagFormat)
	if err != nil {
		return err
	}
	if err := parseSort(flagSort); err != nil {
		return err
	}

	cfg, v, _, err := loadConfig(cmd, syncBindings)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, v, flagDryRun)
	if err != nil {
		return err
	}
	defer a.Close()

	if !flagWatch {
		return a.cycle(ctx, cmd, format)
	}

	return scheduler.Run(ctx, cfg.Sync.Schedule, a.loc, func(ctx context.Context) error {
		err := a.cycle(ctx, cmd, format)
		logger.LogMetrics("Sync metrics")
		if errors.Is(err, errOperationFailures) {
			// Already reported; the next tick retries.
			return nil
		}
		return err
	})
}

// cycle runs one sync over the current window and prints the report.
func (a *app) cycle(ctx context.Context, cmd *cobra.Command, format OutputFormat) error {
	r, err := a.window(time.Now())
	if err != nil {
		return err
	}

	report, err := a.driver.Run(ctx, r)
	if err != nil {
		return err
	}

	result := NewOutputResult(report, time.Now())
	sortOperations(result.Operations, SortOrder(flagSort))
	if err := WriteOutput(cmd.OutOrStdout(), result, format, flagVerbose); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	if report.Failed() > 0 {
		logger.Warn("Sync cycle finished with failures", logger.Fields{
			"failed": report.Failed(),
		})
		return errOperationFailures
	}
	return nil
}
