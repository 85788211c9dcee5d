package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/geop-sync/internal/calendar"
	"github.com/pfrederiksen/geop-sync/internal/lesson"
	"github.com/pfrederiksen/geop-sync/internal/logger"
	"github.com/pfrederiksen/geop-sync/internal/storage"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the last fetched lessons as an iCalendar file",
		Long: `Export writes the lessons saved by the last sync as an .ics document that
any calendar application can import. No network access is needed.`,
		RunE: runExport,
	}
	cmd.Flags().StringVarP(&flagOut, "out", "o", "-", "Output file, - for stdout")
	return cmd
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, _, _, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	store, err := storage.New(cfg.Sync.DataDir)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	snapshot, err := store.Load()
	if errors.Is(err, storage.ErrNoSnapshot) {
		return errors.New("no lessons saved yet, run 'geop-sync sync' first")
	}
	if err != nil {
		return err
	}

	if flagOut == "-" {
		_, err := exportICS(cmd.OutOrStdout(), snapshot, loc, time.Now())
		return err
	}

	f, err := os.Create(flagOut)
	if err != nil {
		return fmt.Errorf("creating %s: %w", flagOut, err)
	}
	n, err := exportICS(f, snapshot, loc, time.Now())
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d lessons to %s\n", n, flagOut)
	return nil
}

// exportICS writes the snapshot lessons in start order and returns how many
// were written.
func exportICS(w io.Writer, snapshot *storage.Snapshot, loc *time.Location, now time.Time) (int, error) {
	lessons := make([]*lesson.Lesson, len(snapshot.Lessons))
	copy(lessons, snapshot.Lessons)
	lesson.SortByStart(lessons, loc)

	doc, omitted := calendar.GenerateICS(lessons, loc, now)
	if omitted > 0 {
		logger.Warn("Lessons left out of export", logger.Fields{"omitted": omitted})
	}
	if _, err := io.WriteString(w, doc); err != nil {
		return 0, fmt.Errorf("writing calendar: %w", err)
	}
	return len(lessons) - omitted, nil
}
