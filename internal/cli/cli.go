package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pfrederiksen/geop-sync/internal/config"
	"github.com/pfrederiksen/geop-sync/internal/logger"
)

const (
	ExitSuccess = 0
	ExitError   = 1
	// ExitOperationFailures means the cycle completed but some calendar
	// operations failed.
	ExitOperationFailures = 2
)

// errOperationFailures is returned by sync when the cycle completed with
// failed operations.
var errOperationFailures = errors.New("some calendar operations failed")

var (
	flagConfigPath string
	flagVerbose    bool
	flagFormat     string
	flagSort       string
	flagDryRun     bool
	flagWatch      bool
	flagWeeks      int
	flagOut        string
	flagUsername   string
	flagNoVerify   bool
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "geop-sync",
		Short: "Sync GEOP portal lessons to Google Calendar",
		Long: `geop-sync keeps a Google Calendar in line with the lessons and attendance
published on the GEOP school portal. The portal is authoritative: lessons are
added, updated and removed on the calendar to match it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "Config file (default: <user config dir>/geop-sync/config.yaml)")
	cmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable debug logging")

	cmd.AddCommand(
		newSyncCmd(),
		newPlanCmd(),
		newExportCmd(),
		newAuthCmd(),
		newPortalLoginCmd(),
	)

	return cmd
}

// loadConfig reads the config file and layers environment variables and the
// command's bound flags over it. It also configures logging.
func loadConfig(cmd *cobra.Command, bindings map[string]string) (*config.Config, *viper.Viper, string, error) {
	path := flagConfigPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, nil, "", err
		}
		path = p
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, "", fmt.Errorf("loading config: %w", err)
	}

	v := config.NewViper()
	for key, flag := range bindings {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, nil, "", fmt.Errorf("binding flag --%s: %w", flag, err)
			}
		}
	}
	cfg.Overlay(v)

	if err := cfg.Validate(); err != nil {
		return nil, nil, "", fmt.Errorf("invalid config %s: %w", path, err)
	}

	if err := setupLogging(cfg); err != nil {
		return nil, nil, "", err
	}

	return cfg, v, path, nil
}

func setupLogging(cfg *config.Config) error {
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	if flagVerbose {
		level = logger.LevelDebug
	}

	if cfg.Log.Format == "console" {
		logger.SetDefault(logger.NewConsole(level, os.Stderr))
	} else {
		logger.SetDefault(logger.New(level, os.Stderr))
	}
	return nil
}

// exitCode maps a command error to the process exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, errOperationFailures):
		return ExitOperationFailures
	default:
		return ExitError
	}
}

// Execute runs the CLI
func Execute() {
	err := NewRootCmd().Execute()
	if err != nil && !errors.Is(err, errOperationFailures) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(exitCode(err))
}
