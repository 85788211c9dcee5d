// Package config loads and saves the geop-sync YAML configuration.
//
// The file is created with defaults on first run and always written with
// 0600 permissions, since it may hold the portal password. Values can be
// overridden from the environment (GEOPSYNC_*) and command-line flags through
// Overlay.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pfrederiksen/geop-sync/internal/lesson"
)

// PortalConfig holds the school portal endpoint and credentials.
type PortalConfig struct {
	BaseURL  string `yaml:"base_url"`
	Username string `yaml:"username"`
	// Password is plain text or an "enc:" ciphertext.
	Password string `yaml:"password"`
}

// CalendarConfig selects the Google calendar and its OAuth files.
type CalendarConfig struct {
	ID              string `yaml:"id"`
	Timezone        string `yaml:"timezone"`
	CredentialsFile string `yaml:"credentials_file"`
	TokenFile       string `yaml:"token_file"`
	// DayStart and DayEnd bound the per-day listing window ("HH:MM").
	DayStart string `yaml:"day_start"`
	DayEnd   string `yaml:"day_end"`
}

// SyncConfig controls the sync window and schedule.
type SyncConfig struct {
	Weeks int `yaml:"weeks"`
	// MaxEnd caps the window end ("YYYY-MM-DD"); empty means no cap.
	MaxEnd      string        `yaml:"max_end"`
	Schedule    string        `yaml:"schedule"`
	DataDir     string        `yaml:"data_dir"`
	CallTimeout time.Duration `yaml:"call_timeout"`
}

// AuditConfig enables the Postgres audit log when PostgresDSN is set.
type AuditConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// Config is the top-level application configuration.
type Config struct {
	Portal   PortalConfig   `yaml:"portal"`
	Calendar CalendarConfig `yaml:"calendar"`
	Sync     SyncConfig     `yaml:"sync"`
	Audit    AuditConfig    `yaml:"audit"`
	Log      LogConfig      `yaml:"log"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Portal: PortalConfig{
			BaseURL: "https://itsar.registrodiclasse.it/geopcfp2/",
		},
		Calendar: CalendarConfig{
			ID:              "primary",
			Timezone:        "Europe/Rome",
			CredentialsFile: "~/.config/geop-sync/credentials.json",
			TokenFile:       "~/.config/geop-sync/token.json",
			DayStart:        "08:40",
			DayEnd:          "17:40",
		},
		Sync: SyncConfig{
			Weeks:       6,
			MaxEnd:      "2026-08-04",
			Schedule:    "@every 30m",
			DataDir:     "~/.local/share/geop-sync",
			CallTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave correctly.
func (c *Config) Normalize() {
	d := DefaultConfig()

	if c.Portal.BaseURL == "" {
		c.Portal.BaseURL = d.Portal.BaseURL
	}
	if c.Calendar.ID == "" {
		c.Calendar.ID = d.Calendar.ID
	}
	if c.Calendar.Timezone == "" {
		c.Calendar.Timezone = d.Calendar.Timezone
	}
	if c.Calendar.CredentialsFile == "" {
		c.Calendar.CredentialsFile = d.Calendar.CredentialsFile
	}
	if c.Calendar.TokenFile == "" {
		c.Calendar.TokenFile = d.Calendar.TokenFile
	}
	if c.Calendar.DayStart == "" {
		c.Calendar.DayStart = d.Calendar.DayStart
	}
	if c.Calendar.DayEnd == "" {
		c.Calendar.DayEnd = d.Calendar.DayEnd
	}
	if c.Sync.Weeks <= 0 {
		c.Sync.Weeks = d.Sync.Weeks
	}
	if c.Sync.Schedule == "" {
		c.Sync.Schedule = d.Sync.Schedule
	}
	if c.Sync.DataDir == "" {
		c.Sync.DataDir = d.Sync.DataDir
	}
	if c.Sync.CallTimeout <= 0 {
		c.Sync.CallTimeout = d.Sync.CallTimeout
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		c.Log.Format = d.Log.Format
	}
}

// Validate checks the values that Normalize cannot default.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	from, to, err := c.DayWindow()
	if err != nil {
		return err
	}
	if from.Hour*60+from.Minute >= to.Hour*60+to.Minute {
		return fmt.Errorf("calendar.day_start %s must be before calendar.day_end %s", from, to)
	}
	if _, err := c.MaxEnd(); err != nil {
		return err
	}
	return nil
}

// Location loads the configured calendar time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Calendar.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading calendar.timezone %q: %w", c.Calendar.Timezone, err)
	}
	return loc, nil
}

// DayWindow parses the per-day listing window.
func (c *Config) DayWindow() (lesson.Clock, lesson.Clock, error) {
	from, err := lesson.ParseClock(c.Calendar.DayStart)
	if err != nil {
		return lesson.Clock{}, lesson.Clock{}, fmt.Errorf("calendar.day_start: %w", err)
	}
	to, err := lesson.ParseClock(c.Calendar.DayEnd)
	if err != nil {
		return lesson.Clock{}, lesson.Clock{}, fmt.Errorf("calendar.day_end: %w", err)
	}
	return from, to, nil
}

// MaxEnd parses sync.max_end. The zero time means no cap.
func (c *Config) MaxEnd() (time.Time, error) {
	if c.Sync.MaxEnd == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(lesson.DateLayout, c.Sync.MaxEnd)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing sync.max_end: %w", err)
	}
	return t, nil
}

// DefaultPath returns the config file location under the user config dir.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("getting config directory: %w", err)
	}
	return filepath.Join(dir, "geop-sync", "config.yaml"), nil
}

// Load loads configuration from the given YAML path.
//
// If the file does not exist, a default config is written with 0600
// permissions and returned. Otherwise the file is read and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically via a temp file and rename, with 0600
// permissions on the result.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".geop-sync-config-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp config: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing config: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("setting config permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing config: %w", err)
	}

	return nil
}

// Save is a convenience method delegating to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
