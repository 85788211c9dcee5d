package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pfrederiksen/geop-sync/internal/lesson"
)

// SnapshotFile is the snapshot's file name inside the data directory.
const SnapshotFile = "calendar.json"

// ErrNoSnapshot is returned by Load before the first snapshot is written.
var ErrNoSnapshot = errors.New("no snapshot found")

// Snapshot is the persisted result of one portal fetch.
type Snapshot struct {
	UpdatedAt string           `json:"updated_at"` // RFC3339 timestamp
	Range     lesson.Range     `json:"range"`
	Lessons   []*lesson.Lesson `json:"lessons"`
}

// Storage handles persistence of lesson snapshots
type Storage struct {
	dataDir string
}

// New creates a new Storage instance
func New(dataDir string) (*Storage, error) {
	dataDir, err := ExpandHome(dataDir)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	return &Storage{
		dataDir: dataDir,
	}, nil
}

// ExpandHome expands a leading ~/ to the user's home directory.
func ExpandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, path[2:]), nil
}

// Path returns the snapshot file path.
func (s *Storage) Path() string {
	return filepath.Join(s.dataDir, SnapshotFile)
}

// Load reads the snapshot from disk.
func (s *Storage) Load() (*Snapshot, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}

	if snapshot.Lessons == nil {
		snapshot.Lessons = make([]*lesson.Lesson, 0)
	}

	return &snapshot, nil
}

// Save writes the snapshot to disk, replacing the previous one atomically.
func (s *Storage) Save(snapshot *Snapshot) error {
	snapshot.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	if snapshot.Lessons == nil {
		snapshot.Lessons = make([]*lesson.Lesson, 0)
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(s.dataDir, SnapshotFile+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing snapshot: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("setting snapshot permissions: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path()); err != nil {
		return fmt.Errorf("replacing snapshot: %w", err)
	}

	return nil
}
