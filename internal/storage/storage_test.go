package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pfrederiksen/geop-sync/internal/lesson"
)

func TestSaveLoad(t *testing.T) {
	storage, err := New(filepath.Join(t.TempDir(), "nested", "data"))
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	if _, err := storage.Load(); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("Load() before Save error = %v, want ErrNoSnapshot", err)
	}

	r := lesson.Range{
		Start: time.Date(2025, 3, 24, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC),
	}
	snapshot := &Snapshot{
		Range: r,
		Lessons: []*lesson.Lesson{
			{ID: "4711", Status: "PRESENTE", Subject: "UFS02 - Reti", Teacher: "Rossi", Room: "101", Start: "2025-03-25T08:40:00", End: "2025-03-25T12:40:00"},
			{ID: "4712", Status: "Registro lezione da compilare", Subject: "UFT01", Modality: "Fad", Start: "2025-03-26T14:00:00", End: "2025-03-26T17:40:00"},
		},
	}

	if err := storage.Save(snapshot); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if snapshot.UpdatedAt == "" {
		t.Error("Save() should stamp UpdatedAt")
	}

	loaded, err := storage.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if loaded.UpdatedAt != snapshot.UpdatedAt {
		t.Errorf("UpdatedAt = %q, want %q", loaded.UpdatedAt, snapshot.UpdatedAt)
	}
	if !loaded.Range.Start.Equal(r.Start) || !loaded.Range.End.Equal(r.End) {
		t.Errorf("Range = %v, want %v", loaded.Range, r)
	}
	if len(loaded.Lessons) != 2 {
		t.Fatalf("got %d lessons, want 2", len(loaded.Lessons))
	}
	if *loaded.Lessons[0] != *snapshot.Lessons[0] || *loaded.Lessons[1] != *snapshot.Lessons[1] {
		t.Errorf("lessons did not survive the round trip: %+v", loaded.Lessons)
	}

	entries, err := os.ReadDir(filepath.Dir(storage.Path()))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != SnapshotFile {
		t.Errorf("data dir should only hold %s, got %v", SnapshotFile, entries)
	}
}

func TestSave_ReplacesPrevious(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	first := &Snapshot{Lessons: []*lesson.Lesson{{Subject: "UFS01", Start: "2025-03-25T08:40:00"}}}
	if err := storage.Save(first); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := storage.Save(&Snapshot{}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := storage.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Lessons == nil || len(loaded.Lessons) != 0 {
		t.Errorf("Lessons = %v, want empty non-nil slice", loaded.Lessons)
	}
}

func TestLoad_Corrupted(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	if err := os.WriteFile(storage.Path(), []byte("{not json"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	_, err = storage.Load()
	if err == nil || errors.Is(err, ErrNoSnapshot) {
		t.Errorf("Load() error = %v, want parse error", err)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	tests := []struct {
		in   string
		want string
	}{
		{"~/.local/share/geop-sync", filepath.Join(home, ".local/share/geop-sync")},
		{"/var/lib/geop-sync", "/var/lib/geop-sync"},
		{"relative/dir", "relative/dir"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ExpandHome(tt.in)
			if err != nil {
				t.Fatalf("ExpandHome() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ExpandHome(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
