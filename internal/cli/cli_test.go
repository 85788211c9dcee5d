package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pfrederiksen/geop-sync/internal/config"
	"github.com/pfrederiksen/geop-sync/internal/crypto"
	"github.com/pfrederiksen/geop-sync/internal/lesson"
	"github.com/pfrederiksen/geop-sync/internal/storage"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, ExitSuccess},
		{"operation failures", errOperationFailures, ExitOperationFailures},
		{"wrapped failures", fmt.Errorf("cycle: %w", errOperationFailures), ExitOperationFailures},
		{"fatal", fmt.Errorf("portal unreachable"), ExitError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := parseFormat("JSON"); err != nil || f != FormatJSON {
		t.Errorf("parseFormat(JSON) = %v, %v", f, err)
	}
	if _, err := parseFormat("yaml"); err == nil {
		t.Error("expected error for yaml")
	}
	if err := parseSort("kind"); err != nil {
		t.Errorf("parseSort(kind) error = %v", err)
	}
	if err := parseSort("random"); err == nil {
		t.Error("expected error for unknown sort order")
	}
}

// writeTestConfig writes a config whose data dir lives under t.TempDir.
func writeTestConfig(t *testing.T) (string, *config.Config) {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Sync.DataDir = filepath.Join(dir, "data")
	cfg.Calendar.TokenFile = filepath.Join(dir, "token.json")
	cfg.Calendar.CredentialsFile = filepath.Join(dir, "client_secret.json")

	path := filepath.Join(dir, "config.yaml")
	if err := config.Save(path, cfg); err != nil {
		t.Fatalf("saving config: %v", err)
	}
	return path, cfg
}

func runRoot(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestExportCommand(t *testing.T) {
	path, cfg := writeTestConfig(t)

	store, err := storage.New(cfg.Sync.DataDir)
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	snapshot := &storage.Snapshot{
		Lessons: []*lesson.Lesson{
			{ID: "2", Status: "PRESENTE", Subject: "UFT01 - Sicurezza", Teacher: "Bianchi", Room: "Lab 2", Start: "2025-03-26T14:00:00", End: "2025-03-26T17:40:00"},
			{ID: "1", Status: "PRESENTE", Subject: "UFS02 - Reti", Teacher: "Rossi", Room: "101", Start: "2025-03-25T08:40:00", End: "2025-03-25T12:40:00"},
			{ID: "3", Status: "PRESENTE", Start: "2025-03-27T08:40:00", End: "2025-03-27T12:40:00"},
		},
	}
	if err := store.Save(snapshot); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	outFile := filepath.Join(t.TempDir(), "lessons.ics")
	if _, err := runRoot(t, "", "--config", path, "export", "--out", outFile); err != nil {
		t.Fatalf("export error = %v", err)
	}

	data, err := os.ReadFile(outFile)
	if err != nil {
		t.Fatalf("reading export: %v", err)
	}
	ics := string(data)

	if !strings.Contains(ics, "BEGIN:VCALENDAR") {
		t.Fatalf("not a calendar:\n%s", ics)
	}
	if n := strings.Count(ics, "BEGIN:VEVENT"); n != 2 {
		t.Errorf("got %d events, want 2", n)
	}
	first := strings.Index(ics, "SUMMARY:UFS02 - Reti - Rossi")
	second := strings.Index(ics, "SUMMARY:UFT01 - Sicurezza - Bianchi")
	if first < 0 || second < 0 || first > second {
		t.Errorf("events not in start order:\n%s", ics)
	}
}

func TestExportWithoutSnapshot(t *testing.T) {
	path, _ := writeTestConfig(t)

	_, err := runRoot(t, "", "--config", path, "export")
	if err == nil || !strings.Contains(err.Error(), "no lessons saved yet") {
		t.Errorf("export error = %v, want no lessons saved yet", err)
	}
}

func TestExportICSStdout(t *testing.T) {
	var buf bytes.Buffer
	snapshot := &storage.Snapshot{Lessons: []*lesson.Lesson{
		{ID: "1", Status: "ASSENTE", Subject: "UFS02 - Reti", Teacher: "Rossi", Start: "2025-03-25T08:40:00", End: "2025-03-25T12:40:00"},
	}}

	n, err := exportICS(&buf, snapshot, time.UTC, time.Now())
	if err != nil {
		t.Fatalf("exportICS() error = %v", err)
	}
	if n != 1 {
		t.Errorf("exported %d, want 1", n)
	}
	if !strings.Contains(buf.String(), "END:VCALENDAR") {
		t.Errorf("output = %s", buf.String())
	}
}

func TestPortalLoginNoVerify(t *testing.T) {
	path, _ := writeTestConfig(t)
	t.Setenv("GEOPSYNC_PASSPHRASE", "correct horse")

	out, err := runRoot(t, "s3cret\n", "--config", path, "portal-login", "--username", "mario.rossi", "--no-verify")
	if err != nil {
		t.Fatalf("portal-login error = %v", err)
	}
	if !strings.Contains(out, "Portal credentials saved") {
		t.Errorf("output = %s", out)
	}

	saved, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if saved.Portal.Username != "mario.rossi" {
		t.Errorf("username = %q", saved.Portal.Username)
	}
	if !crypto.IsEncrypted(saved.Portal.Password) {
		t.Fatalf("password stored in plaintext: %q", saved.Portal.Password)
	}
	plain, err := crypto.NewEncryptor("correct horse").Decrypt(saved.Portal.Password)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if plain != "s3cret" {
		t.Errorf("decrypted password = %q", plain)
	}
}

func TestPortalLoginPassphraseMismatch(t *testing.T) {
	path, _ := writeTestConfig(t)
	t.Setenv("GEOPSYNC_PASSPHRASE", "")

	_, err := runRoot(t, "s3cret\none\ntwo\n", "--config", path, "portal-login", "-u", "mario.rossi", "--no-verify")
	if err == nil || !strings.Contains(err.Error(), "do not match") {
		t.Errorf("error = %v, want passphrase mismatch", err)
	}
}
