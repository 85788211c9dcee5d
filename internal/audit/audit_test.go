package audit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

type fakeExec struct {
	sql  string
	args []any
	err  error
}

func (f *fakeExec) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql = sql
	f.args = args
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

func TestPostgres_Record(t *testing.T) {
	db := &fakeExec{}
	p := &Postgres{db: db}
	run := NewRunID()

	err := p.Record(context.Background(), Entry{
		RunID:   run,
		Kind:    "update",
		Prefix:  "UFS02",
		Start:   "2025-03-25T08:40:00",
		Summary: "UFS02 - Reti - Rossi",
		OK:      true,
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	if !strings.Contains(db.sql, "INSERT INTO sync_operations") {
		t.Errorf("sql = %q", db.sql)
	}
	if len(db.args) != 8 {
		t.Fatalf("got %d args, want 8", len(db.args))
	}
	if db.args[0] != run || db.args[1] != "update" || db.args[2] != "UFS02" {
		t.Errorf("args = %v", db.args)
	}
	if errText, ok := db.args[6].(*string); !ok || errText != nil {
		t.Errorf("error column = %v, want NULL", db.args[6])
	}
	if ts, ok := db.args[7].(time.Time); !ok || ts.IsZero() {
		t.Errorf("recorded_at = %v, want now", db.args[7])
	}
}

func TestPostgres_RecordFailure(t *testing.T) {
	db := &fakeExec{}
	p := &Postgres{db: db}

	err := p.Record(context.Background(), Entry{Kind: "delete", Error: "403 forbidden"})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if errText, ok := db.args[6].(*string); !ok || errText == nil || *errText != "403 forbidden" {
		t.Errorf("error column = %v", db.args[6])
	}

	db.err = errors.New("connection reset")
	if err := p.Record(context.Background(), Entry{Kind: "add"}); err == nil {
		t.Error("expected database error to be returned")
	}
}

func TestNewRunID(t *testing.T) {
	if NewRunID() == NewRunID() {
		t.Error("run ids should be unique")
	}
}

func TestNop(t *testing.T) {
	var r Recorder = Nop{}
	if err := r.Record(context.Background(), Entry{}); err != nil {
		t.Errorf("Nop.Record() error = %v", err)
	}
	r.Close()
}

func TestConnect_InvalidDSN(t *testing.T) {
	if _, err := Connect(context.Background(), "not a dsn://"); err == nil {
		t.Error("expected error for invalid DSN")
	}
}
