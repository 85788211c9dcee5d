// Package audit records every calendar operation a sync cycle executes.
//
// With a Postgres DSN configured, entries go to the sync_operations table;
// otherwise a no-op recorder is used. Entries of one cycle share a run id.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pfrederiksen/geop-sync/internal/logger"
)

const initSQL = `
CREATE TABLE IF NOT EXISTS sync_operations (
    id          BIGSERIAL PRIMARY KEY,
    run_id      UUID        NOT NULL,
    kind        VARCHAR(16) NOT NULL,
    prefix      TEXT        NOT NULL,
    start       TEXT        NOT NULL,
    summary     TEXT,
    ok          BOOLEAN     NOT NULL,
    error       TEXT,
    recorded_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS sync_operations_run_id ON sync_operations (run_id);
`

const insertSQL = `
INSERT INTO sync_operations (run_id, kind, prefix, start, summary, ok, error, recorded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

const (
	connectAttempts = 3
	retryDelay      = 2 * time.Second
)

// Entry is one executed operation.
type Entry struct {
	RunID      uuid.UUID
	Kind       string
	Prefix     string
	Start      string
	Summary    string
	OK         bool
	Error      string
	RecordedAt time.Time
}

// Recorder stores entries.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
	Close()
}

// NewRunID returns a fresh id for one sync cycle.
func NewRunID() uuid.UUID {
	return uuid.New()
}

// Nop discards entries.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }
func (Nop) Close()                              {}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres writes entries to the sync_operations table.
type Postgres struct {
	pool *pgxpool.Pool
	db   execer
}

// Connect opens a small pool, retrying the connection a few times, and
// creates the table if needed.
func Connect(ctx context.Context, dsn string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres DSN: %w", err)
	}

	// One cycle writes sequentially.
	config.MaxConns = 2
	config.MinConns = 0
	config.MaxConnIdleTime = 5 * time.Minute
	config.HealthCheckPeriod = time.Minute
	config.ConnConfig.ConnectTimeout = 10 * time.Second

	var pool *pgxpool.Pool
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		pool, err = pgxpool.NewWithConfig(ctx, config)
		if err == nil {
			err = pool.Ping(ctx)
			if err == nil {
				break
			}
			pool.Close()
		}

		logger.Warn("Failed to connect to audit database", logger.Fields{
			"attempt": attempt,
			"error":   err.Error(),
		})
		if attempt == connectAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to audit database after %d attempts: %w", connectAttempts, err)
	}

	initCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := pool.Exec(initCtx, initSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running audit init sql: %w", err)
	}

	return &Postgres{pool: pool, db: pool}, nil
}

// Record inserts one entry. A zero RecordedAt is set to now.
func (p *Postgres) Record(ctx context.Context, e Entry) error {
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}

	var errText *string
	if e.Error != "" {
		errText = &e.Error
	}

	_, err := p.db.Exec(ctx, insertSQL,
		e.RunID, e.Kind, e.Prefix, e.Start, e.Summary, e.OK, errText, e.RecordedAt)
	if err != nil {
		return fmt.Errorf("recording %s %s@%s: %w", e.Kind, e.Prefix, e.Start, err)
	}
	return nil
}

func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}
