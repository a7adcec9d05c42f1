// Package history persists a journal of update runs to SQLite.
//
// The journal lives inside the protected storage area, so it survives the
// updates it describes. That placement has a consequence for writes: the
// restore step replaces the storage subtree wholesale mid-run, and a handle
// opened before the restore would keep writing to the replaced file. The
// Writer therefore buffers the run in memory and persists it in one
// transaction only after the run has finished.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Run is one journal entry.
type Run struct {
	RunID      string
	State      string
	Outcome    string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Event is one state transition within a run.
type Event struct {
	State     string
	Timestamp time.Time
}

// Journal reads and writes the journal database. Use ":memory:" for an
// in-memory database, or a file path for persistent storage.
type Journal struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (and if necessary creates) the journal database.
func Open(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	j := &Journal{db: db}
	if err := j.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return j, nil
}

func (j *Journal) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		state TEXT NOT NULL,
		outcome TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		started_at INTEGER NOT NULL,
		finished_at INTEGER
	);
	CREATE TABLE IF NOT EXISTS run_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		state TEXT NOT NULL,
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_run_events_run_id ON run_events(run_id);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Record persists a finished run and its state transitions in one
// transaction.
func (j *Journal) Record(ctx context.Context, run Run, events []Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var finished any
	if !run.FinishedAt.IsZero() {
		finished = run.FinishedAt.Unix()
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO runs (run_id, state, outcome, error, started_at, finished_at) VALUES (?, ?, ?, ?, ?, ?)",
		run.RunID, run.State, run.Outcome, run.Error, run.StartedAt.Unix(), finished,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	for _, ev := range events {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO run_events (run_id, state, timestamp) VALUES (?, ?, ?)",
			run.RunID, ev.State, ev.Timestamp.Unix(),
		); err != nil {
			return fmt.Errorf("insert run event: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// Recent returns the most recent runs, newest first.
func (j *Journal) Recent(ctx context.Context, n int) ([]Run, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.QueryContext(ctx,
		"SELECT run_id, state, outcome, error, started_at, finished_at FROM runs ORDER BY started_at DESC, run_id DESC LIMIT ?",
		n,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var startedUnix int64
		var finishedUnix sql.NullInt64
		if err := rows.Scan(&r.RunID, &r.State, &r.Outcome, &r.Error, &startedUnix, &finishedUnix); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.Unix(startedUnix, 0)
		if finishedUnix.Valid {
			r.FinishedAt = time.Unix(finishedUnix.Int64, 0)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Events returns the state transitions recorded for a run, oldest first.
func (j *Journal) Events(ctx context.Context, runID string) ([]string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.QueryContext(ctx,
		"SELECT state FROM run_events WHERE run_id = ? ORDER BY id",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query run events: %w", err)
	}
	defer rows.Close()

	var states []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan run event: %w", err)
		}
		states = append(states, s)
	}
	return states, rows.Err()
}

// Close closes the journal database.
func (j *Journal) Close() error { return j.db.Close() }
