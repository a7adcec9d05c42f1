package history

import (
	"context"
	"sync"
	"time"
)

// Writer accumulates one update run and persists it when the run finishes.
// It touches the database file only inside Finish, so no handle is held
// while the run itself rewrites the storage subtree the journal lives in.
type Writer struct {
	path string

	mu     sync.Mutex
	run    Run
	events []Event
}

// NewWriter returns a Writer that will persist to the database at path.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Begin starts buffering a run.
func (w *Writer) Begin(_ context.Context, runID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.run = Run{RunID: runID, State: "idle", StartedAt: time.Now()}
	w.events = nil
	return nil
}

// RecordState buffers a state transition.
func (w *Writer) RecordState(_ context.Context, _ string, state string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.run.State = state
	w.events = append(w.events, Event{State: state, Timestamp: time.Now()})
	return nil
}

// Finish completes the buffered run and writes it to the database.
func (w *Writer) Finish(ctx context.Context, _ string, state, outcome, errMsg string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.run.State = state
	w.run.Outcome = outcome
	w.run.Error = errMsg
	w.run.FinishedAt = time.Now()

	j, err := Open(w.path)
	if err != nil {
		return err
	}
	defer j.Close()
	return j.Record(ctx, w.run, w.events)
}
