// Package updater drives the in-place update sequence: back up protected
// data, fetch a fresh code tree, purge old code, install, restore, clean up.
//
// Ordering invariants:
//   - nothing is purged before the fetch has fully succeeded
//   - the snapshot outlives any failure that happens after purging started
//   - staging directories are namespaced per run and never collide
package updater

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/gizmolaunch/internal/fetch"
	"git.home.luguber.info/inful/gizmolaunch/internal/logfields"
	"git.home.luguber.info/inful/gizmolaunch/internal/metrics"
	"git.home.luguber.info/inful/gizmolaunch/internal/notes"
	"git.home.luguber.info/inful/gizmolaunch/internal/snapshot"
	"git.home.luguber.info/inful/gizmolaunch/internal/staging"
	"git.home.luguber.info/inful/gizmolaunch/internal/workspace"
)

// Journal receives the run's lifecycle events. *history.Journal satisfies it.
type Journal interface {
	Begin(ctx context.Context, runID string) error
	RecordState(ctx context.Context, runID, state string) error
	Finish(ctx context.Context, runID, state, outcome, errMsg string) error
}

// Config carries the collaborators of a Manager. Workspace and Fetcher are
// required; the rest default to inert implementations.
type Config struct {
	Workspace *workspace.Workspace
	Fetcher   fetch.Fetcher
	Recorder  metrics.Recorder
	Journal   Journal
	RunID     string
}

// Result describes a finished run. SnapshotPath points at the snapshot
// directory whether or not it still exists after cleanup; Notes carries the
// release summary extracted from the fresh tree, when one was found.
type Result struct {
	RunID        string
	SnapshotPath string
	Notes        *notes.Summary
}

// Manager executes a single update run. It is not reusable; build a new one
// per run so staging directories never collide.
type Manager struct {
	ws       *workspace.Workspace
	staging  *staging.Manager
	fetcher  fetch.Fetcher
	recorder metrics.Recorder
	journal  Journal
	runID    string
	state    State
}

// New builds a Manager for one update run.
func New(cfg Config) *Manager {
	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	rec := cfg.Recorder
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Manager{
		ws:       cfg.Workspace,
		staging:  staging.NewManager(cfg.Workspace.Root(), runID),
		fetcher:  cfg.Fetcher,
		recorder: rec,
		journal:  cfg.Journal,
		runID:    runID,
		state:    StateIdle,
	}
}

// RunID returns the run's unique identifier.
func (m *Manager) RunID() string { return m.runID }

// State returns the phase the run last entered.
func (m *Manager) State() State { return m.state }

// Run executes the full update sequence. On failure the returned error is an
// *UpdateError naming the failed state; Result is valid either way.
func (m *Manager) Run(ctx context.Context) (*Result, error) {
	runStart := time.Now()
	if m.journal != nil {
		if err := m.journal.Begin(ctx, m.runID); err != nil {
			slog.Warn("history journal unavailable", logfields.Error(err))
		}
	}
	slog.Info("update run starting", logfields.RunID(m.runID))

	res := &Result{RunID: m.runID}
	err := m.run(ctx, res)

	m.recorder.ObserveRunDuration(time.Since(runStart))
	if err != nil {
		m.state = StateFailed
		m.recorder.IncRunOutcome(string(StateFailed))
		m.finishJournal(ctx, StateFailed, err.Error())
		slog.Error("update run failed", logfields.RunID(m.runID), logfields.Error(err))
		return res, err
	}

	m.state = StateDone
	m.recorder.IncRunOutcome(string(StateDone))
	m.finishJournal(ctx, StateDone, "")
	slog.Info("update run complete", logfields.RunID(m.runID),
		logfields.DurationMS(float64(time.Since(runStart).Milliseconds())))
	return res, nil
}

func (m *Manager) run(ctx context.Context, res *Result) error {
	if err := m.staging.Create(); err != nil {
		return &UpdateError{State: StateBackingUp, Err: fmt.Errorf("create staging area: %w", err)}
	}
	store := snapshot.NewStore(m.staging.SnapshotDir())
	res.SnapshotPath = store.Dir()

	var purged, restored bool
	defer m.cleanup(ctx, &purged, &restored)

	if err := m.step(ctx, StateBackingUp, func() error {
		return store.Take(m.ws)
	}); err != nil {
		return &UpdateError{State: StateBackingUp, Err: &SnapshotError{Err: err}}
	}

	freshDir := m.staging.FreshDir()
	fetchStart := time.Now()
	fetchErr := m.step(ctx, StateFetching, func() error {
		return m.fetcher.Fetch(ctx, freshDir)
	})
	m.recorder.ObserveFetchDuration(time.Since(fetchStart), fetchErr == nil)
	if fetchErr != nil {
		return &UpdateError{State: StateFetching, Err: fetchErr}
	}

	// Best effort; a tree without a changelog is not an error.
	if summary, err := notes.Extract(freshDir); err == nil && summary != nil {
		res.Notes = summary
	}

	if err := m.step(ctx, StatePurging, func() error {
		purged = true
		return m.ws.Purge()
	}); err != nil {
		return &UpdateError{State: StatePurging, SnapshotPath: store.Dir(), Err: err}
	}

	if err := m.step(ctx, StateInstalling, func() error {
		return m.ws.InstallFrom(freshDir)
	}); err != nil {
		return &UpdateError{
			State:        StateInstalling,
			SnapshotPath: store.Dir(),
			Err:          &InstallError{SnapshotPath: store.Dir(), Err: err},
		}
	}

	if err := m.step(ctx, StateRestoring, func() error {
		return store.Restore(m.ws)
	}); err != nil {
		return &UpdateError{
			State:        StateRestoring,
			SnapshotPath: store.Dir(),
			Err:          &RestoreError{SnapshotPath: store.Dir(), Err: err},
		}
	}
	restored = true
	return nil
}

// cleanup always removes the fresh tree. The snapshot goes too when the
// restore succeeded, or when purging never started and the live workspace
// still holds the authoritative data. After a post-purge failure the
// snapshot is the only copy and must stay.
func (m *Manager) cleanup(ctx context.Context, purged, restored *bool) {
	m.transition(ctx, StateCleaningUp)

	if *restored || !*purged {
		if err := m.staging.Cleanup(); err != nil {
			slog.Warn("staging cleanup incomplete", logfields.Path(m.staging.Path()), logfields.Error(err))
		}
		return
	}

	if err := m.staging.RemoveFresh(); err != nil {
		slog.Warn("fresh tree removal failed", logfields.Error(err))
	}
	slog.Warn("snapshot retained for manual recovery", logfields.Path(m.staging.SnapshotDir()))
}

func (m *Manager) step(ctx context.Context, s State, fn func() error) error {
	m.transition(ctx, s)
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	m.recorder.ObserveStepDuration(string(s), elapsed)
	if err != nil {
		m.recorder.IncStepResult(string(s), metrics.ResultFailed)
		return err
	}
	m.recorder.IncStepResult(string(s), metrics.ResultSuccess)
	slog.Debug("step complete", logfields.State(string(s)),
		logfields.DurationMS(float64(elapsed.Milliseconds())))
	return nil
}

func (m *Manager) transition(ctx context.Context, s State) {
	m.state = s
	slog.Info("entering state", logfields.RunID(m.runID), logfields.State(string(s)))
	if m.journal != nil {
		if err := m.journal.RecordState(ctx, m.runID, string(s)); err != nil {
			slog.Warn("history journal write failed", logfields.Error(err))
		}
	}
}

func (m *Manager) finishJournal(ctx context.Context, s State, errMsg string) {
	if m.journal == nil {
		return
	}
	if err := m.journal.Finish(ctx, m.runID, string(s), string(s), errMsg); err != nil {
		slog.Warn("history journal write failed", logfields.Error(err))
	}
}
