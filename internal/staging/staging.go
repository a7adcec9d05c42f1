// Package staging manages the ephemeral per-run staging directory holding
// the snapshot of protected data and the freshly fetched code tree.
//
// Each run gets a uniquely named directory (timestamp plus run id fragment)
// under the workspace root, so staging left behind by an interrupted run can
// never collide with a new run.
package staging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/gizmolaunch/internal/logfields"
	"git.home.luguber.info/inful/gizmolaunch/internal/workspace"
)

const (
	snapshotSubdir = "snapshot"
	freshSubdir    = "fresh"
)

// Manager handles the staging directory lifecycle for a single update run.
type Manager struct {
	baseDir string
	runID   string
	dir     string
}

// NewManager creates a staging manager rooted under baseDir (normally the
// workspace root, keeping snapshot copies on the same filesystem as the
// data they protect). runID namespaces the directory.
func NewManager(baseDir, runID string) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Manager{baseDir: baseDir, runID: runID}
}

// Create creates the staging directory with its snapshot and fresh subdirs.
func (m *Manager) Create() error {
	timestamp := time.Now().Format("20060102-150405")
	short := m.runID
	if len(short) > 8 {
		short = short[:8]
	}
	dir := filepath.Join(m.baseDir, fmt.Sprintf("%s%s-%s", workspace.StagingPrefix, timestamp, short))

	for _, sub := range []string{snapshotSubdir, freshSubdir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o750); err != nil {
			return fmt.Errorf("failed to create staging directory: %w", err)
		}
	}

	m.dir = dir
	slog.Info("Created staging directory", logfields.Path(dir), logfields.RunID(m.runID))
	return nil
}

// Path returns the staging directory path.
func (m *Manager) Path() string { return m.dir }

// SnapshotDir returns the snapshot subdirectory path.
func (m *Manager) SnapshotDir() string { return filepath.Join(m.dir, snapshotSubdir) }

// FreshDir returns the fresh-tree subdirectory path.
func (m *Manager) FreshDir() string { return filepath.Join(m.dir, freshSubdir) }

// RemoveFresh deletes the fresh-tree subdirectory. Safe once installation
// has consumed or abandoned it.
func (m *Manager) RemoveFresh() error {
	if m.dir == "" {
		return nil
	}
	if err := os.RemoveAll(m.FreshDir()); err != nil {
		return fmt.Errorf("failed to remove fresh tree: %w", err)
	}
	return nil
}

// RemoveSnapshot deletes the snapshot subdirectory. Callers must only invoke
// this after a successful restore, or when the live workspace still holds
// the authoritative copy of the protected data.
func (m *Manager) RemoveSnapshot() error {
	if m.dir == "" {
		return nil
	}
	if err := os.RemoveAll(m.SnapshotDir()); err != nil {
		return fmt.Errorf("failed to remove snapshot: %w", err)
	}
	return nil
}

// Cleanup removes the entire staging directory.
func (m *Manager) Cleanup() error {
	if m.dir == "" {
		return nil
	}
	if err := os.RemoveAll(m.dir); err != nil {
		return fmt.Errorf("failed to cleanup staging directory: %w", err)
	}
	slog.Info("Cleaned up staging directory", logfields.Path(m.dir))
	m.dir = ""
	return nil
}
