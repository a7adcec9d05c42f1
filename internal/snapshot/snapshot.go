// Package snapshot copies the protected subtrees of a workspace into a
// staging directory before an update and restores them afterwards.
//
// Taking a snapshot never mutates the workspace. Restoring overwrites the
// destination subtree rather than merging into it, so a restore interrupted
// halfway can simply be re-run against the same snapshot.
package snapshot

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/gizmolaunch/internal/fsutil"
	"git.home.luguber.info/inful/gizmolaunch/internal/logfields"
	"git.home.luguber.info/inful/gizmolaunch/internal/workspace"
)

// Store holds a point-in-time copy of protected subtrees.
type Store struct {
	dir string
}

// NewStore creates a snapshot store rooted at dir (normally the staging
// manager's snapshot subdirectory).
func NewStore(dir string) *Store { return &Store{dir: dir} }

// Dir returns the snapshot directory path.
func (s *Store) Dir() string { return s.dir }

// Take copies each protected subtree that currently exists into the
// snapshot directory. A missing subtree is a no-op: on a first-ever run
// there may be nothing to protect yet.
func (s *Store) Take(ws *workspace.Workspace) error {
	for _, rel := range ws.ProtectedRoots() {
		src := filepath.Join(ws.Root(), rel)
		if _, err := os.Stat(src); os.IsNotExist(err) {
			slog.Debug("Protected subtree absent, skipping", logfields.Name(rel))
			continue
		}

		dst := filepath.Join(s.dir, rel)
		if err := fsutil.CopyDir(src, dst); err != nil {
			return fmt.Errorf("failed to snapshot %s: %w", rel, err)
		}
		slog.Info("Snapshotted protected subtree", logfields.Name(rel), logfields.Path(dst))
	}
	return nil
}

// Captured lists the root-relative protected subtrees present in the
// snapshot.
func (s *Store) Captured(ws *workspace.Workspace) []string {
	var captured []string
	for _, rel := range ws.ProtectedRoots() {
		if _, err := os.Stat(filepath.Join(s.dir, rel)); err == nil {
			captured = append(captured, rel)
		}
	}
	return captured
}

// Restore copies every captured subtree back into the workspace, creating
// parent directories as needed. An existing destination is replaced by the
// snapshot's contents, not merged with them.
func (s *Store) Restore(ws *workspace.Workspace) error {
	for _, rel := range s.Captured(ws) {
		src := filepath.Join(s.dir, rel)
		dst := filepath.Join(ws.Root(), rel)

		if err := os.RemoveAll(dst); err != nil {
			return fmt.Errorf("failed to clear destination for %s: %w", rel, err)
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
			return fmt.Errorf("failed to create parent for %s: %w", rel, err)
		}
		if err := fsutil.CopyDir(src, dst); err != nil {
			return fmt.Errorf("failed to restore %s: %w", rel, err)
		}
		slog.Info("Restored protected subtree", logfields.Name(rel), logfields.Path(dst))
	}
	return nil
}
