package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/gizmolaunch/internal/config"
	"git.home.luguber.info/inful/gizmolaunch/internal/fsutil"
	"git.home.luguber.info/inful/gizmolaunch/internal/logfields"
)

// StagingPrefix marks per-run staging directories created under the
// workspace root. Purge skips any entry carrying it.
const StagingPrefix = ".gizmolaunch-"

// Workspace is the installation root directory.
type Workspace struct {
	root           string
	userDataDir    string
	storageDir     string
	storageSubdirs []string
	preserve       []string
}

// New builds a Workspace from configuration.
func New(cfg config.WorkspaceConfig) *Workspace {
	return &Workspace{
		root:           cfg.Root,
		userDataDir:    cfg.UserDataDir,
		storageDir:     cfg.StorageDir,
		storageSubdirs: cfg.StorageSubdirs,
		preserve:       cfg.Preserve,
	}
}

// Root returns the workspace root path.
func (w *Workspace) Root() string { return w.root }

// ProtectedRoots returns the root-relative paths of all protected subtrees:
// the user-data directory and each storage subtree. Subtrees are listed
// whether or not they exist yet; callers skip the missing ones.
func (w *Workspace) ProtectedRoots() []string {
	roots := []string{w.userDataDir}
	for _, sub := range w.storageSubdirs {
		roots = append(roots, filepath.Join(w.storageDir, sub))
	}
	return roots
}

// UserDataPath returns the absolute path of the user-data area.
func (w *Workspace) UserDataPath() string { return filepath.Join(w.root, w.userDataDir) }

// StoragePath returns the absolute path of a storage subtree.
func (w *Workspace) StoragePath(sub string) string {
	return filepath.Join(w.root, w.storageDir, sub)
}

// topLevelProtected returns the top-level directory names that must never be
// purged: the user-data dir and the storage dir (the subtrees live under it).
func (w *Workspace) topLevelProtected() map[string]struct{} {
	return map[string]struct{}{
		w.userDataDir: {},
		w.storageDir:  {},
	}
}

// Purge deletes every top-level entry except protected roots, preserved
// entries and staging directories. This is the only irreversible destructive
// operation in an update; callers must guarantee a replacement tree exists
// before invoking it.
func (w *Workspace) Purge() error {
	protected := w.topLevelProtected()

	entries, err := os.ReadDir(w.root)
	if err != nil {
		return fmt.Errorf("failed to read workspace root: %w", err)
	}

	for _, ent := range entries {
		name := ent.Name()
		if _, ok := protected[name]; ok {
			continue
		}
		if strings.HasPrefix(name, StagingPrefix) {
			continue
		}
		if w.isPreserved(name) {
			continue
		}
		slog.Debug("Purging workspace entry", logfields.Name(name))
		if err := os.RemoveAll(filepath.Join(w.root, name)); err != nil {
			return fmt.Errorf("failed to remove %s: %w", name, err)
		}
	}
	return nil
}

func (w *Workspace) isPreserved(name string) bool {
	for _, pat := range w.preserve {
		if pat == "" {
			continue
		}
		if strings.EqualFold(pat, name) {
			return true
		}
		if ok, _ := filepath.Match(pat, name); ok {
			return true
		}
	}
	return false
}

// InstallFrom copies every top-level entry of the fetched code tree into the
// workspace root. Version-control metadata of the staging clone stays behind.
func (w *Workspace) InstallFrom(freshTree string) error {
	entries, err := os.ReadDir(freshTree)
	if err != nil {
		return fmt.Errorf("failed to read fresh tree: %w", err)
	}

	for _, ent := range entries {
		name := ent.Name()
		if name == ".git" {
			continue
		}
		src := filepath.Join(freshTree, name)
		dst := filepath.Join(w.root, name)

		if ent.IsDir() {
			err = fsutil.CopyDir(src, dst)
		} else {
			err = fsutil.CopyFile(src, dst)
		}
		if err != nil {
			return fmt.Errorf("failed to install %s: %w", name, err)
		}
	}
	return nil
}

// Entries lists the top-level entry names of the workspace root.
func (w *Workspace) Entries() ([]string, error) {
	dirEntries, err := os.ReadDir(w.root)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(dirEntries))
	for _, ent := range dirEntries {
		names = append(names, ent.Name())
	}
	return names, nil
}
