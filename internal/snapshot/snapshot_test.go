package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/gizmolaunch/internal/config"
	"git.home.luguber.info/inful/gizmolaunch/internal/workspace"
)

func newTestWorkspace(t *testing.T) *workspace.Workspace {
	t.Helper()
	return workspace.New(config.WorkspaceConfig{
		Root:           t.TempDir(),
		UserDataDir:    "user-data",
		StorageDir:     "storage",
		StorageSubdirs: []string{"models", "cache", "logs"},
	})
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestTakeAndRestore(t *testing.T) {
	ws := newTestWorkspace(t)
	store := NewStore(t.TempDir())

	writeFile(t, filepath.Join(ws.Root(), "user-data", "keys.txt"), "abc")
	writeFile(t, filepath.Join(ws.Root(), "storage", "models", "m.gguf"), "weights")

	require.NoError(t, store.Take(ws))
	assert.ElementsMatch(t, []string{
		"user-data",
		filepath.Join("storage", "models"),
	}, store.Captured(ws))

	// Simulate an update wiping the workspace data.
	require.NoError(t, os.RemoveAll(filepath.Join(ws.Root(), "user-data")))
	require.NoError(t, os.RemoveAll(filepath.Join(ws.Root(), "storage")))

	require.NoError(t, store.Restore(ws))

	data, err := os.ReadFile(filepath.Join(ws.Root(), "user-data", "keys.txt"))
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))

	data, err = os.ReadFile(filepath.Join(ws.Root(), "storage", "models", "m.gguf"))
	require.NoError(t, err)
	assert.Equal(t, "weights", string(data))
}

func TestTakeSkipsMissingSubtrees(t *testing.T) {
	ws := newTestWorkspace(t)
	store := NewStore(t.TempDir())

	writeFile(t, filepath.Join(ws.Root(), "user-data", "keys.txt"), "abc")
	// No storage/ at all.

	require.NoError(t, store.Take(ws))
	assert.Equal(t, []string{"user-data"}, store.Captured(ws))

	require.NoError(t, store.Restore(ws))

	// Restore must not invent storage directories that never existed.
	_, err := os.Stat(filepath.Join(ws.Root(), "storage"))
	assert.True(t, os.IsNotExist(err))
}

func TestTakeDoesNotMutateWorkspace(t *testing.T) {
	ws := newTestWorkspace(t)
	store := NewStore(t.TempDir())

	keys := filepath.Join(ws.Root(), "user-data", "keys.txt")
	writeFile(t, keys, "abc")

	before, err := os.ReadFile(keys)
	require.NoError(t, err)

	require.NoError(t, store.Take(ws))

	after, err := os.ReadFile(keys)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRestoreOverwritesPartialDestination(t *testing.T) {
	ws := newTestWorkspace(t)
	store := NewStore(t.TempDir())

	writeFile(t, filepath.Join(ws.Root(), "user-data", "keys.txt"), "abc")
	require.NoError(t, store.Take(ws))

	// A crashed prior restore left a partial, divergent destination.
	require.NoError(t, os.RemoveAll(filepath.Join(ws.Root(), "user-data")))
	writeFile(t, filepath.Join(ws.Root(), "user-data", "stray.txt"), "junk")

	require.NoError(t, store.Restore(ws))

	data, err := os.ReadFile(filepath.Join(ws.Root(), "user-data", "keys.txt"))
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))

	// Overwrite, not merge: the stray file is gone.
	_, err = os.Stat(filepath.Join(ws.Root(), "user-data", "stray.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestRestoreIsIdempotent(t *testing.T) {
	ws := newTestWorkspace(t)
	store := NewStore(t.TempDir())

	writeFile(t, filepath.Join(ws.Root(), "user-data", "keys.txt"), "abc")
	require.NoError(t, store.Take(ws))

	require.NoError(t, store.Restore(ws))
	require.NoError(t, store.Restore(ws))

	data, err := os.ReadFile(filepath.Join(ws.Root(), "user-data", "keys.txt"))
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))
}
