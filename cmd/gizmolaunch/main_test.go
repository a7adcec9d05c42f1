package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/gizmolaunch/internal/config"
	"git.home.luguber.info/inful/gizmolaunch/internal/updater"
	"git.home.luguber.info/inful/gizmolaunch/internal/workspace"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	path := filepath.Join(t.TempDir(), "gizmolaunch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workspace:\n  root: "+root+"\n"), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func TestApplyLaunchOverrides(t *testing.T) {
	cfg := testConfig(t)
	require.Equal(t, config.ComputeModeGPU, cfg.Launch.ComputeMode)

	CLI.Launch.Port = 8080
	CLI.Launch.CPU = true
	CLI.Launch.Share = true
	t.Cleanup(func() {
		CLI.Launch.Port = 0
		CLI.Launch.CPU = false
		CLI.Launch.Share = false
	})

	applyLaunchOverrides(cfg)
	assert.Equal(t, 8080, cfg.Launch.Port)
	assert.Equal(t, config.ComputeModeCPU, cfg.Launch.ComputeMode)
	assert.True(t, cfg.Launch.Share)
}

func TestApplyLaunchOverridesNoFlags(t *testing.T) {
	cfg := testConfig(t)
	port := cfg.Launch.Port

	applyLaunchOverrides(cfg)
	assert.Equal(t, port, cfg.Launch.Port)
	assert.Equal(t, config.ComputeModeGPU, cfg.Launch.ComputeMode)
}

func TestJournalPathSkipsWithoutStorage(t *testing.T) {
	cfg := testConfig(t)
	ws := workspace.New(cfg.Workspace)

	path, err := journalPath(cfg, ws)
	require.NoError(t, err)
	assert.Empty(t, path, "journal must not invent storage directories")

	_, statErr := os.Stat(filepath.Join(cfg.Workspace.Root, "storage"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestJournalPathUsesExistingStorage(t *testing.T) {
	cfg := testConfig(t)
	ws := workspace.New(cfg.Workspace)
	require.NoError(t, os.MkdirAll(ws.StoragePath("logs"), 0o755))

	path, err := journalPath(cfg, ws)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(ws.StoragePath("logs"), "update-history.db"), path)
}

func TestJournalPathExplicit(t *testing.T) {
	cfg := testConfig(t)
	cfg.History.Path = filepath.Join(t.TempDir(), "journal", "runs.db")
	ws := workspace.New(cfg.Workspace)

	path, err := journalPath(cfg, ws)
	require.NoError(t, err)
	assert.Equal(t, cfg.History.Path, path)
	assert.DirExists(t, filepath.Dir(cfg.History.Path))
}

func TestHasCredential(t *testing.T) {
	cfg := testConfig(t)
	assert.False(t, hasCredential("", cfg))
	assert.True(t, hasCredential("sekrit", cfg))

	cfg.Remote.URL = "https://git.example.com/gizmo/app.git"
	cfg.Remote.Auth = &config.AuthConfig{Type: config.AuthTypeSSH, KeyPath: "/home/op/.ssh/id_ed25519"}
	assert.True(t, hasCredential("", cfg), "configured auth alone must trigger updates")

	cfg.Remote.Auth = &config.AuthConfig{Type: config.AuthTypeNone}
	assert.False(t, hasCredential("", cfg))
}

func TestApplyTokenDefaultsToTokenAuth(t *testing.T) {
	remote := config.RemoteConfig{URL: "https://git.example.com/gizmo/app.git"}

	got := applyToken(remote, "sekrit")
	require.NotNil(t, got.Auth)
	assert.Equal(t, config.AuthTypeToken, got.Auth.Type)
	assert.Equal(t, "sekrit", got.Auth.Token)
	assert.Nil(t, remote.Auth, "input remote must not be mutated")
}

func TestApplyTokenKeepsConfiguredMethod(t *testing.T) {
	remote := config.RemoteConfig{
		URL:  "https://git.example.com/gizmo/app.git",
		Auth: &config.AuthConfig{Type: config.AuthTypeSSH, KeyPath: "/home/op/.ssh/id_ed25519"},
	}

	got := applyToken(remote, "sekrit")
	require.NotNil(t, got.Auth)
	assert.Equal(t, config.AuthTypeSSH, got.Auth.Type)
	assert.Equal(t, "/home/op/.ssh/id_ed25519", got.Auth.KeyPath)
	assert.Equal(t, "sekrit", got.Auth.Token)
}

func TestApplyTokenEmptyLeavesRemoteUnchanged(t *testing.T) {
	remote := config.RemoteConfig{
		URL:  "https://git.example.com/gizmo/app.git",
		Auth: &config.AuthConfig{Type: config.AuthTypeBasic, Username: "op", Password: "pw"},
	}

	got := applyToken(remote, "")
	assert.Equal(t, remote, got)
}

func TestLaunchWithoutCredentialLeavesCodeUntouched(t *testing.T) {
	cfg := testConfig(t)
	serverPy := filepath.Join(cfg.Workspace.Root, "server.py")
	require.NoError(t, os.WriteFile(serverPy, []byte("# service entrypoint\n"), 0o644))

	CLI.Launch.Token = ""
	CLI.Launch.SkipModel = true
	t.Cleanup(func() { CLI.Launch.SkipModel = false })

	// The process exit status does not matter here; the assertion is that
	// no update touched the installed code.
	_ = runLaunch(cfg)

	data, err := os.ReadFile(serverPy)
	require.NoError(t, err)
	assert.Equal(t, "# service entrypoint\n", string(data))

	entries, err := os.ReadDir(cfg.Workspace.Root)
	require.NoError(t, err)
	for _, ent := range entries {
		assert.False(t, strings.HasPrefix(ent.Name(), workspace.StagingPrefix),
			"staging directory %s must not appear without a credential", ent.Name())
	}
	_, statErr := os.Stat(filepath.Join(cfg.Workspace.Root, "storage"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestLaunchUpdateFailurePropagatesTypedError(t *testing.T) {
	cfg := testConfig(t)
	cfg.Remote.URL = filepath.Join(t.TempDir(), "missing.git")
	serverPy := filepath.Join(cfg.Workspace.Root, "server.py")
	require.NoError(t, os.WriteFile(serverPy, []byte("# service entrypoint\n"), 0o644))

	CLI.Launch.Token = "sekrit"
	t.Cleanup(func() { CLI.Launch.Token = "" })

	err := runLaunch(cfg)
	require.Error(t, err)

	var ue *updater.UpdateError
	require.True(t, errors.As(err, &ue), "typed update error must survive wrapping: %v", err)
	assert.Equal(t, updater.StateFetching, ue.State)

	assert.FileExists(t, serverPy)
	_, statErr := os.Stat(filepath.Join(cfg.Workspace.Root, "user-data", "settings.yaml"))
	assert.True(t, os.IsNotExist(statErr), "service prep must not run after a failed update")
}

func TestReportUpdateErrorDoesNotPanic(t *testing.T) {
	reportUpdateError(errors.New("plain"))
	reportUpdateError(&updater.UpdateError{
		State:        updater.StateInstalling,
		SnapshotPath: "/tmp/snap",
		Err:          errors.New("disk full"),
	})
}

func TestSetupMetricsWithoutAddress(t *testing.T) {
	recorder, stop := setupMetrics("")
	defer stop()
	require.NotNil(t, recorder)
	recorder.IncRunOutcome("done")
}

func TestTimeoutFetcherPropagatesResult(t *testing.T) {
	sentinel := errors.New("fetch failed")
	tf := timeoutFetcher{inner: fetcherFunc(func(ctx context.Context, dst string) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return sentinel
	}), timeout: 0}

	// A zero timeout expires immediately; the inner fetcher sees the
	// cancelled context.
	err := tf.Fetch(context.Background(), t.TempDir())
	assert.Error(t, err)
}

type fetcherFunc func(ctx context.Context, dst string) error

func (f fetcherFunc) Fetch(ctx context.Context, dst string) error { return f(ctx, dst) }
