package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/gizmolaunch/internal/config"
	"git.home.luguber.info/inful/gizmolaunch/internal/fetch"
	"git.home.luguber.info/inful/gizmolaunch/internal/history"
	"git.home.luguber.info/inful/gizmolaunch/internal/launch"
	"git.home.luguber.info/inful/gizmolaunch/internal/logfields"
	"git.home.luguber.info/inful/gizmolaunch/internal/metrics"
	"git.home.luguber.info/inful/gizmolaunch/internal/updater"
	"git.home.luguber.info/inful/gizmolaunch/internal/workspace"
)

func runLaunch(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	recorder, stopMetrics := setupMetrics(metricsAddr(CLI.Launch.MetricsAddr, cfg))
	defer stopMetrics()

	ws := workspace.New(cfg.Workspace)

	if !hasCredential(CLI.Launch.Token, cfg) {
		slog.Info("No credential supplied, skipping update")
	} else if err := runUpdateSequence(ctx, cfg, ws, CLI.Launch.Token, recorder); err != nil {
		reportUpdateError(err)
		return fmt.Errorf("update sequence aborted: %w", err)
	}

	preparer := launch.NewPreparer(ws, cfg.Launch)
	if _, err := preparer.WriteSettings(); err != nil {
		return err
	}
	if _, err := preparer.WriteFlags(); err != nil {
		return err
	}
	if !CLI.Launch.SkipModel {
		if _, err := preparer.EnsureModel(ctx, nil); err != nil {
			return err
		}
	}

	cmd := preparer.Command(ctx)
	slog.Info("Starting application", "command", cmd.Args[0], logfields.Path(cmd.Dir))
	return cmd.Run()
}

func runUpdate(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	recorder, stopMetrics := setupMetrics(metricsAddr(CLI.Update.MetricsAddr, cfg))
	defer stopMetrics()

	if !hasCredential(CLI.Update.Token, cfg) {
		return fmt.Errorf("no credential: pass --token or configure remote.auth")
	}

	ws := workspace.New(cfg.Workspace)
	if err := runUpdateSequence(ctx, cfg, ws, CLI.Update.Token, recorder); err != nil {
		reportUpdateError(err)
		return err
	}
	return nil
}

// hasCredential reports whether this invocation carries something the fetch
// can authenticate with: a per-run token flag or a config-declared auth
// method. Updates run only when one is present.
func hasCredential(token string, cfg *config.Config) bool {
	return token != "" || !cfg.Remote.Auth.IsZero()
}

// applyToken folds the per-invocation token into the remote auth config. A
// config-declared method keeps its type with only the token replaced; with
// no configured method the token selects token auth.
func applyToken(remote config.RemoteConfig, token string) config.RemoteConfig {
	if token == "" {
		return remote
	}
	auth := config.AuthConfig{Type: config.AuthTypeToken}
	if remote.Auth != nil {
		auth = *remote.Auth
		if auth.Type == "" || auth.Type == config.AuthTypeNone {
			auth.Type = config.AuthTypeToken
		}
	}
	auth.Token = token
	remote.Auth = &auth
	return remote
}

// runUpdateSequence executes one full update run. The token is held only for
// the duration of the fetch and never logged or persisted.
func runUpdateSequence(ctx context.Context, cfg *config.Config, ws *workspace.Workspace, token string, recorder metrics.Recorder) error {
	remote := applyToken(cfg.Remote, token)

	timeout, err := remote.FetchTimeout()
	if err != nil {
		return err
	}

	path, err := journalPath(cfg, ws)
	if err != nil {
		slog.Warn("Update history unavailable", logfields.Error(err))
	}
	var journalIface updater.Journal
	if path != "" {
		journalIface = history.NewWriter(path)
	}

	m := updater.New(updater.Config{
		Workspace: ws,
		Fetcher:   timeoutFetcher{inner: fetch.NewGitFetcher(remote), timeout: timeout},
		Recorder:  recorder,
		Journal:   journalIface,
	})

	res, err := m.Run(ctx)
	if err != nil {
		return err
	}
	if res.Notes != nil {
		slog.Info("Update summary",
			logfields.Name(res.Notes.Source),
			slog.String("title", res.Notes.Title),
			slog.String("excerpt", res.Notes.Excerpt))
	}
	return nil
}

// timeoutFetcher bounds the fetch step alone. The rest of the run is local
// filesystem work and must never be interrupted by a network deadline.
type timeoutFetcher struct {
	inner   fetch.Fetcher
	timeout time.Duration
}

func (t timeoutFetcher) Fetch(ctx context.Context, dst string) error {
	fetchCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.Fetch(fetchCtx, dst)
}

// journalPath resolves where the update-run journal lives. With no explicit
// path configured it sits under the storage logs subtree, but only when that
// subtree already exists: an update run must not invent storage directories.
// Returns "" when there is nowhere to record history.
func journalPath(cfg *config.Config, ws *workspace.Workspace) (string, error) {
	if cfg.History.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.History.Path), 0o755); err != nil {
			return "", err
		}
		return cfg.History.Path, nil
	}
	logsDir := ws.StoragePath("logs")
	if _, err := os.Stat(logsDir); err != nil {
		slog.Debug("No storage logs directory, skipping update history", logfields.Path(logsDir))
		return "", nil
	}
	return filepath.Join(logsDir, "update-history.db"), nil
}

func runHistory(cfg *config.Config, limit int) error {
	ws := workspace.New(cfg.Workspace)
	path, err := journalPath(cfg, ws)
	if err != nil {
		return err
	}
	if path == "" {
		fmt.Println("no update history recorded")
		return nil
	}
	journal, err := history.Open(path)
	if err != nil {
		return err
	}
	defer journal.Close()

	runs, err := journal.Recent(context.Background(), limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no update runs recorded")
		return nil
	}
	for _, r := range runs {
		line := fmt.Sprintf("%s  %-7s  started %s", r.RunID, r.Outcome, r.StartedAt.Format(time.RFC3339))
		if !r.FinishedAt.IsZero() {
			line += fmt.Sprintf("  finished %s", r.FinishedAt.Format(time.RFC3339))
		}
		if r.Error != "" {
			line += "  error: " + r.Error
		}
		fmt.Println(line)
	}
	return nil
}

// reportUpdateError logs a failed run with enough context to act on: the
// failed state, the retained snapshot path when one exists, and whether the
// credential was rejected.
func reportUpdateError(err error) {
	attrs := []any{logfields.Error(err)}

	var ue *updater.UpdateError
	if errors.As(err, &ue) {
		attrs = append(attrs, logfields.State(string(ue.State)))
		if ue.SnapshotPath != "" {
			attrs = append(attrs, logfields.Path(ue.SnapshotPath))
		}
	}
	slog.Error("Update failed", attrs...)

	var authErr *fetch.AuthError
	var transportErr *fetch.TransportError
	switch {
	case errors.As(err, &authErr):
		slog.Error("The remote rejected the credential; the workspace was not modified")
	case errors.As(err, &transportErr):
		slog.Error("The remote was unreachable; the workspace was not modified")
	}
	if ue != nil && ue.SnapshotPath != "" {
		slog.Error("Protected data snapshot retained", logfields.Path(ue.SnapshotPath))
	}
}

// metricsAddr resolves the metrics listen address, flag over configuration.
func metricsAddr(flag string, cfg *config.Config) string {
	if flag != "" {
		return flag
	}
	return cfg.Metrics.ListenAddr
}

// setupMetrics starts a Prometheus endpoint when an address is configured.
// Without one, the no-op recorder keeps instrumentation calls inert.
func setupMetrics(addr string) (metrics.Recorder, func()) {
	if addr == "" {
		return metrics.NoopRecorder{}, func() {}
	}

	reg := prom.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(reg))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Warn("Metrics server stopped", logfields.Error(err))
		}
	}()
	slog.Info("Serving metrics", slog.String("addr", addr))

	return recorder, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}
