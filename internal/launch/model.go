package launch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/gizmolaunch/internal/logfields"
	"git.home.luguber.info/inful/gizmolaunch/internal/retry"
)

// EnsureModel makes sure the configured model file exists in the models
// storage directory, downloading it when missing or undersized. Returns the
// model path, or "" when no model is configured.
//
// Files smaller than MinBytes are treated as truncated downloads and
// replaced. The download goes through a .partial file so an interrupted
// transfer never masquerades as a complete model.
func (p *Preparer) EnsureModel(ctx context.Context, client *http.Client) (string, error) {
	m := p.cfg.Model
	if m.File == "" {
		return "", nil
	}
	if client == nil {
		client = http.DefaultClient
	}

	modelsDir := p.ws.StoragePath("models")
	if err := os.MkdirAll(modelsDir, 0o755); err != nil {
		return "", fmt.Errorf("create models dir: %w", err)
	}
	modelPath := filepath.Join(modelsDir, m.File)

	if info, err := os.Stat(modelPath); err == nil && info.Size() >= m.MinBytes {
		slog.Debug("model already present", logfields.Path(modelPath))
		return modelPath, nil
	}

	srcURL := fmt.Sprintf("https://huggingface.co/%s/resolve/main/%s?download=true",
		m.RepoURL, url.PathEscape(m.File))
	slog.Info("downloading model", logfields.URL(srcURL), logfields.Name(m.File))

	// Transient download failures are retried. Each failed attempt removes
	// its partial file, so a truncated download never survives.
	err := retry.DefaultPolicy().Do(ctx, func() error {
		return p.download(ctx, client, srcURL, modelPath, m.MinBytes)
	})
	if err != nil {
		return "", err
	}
	return modelPath, nil
}

func (p *Preparer) download(ctx context.Context, client *http.Client, srcURL, dst string, minBytes int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return fmt.Errorf("build model request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download model: unexpected status %s", resp.Status)
	}

	partial := dst + ".partial"
	f, err := os.Create(partial)
	if err != nil {
		return fmt.Errorf("create partial file: %w", err)
	}

	n, copyErr := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(partial)
		if copyErr != nil {
			return fmt.Errorf("download model: %w", copyErr)
		}
		return fmt.Errorf("close partial file: %w", closeErr)
	}
	if n < minBytes {
		_ = os.Remove(partial)
		return fmt.Errorf("download model: got %d bytes, expected at least %d", n, minBytes)
	}
	if err := os.Rename(partial, dst); err != nil {
		_ = os.Remove(partial)
		return fmt.Errorf("finalize model file: %w", err)
	}
	slog.Info("model downloaded", logfields.Path(dst))
	return nil
}
