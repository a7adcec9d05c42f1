// Package fetch retrieves a complete fresh copy of the application code
// tree from the configured remote source.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"git.home.luguber.info/inful/gizmolaunch/internal/auth"
	"git.home.luguber.info/inful/gizmolaunch/internal/config"
	"git.home.luguber.info/inful/gizmolaunch/internal/logfields"
)

// Fetcher produces a complete code tree at the destination path.
type Fetcher interface {
	Fetch(ctx context.Context, dst string) error
}

// GitFetcher fetches the code tree by cloning a git remote.
type GitFetcher struct {
	remote config.RemoteConfig
}

// NewGitFetcher creates a fetcher for the configured remote.
func NewGitFetcher(remote config.RemoteConfig) *GitFetcher {
	return &GitFetcher{remote: remote}
}

// Fetch clones the remote into dst. The caller owns the context deadline;
// an expired deadline is reported as a TransportError. The credential is
// used for the clone only and never logged.
func (f *GitFetcher) Fetch(ctx context.Context, dst string) error {
	slog.Debug("Fetching application code",
		logfields.URL(f.remote.URL),
		logfields.Branch(f.remote.Branch),
		logfields.Path(dst))

	if err := os.RemoveAll(dst); err != nil {
		return fmt.Errorf("failed to clear fetch destination: %w", err)
	}

	cloneOptions := &git.CloneOptions{URL: f.remote.URL}
	if f.remote.Branch != "" {
		cloneOptions.ReferenceName = plumbing.ReferenceName("refs/heads/" + f.remote.Branch)
		cloneOptions.SingleBranch = true
	}
	if f.remote.Depth > 0 {
		cloneOptions.Depth = f.remote.Depth
	}
	if !f.remote.Auth.IsZero() {
		authMethod, err := auth.CreateAuth(f.remote.Auth)
		if err != nil {
			return &AuthError{URL: f.remote.URL, Err: err}
		}
		cloneOptions.Auth = authMethod
	}

	repository, err := git.PlainCloneContext(ctx, dst, false, cloneOptions)
	if err != nil {
		return classifyFetchError(f.remote.URL, err)
	}

	if ref, herr := repository.Head(); herr == nil {
		slog.Info("Fetched application code",
			logfields.URL(f.remote.URL),
			slog.String("commit", ref.Hash().String()[:8]),
			logfields.Path(dst))
	} else {
		slog.Info("Fetched application code", logfields.URL(f.remote.URL), logfields.Path(dst))
	}
	return nil
}
