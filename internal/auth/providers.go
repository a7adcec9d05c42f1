package auth

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"git.home.luguber.info/inful/gizmolaunch/internal/config"
)

// noneProvider handles "none" authentication (no authentication).
type noneProvider struct{}

func (noneProvider) Type() config.AuthType { return config.AuthTypeNone }

func (noneProvider) CreateAuth(_ *config.AuthConfig) (transport.AuthMethod, error) {
	return nil, nil
}

func (noneProvider) ValidateConfig(_ *config.AuthConfig) error { return nil }

// tokenProvider handles token-based authentication.
type tokenProvider struct{}

func (tokenProvider) Type() config.AuthType { return config.AuthTypeToken }

func (tokenProvider) CreateAuth(authCfg *config.AuthConfig) (transport.AuthMethod, error) {
	if authCfg.Token == "" {
		return nil, fmt.Errorf("token authentication requires a token")
	}

	// Most Git hosting services accept "token" as the username for token auth.
	return &http.BasicAuth{
		Username: "token",
		Password: authCfg.Token,
	}, nil
}

func (tokenProvider) ValidateConfig(authCfg *config.AuthConfig) error {
	if authCfg.Token == "" {
		return fmt.Errorf("token authentication requires a token")
	}
	return nil
}

// basicProvider handles basic username/password authentication.
type basicProvider struct{}

func (basicProvider) Type() config.AuthType { return config.AuthTypeBasic }

func (basicProvider) CreateAuth(authCfg *config.AuthConfig) (transport.AuthMethod, error) {
	if authCfg.Username == "" || authCfg.Password == "" {
		return nil, fmt.Errorf("basic authentication requires username and password")
	}
	return &http.BasicAuth{
		Username: authCfg.Username,
		Password: authCfg.Password,
	}, nil
}

func (basicProvider) ValidateConfig(authCfg *config.AuthConfig) error {
	if authCfg.Username == "" {
		return fmt.Errorf("basic authentication requires a username")
	}
	if authCfg.Password == "" {
		return fmt.Errorf("basic authentication requires a password")
	}
	return nil
}

// sshProvider handles SSH key authentication.
type sshProvider struct{}

func (sshProvider) Type() config.AuthType { return config.AuthTypeSSH }

func (sshProvider) CreateAuth(authCfg *config.AuthConfig) (transport.AuthMethod, error) {
	keyPath := sshKeyPath(authCfg)
	publicKeys, err := ssh.NewPublicKeysFromFile("git", keyPath, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load SSH key from %s: %w", keyPath, err)
	}
	return publicKeys, nil
}

func (sshProvider) ValidateConfig(authCfg *config.AuthConfig) error {
	keyPath := sshKeyPath(authCfg)
	if _, err := os.Stat(keyPath); os.IsNotExist(err) {
		return fmt.Errorf("SSH key file does not exist: %s", keyPath)
	}
	return nil
}

func sshKeyPath(authCfg *config.AuthConfig) string {
	if authCfg.KeyPath != "" {
		return authCfg.KeyPath
	}
	return filepath.Join(os.Getenv("HOME"), ".ssh", "id_rsa")
}
