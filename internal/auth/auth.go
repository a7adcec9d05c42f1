// Package auth turns credential configuration into go-git transport
// authentication. Each supported method (none, token, basic, ssh) has its
// own provider; a registry dispatches on the configured type.
package auth

import (
	"fmt"

	"github.com/go-git/go-git/v5/plumbing/transport"

	"git.home.luguber.info/inful/gizmolaunch/internal/config"
)

// Provider creates a transport.AuthMethod for one authentication type.
type Provider interface {
	// Type returns the authentication type this provider handles.
	Type() config.AuthType

	// CreateAuth creates a transport.AuthMethod from the given configuration.
	// Returns nil, nil for no authentication (AuthTypeNone).
	CreateAuth(authCfg *config.AuthConfig) (transport.AuthMethod, error)

	// ValidateConfig validates the configuration for this provider.
	ValidateConfig(authCfg *config.AuthConfig) error
}

// Registry manages the collection of available auth providers.
type Registry struct {
	providers map[config.AuthType]Provider
}

// NewRegistry creates a registry with the standard providers.
func NewRegistry() *Registry {
	r := &Registry{providers: make(map[config.AuthType]Provider)}
	r.Register(noneProvider{})
	r.Register(tokenProvider{})
	r.Register(basicProvider{})
	r.Register(sshProvider{})
	return r
}

// Register adds a provider to the registry.
func (r *Registry) Register(p Provider) { r.providers[p.Type()] = p }

// CreateAuth creates authentication using the appropriate provider.
func (r *Registry) CreateAuth(authCfg *config.AuthConfig) (transport.AuthMethod, error) {
	if authCfg == nil {
		authCfg = &config.AuthConfig{Type: config.AuthTypeNone}
	}

	provider, exists := r.providers[authCfg.Type]
	if !exists {
		return nil, &Error{Type: authCfg.Type, Message: "unsupported authentication type"}
	}

	if err := provider.ValidateConfig(authCfg); err != nil {
		return nil, &Error{Type: authCfg.Type, Message: "configuration validation failed", Cause: err}
	}

	auth, err := provider.CreateAuth(authCfg)
	if err != nil {
		return nil, &Error{Type: authCfg.Type, Message: "failed to create authentication", Cause: err}
	}
	return auth, nil
}

// DefaultRegistry is a package-level instance for convenience.
var DefaultRegistry = NewRegistry()

// CreateAuth is a convenience function that uses the default registry.
func CreateAuth(authCfg *config.AuthConfig) (transport.AuthMethod, error) {
	return DefaultRegistry.CreateAuth(authCfg)
}

// Error represents an authentication-setup error.
type Error struct {
	Type    config.AuthType
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("auth error (%s): %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("auth error (%s): %s", e.Type, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Cause }
