package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
)

// AuthError reports that the remote rejected the supplied credential.
type AuthError struct {
	URL string
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("authentication failed for %s: %v", e.URL, e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// TransportError reports that the remote could not be reached or the
// transfer did not complete (network failure, timeout, missing repository).
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport failure for %s: %v", e.URL, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// classifyFetchError wraps go-git clone failures into the two error classes
// the update manager distinguishes. Anything that is not clearly an
// authentication rejection counts as a transport failure.
func classifyFetchError(url string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, transport.ErrAuthenticationRequired) || errors.Is(err, transport.ErrAuthorizationFailed) {
		return &AuthError{URL: url, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &TransportError{URL: url, Err: err}
	}

	l := strings.ToLower(err.Error())
	if strings.Contains(l, "authentication") || strings.Contains(l, "auth fail") ||
		strings.Contains(l, "invalid username or password") || strings.Contains(l, "authorization") {
		return &AuthError{URL: url, Err: err}
	}
	return &TransportError{URL: url, Err: err}
}
