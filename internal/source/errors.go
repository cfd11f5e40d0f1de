package source

import (
	stderrors "errors"
	"fmt"
	"net"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"

	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/docpipe/internal/pipeline"
)

// Typed failures enabling classification without string parsing upstream.
type AuthError struct {
	Op, URL string
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s auth error for %s: %v", e.Op, e.URL, e.Err)
}
func (e *AuthError) Unwrap() error { return e.Err }

type NotFoundError struct {
	Op, URL string
	Err     error
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s not found %s: %v", e.Op, e.URL, e.Err) }
func (e *NotFoundError) Unwrap() error { return e.Err }

type UnsupportedProtocolError struct {
	Op, URL string
	Err     error
}

func (e *UnsupportedProtocolError) Error() string {
	return fmt.Sprintf("%s unsupported protocol %s: %v", e.Op, e.URL, e.Err)
}
func (e *UnsupportedProtocolError) Unwrap() error { return e.Err }

type NetworkError struct {
	Op, URL string
	Err     error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s network error for %s: %v", e.Op, e.URL, e.Err)
}
func (e *NetworkError) Unwrap() error { return e.Err }

// TargetOccupiedError reports a checkout target that already has content.
type TargetOccupiedError struct{ Path string }

func (e *TargetOccupiedError) Error() string {
	return fmt.Sprintf("target path %s exists and is not empty", e.Path)
}

// classifyGitError maps a go-git failure onto a typed error, then onto a
// ClassifiedError whose cause matches pipeline.ErrSourceUnavailable.
func classifyGitError(op, url string, err error) error {
	typed := typedGitError(op, url, err)
	cause := fmt.Errorf("%w: %w", pipeline.ErrSourceUnavailable, typed)

	var b *errors.ErrorBuilder
	switch typed.(type) {
	case *AuthError:
		b = errors.AuthError("authentication rejected by remote")
	case *NetworkError:
		b = errors.NetworkError("remote unreachable").Fatal()
	case *NotFoundError:
		b = errors.SourceError("repository not found")
	case *UnsupportedProtocolError:
		b = errors.SourceError("unsupported repository protocol")
	default:
		b = errors.SourceError(op + " failed")
	}
	return b.WithCause(cause).WithContext("url", url).WithContext("op", op).Build()
}

func typedGitError(op, url string, err error) error {
	switch {
	case stderrors.Is(err, transport.ErrAuthenticationRequired),
		stderrors.Is(err, transport.ErrAuthorizationFailed),
		stderrors.Is(err, transport.ErrInvalidAuthMethod):
		return &AuthError{Op: op, URL: url, Err: err}
	case stderrors.Is(err, transport.ErrRepositoryNotFound):
		return &NotFoundError{Op: op, URL: url, Err: err}
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return &NetworkError{Op: op, URL: url, Err: err}
	}

	l := strings.ToLower(err.Error())
	switch {
	case strings.Contains(l, "authentication") || strings.Contains(l, "auth fail") || strings.Contains(l, "invalid username or password"):
		return &AuthError{Op: op, URL: url, Err: err}
	case strings.Contains(l, "not found") || strings.Contains(l, "repository does not exist"):
		return &NotFoundError{Op: op, URL: url, Err: err}
	case strings.Contains(l, "unsupported scheme") || strings.Contains(l, "unsupported protocol") || strings.Contains(l, "protocol not supported"):
		return &UnsupportedProtocolError{Op: op, URL: url, Err: err}
	case strings.Contains(l, "connection refused") || strings.Contains(l, "no such host") ||
		strings.Contains(l, "timeout") || strings.Contains(l, "network is unreachable") || strings.Contains(l, "connection reset"):
		return &NetworkError{Op: op, URL: url, Err: err}
	}
	return err
}

// IsRetryable reports whether err came from a transient network failure.
func IsRetryable(err error) bool {
	var ne *NetworkError
	return stderrors.As(err, &ne)
}
