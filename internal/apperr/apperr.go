// Package apperr defines the service-wide error taxonomy. Domain
// packages return plain sentinel errors; the workflow layer wraps them
// into an *Error carrying a Kind that the HTTP layer maps to a status
// code.
package apperr

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Kind int

const (
	AuthRequired Kind = iota
	AuthFailed
	PermissionDenied
	ValidationFailed
	NotFound
	AlreadyRevoked
	ConfirmationPending
	Locked
	Expired
	RateLimited
	CleanupUnauthorized
	Internal
)

func (k Kind) String() string {
	switch k {
	case AuthRequired:
		return "auth_required"
	case AuthFailed:
		return "auth_failed"
	case PermissionDenied:
		return "permission_denied"
	case ValidationFailed:
		return "validation_failed"
	case NotFound:
		return "not_found"
	case AlreadyRevoked:
		return "already_revoked"
	case ConfirmationPending:
		return "confirmation_pending"
	case Locked:
		return "locked"
	case Expired:
		return "expired"
	case RateLimited:
		return "rate_limited"
	case CleanupUnauthorized:
		return "cleanup_unauthorized"
	default:
		return "internal"
	}
}

type Error struct {
	Kind Kind
	Msg  string

	// Ref correlates an Internal error with its logged detail. It is
	// the only thing about an internal failure shown to the caller.
	Ref string

	// RetryAfter is set for Locked and RateLimited.
	RetryAfter time.Duration

	// ConfirmationID and ExpiresAt are set for ConfirmationPending so a
	// conflicting request surfaces the existing confirmation instead of
	// a bare conflict.
	ConfirmationID string
	ExpiresAt      time.Time

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.cause }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies an unexpected failure as Internal, minting an opaque
// reference id for support correlation. The cause is kept for logging
// and never rendered to the caller.
func Wrap(msg string, err error) *Error {
	return &Error{Kind: Internal, Msg: msg, Ref: uuid.NewString(), cause: err}
}

// KindOf extracts the taxonomy kind from any error chain, defaulting to
// Internal for unclassified failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// As returns the typed error from a chain, or nil.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	e := As(err)
	return e != nil && e.Kind == kind
}
