// Package errs defines the error-kind taxonomy shared by the repository
// layer, the TM and sync engines, and the scheduler: typed error returns
// instead of exceptions-for-control-flow, every boundary annotating the
// offending entity id and kind rather than swallowing or re-stringifying
// an error.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error by cause. It is never swallowed between
// layers: the repository layer returns it, the scheduler translates
// worker panics/errors into it, and the request surface maps it to a
// stable external code.
type Kind string

const (
	InvalidArgument   Kind = "invalid_argument"
	Unauthenticated   Kind = "unauthenticated"
	Forbidden         Kind = "forbidden"
	NotFound          Kind = "not_found"
	Conflict          Kind = "conflict"
	Precondition      Kind = "precondition"
	ResourceExhausted Kind = "resource_exhausted"
	Transient         Kind = "transient"
	Cancelled         Kind = "cancelled"
	Timeout           Kind = "timeout"
	Internal          Kind = "internal"
)

// Error wraps an underlying error with a Kind and the offending entity so
// every layer it passes through can branch on Kind without string
// matching.
type Error struct {
	Kind   Kind
	Entity string // e.g. "file:1234" — empty when not entity-specific
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	if e.Entity != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s (%s): %v", e.Kind, e.Msg, e.Entity, e.Err)
		}
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Msg, e.Entity)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error with no wrapped cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap annotates err with a kind, message and entity id.
func Wrap(kind Kind, entity, msg string, err error) *Error {
	return &Error{Kind: kind, Entity: entity, Msg: msg, Err: err}
}

// Is reports whether err (or anything it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind of err, defaulting to Internal for untyped
// errors so callers always have something to map to an external code.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if err == nil {
		return ""
	}
	return Internal
}
