// Package errs defines the error taxonomy surfaced across the command
// surface (§7): a fixed set of kinds callers can switch on with KindOf (or
// match with errors.Is against an *Error of the same Kind),
// plus the background-error sink the teacher's ErrorHandler interface
// generalizes into a structured-logging hook.
package errs

import (
	"errors"
	"fmt"
)

// Kind is one of the six error kinds the command surface reports.
type Kind string

const (
	// NotFound: referenced id does not identify an entity of the required kind.
	NotFound Kind = "not_found"
	// WrongKind: an id refers to the wrong side of the source/target dichotomy.
	WrongKind Kind = "wrong_kind"
	// InvalidArgument: out-of-range value or malformed pattern.
	InvalidArgument Kind = "invalid_argument"
	// AlreadyInState: idempotent mutation; callers may treat this as success.
	AlreadyInState Kind = "already_in_state"
	// HostUnavailable: a ready-signal await failed or a host message could
	// not be sent. The operation is reported failed and state is not marked
	// dirty.
	HostUnavailable Kind = "host_unavailable"
	// InternalInvariant: an invariant from §3 was found violated.
	InternalInvariant Kind = "internal_invariant"
)

// Error is the concrete error type returned by every fallible core
// operation. It carries a Kind so transports can map it to their own wire
// representation without string-sniffing messages.
type Error struct {
	Kind Kind
	Op   string // the command or operation that failed, e.g. "SetRoute"
	Msg  string
	Err  error // wrapped cause, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is supports errors.Is(err, errs.New(errs.NotFound, op, msg)) style checks:
// two *Error values match when their Kinds are equal, whatever their Op, Msg
// or wrapped cause.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New builds an *Error with the given kind, operation name, and message.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap builds an *Error that carries an underlying cause.
func Wrap(kind Kind, op, msg string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: cause}
}

// KindOf extracts the Kind from err, if err is (or wraps) an *Error. The
// second return is false for any other error, including nil.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsAlreadyInState is a convenience a caller can use to decide whether to
// swallow an error as a no-op success, per §7's propagation policy.
func IsAlreadyInState(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == AlreadyInState
}

// BackgroundSink receives errors from background tasks (metering overflow,
// device debounce, persistence) that must log-and-continue rather than fail
// a command, generalizing the teacher's ErrorHandler interface.
type BackgroundSink interface {
	HandleBackgroundError(source string, err error)
}
