package mcast

import (
	"errors"
	"fmt"
)

// Kind is the error taxonomy a Status carries (spec section 7).
type Kind int

const (
	// OK indicates success; a Status with Kind OK is not itself an error
	// (Status.Error still returns a non-empty string, and errors.Is(status,
	// nil) behavior is left to callers comparing Kind directly).
	OK Kind = iota
	// InvalidArgument indicates a caller-supplied argument was malformed.
	InvalidArgument
	// NotFound indicates a handle refers to a service that no longer
	// exists, or is still in Created.
	NotFound
	// Failed indicates a local failure: allocation, kernel error at init,
	// or another condition with no more specific Kind.
	Failed
	// Interrupt indicates a cooperative wait was terminated by something
	// other than the requested event class.
	Interrupt
	// Eof is reserved for the I/O collaborator; the core only forwards it.
	Eof
	// Again is reserved for the I/O collaborator; the core only forwards it.
	Again
)

// String returns a human-readable name for the Kind.
func (k Kind) String() string {
	switch k {
	case OK:
		return "OK"
	case InvalidArgument:
		return "InvalidArgument"
	case NotFound:
		return "NotFound"
	case Failed:
		return "Failed"
	case Interrupt:
		return "Interrupt"
	case Eof:
		return "Eof"
	case Again:
		return "Again"
	default:
		return "Unknown"
	}
}

// Status is the result type returned by most runtime operations (spec
// section 7). It implements error so it composes with errors.Is/errors.As
// the way the rest of the ecosystem expects, while still letting callers
// switch on Kind directly for the common case.
type Status struct {
	Kind    Kind
	Message string
	cause   error
}

// StatusOK is the zero-allocation success value.
var StatusOK = Status{Kind: OK}

// NewStatus builds a Status of the given Kind with a message.
func NewStatus(kind Kind, message string) Status {
	return Status{Kind: kind, Message: message}
}

// WrapStatus builds a Status of the given Kind carrying cause as its
// Unwrap target, mirroring the teacher's WrapError helper.
func WrapStatus(kind Kind, message string, cause error) Status {
	return Status{Kind: kind, Message: message, cause: cause}
}

// Ok reports whether the status represents success.
func (s Status) Ok() bool { return s.Kind == OK }

// Error implements the error interface. A Status with Kind OK still
// produces a non-empty string so accidental use as a bare error is visible
// in logs, but callers should prefer checking Ok()/Kind.
func (s Status) Error() string {
	if s.Message == "" {
		return s.Kind.String()
	}
	return fmt.Sprintf("%s: %s", s.Kind, s.Message)
}

// Unwrap returns the underlying cause for use with errors.Is and errors.As.
func (s Status) Unwrap() error {
	return s.cause
}

// Is reports whether target is a Status with the same Kind, enabling
// errors.Is(err, mcast.NewStatus(mcast.NotFound, "")) style checks.
func (s Status) Is(target error) bool {
	var other Status
	if errors.As(target, &other) {
		return other.Kind == s.Kind
	}
	return false
}

// WrapError wraps an error with a message, preserving the cause chain. Kept
// for parity with the teacher's error module, used by components that deal
// in plain errors rather than Status (e.g. the reactor's syscall paths).
func WrapError(message string, cause error) error {
	return fmt.Errorf("%s: %w", message, cause)
}
