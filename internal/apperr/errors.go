package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error so the API layer can map it to a stable
// status code without string matching.
type Kind string

const (
	KindInvalidArgument Kind = "INVALID_ARGUMENT"
	KindAuthFailure     Kind = "AUTH_FAILURE"
	KindTransientAuth   Kind = "TRANSIENT_AUTH"
	KindUpstream        Kind = "UPSTREAM"
	KindMalformedOrder  Kind = "MALFORMED_ORDER"
	KindMalformedMenu   Kind = "MALFORMED_MENU"
	KindInternal        Kind = "INTERNAL"
)

// Error is the error type crossing package boundaries. It carries a kind
// and a human-readable message; Err holds the wrapped cause, if any.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying cause.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind from err, or KindInternal if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
