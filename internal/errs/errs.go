// Package errs defines the classified error carried by every pipeline stage.
//
// A stage never returns a bare error to its caller: failures are wrapped in
// *Error with a Kind, and the boundary (CLI, harness) reads the Kind back with
// KindOf. Error kinds are never reconstructed from message text.
package errs

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindInvalidInput      Kind = "invalid_input"
	KindUnsupportedSource Kind = "unsupported_source"
	KindUnsupportedFormat Kind = "unsupported_format"
	KindConnection        Kind = "connection_failure"
	KindIO                Kind = "io_failure"
	KindParse             Kind = "parse_failure"
	KindTimeout           Kind = "timeout"
	KindCancelled         Kind = "cancelled"
	KindInternal          Kind = "internal"
)

// Kinds lists every kind in a stable order.
var Kinds = []Kind{
	KindInvalidInput,
	KindUnsupportedSource,
	KindUnsupportedFormat,
	KindConnection,
	KindIO,
	KindParse,
	KindTimeout,
	KindCancelled,
	KindInternal,
}

// Error is a classified pipeline error.
type Error struct {
	// Kind identifies the error category.
	Kind Kind

	// Op names the operation that failed, e.g. "build" or "compare".
	Op string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error of the given kind.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind. If err is already classified, its kind is
// kept so the original classification survives re-wrapping.
func Wrap(kind Kind, op string, err error, format string, args ...any) *Error {
	var inner *Error
	if errors.As(err, &inner) {
		kind = inner.Kind
	}
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of err. Context errors map to timeout/cancelled and
// anything unclassified is internal. A nil error has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCancelled
	}
	return KindInternal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// FromContext classifies a context error as timeout or cancelled.
func FromContext(op string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Op: op, Message: "operation timed out", Err: err}
	}
	return &Error{Kind: KindCancelled, Op: op, Message: "operation cancelled", Err: err}
}

// InvalidInput is shorthand for New(KindInvalidInput, ...).
func InvalidInput(op, format string, args ...any) *Error {
	return New(KindInvalidInput, op, format, args...)
}

// Parse is shorthand for New(KindParse, ...).
func Parse(op, format string, args ...any) *Error {
	return New(KindParse, op, format, args...)
}

// Internal is shorthand for New(KindInternal, ...).
func Internal(op, format string, args ...any) *Error {
	return New(KindInternal, op, format, args...)
}
