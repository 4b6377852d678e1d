// Package apperr defines the error kinds shared by the matching and
// confirmation services. Every error carries a kind sentinel so callers can
// branch with errors.Is regardless of how deeply it was wrapped.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation error")
	ErrCapacity   = errors.New("capacity error")
	ErrNotFound   = errors.New("not found")
	ErrState      = errors.New("state error")
	ErrTransport  = errors.New("transport error")
	ErrForbidden  = errors.New("forbidden")
)

// Error is a kinded error raised by an operation.
type Error struct {
	Kind error
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func newf(kind error, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func Validation(op, format string, args ...any) error {
	return newf(ErrValidation, op, format, args...)
}

func Capacity(op, format string, args ...any) error {
	return newf(ErrCapacity, op, format, args...)
}

func NotFound(op, format string, args ...any) error {
	return newf(ErrNotFound, op, format, args...)
}

func State(op, format string, args ...any) error {
	return newf(ErrState, op, format, args...)
}

func Forbidden(op, format string, args ...any) error {
	return newf(ErrForbidden, op, format, args...)
}

// Transport wraps a push delivery failure.
func Transport(op string, err error) error {
	return &Error{Kind: ErrTransport, Op: op, Err: err}
}

// KindOf returns the kind sentinel of err, or nil when err is not kinded.
func KindOf(err error) error {
	for _, kind := range []error{ErrValidation, ErrCapacity, ErrNotFound, ErrState, ErrTransport, ErrForbidden} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
