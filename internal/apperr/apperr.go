// Package apperr defines the closed error-code taxonomy used throughout
// MultiView (§7) and the HTTP status/envelope mapping for it. Internal
// packages return *Error (or a wrapped stdlib error) from business logic;
// only the HTTP layer translates a *Error into a response.
package apperr

import (
	"errors"
	"fmt"
)

// Code is the closed tagged-union of error categories named in §7.
type Code string

const (
	NotFound          Code = "not_found"
	BadLayout         Code = "bad_layout"
	BadGeometry       Code = "bad_geometry"
	SourceUnavailable Code = "source_unavailable"
	EncoderFailed     Code = "encoder_failed"
	StartupTimeout    Code = "startup_timeout"
	Busy              Code = "busy"
	Internal          Code = "internal"
)

// Error wraps a Code with a human-readable message, an optional detail
// string surfaced to API clients, and an optional wrapped cause.
type Error struct {
	Code   Code
	Msg    string
	Detail string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Unwrap makes *Error compatible with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New constructs an *Error with no wrapped cause.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Newf constructs an *Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error that carries cause as its Unwrap target.
func Wrap(code Code, msg string, cause error) *Error {
	return &Error{Code: code, Msg: msg, Cause: cause}
}

// WithDetail returns a copy of e with Detail set, for surfacing additional
// context to API clients without changing the code.
func (e *Error) WithDetail(detail string) *Error {
	cp := *e
	cp.Detail = detail
	return &cp
}

// CodeOf extracts the Code from err if it is (or wraps) an *Error, and
// Internal otherwise.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return Internal
}
