package errcodes

import (
	"errors"
	"net/http"
)

// Kind classifies a failure for the HTTP boundary
type Kind string

const (
	KindUnauthenticated   Kind = "unauthenticated"
	KindBadRequest        Kind = "bad_request"
	KindUpstreamFailure   Kind = "upstream_failure"
	KindInternalException Kind = "internal_exception"
)

// Error is a failure that knows how it should be rendered over HTTP.
// Plain errors are written as text/plain, all others as {"error": Message}.
type Error struct {
	HTTPCode int
	Kind     Kind
	Message  string
	Plain    bool
	// Cause is the underlying error, if any. It is logged but never rendered.
	Cause error
}

func (err *Error) Error() string {
	return err.Message
}

func (err *Error) Unwrap() error {
	return err.Cause
}

// Unauthenticated returns a 401 error
func Unauthenticated(message string) error {
	return &Error{
		HTTPCode: http.StatusUnauthorized,
		Kind:     KindUnauthenticated,
		Message:  message,
	}
}

// BadRequest returns a 400 error rendered as plain text
func BadRequest(message string) error {
	return &Error{
		HTTPCode: http.StatusBadRequest,
		Kind:     KindBadRequest,
		Message:  message,
		Plain:    true,
	}
}

// UpstreamFailure returns a 500 error for failures reported by the sync tool.
func UpstreamFailure(message string, cause error) error {
	return &Error{
		HTTPCode: http.StatusInternalServerError,
		Kind:     KindUpstreamFailure,
		Message:  message,
		Cause:    cause,
	}
}

// UpstreamFailureText is UpstreamFailure rendered as plain text.
func UpstreamFailureText(message string, cause error) error {
	return &Error{
		HTTPCode: http.StatusInternalServerError,
		Kind:     KindUpstreamFailure,
		Message:  message,
		Plain:    true,
		Cause:    cause,
	}
}

// Internal wraps any other error as a 500 that surfaces the error text.
func Internal(cause error) error {
	return &Error{
		HTTPCode: http.StatusInternalServerError,
		Kind:     KindInternalException,
		Message:  cause.Error(),
		Cause:    cause,
	}
}

// From returns err as an *Error, wrapping unknown errors with Internal.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	e, _ = Internal(err).(*Error)
	return e
}
