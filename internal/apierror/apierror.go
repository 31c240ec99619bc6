// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package apierror defines the error taxonomy of the API and the echo
// error handler that renders it.
package apierror

import (
	"fmt"
	"net/http"
)

// Error is an error with an HTTP status. Operational errors are expected
// failures whose message is safe to show to clients.
type Error struct {
	Status      int
	Message     string
	Operational bool
	Err         error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return http.StatusText(e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

// StatusClass returns "fail" for client errors and "error" otherwise.
func (e *Error) StatusClass() string {
	if e.Status >= 400 && e.Status < 500 {
		return "fail"
	}
	return "error"
}

// New creates an operational error.
func New(status int, message string) *Error {
	return &Error{Status: status, Message: message, Operational: true}
}

// Newf creates an operational error with a formatted message.
func Newf(status int, format string, args ...any) *Error {
	return New(status, fmt.Sprintf(format, args...))
}

func BadRequest(message string) *Error { return New(http.StatusBadRequest, message) }

func Unauthorized(message string) *Error { return New(http.StatusUnauthorized, message) }

func Forbidden(message string) *Error { return New(http.StatusForbidden, message) }

func NotFound(message string) *Error { return New(http.StatusNotFound, message) }

// Conflict reports a duplicate value for a unique field. It uses 400 to
// match the rest of the input errors.
func Conflict(message string) *Error { return New(http.StatusBadRequest, message) }

func TooManyRequests(message string) *Error { return New(http.StatusTooManyRequests, message) }

func Unavailable(message string) *Error { return New(http.StatusServiceUnavailable, message) }

// InvalidValue reports a malformed identifier or otherwise uncastable value.
func InvalidValue(field, value string) *Error {
	return Newf(http.StatusBadRequest, "Invalid %s: %s", field, value)
}

// Internal wraps an unexpected failure. Its details never reach clients
// in production.
func Internal(err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Err: err}
}
