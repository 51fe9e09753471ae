// Package apperr defines the error taxonomy shared by all services.
// Handlers translate an *Error into the HTTP envelope exactly once at
// the boundary; services never touch HTTP status codes directly.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure for status mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidRequest
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
)

// Error carries a kind, a machine-readable code and a human message.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus maps the kind onto the outward status code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func Invalid(code, msg string) *Error {
	return &Error{Kind: KindInvalidRequest, Code: code, Message: msg}
}

func Unauthorized(code, msg string) *Error {
	return &Error{Kind: KindUnauthorized, Code: code, Message: msg}
}

func Forbidden(code, msg string) *Error {
	return &Error{Kind: KindForbidden, Code: code, Message: msg}
}

func NotFound(code, msg string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: msg}
}

func Conflict(code, msg string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: msg}
}

// Internal wraps an unexpected persistence or gateway failure. The wrapped
// error stays server-side; only the message crosses the boundary.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Code: "internal_error", Message: msg, Err: err}
}

// From extracts an *Error, wrapping unknown errors as Internal.
func From(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal("unexpected error", err)
}

// IsClientError reports whether the failure is the caller's fault.
func IsClientError(err error) bool {
	ae := From(err)
	return ae.Kind == KindInvalidRequest || ae.Kind == KindConflict ||
		ae.Kind == KindNotFound || ae.Kind == KindForbidden || ae.Kind == KindUnauthorized
}
