// Package apperr carries failures from middleware and handlers to the single
// terminal error handler.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for status mapping and clients.
type Kind string

const (
	KindCORSRejected         Kind = "cors_rejected"
	KindBadRequest           Kind = "bad_request"
	KindUnauthorized         Kind = "unauthorized"
	KindPayloadTooLarge      Kind = "payload_too_large"
	KindUnsupportedMediaType Kind = "unsupported_media_type"
	KindTooManyRequests      Kind = "too_many_requests"
	KindInternal             Kind = "internal"
)

// Error is a classified failure. Key is the i18n message key shown to the
// client; Err is the cause and is only ever logged.
type Error struct {
	Kind Kind
	Key  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Status maps the kind to an HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case KindCORSRejected:
		return http.StatusForbidden
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindUnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// ErrNotAllowedByCORS is the cause attached to every CORS rejection.
var ErrNotAllowedByCORS = errors.New("not allowed by CORS")

// New builds a classified error.
func New(kind Kind, key string, err error) *Error {
	return &Error{Kind: kind, Key: key, Err: err}
}

// CORSRejected reports a blocked origin.
func CORSRejected(origin string) *Error {
	return New(KindCORSRejected, "error.cors_rejected", fmt.Errorf("origin %q: %w", origin, ErrNotAllowedByCORS))
}

// BadRequest reports malformed client input.
func BadRequest(key string, err error) *Error {
	return New(KindBadRequest, key, err)
}

// Unauthorized reports a missing or wrong credential.
func Unauthorized(err error) *Error {
	return New(KindUnauthorized, "error.unauthorized", err)
}

// Internal wraps an unexpected failure.
func Internal(err error) *Error {
	return New(KindInternal, "error.internal", err)
}

// As extracts a classified error; anything else is treated as internal.
func As(err error) *Error {
	var target *Error
	if errors.As(err, &target) {
		return target
	}
	return Internal(err)
}

// IsCORSRejected reports whether err is a CORS rejection.
func IsCORSRejected(err error) bool {
	var target *Error
	return errors.As(err, &target) && target.Kind == KindCORSRejected
}

// Responder turns an error into the client response. Middleware hands
// failures to a Responder instead of writing responses itself.
type Responder interface {
	ServeError(w http.ResponseWriter, r *http.Request, err error)
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(w http.ResponseWriter, r *http.Request, err error)

func (f ResponderFunc) ServeError(w http.ResponseWriter, r *http.Request, err error) {
	f(w, r, err)
}
