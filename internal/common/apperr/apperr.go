// internal/common/apperr/apperr.go
// Error taxonomy shared by every feature package.
// Feature packages declare their own sentinels on top of these kinds and
// handlers translate kinds to HTTP statuses.

package apperr

import (
	"errors"
	"net/http"
)

// Error kinds. Test with errors.Is.
var (
	ErrValidation  = errors.New("validation failed")
	ErrConflict    = errors.New("conflict")
	ErrForbidden   = errors.New("forbidden")
	ErrNotFound    = errors.New("not found")
	ErrRateLimited = errors.New("rate limited")
)

// kindError carries a caller-facing message and unwraps to its kind.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

func newKind(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// Validation returns an error of kind ErrValidation with the given message.
func Validation(msg string) error { return newKind(ErrValidation, msg) }

// Conflict returns an error of kind ErrConflict with the given message.
func Conflict(msg string) error { return newKind(ErrConflict, msg) }

// Forbidden returns an error of kind ErrForbidden with the given message.
func Forbidden(msg string) error { return newKind(ErrForbidden, msg) }

// NotFound returns an error of kind ErrNotFound with the given message.
func NotFound(msg string) error { return newKind(ErrNotFound, msg) }

// RateLimited returns an error of kind ErrRateLimited with the given message.
func RateLimited(msg string) error { return newKind(ErrRateLimited, msg) }

// HTTPStatus maps an error to the status code a handler should answer with.
// Errors outside the taxonomy are internal errors.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// IsClientError reports whether err belongs to the taxonomy, i.e. whether its
// message is safe to show to the caller verbatim.
func IsClientError(err error) bool {
	return HTTPStatus(err) != http.StatusInternalServerError
}
