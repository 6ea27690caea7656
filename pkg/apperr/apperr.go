// Package apperr defines the caller-facing error taxonomy shared by the claim
// services and the HTTP layer. Every error carries a machine-readable code and a
// human-readable message; storage-engine detail is wrapped, never shown.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"gorm.io/gorm"
)

// Kind discriminates error classes.
type Kind string

const (
	KindValidation  Kind = "VALIDATION_ERROR"
	KindNotFound    Kind = "NOT_FOUND"
	KindConflict    Kind = "CONFLICT"
	KindUnavailable Kind = "SERVICE_UNAVAILABLE"
	KindIntegrity   Kind = "INTEGRITY_ERROR"
	KindCapacity    Kind = "STORAGE_FULL"
	KindInternal    Kind = "INTERNAL_ERROR"
)

const genericMessage = "temporary error, please try again later"

// Error is the error type returned by every service in this module.
type Error struct {
	Kind    Kind
	Field   string // human-readable field label, validation only
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s (%v)", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind so callers can write errors.Is(err, apperr.ErrConflict).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Field == ""
}

// Sentinels for errors.Is comparisons.
var (
	ErrValidation  = &Error{Kind: KindValidation}
	ErrNotFound    = &Error{Kind: KindNotFound}
	ErrConflict    = &Error{Kind: KindConflict}
	ErrUnavailable = &Error{Kind: KindUnavailable}
	ErrIntegrity   = &Error{Kind: KindIntegrity}
	ErrCapacity    = &Error{Kind: KindCapacity}
	ErrInternal    = &Error{Kind: KindInternal}
)

func Validation(field, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func Integrity(format string, args ...any) *Error {
	return &Error{Kind: KindIntegrity, Message: fmt.Sprintf(format, args...)}
}

func Capacity(format string, args ...any) *Error {
	return &Error{Kind: KindCapacity, Message: fmt.Sprintf(format, args...)}
}

// Unavailable marks a transient, retryable failure.
func Unavailable(err error) *Error {
	return &Error{Kind: KindUnavailable, Message: genericMessage, Err: err}
}

// Internal hides err behind the generic message.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: genericMessage, Err: err}
}

// FromStorage converts a gorm/driver error into the taxonomy. Errors that are
// already *Error pass through untouched.
func FromStorage(err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &Error{Kind: KindNotFound, Message: "record not found", Err: err}
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &Error{Kind: KindConflict, Message: "duplicate data", Err: err}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return Unavailable(err)
	default:
		return Internal(err)
	}
}

// As extracts the *Error from err, converting unknown errors to Internal.
func As(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Unavailable(err)
	}
	return Internal(err)
}

// HTTPStatus maps a Kind to its response status code.
func HTTPStatus(k Kind) int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindIntegrity:
		return http.StatusUnprocessableEntity
	case KindCapacity:
		return http.StatusInsufficientStorage
	default:
		return http.StatusInternalServerError
	}
}
