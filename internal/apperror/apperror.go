// Package apperror defines the domain errors shared by the ledger, its storage
// backends and the HTTP boundary.
//
// Every error carries a sentinel (checked with errors.Is) and a message that is
// safe to show to the client. The handler package maps sentinels to status codes.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrValidation  = errors.New("validation error")
	ErrUnavailable = errors.New("storage unavailable")
	ErrConflict    = errors.New("conflict")
)

type AppError struct {
	Err     error  // sentinel
	Message string // human-readable message
	Field   string // optional: input field causing the error
	Cause   error  // optional: underlying driver error, never shown to clients
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the sentinel and the cause so errors.Is matches either.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Unavailable wraps a storage failure. The message names the operation only.
func Unavailable(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrUnavailable,
		Message: fmt.Sprintf("storage unavailable while %s", op),
		Cause:   cause,
	}
}

func Conflict(resource, message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict: %s", resource, message),
	}
}
