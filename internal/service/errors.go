package service

import (
	"errors"
	"fmt"
)

var (
	ErrForbidden = errors.New("not authorized")
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("already exists")

	// ErrTransient marks storage failures the caller may retry; a resend
	// with the same client message id will not duplicate.
	ErrTransient = errors.New("storage unavailable")
)

// ValidationError reports malformed input with the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func validationErr(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
