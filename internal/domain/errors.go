package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrDuplicateRequest  = errors.New("an active booking already exists for this car")
	ErrOutOfStock        = errors.New("out of stock")
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("not permitted")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError names the input field that was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid %s", e.Field)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
