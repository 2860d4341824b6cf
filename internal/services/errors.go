package services

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when the acting user lacks the right to
	// perform an operation. Nothing is written when it is returned.
	ErrUnauthorized = errors.New("permission denied")
	ErrNotFound     = errors.New("task not found")
	ErrValidation   = errors.New("invalid input")
	// ErrStorage wraps failures of the underlying store. The unit of work
	// has been rolled back when it is returned.
	ErrStorage = errors.New("storage failure")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

// isDomainError reports whether err already carries one of the service error
// kinds and should be returned unchanged.
func isDomainError(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrValidation)
}
