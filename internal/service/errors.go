package service

import (
	"errors"
	"fmt"
)

var (
	// ErrTaskNotFound means the task does not exist or belongs to someone else.
	ErrTaskNotFound = errors.New("task not found")
	// ErrCapacityExceeded means the user already has the maximum number of active tasks.
	ErrCapacityExceeded = errors.New("active task limit reached")
)

// ValidationError rejects a request before anything is written.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
