package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTask  = errors.New("task invalid args")
	ErrTaskNotFound = errors.New("task not found")
)

// ValidationError rejects user input. No state was changed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidTask
}

// NotFoundError means the referenced task is not in the active list, for
// example because another context deleted it.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("task %q not found", e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrTaskNotFound
}

// PersistenceError reports a failed write to storage. The in-memory change it
// accompanies was kept and will be included in the next successful save.
type PersistenceError struct {
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist %q: %v", e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsPersistenceError reports whether err carries a PersistenceError.
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
