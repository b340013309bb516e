package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Status/Cancel for a job id unknown to both
	// the active and the completed sets.
	ErrNotFound = errors.New("job not found")

	// ErrShutdown is returned for operations on an orchestrator that has
	// already been shut down.
	ErrShutdown = errors.New("orchestrator is shut down")

	// ErrCacheMiss marks an absent or expired cache entry.
	ErrCacheMiss = errors.New("cache miss")
)

// ValidationError rejects bad submission parameters synchronously; such a
// request is never queued.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid submission: %s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}
