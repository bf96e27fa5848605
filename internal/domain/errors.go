package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrBackendUnavailable signals that no configured backend is reachable.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrBackendTimeout signals a backend call exceeding its deadline.
	ErrBackendTimeout = errors.New("backend timeout")
	// ErrInvalidResponse signals malformed backend output.
	ErrInvalidResponse = errors.New("invalid backend response")
	// ErrAuthRejected signals a rejected cloud API key.
	ErrAuthRejected = errors.New("backend auth rejected")
	// ErrInputTooLarge signals embedding input over the backend context limit.
	ErrInputTooLarge = errors.New("input too large")

	// ErrUnknownTask signals a task name with no loaded template.
	ErrUnknownTask = errors.New("unknown task")
	// ErrMissingInput signals a template rendered without a required input.
	ErrMissingInput = errors.New("missing template input")

	// ErrDuplicateID signals an insert with an id already present in the index.
	ErrDuplicateID = errors.New("duplicate note id")
	// ErrDimensionMismatch signals a vector of unexpected dimensionality.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrStorageFailure signals an index persistence failure.
	ErrStorageFailure = errors.New("index storage failure")

	// ErrCancelled signals a caller-cancelled in-flight request.
	ErrCancelled = errors.New("request cancelled")
)

// MissingInputError wraps ErrMissingInput with the exact keys that were absent.
type MissingInputError struct {
	Task string
	Keys []string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("%s: task %q requires %s", ErrMissingInput.Error(), e.Task, strings.Join(e.Keys, ", "))
}

func (e *MissingInputError) Unwrap() error { return ErrMissingInput }

// NewMissingInput creates a missing-input error for the given task and keys.
func NewMissingInput(task string, keys []string) error {
	return &MissingInputError{Task: task, Keys: keys}
}

// DimensionMismatchError wraps ErrDimensionMismatch with both dimensionalities.
type DimensionMismatchError struct {
	Got  int
	Want int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: got %d, want %d", ErrDimensionMismatch.Error(), e.Got, e.Want)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrDimensionMismatch }

// NewDimensionMismatch creates a dimension mismatch error.
func NewDimensionMismatch(got, want int) error {
	return &DimensionMismatchError{Got: got, Want: want}
}
