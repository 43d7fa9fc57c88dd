package entities

import (
	"errors"
	"fmt"
)

// Error taxonomy for the pipeline. Workers branch on these roots with
// errors.Is to decide between retry and terminal failure; nothing is ever
// propagated synchronously to a caller.
var (
	// ErrValidation covers malformed input and malformed service output.
	// Terminal: recorded as failed, never retried.
	ErrValidation = errors.New("validation error")

	// ErrTransient covers network, store and rate-limit failures. Retried up
	// to the job's attempt budget with backoff.
	ErrTransient = errors.New("transient error")

	// ErrNotFound covers missing referenced transcripts/opportunities.
	// Terminal, logged, no retry.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a consolidation write that lost the optimistic race.
	// Not a failure: a newer snapshot already landed, the write is skipped.
	ErrConflict = errors.New("concurrency conflict")
)

// ValidationErrorf wraps ErrValidation with detail.
func ValidationErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// TransientErrorf wraps ErrTransient with detail.
func TransientErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrTransient, fmt.Sprintf(format, args...))
}

// NotFoundErrorf wraps ErrNotFound with detail.
func NotFoundErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// IsTerminal reports whether an error must not be retried.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound)
}
