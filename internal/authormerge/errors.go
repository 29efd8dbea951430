package authormerge

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes author-merge errors.
type ErrorCode string

const (
	// ErrCodeVersionConflict indicates another actor advanced the version
	// while a rebuild was in progress.
	ErrCodeVersionConflict ErrorCode = "VERSION_CONFLICT"

	// ErrCodeRetriesExhausted indicates a rebuild kept conflicting.
	ErrCodeRetriesExhausted ErrorCode = "RETRIES_EXHAUSTED"
)

// ErrVersionConflict matches any *VersionConflictError via errors.Is.
var ErrVersionConflict = errors.New("author merge version conflict")

// VersionConflictError reports that a rebuild finished against a stale
// version. The caller should restart the rebuild from the new version.
type VersionConflictError struct {
	Code     ErrorCode
	Expected uint64
	Actual   uint64
}

// Error implements the error interface.
func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("%s: expected version %d, found %d", e.Code, e.Expected, e.Actual)
}

// Is makes errors.Is(err, ErrVersionConflict) true.
func (e *VersionConflictError) Is(target error) bool {
	return target == ErrVersionConflict
}

// NewVersionConflictError creates a VersionConflictError.
func NewVersionConflictError(expected, actual uint64) *VersionConflictError {
	return &VersionConflictError{Code: ErrCodeVersionConflict, Expected: expected, Actual: actual}
}

// RetriesExhaustedError is returned by RunRebuild after too many conflicts.
type RetriesExhaustedError struct {
	Code     ErrorCode
	Attempts int
	Last     error
}

// Error implements the error interface.
func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("%s: rebuild gave up after %d attempts: %v", e.Code, e.Attempts, e.Last)
}

// Unwrap returns the last conflict.
func (e *RetriesExhaustedError) Unwrap() error { return e.Last }

// IsRetryable reports whether err is a version conflict the caller should
// react to by restarting the rebuild. Uses errors.As to handle wrapped errors.
func IsRetryable(err error) bool {
	var ve *VersionConflictError
	return errors.As(err, &ve)
}
