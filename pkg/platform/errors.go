package platform

import (
	"errors"
	"fmt"
)

// Sentinel errors for common platform failure conditions.
var (
	// ErrUnauthorized is returned when the platform rejects the caller's
	// credentials.
	ErrUnauthorized = errors.New("platform: unauthorized")

	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = errors.New("platform: not found")

	// ErrConflict is returned when a mutation violates a uniqueness
	// constraint, e.g. adding an item to a collection it is already in.
	ErrConflict = errors.New("platform: conflict")

	// ErrInvalidRequest is returned when a request fails boundary
	// validation before any network call.
	ErrInvalidRequest = errors.New("platform: invalid request")
)

// PlatformError wraps a transport-level failure with the operation and
// HTTP status for debugging.
type PlatformError struct {
	Op     string // Operation that failed, e.g. "toggle_like"
	Status int    // HTTP status, 0 when the request never completed
	Err    error  // Underlying error
}

// Error returns the error message with operation context.
func (e *PlatformError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("platform: %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("platform: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *PlatformError) Unwrap() error {
	return e.Err
}
