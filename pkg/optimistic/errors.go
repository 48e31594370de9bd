package optimistic

import "errors"

// Sentinel errors returned by Toggler operations.
var (
	// ErrAuthRequired is returned when a toggle is attempted without an
	// authenticated session. No cache write and no remote call happen.
	ErrAuthRequired = errors.New("optimistic: sign in required")

	// ErrInFlight is returned when a toggle for the same target and
	// action is already pending. The duplicate is dropped silently.
	ErrInFlight = errors.New("optimistic: mutation already in flight")
)
