package realtime

import "errors"

// Sentinel errors for channel lifecycle misuse and failures.
var (
	// ErrAuthRequired is returned when Connect is called without an
	// authenticated session.
	ErrAuthRequired = errors.New("realtime: sign in required")

	// ErrAlreadyConnected is returned when Connect is called on a
	// channel that is not Disconnected.
	ErrAlreadyConnected = errors.New("realtime: channel already connected")

	// ErrNotConnected is returned when sending on a channel that is not
	// Connected.
	ErrNotConnected = errors.New("realtime: channel not connected")

	// ErrConnectFailed wraps a failed subscribe attempt.
	ErrConnectFailed = errors.New("realtime: connection failed")
)
