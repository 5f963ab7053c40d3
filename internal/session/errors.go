package session

import "errors"

// Sentinel errors for session composition.
var (
	// ErrNilConfig indicates the session was created without configuration.
	ErrNilConfig = errors.New("session: config is required")

	// ErrUnknownEntity indicates a command referenced an entity id the
	// store has never seen.
	ErrUnknownEntity = errors.New("session: unknown entity")
)
