package statestream

import "errors"

// Domain-specific errors for the state mirror.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when publishing on a disconnected mirror.
	ErrNotConnected = errors.New("statestream: not connected")

	// ErrConnectionFailed is returned when the initial broker connection fails.
	ErrConnectionFailed = errors.New("statestream: connection failed")

	// ErrPublishFailed is returned when a publish operation fails.
	ErrPublishFailed = errors.New("statestream: publish failed")
)
