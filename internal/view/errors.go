package view

import "errors"

// Domain-specific errors for view commands.
// Both reject the command locally: the prior view config stays active
// and no hub round-trip is attempted.
var (
	// ErrInvalidFilter is returned for an unusable filter spec.
	ErrInvalidFilter = errors.New("view: invalid filter spec")

	// ErrUnknownGroupMode is returned for an unrecognised group mode.
	ErrUnknownGroupMode = errors.New("view: unknown group mode")
)
