package hub

import "errors"

// Sentinel errors for hub connection handling.
var (
	// ErrConnectionLost indicates the socket dropped or a read failed.
	// Outstanding requests are failed with this error; the manager
	// reconnects automatically.
	ErrConnectionLost = errors.New("hub connection lost")

	// ErrNotConnected indicates a request was attempted while the
	// connection is not in the connected state.
	ErrNotConnected = errors.New("not connected to hub")

	// ErrAuthRejected indicates the hub rejected the access token.
	// This is terminal: retrying with the same credential cannot
	// succeed, so the manager stops and reports failure.
	ErrAuthRejected = errors.New("hub rejected access token")

	// ErrHandshake indicates the hub sent an unexpected frame during
	// the connect handshake.
	ErrHandshake = errors.New("unexpected handshake frame")

	// ErrClosed indicates the client has been shut down.
	ErrClosed = errors.New("hub client closed")
)
