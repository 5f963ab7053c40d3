package hub

// ConnectionState is the externally observable connection lifecycle
// state. Consumers render it directly (status line, connection screen).
type ConnectionState string

// Connection lifecycle states.
const (
	// StateDisconnected is the initial state before Start.
	StateDisconnected ConnectionState = "disconnected"

	// StateConnecting means a dial is in progress.
	StateConnecting ConnectionState = "connecting"

	// StateAuthenticating means the socket is open and the auth
	// exchange is in progress.
	StateAuthenticating ConnectionState = "authenticating"

	// StateSubscribing means auth succeeded and the event subscription
	// and state snapshot are being established.
	StateSubscribing ConnectionState = "subscribing"

	// StateConnected means the session is fully established: events
	// flow and requests are accepted.
	StateConnected ConnectionState = "connected"

	// StateReconnecting means the connection was lost and the manager
	// is waiting out the backoff delay before redialling.
	StateReconnecting ConnectionState = "reconnecting"

	// StateFailed is terminal: the hub rejected the access token.
	// No further attempts are made.
	StateFailed ConnectionState = "failed"
)

// Terminal reports whether the state admits no further transitions.
func (s ConnectionState) Terminal() bool {
	return s == StateFailed
}
