// Package protocol implements the wire message envelope spoken by the
// Home Assistant WebSocket API.
//
// The hub exchanges typed JSON text frames over a persistent WebSocket.
// The handshake runs auth_required → auth → auth_ok/auth_invalid; after
// that every client request carries a unique integer id which the
// matching result (or pong) frame echoes, and subscription events
// arrive as unsolicited event frames.
//
// This package owns only translation between raw frame bytes and typed
// messages. Correlation lives in package correlate, the socket
// lifecycle in package hub.
//
// # Frame kinds
//
//	auth_required / auth / auth_ok / auth_invalid   handshake
//	subscribe_events → result                       event stream setup
//	get_states → result                             full entity snapshot
//	call_service → result                           service invocation
//	ping → pong                                     keepalive
//	event                                           pushed state changes
package protocol
