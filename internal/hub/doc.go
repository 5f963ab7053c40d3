// Package hub manages the WebSocket session with the home automation
// hub.
//
// The Client owns the full connection lifecycle: dial, token auth
// exchange, state_changed event subscription, initial entity snapshot,
// keepalive pings and automatic reconnection with jittered exponential
// backoff. Connection state is published through a status observable so
// front ends can render it without polling.
//
// Request/response correlation is delegated to the correlate package;
// every (re)connection starts a fresh correlation epoch so responses
// from a previous socket can never resolve a current request.
package hub
