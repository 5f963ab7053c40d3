// Package correlate implements request/response correlation for the hub
// connection.
//
// The hub WebSocket is fully asynchronous: requests and responses travel
// independently, linked only by an integer id the server echoes back.
// The Correlator issues ascending ids, keeps a completion slot per
// outstanding request, and resolves each slot exactly once — with the
// response payload, a per-request timeout, or a connection-lost failure
// when the socket drops.
//
// Multiple command goroutines may be outstanding concurrently; each
// awaits only its own slot. The socket read loop resolves slots and
// never blocks doing so. Responses with no matching slot are stale and
// dropped silently.
package correlate
