package protocol

import (
	"encoding/json"
	"time"

	"github.com/ferndale/homewatch/internal/entity"
)

// Message types used on the hub WebSocket. Every frame carries exactly
// one of these in its "type" field.
const (
	// Server → client during the handshake.
	TypeAuthRequired = "auth_required"
	TypeAuthOK       = "auth_ok"
	TypeAuthInvalid  = "auth_invalid"

	// Client → server.
	TypeAuth            = "auth"
	TypeSubscribeEvents = "subscribe_events"
	TypeGetStates       = "get_states"
	TypeCallService     = "call_service"
	TypePing            = "ping"

	// Server → client after the handshake.
	TypeResult = "result"
	TypeEvent  = "event"
	TypePong   = "pong"
)

// EventStateChanged is the event type carrying entity state transitions.
const EventStateChanged = "state_changed"

// Frame is the decoded wire envelope. Fields are populated according to
// the frame type; unrelated fields stay zero.
type Frame struct {
	ID      int64           `json:"id,omitempty"`
	Type    string          `json:"type"`
	Success *bool           `json:"success,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ResultError    `json:"error,omitempty"`
	Event   json.RawMessage `json:"event,omitempty"`

	// Message carries the server's explanation on auth_invalid frames.
	Message string `json:"message,omitempty"`

	// HAVersion is reported on auth_required and auth_ok frames.
	HAVersion string `json:"ha_version,omitempty"`
}

// ResultError is the hub's failure payload on an unsuccessful result frame.
type ResultError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface so a rejected service call can be
// returned to the caller directly.
func (e *ResultError) Error() string {
	if e.Message != "" {
		return "hub: " + e.Code + ": " + e.Message
	}
	return "hub: " + e.Code
}

// Succeeded reports whether a result frame carries a success payload.
func (f *Frame) Succeeded() bool {
	return f.Success != nil && *f.Success
}

// Event is the envelope of a pushed event frame.
type Event struct {
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
	TimeFired time.Time       `json:"time_fired"`
	Origin    string          `json:"origin"`
}

// StateChangedData is the payload of a state_changed event. OldState is
// nil for newly created entities; NewState is nil when the hub retires
// an entity id entirely.
type StateChangedData struct {
	EntityID string         `json:"entity_id"`
	OldState *entity.Entity `json:"old_state"`
	NewState *entity.Entity `json:"new_state"`
}

// AuthMessage is the client's response to the auth_required challenge.
// It is the only outgoing message without a correlation id.
type AuthMessage struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token"`
}

// NewAuth builds the authentication message for the given token.
func NewAuth(token string) AuthMessage {
	return AuthMessage{Type: TypeAuth, AccessToken: token}
}

// SubscribeEventsRequest subscribes to the hub event stream. An empty
// EventType subscribes to all events.
type SubscribeEventsRequest struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	EventType string `json:"event_type,omitempty"`
}

// NewSubscribeEvents builds a subscription request for one event type.
func NewSubscribeEvents(id int64, eventType string) SubscribeEventsRequest {
	return SubscribeEventsRequest{ID: id, Type: TypeSubscribeEvents, EventType: eventType}
}

// GetStatesRequest asks for a full snapshot of every entity.
type GetStatesRequest struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// NewGetStates builds a snapshot request.
func NewGetStates(id int64) GetStatesRequest {
	return GetStatesRequest{ID: id, Type: TypeGetStates}
}

// CallServiceRequest invokes a hub service (e.g. light.turn_on).
// The target entity id travels inside ServiceData.
type CallServiceRequest struct {
	ID          int64          `json:"id"`
	Type        string         `json:"type"`
	Domain      string         `json:"domain"`
	Service     string         `json:"service"`
	ServiceData map[string]any `json:"service_data,omitempty"`
}

// NewCallService builds a service call request. A non-empty entityID is
// merged into data under "entity_id"; data may be nil.
func NewCallService(id int64, domain, service, entityID string, data map[string]any) CallServiceRequest {
	var serviceData map[string]any
	if entityID != "" || len(data) > 0 {
		serviceData = make(map[string]any, len(data)+1)
		for k, v := range data {
			serviceData[k] = v
		}
		if entityID != "" {
			serviceData["entity_id"] = entityID
		}
	}
	return CallServiceRequest{
		ID:          id,
		Type:        TypeCallService,
		Domain:      domain,
		Service:     service,
		ServiceData: serviceData,
	}
}

// PingRequest is the keepalive message; the hub answers with a pong
// frame echoing the id.
type PingRequest struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// NewPing builds a keepalive request.
func NewPing(id int64) PingRequest {
	return PingRequest{ID: id, Type: TypePing}
}
