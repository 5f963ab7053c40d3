package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/ferndale/homewatch/internal/entity"
)

// Decode parses a raw text frame into the message envelope.
//
// A frame that is not a JSON object or lacks the "type" field is a
// protocol violation; the caller drops it and logs. The byte stream
// itself stays in sync because WebSocket framing delimits messages.
//
// Returns:
//   - *Frame: Decoded envelope
//   - error: ErrMalformedFrame (wrapped) if the payload is unusable
func Decode(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	if f.Type == "" {
		return nil, fmt.Errorf("%w: missing type field", ErrMalformedFrame)
	}
	return &f, nil
}

// Encode marshals an outgoing message to the wire form.
func Encode(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encoding frame: %w", err)
	}
	return data, nil
}

// DecodeEvent extracts the event payload from an event frame.
func (f *Frame) DecodeEvent() (*Event, error) {
	if f.Type != TypeEvent {
		return nil, fmt.Errorf("%w: frame type %q is not an event", ErrMalformedFrame, f.Type)
	}
	var ev Event
	if err := json.Unmarshal(f.Event, &ev); err != nil {
		return nil, fmt.Errorf("%w: event payload: %w", ErrMalformedFrame, err)
	}
	return &ev, nil
}

// StateChanged extracts the state transition from a state_changed event.
func (ev *Event) StateChanged() (*StateChangedData, error) {
	if ev.EventType != EventStateChanged {
		return nil, fmt.Errorf("%w: event type %q is not state_changed", ErrMalformedFrame, ev.EventType)
	}
	var data StateChangedData
	if err := json.Unmarshal(ev.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: state_changed payload: %w", ErrMalformedFrame, err)
	}
	return &data, nil
}

// DecodeStates parses the result payload of a get_states request into
// an entity snapshot.
func DecodeStates(result json.RawMessage) ([]entity.Entity, error) {
	var states []entity.Entity
	if err := json.Unmarshal(result, &states); err != nil {
		return nil, fmt.Errorf("%w: states payload: %w", ErrMalformedFrame, err)
	}
	return states, nil
}
