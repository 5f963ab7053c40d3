package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecode_ResultFrame(t *testing.T) {
	raw := []byte(`{"id":7,"type":"result","success":true,"result":[{"entity_id":"light.a","state":"on"}]}`)

	f, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if f.Type != TypeResult {
		t.Errorf("Type = %q, want %q", f.Type, TypeResult)
	}
	if f.ID != 7 {
		t.Errorf("ID = %d, want 7", f.ID)
	}
	if !f.Succeeded() {
		t.Error("Succeeded() = false, want true")
	}
}

func TestDecode_ErrorResult(t *testing.T) {
	raw := []byte(`{"id":3,"type":"result","success":false,"error":{"code":"not_found","message":"no such service"}}`)

	f, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if f.Succeeded() {
		t.Error("Succeeded() = true for failed result")
	}
	if f.Error == nil || f.Error.Code != "not_found" {
		t.Fatalf("Error = %+v, want code not_found", f.Error)
	}
	if f.Error.Error() == "" {
		t.Error("ResultError.Error() returned empty string")
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{{{`},
		{"missing type", `{"id":1}`},
		{"json scalar", `42`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.raw))
			if !errors.Is(err, ErrMalformedFrame) {
				t.Errorf("Decode(%q) error = %v, want ErrMalformedFrame", tt.raw, err)
			}
		})
	}
}

func TestDecodeEvent_StateChanged(t *testing.T) {
	raw := []byte(`{
		"id": 1,
		"type": "event",
		"event": {
			"event_type": "state_changed",
			"origin": "LOCAL",
			"time_fired": "2026-08-30T10:15:00.000000+00:00",
			"data": {
				"entity_id": "light.living_room",
				"old_state": {"entity_id": "light.living_room", "state": "off", "attributes": {}},
				"new_state": {
					"entity_id": "light.living_room",
					"state": "on",
					"attributes": {"friendly_name": "Living Room Lamp", "brightness": 180}
				}
			}
		}
	}`)

	f, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	ev, err := f.DecodeEvent()
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}
	if ev.EventType != EventStateChanged {
		t.Errorf("EventType = %q, want %q", ev.EventType, EventStateChanged)
	}

	sc, err := ev.StateChanged()
	if err != nil {
		t.Fatalf("StateChanged() error = %v", err)
	}
	if sc.EntityID != "light.living_room" {
		t.Errorf("EntityID = %q, want light.living_room", sc.EntityID)
	}
	if sc.NewState == nil || sc.NewState.State != "on" {
		t.Fatalf("NewState = %+v, want state on", sc.NewState)
	}
	if b, ok := sc.NewState.Brightness(); !ok || b != 180 {
		t.Errorf("NewState.Brightness() = %d, %v, want 180, true", b, ok)
	}
	if sc.OldState == nil || sc.OldState.State != "off" {
		t.Errorf("OldState = %+v, want state off", sc.OldState)
	}
}

func TestDecodeEvent_WrongFrameType(t *testing.T) {
	f := &Frame{Type: TypeResult}
	if _, err := f.DecodeEvent(); !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("DecodeEvent() error = %v, want ErrMalformedFrame", err)
	}
}

func TestDecodeStates(t *testing.T) {
	raw := json.RawMessage(`[
		{"entity_id": "light.kitchen", "state": "on", "attributes": {"friendly_name": "Kitchen"}},
		{"entity_id": "climate.bedroom", "state": "heat", "attributes": {"temperature": 21.5}}
	]`)

	states, err := DecodeStates(raw)
	if err != nil {
		t.Fatalf("DecodeStates() error = %v", err)
	}
	if len(states) != 2 {
		t.Fatalf("DecodeStates() returned %d entities, want 2", len(states))
	}
	if states[0].ID != "light.kitchen" {
		t.Errorf("states[0].ID = %q, want light.kitchen", states[0].ID)
	}
	if temp, ok := states[1].Temperature(); !ok || temp != 21.5 {
		t.Errorf("states[1].Temperature() = %v, %v, want 21.5, true", temp, ok)
	}
}

func TestNewCallService_MergesEntityID(t *testing.T) {
	req := NewCallService(9, "light", "turn_on", "light.kitchen", map[string]any{"brightness": 128})

	if req.Domain != "light" || req.Service != "turn_on" {
		t.Errorf("request = %+v, want light.turn_on", req)
	}
	if req.ServiceData["entity_id"] != "light.kitchen" {
		t.Errorf("ServiceData entity_id = %v, want light.kitchen", req.ServiceData["entity_id"])
	}
	if req.ServiceData["brightness"] != 128 {
		t.Errorf("ServiceData brightness = %v, want 128", req.ServiceData["brightness"])
	}

	data, err := Encode(req)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	var round map[string]any
	if err := json.Unmarshal(data, &round); err != nil {
		t.Fatalf("round-trip unmarshal: %v", err)
	}
	if round["type"] != TypeCallService {
		t.Errorf("encoded type = %v, want %q", round["type"], TypeCallService)
	}
}

func TestNewCallService_NoTarget(t *testing.T) {
	req := NewCallService(1, "homeassistant", "restart", "", nil)
	if req.ServiceData != nil {
		t.Errorf("ServiceData = %v, want nil when no target and no data", req.ServiceData)
	}
}
