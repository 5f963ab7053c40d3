package hub

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ferndale/homewatch/internal/entity"
	"github.com/ferndale/homewatch/internal/protocol"
)

const testToken = "secret-token"

// mockHub simulates the hub's WebSocket endpoint: auth handshake,
// event subscription, state snapshot, service calls and keepalive.
type mockHub struct {
	t        *testing.T
	srv      *httptest.Server
	upgrader websocket.Upgrader

	rejectAuth        bool
	holdService       bool
	eventBeforeStates bool
	states            []map[string]any

	mu           sync.Mutex
	dials        int
	serviceCalls []map[string]any
	conns        []*websocket.Conn
}

func newMockHub(t *testing.T) *mockHub {
	t.Helper()

	h := &mockHub{
		t: t,
		states: []map[string]any{
			{
				"entity_id":  "light.living_room",
				"state":      "on",
				"attributes": map[string]any{"friendly_name": "Living Room Lamp"},
			},
			{
				"entity_id":  "climate.bedroom",
				"state":      "heat",
				"attributes": map[string]any{"friendly_name": "Bedroom Thermostat"},
			},
		},
	}
	h.srv = httptest.NewServer(http.HandlerFunc(h.handle))
	t.Cleanup(h.srv.Close)
	return h
}

func (h *mockHub) url() string {
	return "ws" + strings.TrimPrefix(h.srv.URL, "http")
}

func (h *mockHub) dialCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dials
}

func (h *mockHub) calls() []map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]map[string]any{}, h.serviceCalls...)
}

// dropConnections closes every active socket, simulating network loss.
func (h *mockHub) dropConnections() {
	h.mu.Lock()
	conns := h.conns
	h.conns = nil
	h.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
}

func (h *mockHub) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.dials++
	h.conns = append(h.conns, conn)
	h.mu.Unlock()

	if err := conn.WriteJSON(map[string]any{"type": "auth_required", "ha_version": "2024.6.0"}); err != nil {
		return
	}

	var auth map[string]any
	if err := conn.ReadJSON(&auth); err != nil {
		return
	}
	if token, _ := auth["access_token"].(string); token != testToken || h.rejectAuth {
		conn.WriteJSON(map[string]any{"type": "auth_invalid", "message": "Invalid access token"}) //nolint:errcheck
		return
	}
	if err := conn.WriteJSON(map[string]any{"type": "auth_ok", "ha_version": "2024.6.0"}); err != nil {
		return
	}

	for {
		var req map[string]any
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		id := req["id"]

		switch req["type"] {
		case "subscribe_events":
			conn.WriteJSON(map[string]any{"id": id, "type": "result", "success": true, "result": nil}) //nolint:errcheck
		case "get_states":
			if h.eventBeforeStates {
				conn.WriteJSON(map[string]any{ //nolint:errcheck
					"id":   1,
					"type": "event",
					"event": map[string]any{
						"event_type": "state_changed",
						"data": map[string]any{
							"entity_id": "light.living_room",
							"new_state": map[string]any{
								"entity_id":  "light.living_room",
								"state":      "off",
								"attributes": map[string]any{"friendly_name": "Living Room Lamp"},
							},
						},
					},
				})
			}
			conn.WriteJSON(map[string]any{"id": id, "type": "result", "success": true, "result": h.states}) //nolint:errcheck
		case "call_service":
			h.mu.Lock()
			h.serviceCalls = append(h.serviceCalls, req)
			hold := h.holdService
			h.mu.Unlock()
			if hold {
				continue
			}
			conn.WriteJSON(map[string]any{"id": id, "type": "result", "success": true, "result": nil}) //nolint:errcheck
		case "ping":
			conn.WriteJSON(map[string]any{"id": id, "type": "pong"}) //nolint:errcheck
		}
	}
}

func testConfig(h *mockHub) Config {
	return Config{
		URL:              h.url(),
		Token:            testToken,
		ReconnectInitial: 10 * time.Millisecond,
		ReconnectMax:     50 * time.Millisecond,
		ReconnectJitter:  0.1,
	}
}

func waitForState(t *testing.T, c *Client, want ConnectionState) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %q, current %q", want, c.State())
}

func TestClientConnectDeliversSnapshot(t *testing.T) {
	h := newMockHub(t)
	client := New(testConfig(h))

	var mu sync.Mutex
	var snapshots [][]entity.Entity
	client.SetOnSnapshot(func(states []entity.Entity) {
		mu.Lock()
		snapshots = append(snapshots, states)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client.Start(ctx)
	defer client.Close()

	waitForState(t, client, StateConnected)

	mu.Lock()
	defer mu.Unlock()
	if len(snapshots) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(snapshots))
	}
	if len(snapshots[0]) != 2 {
		t.Errorf("snapshot has %d entities, want 2", len(snapshots[0]))
	}
	if got := client.HubVersion(); got != "2024.6.0" {
		t.Errorf("HubVersion() = %q, want 2024.6.0", got)
	}
}

func TestClientEventRacingSnapshotReplaysAfterIt(t *testing.T) {
	h := newMockHub(t)
	h.eventBeforeStates = true
	client := New(testConfig(h))

	var mu sync.Mutex
	var order []string
	client.SetOnSnapshot(func([]entity.Entity) {
		mu.Lock()
		order = append(order, "snapshot")
		mu.Unlock()
	})
	client.SetOnStateChanged(func(data protocol.StateChangedData) {
		mu.Lock()
		order = append(order, "event:"+data.NewState.State)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client.Start(ctx)
	defer client.Close()

	waitForState(t, client, StateConnected)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(order)
		mu.Unlock()
		if n >= 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 {
		t.Fatalf("callback order = %v, want snapshot plus one event", order)
	}
	if order[0] != "snapshot" || order[1] != "event:off" {
		t.Errorf("callback order = %v, want [snapshot event:off]", order)
	}
}

func TestClientCallService(t *testing.T) {
	h := newMockHub(t)
	client := New(testConfig(h))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client.Start(ctx)
	defer client.Close()

	waitForState(t, client, StateConnected)

	err := client.CallService(ctx, "light", "turn_on", "light.living_room", map[string]any{"brightness": 200})
	if err != nil {
		t.Fatalf("CallService() error = %v", err)
	}

	calls := h.calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 service call, got %d", len(calls))
	}
	data, _ := calls[0]["service_data"].(map[string]any)
	if data["entity_id"] != "light.living_room" {
		t.Errorf("service_data entity_id = %v, want light.living_room", data["entity_id"])
	}
	if data["brightness"] != float64(200) {
		t.Errorf("service_data brightness = %v, want 200", data["brightness"])
	}
}

func TestClientCallServiceNotConnected(t *testing.T) {
	client := New(Config{URL: "ws://127.0.0.1:1/api/websocket", Token: testToken})

	err := client.CallService(context.Background(), "light", "turn_on", "light.x", nil)
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("CallService() = %v, want ErrNotConnected", err)
	}
}

func TestClientAuthRejectionIsTerminal(t *testing.T) {
	h := newMockHub(t)
	h.rejectAuth = true
	client := New(testConfig(h))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client.Start(ctx)
	defer client.Close()

	waitForState(t, client, StateFailed)

	// No retry may follow a credential rejection.
	time.Sleep(100 * time.Millisecond)
	if got := h.dialCount(); got != 1 {
		t.Errorf("dial count = %d, want 1 (no retries after auth rejection)", got)
	}
	if !client.State().Terminal() {
		t.Errorf("State() = %q, want terminal", client.State())
	}
}

func TestClientReconnectsAfterLoss(t *testing.T) {
	h := newMockHub(t)
	client := New(testConfig(h))

	var mu sync.Mutex
	var seen []ConnectionState
	client.SubscribeStatus(func(s ConnectionState) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	var snapshotCount int
	client.SetOnSnapshot(func([]entity.Entity) {
		mu.Lock()
		snapshotCount++
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client.Start(ctx)
	defer client.Close()

	waitForState(t, client, StateConnected)
	h.dropConnections()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && h.dialCount() < 2 {
		time.Sleep(5 * time.Millisecond)
	}
	if got := h.dialCount(); got < 2 {
		t.Fatalf("dial count = %d, want at least 2", got)
	}
	waitForState(t, client, StateConnected)

	mu.Lock()
	defer mu.Unlock()
	if snapshotCount != 2 {
		t.Errorf("snapshot count = %d, want 2 (fresh snapshot per connection)", snapshotCount)
	}
	if client.LastError() == nil {
		t.Error("LastError() = nil after a connection loss")
	}
	if client.LastSync().IsZero() {
		t.Error("LastSync() zero after successful snapshots")
	}

	var sawReconnecting bool
	for _, s := range seen {
		if s == StateReconnecting {
			sawReconnecting = true
		}
	}
	if !sawReconnecting {
		t.Errorf("status sequence %v missing %q", seen, StateReconnecting)
	}
}

func TestClientPendingRequestsFailOnDisconnect(t *testing.T) {
	h := newMockHub(t)
	h.holdService = true
	client := New(testConfig(h))

	var mu sync.Mutex
	var changes int
	client.SetOnStateChanged(func(protocol.StateChangedData) {
		mu.Lock()
		changes++
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client.Start(ctx)
	defer client.Close()

	waitForState(t, client, StateConnected)

	results := make(chan error, 2)
	go func() {
		results <- client.CallService(ctx, "light", "turn_on", "light.living_room", nil)
	}()
	go func() {
		results <- client.CallService(ctx, "light", "turn_off", "light.kitchen", nil)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && len(h.calls()) < 2 {
		time.Sleep(5 * time.Millisecond)
	}
	if got := len(h.calls()); got != 2 {
		t.Fatalf("recorded %d service calls, want 2 in flight", got)
	}
	h.dropConnections()

	for i := 0; i < 2; i++ {
		select {
		case err := <-results:
			if !errors.Is(err, ErrConnectionLost) {
				t.Errorf("pending call error = %v, want %v", err, ErrConnectionLost)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for pending calls to fail")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if changes != 0 {
		t.Errorf("state-changed callbacks fired %d times across disconnect, want 0", changes)
	}
}

func TestClientEventsReachCallback(t *testing.T) {
	h := newMockHub(t)
	client := New(testConfig(h))

	events := make(chan string, 1)
	client.SetOnStateChanged(func(data protocol.StateChangedData) {
		select {
		case events <- data.EntityID:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client.Start(ctx)
	defer client.Close()

	waitForState(t, client, StateConnected)

	h.mu.Lock()
	conn := h.conns[len(h.conns)-1]
	h.mu.Unlock()
	err := conn.WriteJSON(map[string]any{
		"id":   1,
		"type": "event",
		"event": map[string]any{
			"event_type": "state_changed",
			"data": map[string]any{
				"entity_id": "light.living_room",
				"new_state": map[string]any{"entity_id": "light.living_room", "state": "off"},
			},
		},
	})
	if err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	select {
	case id := <-events:
		if id != "light.living_room" {
			t.Errorf("event entity = %q, want light.living_room", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for state_changed callback")
	}
}

func TestClientCloseIsIdempotent(t *testing.T) {
	h := newMockHub(t)
	client := New(testConfig(h))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client.Start(ctx)

	waitForState(t, client, StateConnected)

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if got := client.State(); got != StateDisconnected {
		t.Errorf("State() after Close = %q, want %q", got, StateDisconnected)
	}
}
