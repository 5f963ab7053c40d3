package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ferndale/homewatch/internal/correlate"
	"github.com/ferndale/homewatch/internal/entity"
	"github.com/ferndale/homewatch/internal/protocol"
)

// closeOnce wraps a channel with sync.Once to prevent double-close panics.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}

// Default timeouts and intervals for hub communication.
const (
	// defaultDialTimeout is the maximum time to wait for the socket dial.
	defaultDialTimeout = 10 * time.Second

	// defaultHandshakeTimeout bounds the auth exchange after the dial.
	defaultHandshakeTimeout = 10 * time.Second

	// defaultPingInterval is the keepalive cadence while connected.
	defaultPingInterval = 30 * time.Second

	// defaultReconnectInitial is the first reconnection delay.
	defaultReconnectInitial = time.Second

	// defaultReconnectMax caps the reconnection delay.
	defaultReconnectMax = 60 * time.Second
)

// Config holds hub connection configuration.
type Config struct {
	// URL is the hub WebSocket endpoint, e.g. "ws://hub.local:8123/api/websocket".
	URL string

	// Token is the long-lived access token presented during the auth
	// exchange. It is never logged.
	Token string

	// DialTimeout is the maximum time to wait for the socket dial.
	// Default: 10 seconds.
	DialTimeout time.Duration

	// RequestTimeout is the per-request response deadline.
	// Default: 30 seconds (applied by the correlator).
	RequestTimeout time.Duration

	// PingInterval is the keepalive cadence. Default: 30 seconds.
	PingInterval time.Duration

	// ReconnectInitial is the first reconnection delay. Default: 1s.
	ReconnectInitial time.Duration

	// ReconnectMax caps the reconnection delay. Default: 60s.
	ReconnectMax time.Duration

	// ReconnectJitter is the jitter fraction in [0, 1) applied to each
	// reconnection delay. Default: 0.25.
	ReconnectJitter float64
}

func (cfg Config) withDefaults() Config {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.ReconnectInitial == 0 {
		cfg.ReconnectInitial = defaultReconnectInitial
	}
	if cfg.ReconnectMax == 0 {
		cfg.ReconnectMax = defaultReconnectMax
	}
	if cfg.ReconnectJitter == 0 {
		cfg.ReconnectJitter = 0.25
	}
	return cfg
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Client manages the WebSocket session with the hub: connect, auth
// exchange, event subscription, state snapshot, keepalive and automatic
// reconnection with jittered exponential backoff.
//
// Lifecycle:
//   - Start launches the connection manager; it redials on loss until
//     Close is called or the context is cancelled.
//   - An auth rejection is terminal (StateFailed); retrying with the
//     same token cannot succeed.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - The socket read loop is the only goroutine that reads frames;
//     writes are serialised by a write mutex.
type Client struct {
	cfg  Config
	corr *correlate.Correlator

	connMu sync.RWMutex
	conn   *websocket.Conn

	writeMu sync.Mutex

	stateMu sync.RWMutex
	state   ConnectionState

	statusMu        sync.RWMutex
	statusListeners []func(ConnectionState)

	callbackMu     sync.RWMutex
	onStateChanged func(protocol.StateChangedData)
	onSnapshot     func([]entity.Entity)

	// eventMu orders event delivery against the per-connection
	// snapshot: events decoded before the snapshot is applied are
	// held and replayed, in arrival order, right after it.
	eventMu    sync.Mutex
	holdEvents bool
	heldEvents []protocol.StateChangedData

	versionMu  sync.RWMutex
	hubVersion string
	lastErr    error
	lastSync   time.Time

	reconnectNow chan struct{}
	started      sync.Once
	done         *closeOnce
	wg           sync.WaitGroup

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a hub client. Start must be called to connect.
func New(cfg Config) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		cfg:          cfg,
		corr:         correlate.New(cfg.RequestTimeout),
		state:        StateDisconnected,
		reconnectNow: make(chan struct{}, 1),
		done:         newCloseOnce(),
		logger:       noopLogger{},
	}
}

// SetLogger sets an optional logger for connection lifecycle events.
func (c *Client) SetLogger(l Logger) {
	c.loggerMu.Lock()
	if l != nil {
		c.logger = l
	}
	c.loggerMu.Unlock()
}

func (c *Client) log() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// SetOnStateChanged registers the callback invoked for every
// state_changed event received while connected. The callback runs on
// the socket read goroutine and must not block.
func (c *Client) SetOnStateChanged(fn func(protocol.StateChangedData)) {
	c.callbackMu.Lock()
	c.onStateChanged = fn
	c.callbackMu.Unlock()
}

// SetOnSnapshot registers the callback invoked with the full entity
// snapshot fetched after every successful (re)connection.
func (c *Client) SetOnSnapshot(fn func([]entity.Entity)) {
	c.callbackMu.Lock()
	c.onSnapshot = fn
	c.callbackMu.Unlock()
}

// SubscribeStatus registers a listener for connection state changes.
// The listener is invoked synchronously on every transition.
func (c *Client) SubscribeStatus(fn func(ConnectionState)) {
	c.statusMu.Lock()
	c.statusListeners = append(c.statusListeners, fn)
	c.statusMu.Unlock()
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// HubVersion returns the hub software version reported during the last
// handshake, or "" before the first connection.
func (c *Client) HubVersion() string {
	c.versionMu.RLock()
	defer c.versionMu.RUnlock()
	return c.hubVersion
}

// LastError returns the error behind the most recent connection loss,
// or nil if no session has failed yet. It is retained while
// reconnecting so the status surface can show why.
func (c *Client) LastError() error {
	c.versionMu.RLock()
	defer c.versionMu.RUnlock()
	return c.lastErr
}

// LastSync returns when the entity snapshot was last fetched, or the
// zero time before the first successful connection.
func (c *Client) LastSync() time.Time {
	c.versionMu.RLock()
	defer c.versionMu.RUnlock()
	return c.lastSync
}

func (c *Client) setLastError(err error) {
	c.versionMu.Lock()
	c.lastErr = err
	c.versionMu.Unlock()
}

func (c *Client) setState(s ConnectionState) {
	c.stateMu.Lock()
	if c.state == s {
		c.stateMu.Unlock()
		return
	}
	c.state = s
	c.stateMu.Unlock()

	c.statusMu.RLock()
	listeners := make([]func(ConnectionState), len(c.statusListeners))
	copy(listeners, c.statusListeners)
	c.statusMu.RUnlock()

	for _, fn := range listeners {
		fn(s)
	}
}

// Start launches the connection manager. It returns immediately; the
// manager dials, authenticates, subscribes and fetches the snapshot in
// the background, reporting progress through the status observable.
//
// Subsequent calls are no-ops.
func (c *Client) Start(ctx context.Context) {
	c.started.Do(func() {
		c.wg.Add(1)
		go c.run(ctx)
	})
}

// Close shuts the client down: the socket is closed, outstanding
// requests fail with ErrClosed and the manager goroutine exits.
func (c *Client) Close() error {
	c.done.Close()
	if conn := c.currentConn(); conn != nil {
		conn.Close()
	}
	c.wg.Wait()
	c.corr.FailAll(ErrClosed)
	return nil
}

// ReconnectNow skips the remainder of the current backoff delay. It has
// no effect unless the manager is waiting to reconnect.
func (c *Client) ReconnectNow() {
	select {
	case c.reconnectNow <- struct{}{}:
	default:
	}
}

// run is the connection manager loop: one session per iteration, with
// backoff between attempts. Exits on shutdown, context cancellation or
// auth rejection.
func (c *Client) run(ctx context.Context) {
	defer c.wg.Done()

	b := newBackoff(c.cfg.ReconnectInitial, c.cfg.ReconnectMax, c.cfg.ReconnectJitter)

	for {
		err := c.runSession(ctx, b)

		c.setConn(nil)
		c.corr.FailAll(ErrConnectionLost)

		select {
		case <-c.done.Done():
			c.setState(StateDisconnected)
			return
		case <-ctx.Done():
			c.setState(StateDisconnected)
			return
		default:
		}

		if err == nil {
			c.setState(StateDisconnected)
			return
		}
		c.setLastError(err)

		if errors.Is(err, ErrAuthRejected) {
			c.log().Error("authentication rejected, giving up", "error", err)
			c.setState(StateFailed)
			return
		}

		c.setState(StateReconnecting)
		delay := b.Next()
		c.log().Info("connection lost, reconnecting", "delay", delay.String(), "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-c.done.Done():
			timer.Stop()
			c.setState(StateDisconnected)
			return
		case <-ctx.Done():
			timer.Stop()
			c.setState(StateDisconnected)
			return
		case <-c.reconnectNow:
			timer.Stop()
			c.log().Info("reconnect requested, skipping backoff")
		case <-timer.C:
		}
	}
}

// runSession performs one full connection attempt and, on success,
// blocks until the connection drops or shutdown is requested. A nil
// return means clean shutdown.
func (c *Client) runSession(ctx context.Context, b *backoff) error {
	select {
	case <-c.done.Done():
		return nil
	case <-ctx.Done():
		return nil
	default:
	}

	c.setState(StateConnecting)

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.cfg.URL, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("%w: dial: %w", ErrConnectionLost, err)
	}
	c.setConn(conn)

	c.setState(StateAuthenticating)
	if err := c.handshake(conn); err != nil {
		conn.Close()
		return err
	}

	// New connection epoch: correlation ids restart at 1 and events
	// are held until the snapshot for this connection is applied.
	c.corr.Reset(ErrConnectionLost)
	c.eventMu.Lock()
	c.holdEvents = true
	c.heldEvents = nil
	c.eventMu.Unlock()

	readErr := make(chan error, 1)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		readErr <- c.readLoop(conn)
	}()

	c.setState(StateSubscribing)
	if err := c.establish(ctx, conn); err != nil {
		conn.Close()
		<-readErr
		return err
	}

	c.setState(StateConnected)
	b.Reset()
	c.log().Info("connected to hub", "version", c.HubVersion())

	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-readErr:
			conn.Close()
			return err
		case <-ticker.C:
			go c.ping(ctx, conn)
		case <-c.done.Done():
			conn.Close()
			<-readErr
			return nil
		case <-ctx.Done():
			conn.Close()
			<-readErr
			return nil
		}
	}
}

// handshake performs the auth exchange on a fresh socket. The hub
// speaks first with auth_required; the client answers with the token
// and expects auth_ok or auth_invalid.
func (c *Client) handshake(conn *websocket.Conn) error {
	deadline := time.Now().Add(defaultHandshakeTimeout)
	if err := conn.SetReadDeadline(deadline); err != nil {
		return fmt.Errorf("%w: set deadline: %w", ErrConnectionLost, err)
	}
	defer conn.SetReadDeadline(time.Time{}) //nolint:errcheck // clearing a deadline on a live socket cannot fail meaningfully

	frame, err := c.readFrame(conn)
	if err != nil {
		return fmt.Errorf("%w: awaiting auth_required: %w", ErrConnectionLost, err)
	}
	if frame.Type != protocol.TypeAuthRequired {
		return fmt.Errorf("%w: got %q, want %q", ErrHandshake, frame.Type, protocol.TypeAuthRequired)
	}

	if err := c.write(conn, protocol.NewAuth(c.cfg.Token)); err != nil {
		return fmt.Errorf("%w: sending auth: %w", ErrConnectionLost, err)
	}

	frame, err = c.readFrame(conn)
	if err != nil {
		return fmt.Errorf("%w: awaiting auth result: %w", ErrConnectionLost, err)
	}
	switch frame.Type {
	case protocol.TypeAuthOK:
		c.versionMu.Lock()
		c.hubVersion = frame.HAVersion
		c.versionMu.Unlock()
		return nil
	case protocol.TypeAuthInvalid:
		return fmt.Errorf("%w: %s", ErrAuthRejected, frame.Message)
	default:
		return fmt.Errorf("%w: got %q during auth", ErrHandshake, frame.Type)
	}
}

// establish subscribes to state_changed events and fetches the full
// entity snapshot. The subscription is requested first so that no
// transition can fall between snapshot and event stream.
func (c *Client) establish(ctx context.Context, conn *websocket.Conn) error {
	if _, err := c.roundTrip(ctx, conn, func(id int64) any {
		return protocol.NewSubscribeEvents(id, protocol.EventStateChanged)
	}); err != nil {
		return fmt.Errorf("subscribing to events: %w", err)
	}

	result, err := c.roundTrip(ctx, conn, func(id int64) any {
		return protocol.NewGetStates(id)
	})
	if err != nil {
		return fmt.Errorf("fetching state snapshot: %w", err)
	}

	states, err := protocol.DecodeStates(result)
	if err != nil {
		return fmt.Errorf("decoding state snapshot: %w", err)
	}

	c.callbackMu.RLock()
	onSnapshot := c.onSnapshot
	onStateChanged := c.onStateChanged
	c.callbackMu.RUnlock()

	// Events that raced ahead of the get_states result carry changes
	// the snapshot may predate, so the snapshot lands first and the
	// held events replay over it in arrival order. The read loop
	// blocks on eventMu for any event landing mid-apply, which keeps
	// the ordering strict.
	c.eventMu.Lock()
	if onSnapshot != nil {
		onSnapshot(states)
	}
	if onStateChanged != nil {
		for _, ev := range c.heldEvents {
			onStateChanged(ev)
		}
	}
	c.heldEvents = nil
	c.holdEvents = false
	c.eventMu.Unlock()

	c.versionMu.Lock()
	c.lastSync = time.Now()
	c.versionMu.Unlock()

	c.log().Debug("state snapshot applied", "entities", len(states))
	return nil
}

// readLoop is the sole reader of the socket. It routes result frames to
// the correlator, event frames to the state callback, and drops
// malformed frames without breaking the stream.
func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("%w: read: %w", ErrConnectionLost, err)
		}

		frame, err := protocol.Decode(data)
		if err != nil {
			c.log().Warn("dropping malformed frame", "error", err)
			continue
		}

		switch frame.Type {
		case protocol.TypeResult:
			c.handleResult(frame)
		case protocol.TypePong:
			c.corr.Resolve(frame.ID, nil)
		case protocol.TypeEvent:
			c.handleEvent(frame)
		default:
			c.log().Debug("ignoring frame", "type", frame.Type)
		}
	}
}

func (c *Client) handleResult(frame *protocol.Frame) {
	if frame.Succeeded() {
		if !c.corr.Resolve(frame.ID, frame.Result) {
			c.log().Debug("dropping stale response", "id", frame.ID)
		}
		return
	}

	var err error = frame.Error
	if frame.Error == nil {
		err = fmt.Errorf("request %d failed without error detail", frame.ID)
	}
	if !c.corr.Fail(frame.ID, err) {
		c.log().Debug("dropping stale response", "id", frame.ID)
	}
}

func (c *Client) handleEvent(frame *protocol.Frame) {
	ev, err := frame.DecodeEvent()
	if err != nil {
		c.log().Warn("dropping malformed event", "error", err)
		return
	}
	if ev.EventType != protocol.EventStateChanged {
		return
	}

	data, err := ev.StateChanged()
	if err != nil {
		c.log().Warn("dropping malformed state change", "error", err)
		return
	}

	c.eventMu.Lock()
	if c.holdEvents {
		c.heldEvents = append(c.heldEvents, *data)
		c.eventMu.Unlock()
		return
	}
	c.eventMu.Unlock()

	c.callbackMu.RLock()
	fn := c.onStateChanged
	c.callbackMu.RUnlock()
	if fn != nil {
		fn(*data)
	}
}

// ping sends a keepalive and awaits the pong. A missed pong forces the
// socket closed so the read loop surfaces the loss and the manager
// reconnects.
func (c *Client) ping(ctx context.Context, conn *websocket.Conn) {
	if _, err := c.roundTrip(ctx, conn, func(id int64) any {
		return protocol.NewPing(id)
	}); err != nil {
		c.log().Warn("keepalive failed, forcing reconnect", "error", err)
		conn.Close()
	}
}

// roundTrip registers a correlation slot, sends the request built with
// the allocated id and awaits the response.
func (c *Client) roundTrip(ctx context.Context, conn *websocket.Conn, build func(id int64) any) (json.RawMessage, error) {
	id, slot := c.corr.Register()
	if err := c.write(conn, build(id)); err != nil {
		c.corr.Fail(id, fmt.Errorf("%w: write: %w", ErrConnectionLost, err))
	}
	return c.corr.Await(ctx, id, slot)
}

// CallService invokes a hub service against an entity and waits for the
// acknowledgement. data carries extra service fields (brightness,
// temperature); entityID is merged into it.
//
// Returns ErrNotConnected when no session is established, the hub's
// error for a rejected call, or correlate.ErrTimeout.
func (c *Client) CallService(ctx context.Context, domain, service, entityID string, data map[string]any) error {
	conn, err := c.connectedConn()
	if err != nil {
		return err
	}
	_, err = c.roundTrip(ctx, conn, func(id int64) any {
		return protocol.NewCallService(id, domain, service, entityID, data)
	})
	if err != nil {
		return fmt.Errorf("call_service %s.%s: %w", domain, service, err)
	}
	return nil
}

// GetStates fetches a fresh full entity snapshot on demand.
func (c *Client) GetStates(ctx context.Context) ([]entity.Entity, error) {
	conn, err := c.connectedConn()
	if err != nil {
		return nil, err
	}
	result, err := c.roundTrip(ctx, conn, func(id int64) any {
		return protocol.NewGetStates(id)
	})
	if err != nil {
		return nil, fmt.Errorf("get_states: %w", err)
	}
	return protocol.DecodeStates(result)
}

// PendingRequests returns the number of requests awaiting a response.
func (c *Client) PendingRequests() int {
	return c.corr.PendingCount()
}

func (c *Client) connectedConn() (*websocket.Conn, error) {
	if c.State() != StateConnected {
		return nil, ErrNotConnected
	}
	conn := c.currentConn()
	if conn == nil {
		return nil, ErrNotConnected
	}
	return conn, nil
}

func (c *Client) currentConn() *websocket.Conn {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.conn
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
}

// write serialises and sends one frame. Writes from the manager, the
// keepalive and command goroutines are mutually excluded.
func (c *Client) write(conn *websocket.Conn, msg any) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) readFrame(conn *websocket.Conn) (*protocol.Frame, error) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return protocol.Decode(data)
}
