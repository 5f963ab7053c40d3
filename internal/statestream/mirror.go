package statestream

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ferndale/homewatch/internal/entity"
	"github.com/ferndale/homewatch/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for initial connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 60 * time.Second

	// reconnectInitialDelay is the first broker reconnect delay.
	reconnectInitialDelay = time.Second

	// reconnectMaxDelay caps the broker reconnect delay.
	reconnectMaxDelay = 2 * time.Minute

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12

	// publishQueueSize bounds the backlog between the store listener
	// and the publisher goroutine. Overflow drops the change; the
	// retained topic heals on the next one.
	publishQueueSize = 256
)

// Logger interface for optional logging support.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Mirror republishes entity state to an MQTT broker as retained
// messages. Reconnection is delegated to the paho client; messages
// published while disconnected are dropped, which is acceptable because
// every topic is retained and the next change overwrites it.
//
// Thread Safety: all methods are safe for concurrent use.
type Mirror struct {
	client pahomqtt.Client
	cfg    config.StatestreamConfig

	connMu    sync.RWMutex
	connected bool

	// Store changes are handed to a publisher goroutine through queue
	// so awaiting broker acks never blocks the notifying goroutine,
	// which for live events is the socket read loop.
	queue     chan entity.Entity
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup

	logger   Logger
	loggerMu sync.RWMutex
}

// statePayload is the JSON document published per entity.
type statePayload struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	LastChanged time.Time      `json:"last_changed"`
	LastUpdated time.Time      `json:"last_updated"`
}

// Connect establishes the broker connection, configures the Last Will
// on the presence topic and publishes online status.
func Connect(cfg config.StatestreamConfig) (*Mirror, error) {
	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)

	m := &Mirror{cfg: cfg}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		m.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		m.handleDisconnect(err)
	})

	m.client = pahomqtt.NewClient(opts)
	token := m.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	m.connMu.Lock()
	m.connected = true
	m.connMu.Unlock()

	return m, nil
}

// buildClientOptions creates paho MQTT options from the mirror config.
func buildClientOptions(cfg config.StatestreamConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))

	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(reconnectInitialDelay)
	opts.SetMaxReconnectInterval(reconnectMaxDelay)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}

	return opts
}

// configureLWT sets the Last Will so the broker flips the presence
// topic to offline if the mirror disconnects unexpectedly.
func configureLWT(opts *pahomqtt.ClientOptions, clientID string) {
	payload := fmt.Sprintf(
		`{"status":"offline","client_id":"%s","reason":"unexpected_disconnect","timestamp":"%s"}`,
		clientID,
		time.Now().UTC().Format(time.RFC3339),
	)
	opts.SetWill(StatusTopic(), payload, 1, true)
}

func (m *Mirror) handleConnect() {
	m.connMu.Lock()
	m.connected = true
	m.connMu.Unlock()

	m.publishStatus("online", "")
}

func (m *Mirror) handleDisconnect(err error) {
	m.connMu.Lock()
	m.connected = false
	m.connMu.Unlock()

	if logger := m.getLogger(); logger != nil && err != nil {
		logger.Warn("broker connection lost", "error", err)
	}
}

func (m *Mirror) publishStatus(status, reason string) {
	payload := fmt.Sprintf(`{"status":"%s","client_id":"%s","timestamp":"%s"}`,
		status, m.cfg.Broker.ClientID, time.Now().UTC().Format(time.RFC3339))
	if reason != "" {
		payload = fmt.Sprintf(`{"status":"%s","client_id":"%s","reason":"%s","timestamp":"%s"}`,
			status, m.cfg.Broker.ClientID, reason, time.Now().UTC().Format(time.RFC3339))
	}
	m.client.Publish(StatusTopic(), byte(m.cfg.QoS), true, payload)
}

// Attach subscribes the mirror to store changes. The listener only
// enqueues; a publisher goroutine does the broker round-trips, so a
// slow broker never stalls the goroutine applying state changes.
// Publish failures and queue overflow are logged and dropped; the
// retained topic heals on the next change.
func (m *Mirror) Attach(store *entity.Store) {
	m.startOnce.Do(func() {
		m.queue = make(chan entity.Entity, publishQueueSize)
		m.done = make(chan struct{})
		m.wg.Add(1)
		go m.publishLoop()
	})

	store.Subscribe(func(changed []entity.Entity) {
		for _, e := range changed {
			select {
			case m.queue <- e:
			default:
				if logger := m.getLogger(); logger != nil {
					logger.Warn("state publish dropped, queue full", "entity", e.ID)
				}
			}
		}
	})
}

func (m *Mirror) publishLoop() {
	defer m.wg.Done()
	for {
		select {
		case e := <-m.queue:
			if err := m.PublishState(e); err != nil {
				if logger := m.getLogger(); logger != nil {
					logger.Warn("state publish dropped", "entity", e.ID, "error", err)
				}
			}
		case <-m.done:
			return
		}
	}
}

// PublishState publishes one entity's state as a retained message on
// its state topic.
func (m *Mirror) PublishState(e entity.Entity) error {
	if !m.IsConnected() {
		return ErrNotConnected
	}

	payload, err := json.Marshal(statePayload{
		EntityID:    e.ID,
		State:       e.State,
		Attributes:  e.Attributes,
		LastChanged: e.LastChanged,
		LastUpdated: e.LastUpdated,
	})
	if err != nil {
		return fmt.Errorf("%w: encoding %s: %w", ErrPublishFailed, e.ID, err)
	}

	topic := StateTopic(e.Domain(), e.ObjectID())
	token := m.client.Publish(topic, byte(m.cfg.QoS), true, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// IsConnected returns the current broker connection state.
func (m *Mirror) IsConnected() bool {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	return m.client != nil && m.connected && m.client.IsConnected()
}

// SetLogger sets a logger for dropped publishes and connection events.
func (m *Mirror) SetLogger(logger Logger) {
	m.loggerMu.Lock()
	m.logger = logger
	m.loggerMu.Unlock()
}

func (m *Mirror) getLogger() Logger {
	m.loggerMu.RLock()
	defer m.loggerMu.RUnlock()
	return m.logger
}

// Close stops the publisher, publishes a graceful offline status and
// disconnects.
func (m *Mirror) Close() error {
	if m.done != nil {
		m.stopOnce.Do(func() { close(m.done) })
		m.wg.Wait()
	}

	if m.client == nil {
		return nil
	}

	if m.IsConnected() {
		m.publishStatus("offline", "graceful_shutdown")
	}
	m.client.Disconnect(defaultDisconnectQuiesce)

	m.connMu.Lock()
	m.connected = false
	m.connMu.Unlock()

	return nil
}
