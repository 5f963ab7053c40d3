package session

import (
	"context"
	"fmt"
	"time"

	"github.com/ferndale/homewatch/internal/entity"
	"github.com/ferndale/homewatch/internal/favorites"
	"github.com/ferndale/homewatch/internal/hub"
	"github.com/ferndale/homewatch/internal/infrastructure/config"
	"github.com/ferndale/homewatch/internal/infrastructure/logging"
	"github.com/ferndale/homewatch/internal/protocol"
	"github.com/ferndale/homewatch/internal/statestream"
	"github.com/ferndale/homewatch/internal/telemetry"
	"github.com/ferndale/homewatch/internal/view"
)

// saveTimeout bounds each favorites persistence write.
const saveTimeout = 5 * time.Second

// Deps carries the session's collaborators. Config is required;
// everything else is optional.
type Deps struct {
	Config *config.Config
	Logger *logging.Logger

	// Favorites persists the favorites set across runs. Nil disables
	// persistence; the set still works in memory.
	Favorites favorites.Repository

	// Meta persists the active view filter and group mode across runs.
	// Nil means the view always starts from the config file.
	Meta MetaRepository

	// Mirror republishes entity state to MQTT when enabled.
	Mirror *statestream.Mirror

	// Recorder writes state history to InfluxDB when enabled.
	Recorder *telemetry.Recorder
}

// Session is the composed application: one hub connection, one entity
// store, one favorites set and one view.
//
// Thread Safety: all methods are safe for concurrent use.
type Session struct {
	cfg *config.Config
	log *logging.Logger

	hub    *hub.Client
	store  *entity.Store
	favs   *favorites.Set
	engine *view.Engine

	favRepo  favorites.Repository
	metaRepo MetaRepository
	mirror   *statestream.Mirror
	recorder *telemetry.Recorder

	// allowed is the domain allow-list. Empty means track everything.
	allowed map[string]struct{}
}

// New wires the session together. The hub is not dialled until Start.
func New(deps Deps) (*Session, error) {
	if deps.Config == nil {
		return nil, ErrNilConfig
	}
	log := deps.Logger
	if log == nil {
		log = logging.Default()
	}
	cfg := deps.Config

	filter, domains, err := view.ParseFilter(cfg.View.Filter)
	if err != nil {
		return nil, fmt.Errorf("initial filter: %w", err)
	}
	group, err := view.ParseGroupMode(cfg.View.Group)
	if err != nil {
		return nil, fmt.Errorf("initial group mode: %w", err)
	}

	s := &Session{
		cfg:      cfg,
		log:      log,
		store:    entity.NewStore(),
		favs:     favorites.NewSet(cfg.Favorites),
		favRepo:  deps.Favorites,
		metaRepo: deps.Meta,
		mirror:   deps.Mirror,
		recorder: deps.Recorder,
		allowed:  make(map[string]struct{}, len(cfg.View.Domains)),
	}
	for _, d := range cfg.View.Domains {
		s.allowed[d] = struct{}{}
	}

	s.store.SetLogger(log)

	s.hub = hub.New(hub.Config{
		URL:              cfg.Hub.WebSocketURL(),
		Token:            cfg.Hub.Token,
		RequestTimeout:   cfg.Hub.RequestTimeoutDuration(),
		PingInterval:     cfg.Hub.PingIntervalDuration(),
		ReconnectInitial: cfg.Hub.Reconnect.InitialDelayDuration(),
		ReconnectMax:     cfg.Hub.Reconnect.MaxDelayDuration(),
		ReconnectJitter:  cfg.Hub.Reconnect.Jitter,
	})
	s.hub.SetLogger(log)
	s.hub.SetOnSnapshot(s.handleSnapshot)
	s.hub.SetOnStateChanged(s.handleStateChanged)

	s.engine = view.NewEngine(s.store, s.favs, view.Config{
		Filter:  filter,
		Domains: domains,
		Group:   group,
	})

	return s, nil
}

// Start loads persisted favorites, attaches the optional sinks and
// launches the hub connection manager.
func (s *Session) Start(ctx context.Context) error {
	if s.favRepo != nil {
		ids, err := s.favRepo.Load(ctx)
		if err != nil {
			return fmt.Errorf("loading favorites: %w", err)
		}
		if len(ids) > 0 {
			s.favs.Replace(ids)
		}

		// Persist every change from here on.
		s.favs.Subscribe(func(ids []string) {
			saveCtx, cancel := context.WithTimeout(context.Background(), saveTimeout)
			defer cancel()
			if err := s.favRepo.Save(saveCtx, ids); err != nil {
				s.log.Error("persisting favorites", "error", err)
			}
		})
	}

	s.restoreViewState(ctx)

	if s.mirror != nil {
		s.mirror.SetLogger(s.log)
		s.mirror.Attach(s.store)
	}
	if s.recorder != nil {
		s.recorder.SetOnError(func(err error) {
			s.log.Warn("telemetry write failed", "error", err)
		})
		s.recorder.Attach(s.store)
	}

	s.hub.Start(ctx)
	return nil
}

// Close shuts down the hub connection and the optional sinks.
func (s *Session) Close() error {
	err := s.hub.Close()
	if s.mirror != nil {
		s.mirror.Close() //nolint:errcheck // mirror close never fails
	}
	if s.recorder != nil {
		s.recorder.Close() //nolint:errcheck // recorder close never fails
	}
	return err
}

// handleSnapshot replaces the store contents with a fresh snapshot,
// dropping entities outside the domain allow-list.
func (s *Session) handleSnapshot(states []entity.Entity) {
	s.store.ApplySnapshot(s.filterEntities(states))
}

// handleStateChanged applies one state transition. A null new state
// means the hub removed the entity; the store retains the last known
// state rather than invent one.
func (s *Session) handleStateChanged(data protocol.StateChangedData) {
	if data.NewState == nil {
		s.log.Debug("entity removed upstream, retaining last state", "entity", data.EntityID)
		return
	}
	if !s.allow(data.EntityID) {
		return
	}
	s.store.Upsert(*data.NewState)
}

func (s *Session) filterEntities(states []entity.Entity) []entity.Entity {
	if len(s.allowed) == 0 {
		return states
	}
	out := make([]entity.Entity, 0, len(states))
	for _, e := range states {
		if s.allow(e.ID) {
			out = append(out, e)
		}
	}
	return out
}

func (s *Session) allow(entityID string) bool {
	if len(s.allowed) == 0 {
		return true
	}
	_, ok := s.allowed[entity.DomainOf(entityID)]
	return ok
}

// Status returns the hub connection state.
func (s *Session) Status() hub.ConnectionState {
	return s.hub.State()
}

// SubscribeStatus registers a listener for connection state changes.
func (s *Session) SubscribeStatus(fn func(hub.ConnectionState)) {
	s.hub.SubscribeStatus(fn)
}

// SubscribeView registers a listener for recomputed view sequences.
func (s *Session) SubscribeView(fn func(ids []string)) {
	s.engine.Subscribe(fn)
}

// Sequence returns the current ordered entity id sequence.
func (s *Session) Sequence() []string {
	return s.engine.Current()
}

// Entity returns one entity by id.
func (s *Session) Entity(id string) (*entity.Entity, bool) {
	return s.store.Get(id)
}

// Entities returns all tracked entities sorted by id.
func (s *Session) Entities() []entity.Entity {
	return s.store.All()
}

// ViewConfig returns the active view configuration.
func (s *Session) ViewConfig() view.Config {
	return s.engine.Config()
}

// SetFilter applies a filter spec: "all", "favorites" or a
// comma-separated domain list. The accepted spec persists across runs.
func (s *Session) SetFilter(spec string) error {
	if err := s.engine.SetFilter(spec); err != nil {
		return err
	}
	s.saveMeta(metaKeyFilter, spec)
	return nil
}

// SetGroup applies a group mode. The accepted mode persists across runs.
func (s *Session) SetGroup(mode string) error {
	if err := s.engine.SetGroup(mode); err != nil {
		return err
	}
	s.saveMeta(metaKeyGroup, mode)
	return nil
}

// restoreViewState reapplies the persisted filter and group mode.
// A stale or invalid stored value is logged and skipped; the view keeps
// its configured start state.
func (s *Session) restoreViewState(ctx context.Context) {
	if s.metaRepo == nil {
		return
	}

	if spec, ok, err := s.metaRepo.Get(ctx, metaKeyFilter); err != nil {
		s.log.Warn("loading persisted filter", "error", err)
	} else if ok {
		if err := s.engine.SetFilter(spec); err != nil {
			s.log.Warn("ignoring persisted filter", "filter", spec, "error", err)
		}
	}

	if mode, ok, err := s.metaRepo.Get(ctx, metaKeyGroup); err != nil {
		s.log.Warn("loading persisted group mode", "error", err)
	} else if ok {
		if err := s.engine.SetGroup(mode); err != nil {
			s.log.Warn("ignoring persisted group mode", "group", mode, "error", err)
		}
	}
}

func (s *Session) saveMeta(key, value string) {
	if s.metaRepo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := s.metaRepo.Set(ctx, key, value); err != nil {
		s.log.Error("persisting session state", "key", key, "error", err)
	}
}

// SetSearch applies a search term; empty clears it.
func (s *Session) SetSearch(term string) {
	s.engine.SetSearch(term)
}

// Counts returns filter bar tallies for the configured domains.
func (s *Session) Counts() map[string]int {
	return s.engine.Counts(s.cfg.View.Domains)
}

// ToggleFavorite flips an entity's favorite status and returns the new
// membership. The change persists through the repository when one is
// configured.
func (s *Session) ToggleFavorite(id string) bool {
	return s.favs.Toggle(id)
}

// IsFavorite reports whether an entity is favorited.
func (s *Session) IsFavorite(id string) bool {
	return s.favs.IsFavorite(id)
}

// Favorites returns the favorited entity ids sorted.
func (s *Session) Favorites() []string {
	return s.favs.All()
}

// CallService invokes a hub service against an entity. The target is
// not validated against the store; services addressing entities outside
// the tracked domains go through as-is.
func (s *Session) CallService(ctx context.Context, domain, service, entityID string, data map[string]any) error {
	return s.hub.CallService(ctx, domain, service, entityID, data)
}

// known rejects ids the store has never seen, so a typed command fails
// locally with ErrUnknownEntity instead of a doomed round-trip.
func (s *Session) known(id string) error {
	if _, ok := s.store.Get(id); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, id)
	}
	return nil
}

// Toggle flips an entity between on and off using the hub's generic
// toggle service, which works across domains.
func (s *Session) Toggle(ctx context.Context, entityID string) error {
	if err := s.known(entityID); err != nil {
		return err
	}
	return s.hub.CallService(ctx, "homeassistant", "toggle", entityID, nil)
}

// TurnOn switches an entity on.
func (s *Session) TurnOn(ctx context.Context, entityID string) error {
	if err := s.known(entityID); err != nil {
		return err
	}
	return s.hub.CallService(ctx, "homeassistant", "turn_on", entityID, nil)
}

// TurnOff switches an entity off.
func (s *Session) TurnOff(ctx context.Context, entityID string) error {
	if err := s.known(entityID); err != nil {
		return err
	}
	return s.hub.CallService(ctx, "homeassistant", "turn_off", entityID, nil)
}

// SetBrightness sets a light's brightness (0-255).
func (s *Session) SetBrightness(ctx context.Context, entityID string, brightness int) error {
	if err := s.known(entityID); err != nil {
		return err
	}
	return s.hub.CallService(ctx, "light", "turn_on", entityID, map[string]any{
		"brightness": brightness,
	})
}

// SetTemperature sets a climate entity's target temperature.
func (s *Session) SetTemperature(ctx context.Context, entityID string, temperature float64) error {
	if err := s.known(entityID); err != nil {
		return err
	}
	return s.hub.CallService(ctx, "climate", "set_temperature", entityID, map[string]any{
		"temperature": temperature,
	})
}

// SetHVACMode sets a climate entity's operating mode.
func (s *Session) SetHVACMode(ctx context.Context, entityID string, mode string) error {
	if err := s.known(entityID); err != nil {
		return err
	}
	return s.hub.CallService(ctx, "climate", "set_hvac_mode", entityID, map[string]any{
		"hvac_mode": mode,
	})
}

// RefreshStates fetches a fresh snapshot on demand, outside the
// automatic per-connection fetch.
func (s *Session) RefreshStates(ctx context.Context) error {
	states, err := s.hub.GetStates(ctx)
	if err != nil {
		return err
	}
	s.handleSnapshot(states)
	return nil
}

// ReconnectNow skips the current reconnection backoff delay.
func (s *Session) ReconnectNow() {
	s.hub.ReconnectNow()
}

// HubVersion returns the hub software version from the last handshake.
func (s *Session) HubVersion() string {
	return s.hub.HubVersion()
}

// LastError returns the error behind the most recent connection loss.
func (s *Session) LastError() error {
	return s.hub.LastError()
}

// LastSync returns when the entity snapshot was last fetched.
func (s *Session) LastSync() time.Time {
	return s.hub.LastSync()
}

// PendingRequests returns the number of hub requests awaiting replies.
func (s *Session) PendingRequests() int {
	return s.hub.PendingRequests()
}
