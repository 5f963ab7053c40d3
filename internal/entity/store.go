package entity

import (
	"sort"
	"sync"
)

// Logger defines the logging interface used by the Store.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ChangeFunc is invoked after each logical store change with deep copies
// of the changed entities. A single upsert produces a one-element slice;
// applying a snapshot produces one call carrying every snapshot entity.
//
// Listeners run synchronously on the mutating goroutine, outside the
// store lock. They must be fast; anything slow belongs on the listener's
// own worker.
type ChangeFunc func(changed []Entity)

// Store is the authoritative in-memory mapping from entity id to the
// current entity snapshot. It is updated only from the hub event stream:
// one goroutine writes, any number read.
//
// Entities are never deleted during a session. A hub-side removal shows
// up as the "unavailable" state, preserving display continuity.
//
// All public methods are thread-safe.
type Store struct {
	mu       sync.RWMutex
	entities map[string]*Entity

	listenerMu sync.RWMutex
	listeners  []ChangeFunc

	logger Logger
}

// NewStore creates an empty entity store.
func NewStore() *Store {
	return &Store{
		entities: make(map[string]*Entity),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// Subscribe registers a change listener. Listeners cannot be removed;
// the store lives exactly as long as the session that owns it.
func (s *Store) Subscribe(fn ChangeFunc) {
	s.listenerMu.Lock()
	s.listeners = append(s.listeners, fn)
	s.listenerMu.Unlock()
}

// Upsert inserts or wholesale-replaces the entity with the given id and
// notifies listeners once. The prior record's attributes are discarded,
// never merged.
func (s *Store) Upsert(e Entity) {
	stored := e.DeepCopy()

	s.mu.Lock()
	s.entities[e.ID] = stored
	s.mu.Unlock()

	s.logger.Debug("entity upserted", "id", e.ID, "state", e.State)
	s.notify([]Entity{*e.DeepCopy()})
}

// ApplySnapshot merges a full entity snapshot into the store as one
// logical change: every snapshot entity replaces its prior record, and
// listeners are notified exactly once. Entities absent from the snapshot
// are retained; the hub reports removals as "unavailable" states.
func (s *Store) ApplySnapshot(entities []Entity) {
	changed := make([]Entity, 0, len(entities))

	s.mu.Lock()
	for i := range entities {
		e := entities[i]
		s.entities[e.ID] = e.DeepCopy()
		changed = append(changed, *e.DeepCopy())
	}
	s.mu.Unlock()

	s.logger.Info("snapshot applied", "count", len(entities), "total", s.Count())
	s.notify(changed)
}

// Get retrieves an entity by id.
// The returned entity is a deep copy; callers can safely modify it.
func (s *Store) Get(id string) (*Entity, bool) {
	s.mu.RLock()
	e, ok := s.entities[id]
	s.mu.RUnlock()

	if !ok {
		return nil, false
	}
	return e.DeepCopy(), true
}

// All returns a consistent snapshot of every entity, ordered by id.
// The returned entities are deep copies; callers can safely modify them.
func (s *Store) All() []Entity {
	s.mu.RLock()
	out := make([]Entity, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, *e.DeepCopy())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of known entities.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}

// notify runs every listener with the changed set, outside the store lock.
func (s *Store) notify(changed []Entity) {
	if len(changed) == 0 {
		return
	}

	s.listenerMu.RLock()
	listeners := make([]ChangeFunc, len(s.listeners))
	copy(listeners, s.listeners)
	s.listenerMu.RUnlock()

	for _, fn := range listeners {
		fn(changed)
	}
}
