package favorites

import (
	"context"
	"sort"
	"sync"
)

// ChangeFunc is invoked after every membership change with a sorted
// snapshot of the set. Persistence and view recomputation hook in here.
type ChangeFunc func(ids []string)

// Repository persists the favorites set across sessions. The Set itself
// never touches disk; the owner wires Load at startup and Save through
// Subscribe.
type Repository interface {
	Load(ctx context.Context) ([]string, error)
	Save(ctx context.Context, ids []string) error
}

// Set is the in-memory collection of favorite entity ids.
//
// Membership is independent of the entity store's lifecycle: an id may
// be marked favorite while its entity is absent, e.g. across reconnect
// gaps. Toggling twice restores the original membership.
//
// All public methods are thread-safe.
type Set struct {
	mu  sync.RWMutex
	ids map[string]struct{}

	listenerMu sync.RWMutex
	listeners  []ChangeFunc
}

// NewSet creates a favorites set seeded with the given ids.
func NewSet(initial []string) *Set {
	s := &Set{
		ids: make(map[string]struct{}, len(initial)),
	}
	for _, id := range initial {
		s.ids[id] = struct{}{}
	}
	return s
}

// Subscribe registers a change listener. Listeners run synchronously on
// the toggling goroutine, after the mutation, outside the set lock.
func (s *Set) Subscribe(fn ChangeFunc) {
	s.listenerMu.Lock()
	s.listeners = append(s.listeners, fn)
	s.listenerMu.Unlock()
}

// Toggle flips membership for id and reports the new state.
func (s *Set) Toggle(id string) bool {
	s.mu.Lock()
	_, present := s.ids[id]
	if present {
		delete(s.ids, id)
	} else {
		s.ids[id] = struct{}{}
	}
	s.mu.Unlock()

	s.notify()
	return !present
}

// IsFavorite reports whether id is in the set.
func (s *Set) IsFavorite(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

// All returns the members sorted by id.
func (s *Set) All() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	s.mu.RUnlock()

	sort.Strings(out)
	return out
}

// Snapshot returns membership as a lookup map, for consumers that test
// many ids per pass (the view engine).
func (s *Set) Snapshot() map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]struct{}, len(s.ids))
	for id := range s.ids {
		out[id] = struct{}{}
	}
	return out
}

// Replace swaps the whole membership, e.g. after a repository load.
func (s *Set) Replace(ids []string) {
	s.mu.Lock()
	s.ids = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	s.mu.Unlock()

	s.notify()
}

// Len returns the number of favorites.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

func (s *Set) notify() {
	snapshot := s.All()

	s.listenerMu.RLock()
	listeners := make([]ChangeFunc, len(s.listeners))
	copy(listeners, s.listeners)
	s.listenerMu.RUnlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}
