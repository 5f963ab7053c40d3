package view

import (
	"sync"

	"github.com/ferndale/homewatch/internal/entity"
	"github.com/ferndale/homewatch/internal/favorites"
)

// Engine maintains the derived view: the ordered entity id sequence
// produced by Compute over the current store snapshot, favorites set
// and view config.
//
// The engine subscribes to store and favorites changes at construction;
// every change — including each keystroke of a live search — runs the
// same recomputation path. Recomputation is linear in the entity count
// and runs synchronously on the notifying goroutine, outside the socket
// read path's critical section.
//
// Thread Safety: all public methods are safe for concurrent use.
type Engine struct {
	store *entity.Store
	favs  *favorites.Set

	// recomputeMu serialises whole recomputation passes, input read
	// through listener notification, so a pass over older inputs can
	// never overwrite or out-shout one over newer inputs.
	recomputeMu sync.Mutex

	mu      sync.RWMutex
	cfg     Config
	current []string

	listenerMu sync.RWMutex
	listeners  []func(ids []string)
}

// NewEngine creates the view engine and wires it to its inputs.
// The initial sequence is computed immediately from the store contents.
func NewEngine(store *entity.Store, favs *favorites.Set, initial Config) *Engine {
	e := &Engine{
		store: store,
		favs:  favs,
		cfg:   initial.clone(),
	}

	store.Subscribe(func([]entity.Entity) { e.Recompute() })
	favs.Subscribe(func([]string) { e.Recompute() })

	e.Recompute()
	return e
}

// Subscribe registers a listener for recomputed sequences. The listener
// receives the full ordered id slice after every recomputation.
func (e *Engine) Subscribe(fn func(ids []string)) {
	e.listenerMu.Lock()
	e.listeners = append(e.listeners, fn)
	e.listenerMu.Unlock()
}

// Current returns the latest computed sequence.
func (e *Engine) Current() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]string, len(e.current))
	copy(out, e.current)
	return out
}

// Config returns a copy of the active view configuration.
func (e *Engine) Config() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg.clone()
}

// SetFilter applies a filter spec ("all", "favorites" or a
// comma-separated domain list) and recomputes.
//
// An invalid spec returns ErrInvalidFilter and leaves the prior config
// unchanged; nothing is sent to the hub.
func (e *Engine) SetFilter(spec string) error {
	mode, domains, err := ParseFilter(spec)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.cfg.Filter = mode
	e.cfg.Domains = domains
	e.mu.Unlock()

	e.Recompute()
	return nil
}

// SetGroup applies a group mode and recomputes.
//
// An unknown mode returns ErrUnknownGroupMode and leaves the prior
// config unchanged.
func (e *Engine) SetGroup(mode string) error {
	parsed, err := ParseGroupMode(mode)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.cfg.Group = parsed
	e.mu.Unlock()

	e.Recompute()
	return nil
}

// SetSearch applies a search term and recomputes. An empty term clears
// the search. Every keystroke of a live search lands here.
func (e *Engine) SetSearch(term string) {
	e.mu.Lock()
	e.cfg.Search = term
	e.mu.Unlock()

	e.Recompute()
}

// Counts returns filter bar tallies for the given domains.
func (e *Engine) Counts(domains []string) map[string]int {
	return Counts(e.store.All(), e.favs.Snapshot(), domains)
}

// Recompute rebuilds the sequence from current inputs and notifies
// listeners. Passes run one at a time; each reads its inputs after the
// previous pass finished, so the stored sequence and the last
// notification always reflect the freshest inputs.
func (e *Engine) Recompute() {
	e.recomputeMu.Lock()
	defer e.recomputeMu.Unlock()

	entities := e.store.All()
	favs := e.favs.Snapshot()

	e.mu.Lock()
	e.current = Compute(entities, favs, e.cfg)
	ids := make([]string, len(e.current))
	copy(ids, e.current)
	e.mu.Unlock()

	e.listenerMu.RLock()
	listeners := make([]func([]string), len(e.listeners))
	copy(listeners, e.listeners)
	e.listenerMu.RUnlock()

	for _, fn := range listeners {
		fn(ids)
	}
}
