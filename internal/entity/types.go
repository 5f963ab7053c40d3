package entity

import (
	"strings"
	"time"
)

// StateUnavailable is the hub-defined state string for entities that have
// disappeared from the hub. Entities are never removed from the store;
// they transition to this state instead.
const StateUnavailable = "unavailable"

// Entity is a snapshot of one remote hub object, identified by
// "<domain>.<object_id>". The attribute map is domain-specific and is
// replaced wholesale on every update, never merged field by field.
type Entity struct {
	ID          string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged time.Time      `json:"last_changed"`
	LastUpdated time.Time      `json:"last_updated"`
}

// DomainOf returns the category prefix of an entity id (e.g. "light"
// for "light.living_room"). Returns the whole id if it carries no dot.
func DomainOf(id string) string {
	if i := strings.IndexByte(id, '.'); i >= 0 {
		return id[:i]
	}
	return id
}

// Domain returns the category prefix of the entity id.
func (e *Entity) Domain() string {
	return DomainOf(e.ID)
}

// ObjectID returns the part of the entity id after the domain prefix.
func (e *Entity) ObjectID() string {
	if i := strings.IndexByte(e.ID, '.'); i >= 0 {
		return e.ID[i+1:]
	}
	return e.ID
}

// FriendlyName returns the human-readable name from the attributes,
// falling back to the entity id when absent.
func (e *Entity) FriendlyName() string {
	if name, ok := e.Attributes["friendly_name"].(string); ok && name != "" {
		return name
	}
	return e.ID
}

// Available reports whether the hub still exposes this entity.
func (e *Entity) Available() bool {
	return e.State != StateUnavailable
}

// DeepCopy returns a copy of the entity with its own attribute map.
// Callers can safely modify the copy without affecting store state.
func (e *Entity) DeepCopy() *Entity {
	if e == nil {
		return nil
	}
	copied := *e
	copied.Attributes = deepCopyMap(e.Attributes)
	return &copied
}

// deepCopyMap recursively copies a JSON-shaped attribute map.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		// Scalars (string, float64, bool, nil) are immutable.
		return v
	}
}
