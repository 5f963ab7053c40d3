// Package entity provides the entity model and the authoritative
// in-memory state store for homewatch.
//
// An Entity is one remote hub object ("light.living_room",
// "climate.bedroom") carrying a hub-defined state string and a
// domain-specific attribute map. Attribute shapes differ per domain;
// rather than distinct subtypes, the package models them as a generic
// map with tolerant typed accessors (Brightness, Temperature, Room)
// that report presence alongside the value.
//
// The Store is fed exclusively by the hub event stream: the connection
// read path is the sole writer, so events are applied in the exact
// order received. Every upsert replaces the prior record wholesale and
// produces exactly one change notification. Entities are never deleted;
// hub-side removals appear as the "unavailable" state.
//
// # Usage
//
//	store := entity.NewStore()
//	store.Subscribe(func(changed []entity.Entity) {
//	    // recompute derived views
//	})
//	store.Upsert(e)
//	snapshot := store.All()
package entity
