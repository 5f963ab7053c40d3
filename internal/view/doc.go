// Package view derives the ordered, filtered, grouped, searchable
// entity list from the state store and favorites set.
//
// The heart of the package is Compute, a pure function: given an entity
// snapshot, a favorites lookup and a Config it always produces the same
// ordered id sequence. Filtering (all / favorites / domain set plus
// case-insensitive substring search), grouping (none / type / room /
// state / favorites-first) and a deterministic in-bucket sort
// (lowercased friendly name, then id) are applied in that order.
//
// Engine wraps Compute with the live inputs: it subscribes to store and
// favorites changes and recomputes on every upsert, toggle and config
// command. Rebuilding from scratch per change is linear in the entity
// count, comfortably fast for a high-frequency event stream.
package view
