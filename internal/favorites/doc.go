// Package favorites provides the favorites set: entity ids the user has
// marked for quick access.
//
// The set is purely in-memory and independent of the entity store — an
// id can be a favorite while its entity is absent, e.g. across
// reconnect gaps. Toggling is idempotent-reversible: toggling twice
// restores the original membership.
//
// Persistence is a hook, not a behavior of the set: the session loads
// the initial membership through a Repository and saves changes from a
// Subscribe listener. SQLiteRepository is the bundled implementation.
package favorites
