// Package session composes the application: hub connection, entity
// store, favorites, view engine and the optional state mirror and
// telemetry sinks, wired into one object the front end drives.
//
// The session owns the data flow. Snapshots and state_changed events
// from the hub land in the entity store (filtered by the configured
// domain allow-list), store and favorites changes trigger view
// recomputation, and favorites changes are persisted through the
// repository. Commands — filter, group, search, favorite toggles and
// service calls — enter through session methods.
package session
