// Package telemetry records entity state history to InfluxDB.
//
// When enabled, every state change observed from the hub is written as
// a point in the state_history measurement, tagged by entity id and
// domain. Numeric states (sensor readings, brightness, temperatures)
// additionally carry a parsed value field so they can be graphed
// directly.
//
// Writes are non-blocking and batched by the InfluxDB client; the
// recorder never slows the socket read path. Telemetry is optional:
// when disabled in configuration the rest of the application runs
// unaffected.
package telemetry
