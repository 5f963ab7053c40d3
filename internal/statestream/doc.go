// Package statestream mirrors entity state onto an MQTT broker.
//
// When enabled, every entity state change observed from the hub is
// republished as a retained JSON message under
// homewatch/state/<domain>/<object_id>, so dashboards and automations
// on the local broker can consume hub state without their own hub
// session. The mirror also maintains an online/offline presence topic
// with a Last Will for crash detection.
//
// The mirror is an optional sink: when disabled in configuration the
// rest of the application runs unaffected.
package statestream
