package statestream

import "fmt"

// topicPrefix roots every topic the mirror publishes.
const topicPrefix = "homewatch"

// StateTopic returns the retained state topic for an entity,
// e.g. homewatch/state/light/living_room.
func StateTopic(domain, objectID string) string {
	return fmt.Sprintf("%s/state/%s/%s", topicPrefix, domain, objectID)
}

// StatusTopic returns the mirror presence topic. The broker publishes
// the Last Will here if the mirror disconnects unexpectedly.
func StatusTopic() string {
	return topicPrefix + "/system/status"
}
