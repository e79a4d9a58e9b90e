package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is used when the configuration leaves the prefix empty.
const DefaultTopicPrefix = "notes"

// Topics builds the MQTT topic names of the notes change feed.
//
// Hierarchy:
//
//	{prefix}/change/{entity}/{action}   change events (not retained)
//	{prefix}/system/status              online/offline status (retained, LWT)
//
// Example:
//
//	topics := mqtt.Topics{Prefix: "notes"}
//	topics.Change("note", "created") // "notes/change/note/created"
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// Change returns the topic for one kind of change to one entity.
//
// Example: notes/change/category/deleted
func (t Topics) Change(entity, action string) string {
	return fmt.Sprintf("%s/change/%s/%s", t.prefix(), entity, action)
}

// EntityChanges returns a wildcard pattern for every change to entity.
//
// Example: notes/change/note/+
func (t Topics) EntityChanges(entity string) string {
	return fmt.Sprintf("%s/change/%s/+", t.prefix(), entity)
}

// AllChanges returns a wildcard pattern for every change event.
//
// Example: notes/change/#
func (t Topics) AllChanges() string {
	return fmt.Sprintf("%s/change/#", t.prefix())
}

// SystemStatus returns the retained status topic.
//
// Example: notes/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.prefix())
}

// Owns reports whether topic (or pattern) lies under the feed's prefix.
func (t Topics) Owns(topic string) bool {
	rest, ok := strings.CutPrefix(topic, t.prefix()+"/")
	return ok && rest != ""
}
