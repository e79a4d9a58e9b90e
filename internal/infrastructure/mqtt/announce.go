package mqtt

import (
	"encoding/json"
	"fmt"
)

// Announce publishes event as JSON on {prefix}/change/{entity}/{action}
// with the configured QoS. Change events are never retained: a watcher
// that joins later reloads from the store instead.
//
// Example:
//
//	err := feed.Announce("note", "created", notes.ChangeEvent{ID: 7})
func (f *Feed) Announce(entity, action string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%w: encoding %s %s: %w", ErrNotAnnounced, entity, action, err)
	}
	if len(payload) > maxEventSize {
		return fmt.Errorf("%w: %d bytes", ErrEventTooLarge, len(payload))
	}
	if !f.Connected() {
		return ErrOffline
	}

	token := f.client.Publish(f.topics.Change(entity, action), f.qos, false, payload)
	if !token.WaitTimeout(deliverTimeout) {
		return fmt.Errorf("%w: no acknowledgement after %v", ErrNotAnnounced, deliverTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrNotAnnounced, err)
	}
	return nil
}
