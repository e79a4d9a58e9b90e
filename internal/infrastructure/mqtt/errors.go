package mqtt

import "errors"

// Change feed errors. Check them with errors.Is().
var (
	// ErrOffline is returned while the feed has no broker connection.
	// Writes to the store still succeed; their change events are lost.
	ErrOffline = errors.New("mqtt: change feed is offline")

	// ErrBrokerUnreachable is returned by Connect when the broker does
	// not accept the connection in time.
	ErrBrokerUnreachable = errors.New("mqtt: broker unreachable")

	// ErrNotAnnounced is returned when a change event was not delivered
	// to the broker.
	ErrNotAnnounced = errors.New("mqtt: change event not announced")

	// ErrEventTooLarge is returned for an encoded change event above
	// maxEventSize.
	ErrEventTooLarge = errors.New("mqtt: change event too large")

	// ErrWatchFailed is returned when the broker rejects a watch or unwatch.
	ErrWatchFailed = errors.New("mqtt: watching the change feed failed")

	// ErrForeignTopic is returned for a topic outside the feed's prefix.
	ErrForeignTopic = errors.New("mqtt: topic is outside the change feed")
)
