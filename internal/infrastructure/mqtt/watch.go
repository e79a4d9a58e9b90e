package mqtt

import (
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Watch delivers every change event matching pattern to handler until
// Unwatch. Patterns may use MQTT wildcards and must lie under the feed's
// prefix, e.g. Topics().AllChanges(). Watching a pattern again replaces
// its handler. Watches are restored after a reconnect.
func (f *Feed) Watch(pattern string, handler MessageHandler) error {
	if !f.topics.Owns(pattern) {
		return fmt.Errorf("%w: %q", ErrForeignTopic, pattern)
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler", ErrWatchFailed)
	}
	if !f.Connected() {
		return ErrOffline
	}

	f.mu.Lock()
	f.watches[pattern] = handler
	f.mu.Unlock()

	if err := wait(f.client.Subscribe(pattern, f.qos, f.deliver(handler))); err != nil {
		f.mu.Lock()
		delete(f.watches, pattern)
		f.mu.Unlock()
		return err
	}
	return nil
}

// Unwatch stops delivery for a pattern passed to Watch. Events already
// in flight may still arrive.
func (f *Feed) Unwatch(pattern string) error {
	if !f.topics.Owns(pattern) {
		return fmt.Errorf("%w: %q", ErrForeignTopic, pattern)
	}
	f.mu.Lock()
	delete(f.watches, pattern)
	f.mu.Unlock()

	if !f.Connected() {
		return ErrOffline
	}
	return wait(f.client.Unsubscribe(pattern))
}

func wait(token pahomqtt.Token) error {
	if !token.WaitTimeout(deliverTimeout) {
		return fmt.Errorf("%w: no acknowledgement after %v", ErrWatchFailed, deliverTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrWatchFailed, err)
	}
	return nil
}

// deliver adapts handler to paho, logging its error and recovering a panic
// so one bad event can't stop the client's delivery goroutine.
func (f *Feed) deliver(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil && f.log != nil {
				f.log.Error("change event handler panicked", "topic", msg.Topic(), "panic", r)
			}
		}()
		if err := handler(msg.Topic(), msg.Payload()); err != nil && f.log != nil {
			f.log.Warn("change event handler failed", "topic", msg.Topic(), "error", err)
		}
	}
}
