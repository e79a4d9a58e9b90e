package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/pnotes/notes-core/internal/infrastructure/config"
)

// Logger is the logging surface the feed needs.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MessageHandler receives one change event from a watched pattern.
// Handlers run on paho's goroutines; a returned error is logged.
type MessageHandler func(topic string, payload []byte) error

// Feed announces store changes on an MQTT broker and lets other
// processes watch them. It also keeps a retained online/offline status
// for the store, backed by a broker-side will.
//
// All methods are safe for concurrent use. Watches survive reconnects.
type Feed struct {
	client   pahomqtt.Client
	clientID string
	qos      byte
	topics   Topics

	log          Logger
	onConnect    func(reconnect bool)
	onDisconnect func(err error)

	online   atomic.Bool
	connects atomic.Int64

	mu      sync.Mutex
	watches map[string]MessageHandler
}

// Connect dials the broker described by cfg and waits up to
// connectTimeout for the first connection. Options take effect before
// the connection is attempted.
//
// Parameters:
//   - cfg: MQTT section of the configuration
//   - opts: Logger and connection hooks
//
// Returns:
//   - *Feed: Connected feed; announce its status as online
//   - error: ErrBrokerUnreachable when the broker can't be reached in time
func Connect(cfg config.MQTTConfig, opts ...Option) (*Feed, error) {
	f := &Feed{
		clientID: cfg.Broker.ClientID,
		qos:      byte(cfg.QoS), //nolint:gosec // Validated to 0-2 by config
		topics:   Topics{Prefix: cfg.TopicPrefix},
		watches:  make(map[string]MessageHandler),
	}
	for _, opt := range opts {
		opt(f)
	}

	po := pahoOptions(cfg, f.topics).
		SetOnConnectHandler(func(pahomqtt.Client) { f.connected() }).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { f.lost(err) }).
		SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
			if f.log != nil {
				f.log.Warn("MQTT change feed reconnecting", "broker", cfg.Broker.Host)
			}
		})

	f.client = pahomqtt.NewClient(po)
	token := f.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		// Stop the retry loop started by SetConnectRetry.
		f.client.Disconnect(0)
		return nil, fmt.Errorf("%w: no connection after %v", ErrBrokerUnreachable, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBrokerUnreachable, err)
	}

	// The connect handler runs asynchronously; Connected must be true on return.
	f.online.Store(true)
	return f, nil
}

// connected runs on every (re)connection: it restores watches, marks the
// store online and calls the OnConnect hook.
func (f *Feed) connected() {
	f.online.Store(true)
	reconnect := f.connects.Add(1) > 1

	f.mu.Lock()
	for pattern, handler := range f.watches {
		f.client.Subscribe(pattern, f.qos, f.deliver(handler))
	}
	f.mu.Unlock()

	f.client.Publish(f.topics.SystemStatus(), statusQoS, true, statusPayload(f.clientID, "online", ""))

	if f.onConnect != nil {
		f.onConnect(reconnect)
	}
}

func (f *Feed) lost(err error) {
	f.online.Store(false)
	if f.onDisconnect != nil {
		f.onDisconnect(err)
	}
}

// Close marks the store offline with a retained status, lets pending
// events drain and disconnects. Closing a nil or unconnected Feed is a no-op.
func (f *Feed) Close() error {
	if f == nil || f.client == nil {
		return nil
	}
	if f.Connected() {
		token := f.client.Publish(f.topics.SystemStatus(), statusQoS, true,
			statusPayload(f.clientID, "offline", "graceful_shutdown"))
		token.WaitTimeout(deliverTimeout)
	}
	f.client.Disconnect(quiesceMillis)
	f.online.Store(false)
	return nil
}

// Connected reports the last known connection state.
func (f *Feed) Connected() bool {
	return f != nil && f.client != nil && f.online.Load() && f.client.IsConnected()
}

// HealthCheck returns ErrOffline unless the feed is connected.
func (f *Feed) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !f.Connected() {
		return ErrOffline
	}
	return nil
}

// Topics returns the topic builder for the configured prefix.
func (f *Feed) Topics() Topics {
	return f.topics
}
