package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/pnotes/notes-core/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	deliverTimeout = 5 * time.Second
	keepAlive      = 60 * time.Second

	// quiesceMillis lets in-flight change events drain on Close.
	quiesceMillis = 500

	// statusQoS is used for the retained status and the will, whatever
	// QoS the change events use.
	statusQoS byte = 1

	// maxEventSize bounds one encoded change event.
	maxEventSize = 64 << 10
)

// Option configures a Feed before it connects.
type Option func(*Feed)

// WithLogger sets where handler failures and reconnects are logged.
func WithLogger(log Logger) Option {
	return func(f *Feed) { f.log = log }
}

// OnConnect registers fn to run after every successful connection.
// reconnect is false for the first one.
func OnConnect(fn func(reconnect bool)) Option {
	return func(f *Feed) { f.onConnect = fn }
}

// OnDisconnect registers fn to run when the broker connection drops.
func OnDisconnect(fn func(err error)) Option {
	return func(f *Feed) { f.onDisconnect = fn }
}

// pahoOptions translates the feed configuration into paho options,
// including the will that marks this store offline if the process dies.
func pahoOptions(cfg config.MQTTConfig, topics Topics) *pahomqtt.ClientOptions {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second).
		SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second).
		SetConnectTimeout(connectTimeout).
		SetKeepAlive(keepAlive).
		SetWill(topics.SystemStatus(), string(statusPayload(cfg.Broker.ClientID, "offline", "unexpected_disconnect")), statusQoS, true)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}
	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	return opts
}

// storeStatus is the retained message on the status topic.
type storeStatus struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func statusPayload(clientID, status, reason string) []byte {
	payload, _ := json.Marshal(storeStatus{ //nolint:errcheck // Only strings
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return payload
}
