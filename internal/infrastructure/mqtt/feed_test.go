package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/pnotes/notes-core/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
// Only the integration tests need a broker at 127.0.0.1:1883.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "notes-test",
		},
		QoS:         1,
		TopicPrefix: "notes-test",
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

func TestTopics(t *testing.T) {
	topics := Topics{Prefix: "notes"}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"change", topics.Change("note", "created"), "notes/change/note/created"},
		{"category change", topics.Change("category", "deleted"), "notes/change/category/deleted"},
		{"entity changes", topics.EntityChanges("note"), "notes/change/note/+"},
		{"all changes", topics.AllChanges(), "notes/change/#"},
		{"status", topics.SystemStatus(), "notes/system/status"},
		{"default prefix", Topics{}.SystemStatus(), "notes/system/status"},
		{"nested prefix", Topics{Prefix: "home/desk"}.Change("note", "moved"), "home/desk/change/note/moved"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestTopics_Owns(t *testing.T) {
	topics := Topics{Prefix: "notes"}

	tests := []struct {
		topic string
		want  bool
	}{
		{"notes/change/#", true},
		{"notes/change/note/created", true},
		{"notes/", false},
		{"notes", false},
		{"notesx/change/#", false},
		{"#", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			if got := topics.Owns(tt.topic); got != tt.want {
				t.Errorf("Owns(%q) = %v, want %v", tt.topic, got, tt.want)
			}
		})
	}
}

func TestPahoOptions(t *testing.T) {
	tests := []struct {
		name       string
		tls        bool
		username   string
		wantServer string
	}{
		{name: "plain with auth", username: "reader", wantServer: "tcp://127.0.0.1:1883"},
		{name: "tls", tls: true, wantServer: "ssl://127.0.0.1:1883"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Broker.TLS = tt.tls
			cfg.Auth = config.MQTTAuthConfig{Username: tt.username, Password: "secret"}

			opts := pahoOptions(cfg, Topics{Prefix: cfg.TopicPrefix})

			if len(opts.Servers) != 1 || opts.Servers[0].String() != tt.wantServer {
				t.Errorf("Servers = %v, want [%s]", opts.Servers, tt.wantServer)
			}
			if opts.ClientID != "notes-test" || !opts.AutoReconnect {
				t.Errorf("ClientID = %q AutoReconnect = %v", opts.ClientID, opts.AutoReconnect)
			}
			if tt.username != "" && (opts.Username != tt.username || opts.Password != "secret") {
				t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
			}
			if tt.username == "" && opts.Username != "" {
				t.Errorf("Username = %q, want none", opts.Username)
			}
			if tt.tls != (opts.TLSConfig != nil && opts.TLSConfig.MinVersion != 0) {
				t.Errorf("TLSConfig = %+v with tls = %v", opts.TLSConfig, tt.tls)
			}

			if !opts.WillEnabled || opts.WillTopic != "notes-test/system/status" {
				t.Fatalf("will = %v on %q", opts.WillEnabled, opts.WillTopic)
			}
			if !opts.WillRetained || opts.WillQos != statusQoS {
				t.Errorf("will retained=%v qos=%d", opts.WillRetained, opts.WillQos)
			}
			var will storeStatus
			if err := json.Unmarshal(opts.WillPayload, &will); err != nil {
				t.Fatalf("will payload %s: %v", opts.WillPayload, err)
			}
			if will.Status != "offline" || will.Reason != "unexpected_disconnect" {
				t.Errorf("will = %+v", will)
			}
		})
	}
}

func TestStatusPayload(t *testing.T) {
	var got storeStatus
	if err := json.Unmarshal(statusPayload(`desk "1"`, "online", ""), &got); err != nil {
		t.Fatalf("statusPayload() is not JSON: %v", err)
	}
	if got.Status != "online" || got.ClientID != `desk "1"` || got.Reason != "" || got.Timestamp == "" {
		t.Errorf("status = %+v", got)
	}
}

func TestOptions(t *testing.T) {
	var reconnects []bool
	var lost error
	log := &mockLogger{}

	f := &Feed{}
	for _, opt := range []Option{
		WithLogger(log),
		OnConnect(func(reconnect bool) { reconnects = append(reconnects, reconnect) }),
		OnDisconnect(func(err error) { lost = err }),
	} {
		opt(f)
	}

	if f.log != log {
		t.Error("WithLogger() did not set the logger")
	}
	f.onConnect(false)
	f.lost(errors.New("link down"))
	if len(reconnects) != 1 || lost == nil || f.online.Load() {
		t.Errorf("hooks: reconnects = %v lost = %v online = %v", reconnects, lost, f.online.Load())
	}
}

func TestFeed_Offline(t *testing.T) {
	var nilFeed *Feed
	if nilFeed.Connected() {
		t.Error("nil feed reports connected")
	}
	if err := nilFeed.Close(); err != nil {
		t.Errorf("Close() on nil feed error = %v", err)
	}

	f := &Feed{topics: Topics{Prefix: "notes"}, watches: make(map[string]MessageHandler)}
	if err := f.HealthCheck(context.Background()); !errors.Is(err, ErrOffline) {
		t.Errorf("HealthCheck() error = %v, want ErrOffline", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := f.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck(cancelled) error = %v, want context.Canceled", err)
	}
}

func TestFeed_AnnounceValidation(t *testing.T) {
	f := &Feed{topics: Topics{Prefix: "notes"}}

	tests := []struct {
		name    string
		event   any
		wantErr error
	}{
		{"unencodable", math.Inf(1), ErrNotAnnounced},
		{"too large", strings.Repeat("x", maxEventSize), ErrEventTooLarge},
		{"offline", map[string]int64{"id": 7}, ErrOffline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := f.Announce("note", "created", tt.event); !errors.Is(err, tt.wantErr) {
				t.Errorf("Announce() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestFeed_WatchValidation(t *testing.T) {
	f := &Feed{topics: Topics{Prefix: "notes"}, watches: make(map[string]MessageHandler)}
	handler := func(string, []byte) error { return nil }

	tests := []struct {
		name    string
		pattern string
		handler MessageHandler
		wantErr error
	}{
		{"empty pattern", "", handler, ErrForeignTopic},
		{"other prefix", "home/#", handler, ErrForeignTopic},
		{"nil handler", "notes/change/#", nil, ErrWatchFailed},
		{"offline", "notes/change/#", handler, ErrOffline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := f.Watch(tt.pattern, tt.handler); !errors.Is(err, tt.wantErr) {
				t.Errorf("Watch() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if len(f.watches) != 0 {
		t.Errorf("watches = %d after failed Watch calls, want 0", len(f.watches))
	}

	if err := f.Unwatch("home/#"); !errors.Is(err, ErrForeignTopic) {
		t.Errorf("Unwatch(foreign) error = %v, want ErrForeignTopic", err)
	}
	if err := f.Unwatch("notes/change/#"); !errors.Is(err, ErrOffline) {
		t.Errorf("Unwatch() error = %v, want ErrOffline", err)
	}
}

// fakeMessage implements pahomqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	warns  []string
	errors []string
}

func (l *mockLogger) record(dst *[]string, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*dst = append(*dst, fmt.Sprint(append([]any{msg}, args...)...))
}

func (l *mockLogger) Info(msg string, args ...any)  { l.record(&l.infos, msg, args...) }
func (l *mockLogger) Warn(msg string, args ...any)  { l.record(&l.warns, msg, args...) }
func (l *mockLogger) Error(msg string, args ...any) { l.record(&l.errors, msg, args...) }

func TestFeed_Deliver(t *testing.T) {
	msg := fakeMessage{topic: "notes/change/note/created", payload: []byte(`{"id":1}`)}

	tests := []struct {
		name      string
		handler   MessageHandler
		logger    bool
		wantWarns int
		wantErrs  int
	}{
		{name: "ok", handler: func(string, []byte) error { return nil }, logger: true},
		{name: "error", handler: func(string, []byte) error { return errors.New("bad event") }, logger: true, wantWarns: 1},
		{name: "panic", handler: func(string, []byte) error { panic("boom") }, logger: true, wantErrs: 1},
		{name: "panic without logger", handler: func(string, []byte) error { panic("boom") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &mockLogger{}
			f := &Feed{}
			if tt.logger {
				f.log = log
			}

			// A panic escaping deliver fails the test.
			f.deliver(tt.handler)(nil, msg)

			if len(log.warns) != tt.wantWarns || len(log.errors) != tt.wantErrs {
				t.Errorf("warns = %v errors = %v", log.warns, log.errors)
			}
		})
	}

	var gotTopic, gotPayload string
	(&Feed{}).deliver(func(topic string, payload []byte) error {
		gotTopic, gotPayload = topic, string(payload)
		return nil
	})(nil, msg)
	if gotTopic != msg.topic || gotPayload != `{"id":1}` {
		t.Errorf("handler got %q %q", gotTopic, gotPayload)
	}
}
