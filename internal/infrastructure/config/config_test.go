package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
database:
  path: "/tmp/notes.db"
  read_only: true
  busy_timeout: 2
mqtt:
  enabled: true
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
  topic_prefix: "desk"
logging:
  level: "debug"
  format: "json"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/notes.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/notes.db")
	}
	if !cfg.Database.ReadOnly {
		t.Error("Database.ReadOnly = false, want true")
	}
	if cfg.GetBusyTimeout() != 2*time.Second {
		t.Errorf("GetBusyTimeout() = %v, want 2s", cfg.GetBusyTimeout())
	}
	if cfg.MQTT.TopicPrefix != "desk" {
		t.Errorf("MQTT.TopicPrefix = %q, want %q", cfg.MQTT.TopicPrefix, "desk")
	}

	// Unset sections keep their defaults.
	if cfg.InfluxDB.Bucket != "notes" {
		t.Errorf("InfluxDB.Bucket = %q, want default %q", cfg.InfluxDB.Bucket, "notes")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
database:
  path: ""
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for empty database.path, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config { return defaultConfig() }

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "negative busy timeout", mutate: func(c *Config) { c.Database.BusyTimeout = -1 }, wantErr: true},
		{name: "read-only in-memory", mutate: func(c *Config) {
			c.Database.Path = ":memory:"
			c.Database.ReadOnly = true
		}, wantErr: true},
		{name: "invalid QoS", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: true},
		{name: "mqtt disabled ignores broker", mutate: func(c *Config) { c.MQTT.Broker.Host = "" }},
		{name: "mqtt enabled without host", mutate: func(c *Config) {
			c.MQTT.Enabled = true
			c.MQTT.Broker.Host = ""
		}, wantErr: true},
		{name: "mqtt enabled invalid port", mutate: func(c *Config) {
			c.MQTT.Enabled = true
			c.MQTT.Broker.Port = 70000
		}, wantErr: true},
		{name: "influxdb enabled without org", mutate: func(c *Config) { c.InfluxDB.Enabled = true }, wantErr: true},
		{name: "influxdb enabled", mutate: func(c *Config) {
			c.InfluxDB.Enabled = true
			c.InfluxDB.Org = "home"
		}},
		{name: "unknown log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := defaultConfig()
	cfg.Database.Path = ""
	cfg.MQTT.QoS = 7

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() error = nil")
	}
	for _, want := range []string{"database.path", "mqtt.qos"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error %q does not mention %s", err, want)
		}
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("NOTES_DATABASE_PATH", "/custom/path.db")
	t.Setenv("NOTES_DATABASE_READ_ONLY", "true")
	t.Setenv("NOTES_MQTT_HOST", "mqtt.example.com")
	t.Setenv("NOTES_MQTT_USERNAME", "testuser")
	t.Setenv("NOTES_MQTT_PASSWORD", "testpass")
	t.Setenv("NOTES_INFLUXDB_URL", "http://influx:8086")
	t.Setenv("NOTES_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("NOTES_LOG_LEVEL", "debug")

	applyEnvOverrides(cfg)

	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if !cfg.Database.ReadOnly {
		t.Error("Database.ReadOnly = false, want true")
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}
	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}
	if cfg.InfluxDB.URL != "http://influx:8086" {
		t.Errorf("InfluxDB.URL = %q, want %q", cfg.InfluxDB.URL, "http://influx:8086")
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestApplyEnvOverrides_InvalidBool(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("NOTES_DATABASE_READ_ONLY", "perhaps")

	applyEnvOverrides(cfg)

	if cfg.Database.ReadOnly {
		t.Error("Database.ReadOnly changed by an unparseable value")
	}
}

func TestDefault(t *testing.T) {
	t.Setenv("NOTES_DATABASE_PATH", ":memory:")

	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if cfg.Database.Path != ":memory:" {
		t.Errorf("Database.Path = %q, want :memory:", cfg.Database.Path)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.Enabled || cfg.InfluxDB.Enabled {
		t.Error("defaultConfig should leave MQTT and InfluxDB disabled")
	}
}
