package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
device:
  category: "switch"
  client_id: "kitchen-01"
mqtt:
  broker:
    host: "broker.local"
    port: 1884
  auth:
    username: "device"
    password: "secret"
  qos: 1
  will:
    qos: 0
    retain: false
  reconnect:
    initial_delay: 1
    max_delay: 30
ota:
  enabled: false
database:
  path: "/tmp/switch.db"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Device.ClientID != "kitchen-01" {
		t.Errorf("Device.ClientID = %q, want %q", cfg.Device.ClientID, "kitchen-01")
	}
	if cfg.Broker() != "broker.local:1884" {
		t.Errorf("Broker() = %q, want %q", cfg.Broker(), "broker.local:1884")
	}
	if cfg.MQTT.Auth.Username != "device" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "device")
	}
	if cfg.OTA.Enabled {
		t.Error("OTA.Enabled = true, want false")
	}

	// Unset sections keep their defaults.
	if cfg.MQTT.InboundBuffer != 64 {
		t.Errorf("MQTT.InboundBuffer = %d, want default 64", cfg.MQTT.InboundBuffer)
	}
	if cfg.Network.Join != "none" {
		t.Errorf("Network.Join = %q, want default %q", cfg.Network.Join, "none")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	configPath := writeConfig(t, `
mqtt:
  qos: 5
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected validation error for qos 5, got nil")
	}
	if !strings.Contains(err.Error(), "mqtt.qos") {
		t.Errorf("Load() error = %v, want mention of mqtt.qos", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "empty client id is allowed",
			mutate:  func(c *Config) { c.Device.ClientID = "" },
			wantErr: false,
		},
		{
			name:    "missing category",
			mutate:  func(c *Config) { c.Device.Category = "" },
			wantErr: true,
		},
		{
			name:    "wildcard in client id",
			mutate:  func(c *Config) { c.Device.ClientID = "dev/+" },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "invalid will QoS",
			mutate:  func(c *Config) { c.MQTT.Will.QoS = -1 },
			wantErr: true,
		},
		{
			name:    "invalid port low",
			mutate:  func(c *Config) { c.MQTT.Broker.Port = 0 },
			wantErr: true,
		},
		{
			name:    "invalid port high",
			mutate:  func(c *Config) { c.MQTT.Broker.Port = 70000 },
			wantErr: true,
		},
		{
			name: "max delay below initial delay",
			mutate: func(c *Config) {
				c.MQTT.Reconnect.InitialDelay = 10
				c.MQTT.Reconnect.MaxDelay = 5
			},
			wantErr: true,
		},
		{
			name:    "unknown join mode",
			mutate:  func(c *Config) { c.Network.Join = "wpa" },
			wantErr: true,
		},
		{
			name:    "ota without listen address",
			mutate:  func(c *Config) { c.OTA.Listen = "" },
			wantErr: true,
		},
		{
			name: "ota disabled ignores listen address",
			mutate: func(c *Config) {
				c.OTA.Enabled = false
				c.OTA.Listen = ""
			},
			wantErr: false,
		},
		{
			name:    "influxdb enabled without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: true,
		},
		{
			name:    "zero journal retention",
			mutate:  func(c *Config) { c.Database.Retention = 0 },
			wantErr: true,
		},
		{
			name: "database disabled ignores retention",
			mutate: func(c *Config) {
				c.Database.Enabled = false
				c.Database.Retention = 0
			},
			wantErr: false,
		},
		{
			name:    "zero inbound buffer",
			mutate:  func(c *Config) { c.MQTT.InboundBuffer = 0 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Durations(t *testing.T) {
	cfg := defaultConfig()
	cfg.MQTT.Reconnect.InitialDelay = 2
	cfg.MQTT.Reconnect.MaxDelay = 40
	cfg.Scheduler.Idle = 5

	initial, maxDelay := cfg.GetReconnectDelays()
	if initial != 2*time.Second || maxDelay != 40*time.Second {
		t.Errorf("GetReconnectDelays() = %v, %v, want 2s, 40s", initial, maxDelay)
	}
	if got := cfg.GetIdle(); got != 5*time.Millisecond {
		t.Errorf("GetIdle() = %v, want 5ms", got)
	}
	if got := cfg.GetConnectTimeout(); got != 10*time.Second {
		t.Errorf("GetConnectTimeout() = %v, want 10s", got)
	}
	if got := cfg.GetHeartbeatInterval(); got != 30*time.Second {
		t.Errorf("GetHeartbeatInterval() = %v, want 30s", got)
	}
	if got := cfg.GetRetention(); got != 30*24*time.Hour {
		t.Errorf("GetRetention() = %v, want 720h", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("GRAYLOGIC_SWITCH_CLIENT_ID", "hall-02")
	t.Setenv("GRAYLOGIC_SWITCH_MQTT_HOST", "mqtt.example.com")
	t.Setenv("GRAYLOGIC_SWITCH_MQTT_PORT", "8883")
	t.Setenv("GRAYLOGIC_SWITCH_MQTT_USERNAME", "testuser")
	t.Setenv("GRAYLOGIC_SWITCH_MQTT_PASSWORD", "testpass")
	t.Setenv("GRAYLOGIC_SWITCH_CREDENTIALS_FILE", "/etc/switch/wifi.yaml")
	t.Setenv("GRAYLOGIC_SWITCH_DATABASE_PATH", "/custom/path.db")
	t.Setenv("GRAYLOGIC_SWITCH_INFLUXDB_TOKEN", "secret-token")

	applyEnvOverrides(cfg)

	if cfg.Device.ClientID != "hall-02" {
		t.Errorf("Device.ClientID = %q, want %q", cfg.Device.ClientID, "hall-02")
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("MQTT.Broker.Port = %d, want 8883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}
	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}
	if cfg.Network.CredentialsFile != "/etc/switch/wifi.yaml" {
		t.Errorf("Network.CredentialsFile = %q, want %q", cfg.Network.CredentialsFile, "/etc/switch/wifi.yaml")
	}
	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
}

func TestApplyEnvOverrides_BadPortIgnored(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("GRAYLOGIC_SWITCH_MQTT_PORT", "not-a-port")

	applyEnvOverrides(cfg)

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Device.Category != "switch" {
		t.Errorf("defaultConfig Device.Category = %q, want %q", cfg.Device.Category, "switch")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.Reconnect.InitialDelay != 0 {
		t.Errorf("defaultConfig reconnect initial delay = %d, want 0 (immediate retry)", cfg.MQTT.Reconnect.InitialDelay)
	}
	if cfg.OTA.Listen != ":8266" {
		t.Errorf("defaultConfig OTA.Listen = %q, want %q", cfg.OTA.Listen, ":8266")
	}
}
