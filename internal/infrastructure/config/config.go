package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Gray Logic switch.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Network   NetworkConfig   `yaml:"network"`
	OTA       OTAConfig       `yaml:"ota"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Database  DatabaseConfig  `yaml:"database"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DeviceConfig identifies this device on the broker.
//
// Topics are built as <category>/<client_id>/<group>/<name>.
type DeviceConfig struct {
	Category string `yaml:"category"`
	ClientID string `yaml:"client_id"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Will      MQTTWillConfig      `yaml:"will"`
	Online    MQTTOnlineConfig    `yaml:"online"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	// InboundBuffer bounds the number of delivered messages held between ticks.
	InboundBuffer int `yaml:"inbound_buffer"`

	// ConnectTimeout bounds a single connection attempt (seconds).
	ConnectTimeout int `yaml:"connect_timeout"`

	// KeepAlive is the keepalive interval sent to the broker (seconds).
	KeepAlive int `yaml:"keep_alive"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	TLS  bool   `yaml:"tls"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTWillConfig is the last will the broker publishes if the session drops uncleanly.
// An empty payload selects "<client_id> has disconnected...".
type MQTTWillConfig struct {
	QoS     int    `yaml:"qos"`
	Retain  bool   `yaml:"retain"`
	Payload string `yaml:"payload"`
}

// MQTTOnlineConfig controls the notice published to the debug topic after each connect.
type MQTTOnlineConfig struct {
	Enabled bool   `yaml:"enabled"`
	Payload string `yaml:"payload"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
//
// InitialDelay 0 retries immediately with no backoff. Otherwise the delay
// doubles per failed attempt up to MaxDelay.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// NetworkConfig contains provisioning settings.
type NetworkConfig struct {
	// StationName is announced while waiting for credentials.
	// Empty selects "<category>-<client_id>".
	StationName string `yaml:"station_name"`

	// CredentialsFile is the YAML file holding ssid and passphrase.
	CredentialsFile string `yaml:"credentials_file"`

	// PollInterval is how often the credentials file is checked while waiting (seconds).
	PollInterval int `yaml:"poll_interval"`

	// Join selects how credentials are applied: "none" or "nmcli".
	Join string `yaml:"join"`
}

// OTAConfig contains remote firmware update settings.
type OTAConfig struct {
	Enabled bool `yaml:"enabled"`

	// Hostname is advertised over mDNS. Empty selects "<category>-<client_id>".
	Hostname string `yaml:"hostname"`

	Listen string `yaml:"listen"`

	// PasswordHash is an Argon2id PHC string. Empty disables authentication.
	PasswordHash string `yaml:"password_hash"`

	StagingDir     string `yaml:"staging_dir"`
	FirmwarePath   string `yaml:"firmware_path"`
	FilesystemPath string `yaml:"filesystem_path"`

	// MaxImageSize caps an upload in bytes.
	MaxImageSize int64 `yaml:"max_image_size"`

	MDNS bool `yaml:"mdns"`
}

// SchedulerConfig tunes the cooperative loop.
type SchedulerConfig struct {
	// Idle is the pause between iterations (milliseconds). 0 runs the loop back to back.
	Idle int `yaml:"idle"`
}

// HeartbeatConfig controls the periodic health task.
type HeartbeatConfig struct {
	Enabled  bool `yaml:"enabled"`
	Interval int  `yaml:"interval"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// Retention is how long journal entries are kept (days). The newest
	// entry of each feature is always kept.
	Retention int `yaml:"retention"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_SWITCH_SECTION_KEY
// For example: GRAYLOGIC_SWITCH_MQTT_HOST, GRAYLOGIC_SWITCH_CLIENT_ID
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with the defaults of a stock switch.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			Category: "switch",
			ClientID: "client_id",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "localhost",
				Port: 1883,
			},
			QoS: 0,
			Online: MQTTOnlineConfig{
				Enabled: true,
			},
			InboundBuffer:  64,
			ConnectTimeout: 10,
			KeepAlive:      15,
		},
		Network: NetworkConfig{
			CredentialsFile: "./data/wifi.yaml",
			PollInterval:    5,
			Join:            "none",
		},
		OTA: OTAConfig{
			Enabled:      true,
			Listen:       ":8266",
			StagingDir:   "./data/ota",
			MaxImageSize: 64 << 20,
			MDNS:         true,
		},
		Heartbeat: HeartbeatConfig{
			Enabled:  true,
			Interval: 30,
		},
		Database: DatabaseConfig{
			Enabled:     true,
			Path:        "./data/switch.db",
			WALMode:     true,
			BusyTimeout: 5,
			Retention:   30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GRAYLOGIC_SWITCH_CLIENT_ID"); v != "" {
		cfg.Device.ClientID = v
	}

	// MQTT
	if v := os.Getenv("GRAYLOGIC_SWITCH_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_SWITCH_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("GRAYLOGIC_SWITCH_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_SWITCH_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("GRAYLOGIC_SWITCH_CREDENTIALS_FILE"); v != "" {
		cfg.Network.CredentialsFile = v
	}

	if v := os.Getenv("GRAYLOGIC_SWITCH_OTA_PASSWORD_HASH"); v != "" {
		cfg.OTA.PasswordHash = v
	}

	if v := os.Getenv("GRAYLOGIC_SWITCH_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("GRAYLOGIC_SWITCH_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Device.Category == "" {
		errs = append(errs, "device.category is required")
	}
	if strings.ContainsAny(c.Device.Category+c.Device.ClientID, "/+#") {
		errs = append(errs, "device.category and device.client_id must not contain '/', '+' or '#'")
	}

	// MQTT
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Will.QoS < 0 || c.MQTT.Will.QoS > 2 {
		errs = append(errs, "mqtt.will.qos must be 0, 1, or 2")
	}
	if c.MQTT.Reconnect.InitialDelay < 0 || c.MQTT.Reconnect.MaxDelay < 0 {
		errs = append(errs, "mqtt.reconnect delays must not be negative")
	}
	if c.MQTT.Reconnect.MaxDelay > 0 && c.MQTT.Reconnect.MaxDelay < c.MQTT.Reconnect.InitialDelay {
		errs = append(errs, "mqtt.reconnect.max_delay must not be less than initial_delay")
	}
	if c.MQTT.InboundBuffer < 1 {
		errs = append(errs, "mqtt.inbound_buffer must be at least 1")
	}
	if c.MQTT.ConnectTimeout < 1 {
		errs = append(errs, "mqtt.connect_timeout must be at least 1 second")
	}

	// Network
	switch c.Network.Join {
	case "none", "nmcli":
	default:
		errs = append(errs, "network.join must be \"none\" or \"nmcli\"")
	}
	if c.Network.CredentialsFile == "" {
		errs = append(errs, "network.credentials_file is required")
	}

	// OTA
	if c.OTA.Enabled {
		if c.OTA.Listen == "" {
			errs = append(errs, "ota.listen is required when ota is enabled")
		}
		if c.OTA.StagingDir == "" {
			errs = append(errs, "ota.staging_dir is required when ota is enabled")
		}
		if c.OTA.MaxImageSize <= 0 {
			errs = append(errs, "ota.max_image_size must be positive")
		}
	}

	if c.Scheduler.Idle < 0 {
		errs = append(errs, "scheduler.idle must not be negative")
	}
	if c.Heartbeat.Enabled && c.Heartbeat.Interval < 1 {
		errs = append(errs, "heartbeat.interval must be at least 1 second")
	}
	if c.Database.Enabled {
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required when database is enabled")
		}
		if c.Database.Retention < 1 {
			errs = append(errs, "database.retention must be at least 1 day")
		}
	}
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Broker returns the broker address as host:port.
func (c *Config) Broker() string {
	return fmt.Sprintf("%s:%d", c.MQTT.Broker.Host, c.MQTT.Broker.Port)
}

// GetConnectTimeout returns the MQTT connect timeout as a Duration.
func (c *Config) GetConnectTimeout() time.Duration {
	return time.Duration(c.MQTT.ConnectTimeout) * time.Second
}

// GetKeepAlive returns the MQTT keepalive as a Duration.
func (c *Config) GetKeepAlive() time.Duration {
	return time.Duration(c.MQTT.KeepAlive) * time.Second
}

// GetReconnectDelays returns the initial and maximum reconnect delays.
func (c *Config) GetReconnectDelays() (initial, maxDelay time.Duration) {
	return time.Duration(c.MQTT.Reconnect.InitialDelay) * time.Second,
		time.Duration(c.MQTT.Reconnect.MaxDelay) * time.Second
}

// GetIdle returns the pause between scheduler iterations.
func (c *Config) GetIdle() time.Duration {
	return time.Duration(c.Scheduler.Idle) * time.Millisecond
}

// GetPollInterval returns the credentials file poll interval.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Network.PollInterval) * time.Second
}

// GetRetention returns the journal retention window.
func (c *Config) GetRetention() time.Duration {
	return time.Duration(c.Database.Retention) * 24 * time.Hour
}

// GetHeartbeatInterval returns the heartbeat period.
func (c *Config) GetHeartbeatInterval() time.Duration {
	return time.Duration(c.Heartbeat.Interval) * time.Second
}
