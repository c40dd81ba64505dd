package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Restart policies for the vendor MQTT subscriber.
const (
	RestartPolicyExit      = "exit"
	RestartPolicyReconnect = "reconnect"
)

// Queue overflow policies.
const (
	OverflowDrop  = "drop"
	OverflowBlock = "block"
)

// Metrics backends.
const (
	BackendV1 = "v1"
	BackendV2 = "v2"
)

// minRestartCooldown is the shortest wait allowed between a dropped vendor
// connection and the next connect attempt.
const minRestartCooldown = 2

// defaultVendorKeepAlive is the keepalive, in seconds, used when
// yolink.mqtt.keep_alive is unset.
const defaultVendorKeepAlive = 60

// Config is the root configuration structure for the YoLink bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	YoLink     YoLinkConfig     `yaml:"yolink"`
	Features   FeaturesConfig   `yaml:"features"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Queue      QueueConfig      `yaml:"queue"`
	Subscriber SubscriberConfig `yaml:"subscriber"`
	Token      TokenConfig      `yaml:"token"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	API        APIConfig        `yaml:"api"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// YoLinkConfig contains the vendor cloud endpoints and credentials.
type YoLinkConfig struct {
	TokenURL     string           `yaml:"token_url"`
	APIURL       string           `yaml:"api_url"`
	ClientID     string           `yaml:"client_id"`
	ClientSecret string           `yaml:"client_secret"`
	MQTT         YoLinkMQTTConfig `yaml:"mqtt"`
}

// YoLinkMQTTConfig contains the vendor broker settings.
type YoLinkMQTTConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// Topic is a template; "{}" or "{home_id}" is replaced with the home id.
	Topic     string `yaml:"topic"`
	QoS       int    `yaml:"qos"`
	KeepAlive int    `yaml:"keep_alive"`
}

// FeaturesConfig toggles the optional sinks.
type FeaturesConfig struct {
	InfluxDB  bool `yaml:"influxdb"`
	LocalMQTT bool `yaml:"local_mqtt"`
}

// InfluxDBConfig contains time-series sink settings.
type InfluxDBConfig struct {
	// Backend selects the write path: "v1" (/write?db=) or "v2" (client library).
	Backend  string             `yaml:"backend"`
	URL      string             `yaml:"url"`
	Database string             `yaml:"database"`
	Auth     InfluxDBAuthConfig `yaml:"auth"`
	Token    string             `yaml:"token"`
	Org      string             `yaml:"org"`
	Bucket   string             `yaml:"bucket"`
	Sensors  []SensorConfig     `yaml:"sensors"`
}

// InfluxDBAuthConfig contains basic-auth credentials for the v1 endpoint.
type InfluxDBAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// SensorConfig names the measurement and tag set for one device.
type SensorConfig struct {
	DeviceID    string `yaml:"device_id"`
	Measurement string `yaml:"measurement"`
	TagSet      string `yaml:"tag_set"`
}

// MQTTConfig contains local (republish) MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Retained  bool                `yaml:"retained"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// QueueConfig contains event queue settings.
type QueueConfig struct {
	Capacity int    `yaml:"capacity"`
	Overflow string `yaml:"overflow"`
	// BlockTimeout bounds a blocked push under the block policy, in seconds.
	// It must stay below the vendor keepalive: the push runs on the MQTT
	// client's receive path.
	BlockTimeout int `yaml:"block_timeout"`
}

// SubscriberConfig contains the vendor subscriber restart policy.
type SubscriberConfig struct {
	RestartPolicy string `yaml:"restart_policy"`
	// Cooldown is the wait before reconnecting, in seconds.
	Cooldown int `yaml:"cooldown"`
	// MaxBackoff caps the reconnect backoff, in seconds.
	MaxBackoff int `yaml:"max_backoff"`
}

// TokenConfig contains token renewal settings.
type TokenConfig struct {
	// RenewInterval is how often the renewal loop checks expiry, in seconds.
	RenewInterval int `yaml:"renew_interval"`
}

// CatalogConfig contains the SQLite device catalog settings.
type CatalogConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains the read-only status API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP server timeouts in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: YOLINK_SECTION_KEY
// For example: YOLINK_CLIENT_SECRET, YOLINK_INFLUXDB_PASSWORD
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

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		YoLink: YoLinkConfig{
			TokenURL: "https://api.yosmart.com/open/yolink/token",
			APIURL:   "https://api.yosmart.com/open/yolink/v2/api",
			MQTT: YoLinkMQTTConfig{
				Host:      "api.yosmart.com",
				Port:      8003,
				Topic:     "yl-home/{}/+/report",
				QoS:       0,
				KeepAlive: 60,
			},
		},
		InfluxDB: InfluxDBConfig{
			Backend: BackendV1,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "yolink-bridge",
			},
			QoS: 0,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Queue: QueueConfig{
			Capacity:     64,
			Overflow:     OverflowDrop,
			BlockTimeout: 10,
		},
		Subscriber: SubscriberConfig{
			RestartPolicy: RestartPolicyExit,
			Cooldown:      minRestartCooldown,
			MaxBackoff:    60,
		},
		Token: TokenConfig{
			RenewInterval: 60,
		},
		Catalog: CatalogConfig{
			Path:        "./data/yolink.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  5,
				Write: 10,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
			File: FileLoggingConfig{
				Path:       "/tmp/yolink_default.log",
				MaxSize:    10,
				MaxBackups: 2,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Secrets should be supplied this way rather than in the file.
func applyEnvOverrides(cfg *Config) {
	// YoLink cloud
	if v := os.Getenv("YOLINK_CLIENT_ID"); v != "" {
		cfg.YoLink.ClientID = v
	}
	if v := os.Getenv("YOLINK_CLIENT_SECRET"); v != "" {
		cfg.YoLink.ClientSecret = v
	}
	if v := os.Getenv("YOLINK_MQTT_HOST"); v != "" {
		cfg.YoLink.MQTT.Host = v
	}

	// Local broker
	if v := os.Getenv("YOLINK_LOCAL_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("YOLINK_LOCAL_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("YOLINK_LOCAL_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("YOLINK_LOCAL_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("YOLINK_INFLUXDB_URL"); v != "" {
		cfg.InfluxDB.URL = v
	}
	if v := os.Getenv("YOLINK_INFLUXDB_USERNAME"); v != "" {
		cfg.InfluxDB.Auth.Username = v
	}
	if v := os.Getenv("YOLINK_INFLUXDB_PASSWORD"); v != "" {
		cfg.InfluxDB.Auth.Password = v
	}
	if v := os.Getenv("YOLINK_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Catalog
	if v := os.Getenv("YOLINK_CATALOG_PATH"); v != "" {
		cfg.Catalog.Path = v
	}

	// Status API
	if v := os.Getenv("YOLINK_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
}

// Validate checks the configuration for errors.
// All problems are reported together rather than failing on the first.
func (c *Config) Validate() error {
	var errs []string

	if c.YoLink.TokenURL == "" {
		errs = append(errs, "yolink.token_url is required")
	}
	if c.YoLink.APIURL == "" {
		errs = append(errs, "yolink.api_url is required")
	}
	if c.YoLink.ClientID == "" {
		errs = append(errs, "yolink.client_id is required (set YOLINK_CLIENT_ID environment variable)")
	}
	if c.YoLink.ClientSecret == "" {
		errs = append(errs, "yolink.client_secret is required (set YOLINK_CLIENT_SECRET environment variable)")
	}
	if c.YoLink.MQTT.Host == "" {
		errs = append(errs, "yolink.mqtt.host is required")
	}
	if c.YoLink.MQTT.Port < 1 || c.YoLink.MQTT.Port > 65535 {
		errs = append(errs, "yolink.mqtt.port must be between 1 and 65535")
	}
	if c.YoLink.MQTT.Topic == "" {
		errs = append(errs, "yolink.mqtt.topic is required")
	}
	if c.YoLink.MQTT.QoS < 0 || c.YoLink.MQTT.QoS > 2 {
		errs = append(errs, "yolink.mqtt.qos must be 0, 1, or 2")
	}

	if c.Features.InfluxDB {
		switch c.InfluxDB.Backend {
		case BackendV1:
			if c.InfluxDB.Database == "" {
				errs = append(errs, "influxdb.database is required for the v1 backend")
			}
		case BackendV2:
			if c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "" {
				errs = append(errs, "influxdb.org and influxdb.bucket are required for the v2 backend")
			}
		default:
			errs = append(errs, "influxdb.backend must be \"v1\" or \"v2\"")
		}
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when features.influxdb is enabled")
		}
		for i, s := range c.InfluxDB.Sensors {
			if s.DeviceID == "" || s.Measurement == "" {
				errs = append(errs, fmt.Sprintf("influxdb.sensors[%d] needs device_id and measurement", i))
			}
		}
	}

	if c.Features.LocalMQTT {
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when features.local_mqtt is enabled")
		}
		if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
			errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
		}
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.Queue.Capacity < 1 {
		errs = append(errs, "queue.capacity must be positive")
	}
	if c.Queue.Overflow != OverflowDrop && c.Queue.Overflow != OverflowBlock {
		errs = append(errs, "queue.overflow must be \"drop\" or \"block\"")
	}
	if c.Queue.Overflow == OverflowBlock {
		keepAlive := c.YoLink.MQTT.KeepAlive
		if keepAlive <= 0 {
			keepAlive = defaultVendorKeepAlive
		}
		if c.Queue.BlockTimeout < 1 || c.Queue.BlockTimeout >= keepAlive {
			errs = append(errs, fmt.Sprintf("queue.block_timeout must be between 1 and %d seconds (below yolink.mqtt.keep_alive)", keepAlive-1))
		}
	}

	switch c.Subscriber.RestartPolicy {
	case RestartPolicyExit, RestartPolicyReconnect:
	default:
		errs = append(errs, "subscriber.restart_policy must be \"exit\" or \"reconnect\"")
	}
	if c.Subscriber.Cooldown < minRestartCooldown {
		errs = append(errs, fmt.Sprintf("subscriber.cooldown must be at least %d seconds", minRestartCooldown))
	}

	if c.Token.RenewInterval < 1 {
		errs = append(errs, "token.renew_interval must be positive")
	}

	if c.Catalog.Enabled && c.Catalog.Path == "" {
		errs = append(errs, "catalog.path is required when catalog.enabled is set")
	}

	if c.API.Enabled && (c.API.Port < 0 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 0 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// HomeTopic returns the vendor subscription topic for a home id.
func (c *Config) HomeTopic(homeID string) string {
	topic := strings.ReplaceAll(c.YoLink.MQTT.Topic, "{home_id}", homeID)
	return strings.ReplaceAll(topic, "{}", homeID)
}

// GetRestartCooldown returns the subscriber cooldown as a Duration.
func (c *Config) GetRestartCooldown() time.Duration {
	return time.Duration(c.Subscriber.Cooldown) * time.Second
}

// GetMaxBackoff returns the subscriber reconnect cap as a Duration.
func (c *Config) GetMaxBackoff() time.Duration {
	return time.Duration(c.Subscriber.MaxBackoff) * time.Second
}

// GetBlockTimeout returns the queue block timeout as a Duration.
func (c *Config) GetBlockTimeout() time.Duration {
	return time.Duration(c.Queue.BlockTimeout) * time.Second
}

// GetRenewInterval returns the token renewal check interval as a Duration.
func (c *Config) GetRenewInterval() time.Duration {
	return time.Duration(c.Token.RenewInterval) * time.Second
}
