package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the OTG controller.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Controller         ControllerConfig         `yaml:"controller"`
	Database           DatabaseConfig           `yaml:"database"`
	MQTT               MQTTConfig               `yaml:"mqtt"`
	API                APIConfig                `yaml:"api"`
	WebSocket          WebSocketConfig          `yaml:"websocket"`
	InfluxDB           InfluxDBConfig           `yaml:"influxdb"`
	Logging            LoggingConfig            `yaml:"logging"`
	IMouse             IMouseConfig             `yaml:"imouse"`
	Vision             VisionConfig             `yaml:"vision"`
	Humanization       HumanizationConfig       `yaml:"humanization"`
	AutomationDefaults AutomationDefaultsConfig `yaml:"automation_defaults"`
	Security           SecurityConfig           `yaml:"security"`
}

// ControllerConfig identifies this controller instance.
type ControllerConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
	TopicPrefix string              `yaml:"topic_prefix"`
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

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
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

// IMouseConfig contains settings for the iMouseXP device-control bridge.
type IMouseConfig struct {
	BaseURL    string `yaml:"base_url"`
	Port       int    `yaml:"port"`
	Timeout    int    `yaml:"timeout"`     // seconds
	MaxRetries int    `yaml:"max_retries"` // attempts after the first
	RetryDelay int    `yaml:"retry_delay"` // milliseconds
}

// VisionConfig contains settings for the screenshot classification service.
// Any OpenAI-compatible chat completions endpoint works.
type VisionConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
	Timeout   int    `yaml:"timeout"` // seconds
}

// HumanizationConfig controls randomised pacing of the automation loop.
type HumanizationConfig struct {
	DelayJitterMin  float64 `yaml:"delay_jitter_min"`
	DelayJitterMax  float64 `yaml:"delay_jitter_max"`
	SkipProbability float64 `yaml:"skip_probability"`
}

// AutomationDefaultsConfig seeds the automation record the first time the
// controller runs against an empty database.
type AutomationDefaultsConfig struct {
	Name                string  `yaml:"name"`
	Platform            string  `yaml:"platform"`
	PostIntervalSeconds float64 `yaml:"post_interval_seconds"`
	ScrollDelaySeconds  float64 `yaml:"scroll_delay_seconds"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings.
// An empty secret disables bearer-token checks on control endpoints.
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults), skipped when path is empty
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: OTG_SECTION_KEY
// For example: OTG_DATABASE_PATH, OTG_IMOUSE_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file, or "" for defaults only
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration without reading any file.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Controller: ControllerConfig{
			ID:   "otg-001",
			Name: "OTG Controller",
		},
		Database: DatabaseConfig{
			Path:        "./data/otg.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "otg-controller",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			TopicPrefix: "otg",
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		IMouse: IMouseConfig{
			BaseURL:    "http://127.0.0.1",
			Port:       9911,
			Timeout:    30,
			MaxRetries: 2,
			RetryDelay: 500,
		},
		Vision: VisionConfig{
			BaseURL:   "https://api.openai.com/v1",
			Model:     "gpt-4o",
			MaxTokens: 500,
			Timeout:   60,
		},
		Humanization: HumanizationConfig{
			DelayJitterMin:  0.8,
			DelayJitterMax:  1.2,
			SkipProbability: 0.1,
		},
		AutomationDefaults: AutomationDefaultsConfig{
			Name:                "Default automation",
			Platform:            "tiktok",
			PostIntervalSeconds: 10,
			ScrollDelaySeconds:  3,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: OTG_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("OTG_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("OTG_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("OTG_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("OTG_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("OTG_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	setInt("OTG_API_PORT", &cfg.API.Port)

	// InfluxDB
	if v := os.Getenv("OTG_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// iMouseXP
	if v := os.Getenv("OTG_IMOUSE_BASE_URL"); v != "" {
		cfg.IMouse.BaseURL = v
	}
	setInt("OTG_IMOUSE_PORT", &cfg.IMouse.Port)

	// Vision. OPENAI_API_KEY is honoured so existing deployments keep working.
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Vision.APIKey = v
	}
	if v := os.Getenv("OTG_VISION_API_KEY"); v != "" {
		cfg.Vision.APIKey = v
	}
	if v := os.Getenv("OTG_VISION_MODEL"); v != "" {
		cfg.Vision.Model = v
	}

	// Humanization
	setFloat("OTG_DELAY_JITTER_MIN", &cfg.Humanization.DelayJitterMin)
	setFloat("OTG_DELAY_JITTER_MAX", &cfg.Humanization.DelayJitterMax)
	setFloat("OTG_SKIP_PROBABILITY", &cfg.Humanization.SkipProbability)

	// Security
	if v := os.Getenv("OTG_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// setInt overwrites dst when the variable parses; malformed values are
// left to Validate to catch through the unchanged default.
func setInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Controller.ID == "" {
		errs = append(errs, "controller.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.IMouse.BaseURL == "" {
		errs = append(errs, "imouse.base_url is required")
	}
	if c.IMouse.Port < 1 || c.IMouse.Port > 65535 {
		errs = append(errs, "imouse.port must be between 1 and 65535")
	}

	h := c.Humanization
	if h.DelayJitterMin <= 0 || h.DelayJitterMax < h.DelayJitterMin {
		errs = append(errs, "humanization.delay_jitter_min must be > 0 and <= delay_jitter_max")
	}
	if h.SkipProbability < 0 || h.SkipProbability > 1 {
		errs = append(errs, "humanization.skip_probability must be between 0 and 1")
	}

	switch c.AutomationDefaults.Platform {
	case "tiktok", "instagram":
	default:
		errs = append(errs, "automation_defaults.platform must be tiktok or instagram")
	}

	// The secret is optional, but a short one is worse than none because it
	// gives a false sense of protection over the device controls.
	const minJWTSecretLength = 32
	if s := c.Security.JWT.Secret; s != "" && len(s) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// IMouseAddress returns the iMouseXP base URL joined with its port.
func (c *Config) IMouseAddress() string {
	return fmt.Sprintf("%s:%d", strings.TrimRight(c.IMouse.BaseURL, "/"), c.IMouse.Port)
}
