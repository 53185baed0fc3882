package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Threshold bounds accepted for hunter.threshold.
const (
	MinThreshold = 0.5
	MaxThreshold = 0.95
)

// Config is the root configuration structure for Boss Hunter.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Hunter    HunterConfig    `yaml:"hunter"`
	Templates TemplatesConfig `yaml:"templates"`
	Desktop   DesktopConfig   `yaml:"desktop"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// HunterConfig contains the automation policy settings.
type HunterConfig struct {
	// Threshold is the confidence every match is accepted against.
	// Must lie in [0.5, 0.95]. Default: 0.8
	Threshold float64 `yaml:"threshold"`

	// AutoStart begins a run as soon as the service is up.
	AutoStart bool `yaml:"auto_start"`

	// MenuKey opens the in-game menu before looking for the channel button.
	MenuKey string `yaml:"menu_key"`

	// CloseMenuKey dismisses the menu when the channel button is missing.
	CloseMenuKey string `yaml:"close_menu_key"`

	Timing TimingConfig `yaml:"timing"`
}

// TimingConfig holds every delay and timeout the automaton uses.
// Values are Go durations in YAML ("500ms", "15s").
type TimingConfig struct {
	PollInterval      time.Duration `yaml:"poll_interval"`
	FindTimeout       time.Duration `yaml:"find_timeout"`
	CharSelectTimeout time.Duration `yaml:"char_select_timeout"`
	ScanDuration      time.Duration `yaml:"scan_duration"`
	ScanInterval      time.Duration `yaml:"scan_interval"`
	DetermineAttempts int           `yaml:"determine_attempts"`
	DeterminePause    time.Duration `yaml:"determine_pause"`
	LoginSettle       time.Duration `yaml:"login_settle"`
	PostLoginWait     time.Duration `yaml:"post_login_wait"`
	CharSelectSettle  time.Duration `yaml:"char_select_settle"`
	MenuOpenWait      time.Duration `yaml:"menu_open_wait"`
	PostMenuWait      time.Duration `yaml:"post_menu_wait"`
	PostSwitchWait    time.Duration `yaml:"post_switch_wait"`
	PostConfirmWait   time.Duration `yaml:"post_confirm_wait"`
	ChannelReloadWait time.Duration `yaml:"channel_reload_wait"`
}

// TemplatesConfig locates the reference images.
type TemplatesConfig struct {
	Dir string `yaml:"dir"`

	// Files maps a label to a filename inside Dir. Labels not listed
	// default to "<label>.png".
	Files map[string]string `yaml:"files"`
}

// DesktopConfig selects the display captured as the frame source.
type DesktopConfig struct {
	Display int `yaml:"display"`

	// ClickSettle is the pause between moving the pointer and clicking.
	// Default: 50ms
	ClickSettle time.Duration `yaml:"click_settle"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool             `yaml:"enabled"`
	Broker      MQTTBrokerConfig `yaml:"broker"`
	Auth        MQTTAuthConfig   `yaml:"auth"`
	QoS         int              `yaml:"qos"`
	TopicPrefix string           `yaml:"topic_prefix"`
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

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`

	// PanelDir serves the status page from disk instead of the embedded
	// copy when set.
	PanelDir string `yaml:"panel_dir"`
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
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
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
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains rotating log file settings.
// An empty Path disables file output.
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
// Environment variables follow the pattern: BOSSHUNTER_SECTION_KEY
// For example: BOSSHUNTER_DATABASE_PATH, BOSSHUNTER_THRESHOLD
func Load(path string) (*Config, error) {
	cfg := Default()

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

// Default returns a Config populated with the stock values.
// Timings follow the game client's observed loading latencies.
func Default() *Config {
	return &Config{
		Hunter: HunterConfig{
			Threshold:    0.8,
			MenuKey:      "esc",
			CloseMenuKey: "esc",
			Timing:       DefaultTiming(),
		},
		Templates: TemplatesConfig{
			Dir: "./templates",
		},
		Desktop: DesktopConfig{
			ClickSettle: 50 * time.Millisecond,
		},
		Database: DatabaseConfig{
			Path:        "./data/bosshunter.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "bosshunter",
			},
			QoS:         1,
			TopicPrefix: "bosshunter",
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8090,
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
			URL:           "http://localhost:8086",
			Org:           "bosshunter",
			Bucket:        "bosshunter",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
			File: FileLoggingConfig{
				MaxSize:    10,
				MaxBackups: 5,
				MaxAge:     28,
			},
		},
	}
}

// DefaultTiming returns the stock automaton delays.
func DefaultTiming() TimingConfig {
	return TimingConfig{
		PollInterval:      500 * time.Millisecond,
		FindTimeout:       5 * time.Second,
		CharSelectTimeout: 5 * time.Second,
		ScanDuration:      10 * time.Second,
		ScanInterval:      time.Second,
		DetermineAttempts: 3,
		DeterminePause:    time.Second,
		LoginSettle:       time.Second,
		PostLoginWait:     5 * time.Second,
		CharSelectSettle:  time.Second,
		MenuOpenWait:      time.Second,
		PostMenuWait:      2 * time.Second,
		PostSwitchWait:    time.Second,
		PostConfirmWait:   time.Second,
		ChannelReloadWait: 15 * time.Second,
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Unparseable numeric values are ignored and leave the file value in place.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BOSSHUNTER_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Hunter.Threshold = f
		}
	}
	if v := os.Getenv("BOSSHUNTER_TEMPLATES_DIR"); v != "" {
		cfg.Templates.Dir = v
	}

	// Database
	if v := os.Getenv("BOSSHUNTER_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("BOSSHUNTER_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("BOSSHUNTER_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("BOSSHUNTER_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("BOSSHUNTER_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("BOSSHUNTER_API_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = p
		}
	}

	// InfluxDB
	if v := os.Getenv("BOSSHUNTER_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("BOSSHUNTER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
// All problems are collected and reported together.
func (c *Config) Validate() error {
	var errs []string

	if c.Hunter.Threshold < MinThreshold || c.Hunter.Threshold > MaxThreshold {
		errs = append(errs, fmt.Sprintf("hunter.threshold must be between %.2f and %.2f", MinThreshold, MaxThreshold))
	}
	errs = append(errs, c.Hunter.Timing.validate()...)

	if c.Templates.Dir == "" {
		errs = append(errs, "templates.dir is required")
	}

	if c.Desktop.Display < 0 {
		errs = append(errs, "desktop.display must not be negative")
	}
	if c.Desktop.ClickSettle < 0 {
		errs = append(errs, "desktop.click_settle must not be negative")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required when mqtt is enabled")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (t TimingConfig) validate() []string {
	var errs []string

	positive := []struct {
		name string
		d    time.Duration
	}{
		{"poll_interval", t.PollInterval},
		{"find_timeout", t.FindTimeout},
		{"char_select_timeout", t.CharSelectTimeout},
		{"scan_duration", t.ScanDuration},
		{"scan_interval", t.ScanInterval},
	}
	for _, p := range positive {
		if p.d <= 0 {
			errs = append(errs, "hunter.timing."+p.name+" must be positive")
		}
	}

	waits := []struct {
		name string
		d    time.Duration
	}{
		{"determine_pause", t.DeterminePause},
		{"login_settle", t.LoginSettle},
		{"post_login_wait", t.PostLoginWait},
		{"char_select_settle", t.CharSelectSettle},
		{"menu_open_wait", t.MenuOpenWait},
		{"post_menu_wait", t.PostMenuWait},
		{"post_switch_wait", t.PostSwitchWait},
		{"post_confirm_wait", t.PostConfirmWait},
		{"channel_reload_wait", t.ChannelReloadWait},
	}
	for _, w := range waits {
		if w.d < 0 {
			errs = append(errs, "hunter.timing."+w.name+" must not be negative")
		}
	}

	if t.DetermineAttempts < 1 {
		errs = append(errs, "hunter.timing.determine_attempts must be at least 1")
	}

	return errs
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
