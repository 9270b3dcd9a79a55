package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Slack     SlackConfig     `yaml:"slack"`
	GenAI     GenAIConfig     `yaml:"genai"`
	Directory DirectoryConfig `yaml:"directory"`
	PagerDuty PagerDutyConfig `yaml:"pagerduty"`
	Relay     RelayConfig     `yaml:"relay"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// StorageConfig holds persistence storage settings.
type StorageConfig struct {
	Type   string       `yaml:"type"` // "memory", "sqlite", or "mysql"
	SQLite SQLiteConfig `yaml:"sqlite"`
	MySQL  MySQLConfig  `yaml:"mysql"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path string `yaml:"path"` // Database file path, use ":memory:" for in-memory
}

// MySQLConfig holds MySQL-specific settings.
type MySQLConfig struct {
	Host     string          `yaml:"host"`
	Port     int             `yaml:"port"`
	Database string          `yaml:"database"`
	Username string          `yaml:"username"`
	Password string          `yaml:"password"`
	Pool     MySQLPoolConfig `yaml:"pool"`
	Timeout  time.Duration   `yaml:"timeout"`
}

// MySQLPoolConfig holds MySQL connection pool settings.
type MySQLPoolConfig struct {
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps"`
	RateLimitBurst  int           `yaml:"rate_limit_burst"`
	GenerateCheck   bool          `yaml:"generate_check"` // Mounts the /generate-check smoke endpoint
}

// SlackConfig holds Slack integration settings.
type SlackConfig struct {
	BotToken      string `yaml:"bot_token"`
	SigningSecret string `yaml:"signing_secret"`
	AppID         string `yaml:"app_id"`
	BotUserID     string `yaml:"bot_user_id"` // Discovered via auth.test when empty
}

// GenAIConfig holds text generation backend settings.
type GenAIConfig struct {
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"` // Optional override for OpenAI-compatible endpoints
	Timeout     time.Duration `yaml:"timeout"`
	Temperature float32       `yaml:"temperature"`
}

// DirectoryConfig holds people-directory lookup settings. The directory is
// a CSV of preferred names keyed by workspace user ID, fetched from a URL
// or read from a local file.
type DirectoryConfig struct {
	Enabled  bool          `yaml:"enabled"`
	URL      string        `yaml:"url"`
	Path     string        `yaml:"path"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// PagerDutyConfig holds escalation settings for generation outages.
type PagerDutyConfig struct {
	Enabled          bool   `yaml:"enabled"`
	RoutingKey       string `yaml:"routing_key"`
	FailureThreshold int    `yaml:"failure_threshold"`
}

// RelayConfig holds event processing behavior settings.
type RelayConfig struct {
	Workers         int           `yaml:"workers"`
	QueueSize       int           `yaml:"queue_size"`
	TaskTimeout     time.Duration `yaml:"task_timeout"`
	RetentionWindow time.Duration `yaml:"retention_window"`
	SweepInterval   time.Duration `yaml:"sweep_interval"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads configuration from file and environment.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	// Load from file if exists
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err == nil {
			// Expand environment variables in YAML
			expandedData := os.ExpandEnv(string(data))
			if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Apply defaults
	cfg.applyDefaults()

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// overrideFromEnv overrides config values from environment variables.
func (c *Config) overrideFromEnv() {
	// Server
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}

	if v := os.Getenv("SERVER_GENERATE_CHECK"); v != "" {
		c.Server.GenerateCheck = strings.ToLower(v) == "true"
	}

	// Slack
	if v := os.Getenv("SLACK_BOT_TOKEN"); v != "" {
		c.Slack.BotToken = v
	}
	if v := os.Getenv("SLACK_SIGNING_SECRET"); v != "" {
		c.Slack.SigningSecret = v
	}
	if v := os.Getenv("SLACK_APP_ID"); v != "" {
		c.Slack.AppID = v
	}
	if v := os.Getenv("SLACK_BOT_USER_ID"); v != "" {
		c.Slack.BotUserID = v
	}

	// GenAI
	if v := os.Getenv("GENAI_API_KEY"); v != "" {
		c.GenAI.APIKey = v
	}
	if v := os.Getenv("GENAI_MODEL"); v != "" {
		c.GenAI.Model = v
	}
	if v := os.Getenv("GENAI_BASE_URL"); v != "" {
		c.GenAI.BaseURL = v
	}

	// Directory
	if v := os.Getenv("DIRECTORY_ENABLED"); v != "" {
		c.Directory.Enabled = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("DIRECTORY_URL"); v != "" {
		c.Directory.URL = v
	}
	if v := os.Getenv("DIRECTORY_PATH"); v != "" {
		c.Directory.Path = v
	}

	// PagerDuty
	if v := os.Getenv("PAGERDUTY_ENABLED"); v != "" {
		c.PagerDuty.Enabled = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("PAGERDUTY_ROUTING_KEY"); v != "" {
		c.PagerDuty.RoutingKey = v
	}

	// Logging
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}

	// Storage
	if v := os.Getenv("STORAGE_TYPE"); v != "" {
		c.Storage.Type = v
	}
	if v := os.Getenv("SQLITE_DATABASE_PATH"); v != "" {
		c.Storage.SQLite.Path = v
	}

	// MySQL
	if v := os.Getenv("MYSQL_HOST"); v != "" {
		c.Storage.MySQL.Host = v
	}
	if v := os.Getenv("MYSQL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Storage.MySQL.Port = port
		}
	}
	if v := os.Getenv("MYSQL_DATABASE"); v != "" {
		c.Storage.MySQL.Database = v
	}
	if v := os.Getenv("MYSQL_USERNAME"); v != "" {
		c.Storage.MySQL.Username = v
	}
	if v := os.Getenv("MYSQL_PASSWORD"); v != "" {
		c.Storage.MySQL.Password = v
	}
}

// applyDefaults sets default values for unset config options.
func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 5 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
	if c.Server.RateLimitRPS == 0 {
		c.Server.RateLimitRPS = 50
	}
	if c.Server.RateLimitBurst == 0 {
		c.Server.RateLimitBurst = 100
	}

	// GenAI defaults
	if c.GenAI.Model == "" {
		c.GenAI.Model = "gpt-4o-mini"
	}
	if c.GenAI.Timeout == 0 {
		c.GenAI.Timeout = 45 * time.Second
	}
	if c.GenAI.Temperature == 0 {
		c.GenAI.Temperature = 0.7
	}

	// Directory defaults
	if c.Directory.CacheTTL == 0 {
		c.Directory.CacheTTL = 10 * time.Minute
	}

	// PagerDuty defaults
	if c.PagerDuty.FailureThreshold == 0 {
		c.PagerDuty.FailureThreshold = 5
	}

	// Relay defaults
	if c.Relay.Workers == 0 {
		c.Relay.Workers = 8
	}
	if c.Relay.QueueSize == 0 {
		c.Relay.QueueSize = 256
	}
	if c.Relay.TaskTimeout == 0 {
		c.Relay.TaskTimeout = 60 * time.Second
	}
	if c.Relay.RetentionWindow == 0 {
		// Longer than the platform's webhook retry window, so a redelivered
		// event always finds its dedup entry.
		c.Relay.RetentionWindow = time.Hour
	}
	if c.Relay.SweepInterval == 0 {
		c.Relay.SweepInterval = 10 * time.Minute
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	// Storage defaults
	if c.Storage.Type == "" {
		c.Storage.Type = "memory"
	}
	if c.Storage.SQLite.Path == "" {
		c.Storage.SQLite.Path = "./data/chat-relay.db"
	}
	if c.Storage.MySQL.Port == 0 {
		c.Storage.MySQL.Port = 3306
	}
	if c.Storage.MySQL.Timeout == 0 {
		c.Storage.MySQL.Timeout = 5 * time.Second
	}
	if c.Storage.MySQL.Pool.MaxOpenConns == 0 {
		c.Storage.MySQL.Pool.MaxOpenConns = 25
	}
	if c.Storage.MySQL.Pool.MaxIdleConns == 0 {
		c.Storage.MySQL.Pool.MaxIdleConns = 5
	}
	if c.Storage.MySQL.Pool.ConnMaxLifetime == 0 {
		c.Storage.MySQL.Pool.ConnMaxLifetime = 3 * time.Minute
	}
	if c.Storage.MySQL.Pool.ConnMaxIdleTime == 0 {
		c.Storage.MySQL.Pool.ConnMaxIdleTime = 1 * time.Minute
	}
}

// IsDirectoryEnabled returns true if the people directory is configured.
func (c *Config) IsDirectoryEnabled() bool {
	return c.Directory.Enabled && (c.Directory.URL != "" || c.Directory.Path != "")
}

// IsPagerDutyEnabled returns true if PagerDuty escalation is enabled.
func (c *Config) IsPagerDutyEnabled() bool {
	return c.PagerDuty.Enabled
}
