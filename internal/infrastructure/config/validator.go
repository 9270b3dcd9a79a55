package config

import (
	"fmt"
	"strings"
	"time"
)

// reloadableKeys defines the whitelist of configuration keys that can be hot-reloaded.
var reloadableKeys = map[string]bool{
	"logging.level":  true,
	"logging.format": true,
}

// IsReloadable returns true if the given config key can be hot-reloaded.
func IsReloadable(key string) bool {
	return reloadableKeys[key]
}

// ValidateLogLevel checks if the log level is valid.
func ValidateLogLevel(level string) error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", level)
	}
	return nil
}

// ValidateLogFormat checks if the log format is valid.
func ValidateLogFormat(format string) error {
	validFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validFormats[strings.ToLower(format)] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", format)
	}
	return nil
}

// ValidateNonEmpty checks if a string is non-empty.
func ValidateNonEmpty(value string, fieldName string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	return nil
}

// ValidateDuration checks if a duration is greater than zero.
func ValidateDuration(duration time.Duration, fieldName string) error {
	if duration <= 0 {
		return fmt.Errorf("%s must be greater than 0", fieldName)
	}
	return nil
}

// ValidatePort checks if a port number is valid.
func ValidatePort(port int, fieldName string) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", fieldName, port)
	}
	return nil
}

// ValidateStorageType checks if the storage type is valid.
func ValidateStorageType(storageType string) error {
	validTypes := map[string]bool{
		"memory": true,
		"sqlite": true,
		"mysql":  true,
	}
	if !validTypes[strings.ToLower(storageType)] {
		return fmt.Errorf("invalid storage type: %s (must be memory, sqlite, or mysql)", storageType)
	}
	return nil
}

// Validate performs comprehensive validation on the configuration.
// Returns an error if any validation fails.
func (c *Config) Validate() error {
	var errors []string

	// Server validation
	if err := ValidatePort(c.Server.Port, "server.port"); err != nil {
		errors = append(errors, err.Error())
	}
	if err := ValidateDuration(c.Server.ReadTimeout, "server.read_timeout"); err != nil {
		errors = append(errors, err.Error())
	}
	if err := ValidateDuration(c.Server.WriteTimeout, "server.write_timeout"); err != nil {
		errors = append(errors, err.Error())
	}
	if err := ValidateDuration(c.Server.ShutdownTimeout, "server.shutdown_timeout"); err != nil {
		errors = append(errors, err.Error())
	}

	// Slack credentials are not optional: the relay cannot verify or answer
	// webhooks without them.
	if err := ValidateNonEmpty(c.Slack.BotToken, "slack.bot_token"); err != nil {
		errors = append(errors, err.Error())
	}
	if err := ValidateNonEmpty(c.Slack.SigningSecret, "slack.signing_secret"); err != nil {
		errors = append(errors, err.Error())
	}

	// GenAI validation
	if err := ValidateNonEmpty(c.GenAI.APIKey, "genai.api_key"); err != nil {
		errors = append(errors, err.Error())
	}
	if err := ValidateDuration(c.GenAI.Timeout, "genai.timeout"); err != nil {
		errors = append(errors, err.Error())
	}

	// Directory validation
	if c.Directory.Enabled {
		if c.Directory.URL == "" && c.Directory.Path == "" {
			errors = append(errors, "directory.url or directory.path is required when directory is enabled")
		}
	}

	// PagerDuty validation
	if c.IsPagerDutyEnabled() {
		if err := ValidateNonEmpty(c.PagerDuty.RoutingKey, "pagerduty.routing_key"); err != nil {
			errors = append(errors, err.Error())
		}
		if c.PagerDuty.FailureThreshold < 1 {
			errors = append(errors, "pagerduty.failure_threshold must be at least 1")
		}
	}

	// Relay validation
	if c.Relay.Workers < 1 {
		errors = append(errors, "relay.workers must be at least 1")
	}
	if c.Relay.QueueSize < 1 {
		errors = append(errors, "relay.queue_size must be at least 1")
	}
	if err := ValidateDuration(c.Relay.TaskTimeout, "relay.task_timeout"); err != nil {
		errors = append(errors, err.Error())
	}
	if err := ValidateDuration(c.Relay.RetentionWindow, "relay.retention_window"); err != nil {
		errors = append(errors, err.Error())
	}
	if err := ValidateDuration(c.Relay.SweepInterval, "relay.sweep_interval"); err != nil {
		errors = append(errors, err.Error())
	}
	if c.Relay.SweepInterval >= c.Relay.RetentionWindow {
		errors = append(errors, "relay.sweep_interval must be less than relay.retention_window")
	}

	// Storage validation
	if err := ValidateStorageType(c.Storage.Type); err != nil {
		errors = append(errors, err.Error())
	}
	if strings.ToLower(c.Storage.Type) == "sqlite" {
		if err := ValidateNonEmpty(c.Storage.SQLite.Path, "storage.sqlite.path"); err != nil {
			errors = append(errors, err.Error())
		}
	}
	if strings.ToLower(c.Storage.Type) == "mysql" {
		if err := ValidateNonEmpty(c.Storage.MySQL.Host, "storage.mysql.host"); err != nil {
			errors = append(errors, err.Error())
		}
		if err := ValidatePort(c.Storage.MySQL.Port, "storage.mysql.port"); err != nil {
			errors = append(errors, err.Error())
		}
		if err := ValidateNonEmpty(c.Storage.MySQL.Database, "storage.mysql.database"); err != nil {
			errors = append(errors, err.Error())
		}
		if err := ValidateNonEmpty(c.Storage.MySQL.Username, "storage.mysql.username"); err != nil {
			errors = append(errors, err.Error())
		}
		if err := ValidateNonEmpty(c.Storage.MySQL.Password, "storage.mysql.password"); err != nil {
			errors = append(errors, err.Error())
		}
		if c.Storage.MySQL.Pool.MaxOpenConns < 1 {
			errors = append(errors, "storage.mysql.pool.max_open_conns must be at least 1")
		}
		if c.Storage.MySQL.Pool.MaxIdleConns > c.Storage.MySQL.Pool.MaxOpenConns {
			errors = append(errors, "storage.mysql.pool.max_idle_conns cannot exceed max_open_conns")
		}
	}

	// Logging validation
	if err := ValidateLogLevel(c.Logging.Level); err != nil {
		errors = append(errors, err.Error())
	}
	if err := ValidateLogFormat(c.Logging.Format); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}
