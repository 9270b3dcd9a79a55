package app

import (
	"fmt"
	"os"

	"github.com/qj0r9j0vc2/chat-relay/internal/infrastructure/config"
	"github.com/qj0r9j0vc2/chat-relay/internal/infrastructure/observability"
)

func (app *Application) bootstrap(configPath string) error {
	// 1. Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	app.config = cfg

	// 2. Setup logger
	logger, err := NewAtomicLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("setting up logger: %w", err)
	}
	app.logger = logger

	// 3. Setup telemetry (OpenTelemetry)
	if err := app.setupTelemetry(); err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}

	// 4. Setup config manager with reload callback
	if err := app.setupConfigManager(configPath); err != nil {
		return fmt.Errorf("setting up config manager: %w", err)
	}

	// 5. Initialize storage layer
	if err := app.initializeStorage(); err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	// 6. Initialize infrastructure clients
	if err := app.initializeClients(); err != nil {
		return fmt.Errorf("initializing clients: %w", err)
	}

	// 7. Initialize the event pipeline
	if err := app.initializePipeline(); err != nil {
		return fmt.Errorf("initializing pipeline: %w", err)
	}

	// 8. Initialize HTTP handlers and server
	if err := app.setupServer(); err != nil {
		return fmt.Errorf("setting up server: %w", err)
	}

	return nil
}

// setupConfigManager wires hot-reload for the whitelisted logging keys.
// Skipped when there is no config file to watch.
func (app *Application) setupConfigManager(configPath string) error {
	if configPath == "" {
		return nil
	}
	if _, err := os.Stat(configPath); err != nil {
		app.logger.Get().Info("config file not found, hot-reload disabled", "path", configPath)
		return nil
	}

	manager, err := config.NewManager(configPath, func(key, value string) {
		switch key {
		case "logging.level":
			if err := app.logger.SetLevel(value); err != nil {
				app.logger.Get().Warn("ignoring reloaded log level", "value", value, "error", err)
				return
			}
		case "logging.format":
			if err := app.logger.SetFormat(value); err != nil {
				app.logger.Get().Warn("ignoring reloaded log format", "value", value, "error", err)
				return
			}
		}
		app.logger.Get().Info("config reloaded", "key", key, "value", value)
	})
	if err != nil {
		return err
	}

	app.configManager = manager
	return nil
}

func (app *Application) setupTelemetry() error {
	telemetry, err := observability.NewTelemetry(observability.ServiceName, "v1.0.0")
	if err != nil {
		return err
	}

	app.telemetry = telemetry

	app.logger.Get().Info("telemetry initialized",
		"service", observability.ServiceName,
		"metrics_enabled", true,
		"tracing_enabled", false, // NoOp tracer for now
	)

	return nil
}
