package app

import (
	"context"
	"io"
	"time"

	"github.com/qj0r9j0vc2/chat-relay/internal/adapter/handler"
	"github.com/qj0r9j0vc2/chat-relay/internal/domain/repository"
	"github.com/qj0r9j0vc2/chat-relay/internal/infrastructure/config"
	"github.com/qj0r9j0vc2/chat-relay/internal/infrastructure/observability"
	"github.com/qj0r9j0vc2/chat-relay/internal/infrastructure/server"
	"github.com/qj0r9j0vc2/chat-relay/internal/usecase/event"
	"github.com/qj0r9j0vc2/chat-relay/internal/usecase/generation"
)

// Application holds all application dependencies and lifecycle
type Application struct {
	config        *config.Config
	configManager *config.Manager
	logger        *AtomicLogger
	telemetry     *observability.Telemetry

	// Storage
	store    repository.DedupStore
	dbPinger handler.Pinger
	dbCloser io.Closer

	// Infrastructure clients
	clients *Clients

	// Event pipeline
	dispatcher *event.Dispatcher
	pool       *event.Pool
	janitor    *event.Janitor
	generator  *generation.Service

	// HTTP layer
	handlers *server.Handlers
	server   *server.Server
}

// New creates a new Application instance
func New(configPath string) (*Application, error) {
	app := &Application{}

	if err := app.bootstrap(configPath); err != nil {
		return nil, err
	}

	return app, nil
}

// Start runs the application until context is cancelled
func (app *Application) Start(ctx context.Context) error {
	app.logger.Get().Info("starting chat-relay",
		"port", app.config.Server.Port,
	)

	if app.configManager != nil {
		app.configManager.Watch()
	}

	janitorDone := make(chan struct{})
	go func() {
		defer close(janitorDone)
		app.janitor.Run(ctx)
	}()

	err := app.server.Run(ctx)

	// The server no longer accepts deliveries; drain what was queued.
	app.pool.Shutdown()
	<-janitorDone

	return err
}

// Shutdown gracefully stops the application
func (app *Application) Shutdown() error {
	app.logger.Get().Info("shutting down chat-relay")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if app.telemetry != nil {
		if err := app.telemetry.Shutdown(ctx); err != nil {
			app.logger.Get().Error("failed to shutdown telemetry", "error", err)
		}
	}

	if app.dbCloser != nil {
		if err := app.dbCloser.Close(); err != nil {
			app.logger.Get().Error("failed to close database", "error", err)
			return err
		}
	}

	app.logger.Get().Info("chat-relay stopped")
	return nil
}
