package app

import (
	"github.com/qj0r9j0vc2/chat-relay/internal/adapter/handler"
	"github.com/qj0r9j0vc2/chat-relay/internal/infrastructure/server"
	"github.com/qj0r9j0vc2/chat-relay/internal/infrastructure/slack"
)

func (app *Application) setupServer() error {
	logger := &slogAdapter{source: app.logger}

	app.handlers = &server.Handlers{
		Events:        handler.NewEventsHandler(app.pool, logger),
		GenerateCheck: handler.NewGenerateCheckHandler(app.generator, logger),
		Health:        handler.NewHealthHandler(),
		Ready:         handler.NewReadyHandler(app.dbPinger),
	}

	router := server.NewRouter(app.config.Server, app.handlers, &server.RouterDeps{
		Verifier: slack.NewSignatureVerifier(app.config.Slack.SigningSecret),
		Metrics:  app.telemetry.Metrics,
		Logger:   app.logger.Get(),
	})

	app.server = server.New(app.config.Server, router, app.logger.Get())
	return nil
}
