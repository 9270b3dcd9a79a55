package app

import (
	"github.com/qj0r9j0vc2/chat-relay/internal/tools"
	"github.com/qj0r9j0vc2/chat-relay/internal/usecase/event"
	"github.com/qj0r9j0vc2/chat-relay/internal/usecase/generation"
	"github.com/qj0r9j0vc2/chat-relay/internal/usecase/identity"
)

func (app *Application) initializePipeline() error {
	logger := &slogAdapter{source: app.logger}

	// Typed nils must not reach interface fields.
	var dir identity.Directory
	if app.clients.Directory != nil {
		dir = app.clients.Directory
	}
	resolver := identity.NewResolver(app.clients.Slack, dir, logger)

	registry := tools.NewRegistry()
	registry.Register(tools.NewUserRecordTool(resolver))
	registry.Register(tools.NewGeocodeTool("", 0))

	var esc generation.Escalator
	if app.clients.Escalator != nil {
		esc = app.clients.Escalator
	}
	generator := generation.NewService(
		app.clients.Backend,
		registry,
		esc,
		app.config.PagerDuty.FailureThreshold,
		app.telemetry.Metrics,
		logger,
	)
	app.generator = generator

	app.dispatcher = event.NewDispatcher(
		app.store,
		app.clients.Slack,
		generator,
		resolver,
		app.telemetry.Metrics,
		logger,
		app.clients.BotUserID,
	)

	app.pool = event.NewPool(
		app.dispatcher,
		app.config.Relay.Workers,
		app.config.Relay.QueueSize,
		app.config.Relay.TaskTimeout,
		app.telemetry.Metrics,
		logger,
	)

	app.janitor = event.NewJanitor(
		app.store,
		app.config.Relay.RetentionWindow,
		app.config.Relay.SweepInterval,
		app.telemetry.Metrics,
		logger,
	)

	return nil
}
