package app

import (
	"context"
	"fmt"
	"time"

	"github.com/qj0r9j0vc2/chat-relay/internal/infrastructure/directory"
	"github.com/qj0r9j0vc2/chat-relay/internal/infrastructure/openai"
	"github.com/qj0r9j0vc2/chat-relay/internal/infrastructure/pagerduty"
	"github.com/qj0r9j0vc2/chat-relay/internal/infrastructure/slack"
)

// Clients holds all external integration clients
type Clients struct {
	Slack     *slack.Client
	Directory *directory.CSVDirectory // nil when not configured
	Backend   *openai.Client
	Escalator *pagerduty.Escalator // nil when escalation is disabled

	// BotUserID is the relay's own workspace user ID, resolved at startup
	// so the dispatcher can recognize mentions of itself.
	BotUserID string
}

func (app *Application) initializeClients() error {
	app.clients = &Clients{}
	logger := &slogAdapter{source: app.logger}

	app.clients.Slack = slack.NewClient(app.config.Slack.BotToken)

	botUserID := app.config.Slack.BotUserID
	if botUserID == "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var err error
		botUserID, err = app.clients.Slack.BotIdentity(ctx)
		if err != nil {
			return fmt.Errorf("resolving bot identity: %w", err)
		}
	}
	app.clients.BotUserID = botUserID
	app.logger.Get().Info("chat platform integration enabled",
		"bot_user_id", botUserID,
	)

	app.clients.Backend = openai.NewClient(
		app.config.GenAI.APIKey,
		app.config.GenAI.Model,
		app.config.GenAI.BaseURL,
		app.config.GenAI.Temperature,
		app.config.GenAI.Timeout,
	)
	app.logger.Get().Info("generation backend configured",
		"model", app.config.GenAI.Model,
	)

	if app.config.IsDirectoryEnabled() {
		app.clients.Directory = directory.New(
			app.config.Directory.URL,
			app.config.Directory.Path,
			app.config.Directory.CacheTTL,
			logger,
		)
		app.logger.Get().Info("people directory enabled",
			"remote", app.config.Directory.URL != "",
		)
	}

	if app.config.IsPagerDutyEnabled() {
		app.clients.Escalator = pagerduty.NewEscalator(app.config.PagerDuty.RoutingKey)
		app.logger.Get().Info("PagerDuty escalation enabled",
			"failure_threshold", app.config.PagerDuty.FailureThreshold,
		)
	}

	return nil
}
