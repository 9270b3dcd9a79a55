package slack

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/slack-go/slack"

	domainerrors "github.com/qj0r9j0vc2/chat-relay/internal/domain/errors"
)

const (
	maxPostAttempts  = 3
	postRetryBackoff = 200 * time.Millisecond
)

// Client wraps the Slack API client with the relay's operations.
// Implements event.Poster and identity.ProfileSource.
type Client struct {
	api *slack.Client
}

// NewClient creates a new Slack client. apiURL overrides the API base URL
// for tests; pass "" for production.
func NewClient(botToken string, apiURL ...string) *Client {
	var api *slack.Client
	if len(apiURL) > 0 && apiURL[0] != "" {
		api = slack.New(botToken, slack.OptionAPIURL(apiURL[0]))
	} else {
		api = slack.New(botToken)
	}
	return &Client{api: api}
}

// PostReply posts text into a channel thread and returns the message
// timestamp. With an empty threadTS the message starts a new thread.
// Transient failures (rate limits, network errors) are retried a few times
// with a short backoff; permanent failures return immediately.
func (c *Client) PostReply(ctx context.Context, channelID, threadTS, text string) (string, error) {
	options := []slack.MsgOption{
		slack.MsgOptionText(text, false),
	}
	if threadTS != "" {
		options = append(options, slack.MsgOptionTS(threadTS))
	}

	var lastErr error
	for attempt := 1; attempt <= maxPostAttempts; attempt++ {
		_, timestamp, err := c.api.PostMessageContext(ctx, channelID, options...)
		if err == nil {
			return timestamp, nil
		}

		lastErr = categorizeSlackError(err, "posting reply")
		if !domainerrors.IsTransient(lastErr) {
			return "", lastErr
		}

		select {
		case <-ctx.Done():
			return "", lastErr
		case <-time.After(postRetryBackoff * time.Duration(attempt)):
		}
	}
	return "", lastErr
}

// DisplayName returns the user's profile display name, falling back to the
// real name when the display name is unset.
func (c *Client) DisplayName(ctx context.Context, userID string) (string, error) {
	user, err := c.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		return "", categorizeSlackError(err, "getting user info")
	}
	if user.Profile.DisplayName != "" {
		return user.Profile.DisplayName, nil
	}
	return user.Profile.RealName, nil
}

// BotIdentity returns the relay's own user ID, discovered via auth.test.
// The dispatcher needs it to strip mentions and recognize its own posts.
func (c *Client) BotIdentity(ctx context.Context) (userID string, err error) {
	resp, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return "", categorizeSlackError(err, "auth test")
	}
	return resp.UserID, nil
}

// categorizeSlackError wraps Slack API errors as transient or permanent domain errors.
func categorizeSlackError(err error, operation string) error {
	if err == nil {
		return nil
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return domainerrors.NewTransientError(
			fmt.Sprintf("%s: network error", operation),
			err,
		)
	}

	var slackErr slack.SlackErrorResponse
	if errors.As(err, &slackErr) {
		switch slackErr.Err {
		case "rate_limited":
			return domainerrors.NewTransientError(
				fmt.Sprintf("%s: rate limited", operation),
				err,
			)
		case "internal_error", "fatal_error", "service_unavailable":
			return domainerrors.NewTransientError(
				fmt.Sprintf("%s: slack server error", operation),
				err,
			)
		case "invalid_auth", "account_inactive", "token_revoked", "no_permission",
			"channel_not_found", "not_in_channel", "is_archived", "user_not_found":
			return domainerrors.NewPermanentError(
				fmt.Sprintf("%s: %s", operation, slackErr.Err),
				err,
			)
		default:
			return domainerrors.NewPermanentError(
				fmt.Sprintf("%s: %s", operation, slackErr.Err),
				err,
			)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domainerrors.NewTransientError(
			fmt.Sprintf("%s: context timeout", operation),
			err,
		)
	}

	return domainerrors.NewPermanentError(
		fmt.Sprintf("%s: %v", operation, err),
		err,
	)
}
