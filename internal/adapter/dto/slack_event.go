package dto

import (
	"encoding/json"
	"strings"

	"github.com/qj0r9j0vc2/chat-relay/internal/domain/entity"
)

// WebhookPayload mirrors the envelope Slack posts to the events endpoint.
// The envelope is usually {type: "event_callback", event: {...}}, but the
// assistant_thread_started kind can also arrive as the top-level object
// with no event wrapper.
type WebhookPayload struct {
	Token     string          `json:"token"`
	Type      string          `json:"type"`
	Challenge string          `json:"challenge"`
	EventID   string          `json:"event_id"`
	TeamID    string          `json:"team_id"`
	Event     json.RawMessage `json:"event"`

	// Present when the payload itself is an assistant_thread_started body.
	AssistantThread *assistantThread `json:"assistant_thread"`
}

// innerEvent is the union of the event-body fields the relay inspects.
type innerEvent struct {
	Type            string           `json:"type"`
	Subtype         string           `json:"subtype"`
	Text            string           `json:"text"`
	User            string           `json:"user"`
	BotID           string           `json:"bot_id"`
	Channel         string           `json:"channel"`
	ChannelType     string           `json:"channel_type"`
	TS              string           `json:"ts"`
	ThreadTS        string           `json:"thread_ts"`
	ClientMsgID     string           `json:"client_msg_id"`
	AssistantThread *assistantThread `json:"assistant_thread"`
}

type assistantThread struct {
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`
	ThreadTS  string `json:"thread_ts"`
	Context   struct {
		ChannelID string `json:"channel_id"`
	} `json:"context"`
}

func (a *assistantThread) channel() string {
	if a.ChannelID != "" {
		return a.ChannelID
	}
	return a.Context.ChannelID
}

// DecodeWebhookPayload parses a raw webhook body.
func DecodeWebhookPayload(body []byte) (*WebhookPayload, error) {
	var p WebhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// IsChallenge reports whether the payload is a URL-verification handshake.
func (p *WebhookPayload) IsChallenge() bool {
	return p.Challenge != ""
}

// IsDispatchable reports whether the payload carries an event worth
// routing: either a wrapped event body or a bare assistant_thread_started.
func (p *WebhookPayload) IsDispatchable() bool {
	return len(p.Event) > 0 || p.Type == "assistant_thread_started"
}

// Normalize converts the payload into the relay's event model. Unknown
// event types normalize to KindOther rather than erroring: the router
// treats them as no-ops.
func (p *WebhookPayload) Normalize() (*entity.InboundEvent, error) {
	// Bare thread-started body with no event wrapper.
	if len(p.Event) == 0 && p.Type == "assistant_thread_started" {
		return normalizeThreadStarted(p.EventID, p.AssistantThread), nil
	}

	var ev innerEvent
	if err := json.Unmarshal(p.Event, &ev); err != nil {
		return nil, err
	}

	if ev.Type == "assistant_thread_started" {
		return normalizeThreadStarted(p.EventID, ev.AssistantThread), nil
	}

	out := &entity.InboundEvent{
		DeliveryID:  p.EventID,
		ChannelID:   ev.Channel,
		ChannelKind: channelKind(ev.Channel, ev.ChannelType),
		TS:          ev.TS,
		ThreadTS:    ev.ThreadTS,
		UserID:      ev.User,
		BotOrigin:   ev.BotID != "",
		Subtype:     ev.Subtype,
		ClientMsgID: ev.ClientMsgID,
		Text:        ev.Text,
	}

	switch ev.Type {
	case "message":
		out.Kind = entity.KindMessage
	case "app_mention":
		out.Kind = entity.KindMention
	default:
		out.Kind = entity.KindOther
	}

	return out, nil
}

func normalizeThreadStarted(deliveryID string, at *assistantThread) *entity.InboundEvent {
	out := &entity.InboundEvent{
		DeliveryID: deliveryID,
		Kind:       entity.KindThreadStarted,
	}
	if at != nil {
		out.ChannelID = at.channel()
		out.ChannelKind = channelKind(out.ChannelID, "")
		out.UserID = at.UserID
		out.ThreadTS = at.ThreadTS
		out.TS = at.ThreadTS
	}
	return out
}

func channelKind(channel, channelType string) entity.ChannelKind {
	switch channelType {
	case "im":
		return entity.ChannelDirectMessage
	case "app_home":
		return entity.ChannelAppHome
	case "channel", "group", "mpim":
		return entity.ChannelShared
	}

	// channel_type is absent on some payload variants; fall back to the
	// ID prefix convention.
	switch {
	case strings.HasPrefix(channel, "D"):
		return entity.ChannelDirectMessage
	case strings.HasPrefix(channel, "C"):
		return entity.ChannelShared
	default:
		return entity.ChannelUnknown
	}
}
