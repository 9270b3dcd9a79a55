package entity

import "strings"

// EventKind classifies a normalized inbound event.
type EventKind string

const (
	// KindThreadStarted is sent when a user opens a new assistant thread.
	KindThreadStarted EventKind = "thread_started"

	// KindMessage is a regular message posted in a conversation.
	KindMessage EventKind = "message"

	// KindMention is a message that explicitly addresses the bot in a channel.
	KindMention EventKind = "mention"

	// KindOther covers every event type the relay does not act on.
	KindOther EventKind = "other"
)

// ChannelKind classifies the conversation surface an event arrived on.
type ChannelKind string

const (
	ChannelDirectMessage ChannelKind = "im"
	ChannelAppHome       ChannelKind = "app_home"
	ChannelShared        ChannelKind = "channel"
	ChannelUnknown       ChannelKind = "unknown"
)

// BotEchoSubtype marks messages the platform generated on behalf of a bot.
const BotEchoSubtype = "bot_message"

// InboundEvent is the normalized view of one webhook delivery.
type InboundEvent struct {
	// DeliveryID is the platform's delivery identifier, empty when absent.
	DeliveryID string

	Kind        EventKind
	ChannelID   string
	ChannelKind ChannelKind

	// TS is the platform-assigned event timestamp. It is an opaque,
	// totally-ordered identity key, not a wall clock.
	TS string

	// ThreadTS is the root timestamp of the thread this event belongs to,
	// empty when the event itself starts a new thread.
	ThreadTS string

	UserID      string
	BotOrigin   bool
	Subtype     string
	ClientMsgID string
	Text        string
}

// ThreadID returns the thread the event belongs to: the explicit thread
// root when present, otherwise the event's own timestamp.
func (e *InboundEvent) ThreadID() string {
	if e.ThreadTS != "" {
		return e.ThreadTS
	}
	return e.TS
}

// ThreadKey returns the composite identity of the event's conversation thread.
func (e *InboundEvent) ThreadKey() ThreadKey {
	return ThreadKey{ChannelID: e.ChannelID, ThreadTS: e.ThreadID()}
}

// IsThreadRoot reports whether the event opens its thread rather than
// replying inside it.
func (e *InboundEvent) IsThreadRoot() bool {
	return e.ThreadTS == "" || e.ThreadTS == e.TS
}

// IsDirect reports whether the event arrived on a one-on-one surface.
func (e *InboundEvent) IsDirect() bool {
	return e.ChannelKind == ChannelDirectMessage || e.ChannelKind == ChannelAppHome
}

// ThreadKey identifies one logical conversation thread. It is the unit of
// greeting and conversation-state tracking.
type ThreadKey struct {
	ChannelID string
	ThreadTS  string
}

// String renders the key in "channel:timestamp" form, the format used by
// the dedup store.
func (k ThreadKey) String() string {
	return k.ChannelID + ":" + k.ThreadTS
}

// NormalizeUserID extracts a bare platform user ID (UXXXXXXXXX) from the
// forms the directory and mention payloads carry: "<@U…|alias>", profile
// URLs, and "T…-U…" team-user pairs.
func NormalizeUserID(value string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		return ""
	}

	if strings.HasPrefix(v, "<@") && strings.HasSuffix(v, ">") {
		v = v[2 : len(v)-1]
		if i := strings.IndexByte(v, '|'); i >= 0 {
			v = v[:i]
		}
	}

	if strings.HasPrefix(v, "https://") {
		v = strings.TrimRight(v, "/")
		if i := strings.LastIndexByte(v, '/'); i >= 0 {
			v = v[i+1:]
		}
	}

	if i := strings.IndexByte(v, '-'); i >= 0 && strings.HasPrefix(v[i+1:], "U") {
		v = v[i+1:]
	}

	if i := strings.IndexByte(v, 'U'); i > 0 {
		v = v[i:]
	}

	return v
}
