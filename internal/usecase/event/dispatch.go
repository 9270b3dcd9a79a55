package event

import (
	"context"
	"fmt"
	"strings"

	"github.com/qj0r9j0vc2/chat-relay/internal/domain/entity"
	"github.com/qj0r9j0vc2/chat-relay/internal/domain/repository"
)

// Ignore reasons reported on the events.ignored metric.
const (
	ReasonDuplicateDelivery = "duplicate_delivery"
	ReasonDuplicateMention  = "duplicate_mention"
	ReasonBotOrigin         = "bot_origin"
	ReasonOwnReply          = "own_reply"
	ReasonSubtype           = "subtype"
	ReasonChannelMessage    = "channel_message"
	ReasonEmptyText         = "empty_text"
	ReasonMissingThread     = "missing_thread"
	ReasonUnsupportedType   = "unsupported_type"
)

// Actions reported in dispatch outcomes.
const (
	ActionGreeted = "greeted"
	ActionReplied = "replied"
	ActionIgnored = "ignored"
)

const (
	greetingAnonymous = "Hello! How can I help you today?"
	greetingNamed     = "Hello %s, how can I help you today?"

	apologyText = "I'm sorry, I ran into a problem answering that. Please try again."
	repeatText  = "Could you repeat your message?"
)

// Outcome describes what the dispatcher did with an event.
type Outcome struct {
	Action   string
	Reason   string
	PostedTS string
}

func ignored(reason string) *Outcome {
	return &Outcome{Action: ActionIgnored, Reason: reason}
}

// Dispatcher routes normalized inbound events: it greets new threads,
// generates replies for direct messages and mentions, and drops everything
// else. All dedup decisions go through the store so that concurrent
// deliveries of the same event collapse to a single action.
type Dispatcher struct {
	store     repository.DedupStore
	poster    Poster
	generator Generator
	names     NameResolver
	metrics   MetricsRecorder
	logger    Logger
	botUserID string
}

// NewDispatcher creates a dispatcher. botUserID is the relay's own user ID,
// used to strip the mention prefix from app_mention text.
func NewDispatcher(
	store repository.DedupStore,
	poster Poster,
	generator Generator,
	names NameResolver,
	metrics MetricsRecorder,
	logger Logger,
	botUserID string,
) *Dispatcher {
	return &Dispatcher{
		store:     store,
		poster:    poster,
		generator: generator,
		names:     names,
		metrics:   metrics,
		logger:    logger,
		botUserID: botUserID,
	}
}

// Execute processes a single inbound event.
func (d *Dispatcher) Execute(ctx context.Context, ev *entity.InboundEvent) (*Outcome, error) {
	kind := string(ev.Kind)
	d.metrics.RecordEventReceived(ctx, kind)

	// Delivery-level dedup comes first: the platform redelivers the whole
	// envelope on slow acks, and a redelivered envelope must be a no-op.
	if ev.DeliveryID != "" {
		first, err := d.store.MarkDelivery(ctx, ev.DeliveryID)
		if err != nil {
			return nil, fmt.Errorf("marking delivery: %w", err)
		}
		if !first {
			d.logger.Debug("duplicate delivery", "deliveryID", ev.DeliveryID)
			d.metrics.RecordEventIgnored(ctx, kind, ReasonDuplicateDelivery)
			return ignored(ReasonDuplicateDelivery), nil
		}
	}

	if ev.Kind == entity.KindThreadStarted {
		return d.handleThreadStarted(ctx, ev)
	}

	// Never respond to bot-authored messages, our own included. Echoes of
	// our own posts can arrive without a bot_id on some payload variants,
	// and the reply-timestamp set is empty after a restart, so the author
	// check and the posted-timestamp check back each other up.
	if ev.BotOrigin || ev.Subtype == entity.BotEchoSubtype ||
		(d.botUserID != "" && entity.NormalizeUserID(ev.UserID) == d.botUserID) {
		d.metrics.RecordEventIgnored(ctx, kind, ReasonBotOrigin)
		return ignored(ReasonBotOrigin), nil
	}
	if ev.TS != "" {
		own, err := d.store.IsOwnReply(ctx, ev.TS)
		if err != nil {
			return nil, fmt.Errorf("checking own reply: %w", err)
		}
		if own {
			d.metrics.RecordEventIgnored(ctx, kind, ReasonOwnReply)
			return ignored(ReasonOwnReply), nil
		}
	}

	switch ev.Kind {
	case entity.KindMessage:
		return d.handleMessage(ctx, ev)
	case entity.KindMention:
		return d.handleMention(ctx, ev)
	default:
		d.metrics.RecordEventIgnored(ctx, kind, ReasonUnsupportedType)
		return ignored(ReasonUnsupportedType), nil
	}
}

func (d *Dispatcher) handleThreadStarted(ctx context.Context, ev *entity.InboundEvent) (*Outcome, error) {
	if ev.ChannelID == "" || ev.ThreadID() == "" {
		d.metrics.RecordEventIgnored(ctx, string(ev.Kind), ReasonMissingThread)
		return ignored(ReasonMissingThread), nil
	}
	return d.greet(ctx, ev)
}

func (d *Dispatcher) handleMessage(ctx context.Context, ev *entity.InboundEvent) (*Outcome, error) {
	kind := string(ev.Kind)

	// Edits, deletions and other synthetic subtypes carry no new user
	// intent.
	if ev.Subtype != "" {
		d.metrics.RecordEventIgnored(ctx, kind, ReasonSubtype)
		return ignored(ReasonSubtype), nil
	}

	// Plain messages are answered only in direct conversations; shared
	// channels require an explicit mention.
	if !ev.IsDirect() {
		d.metrics.RecordEventIgnored(ctx, kind, ReasonChannelMessage)
		return ignored(ReasonChannelMessage), nil
	}

	if strings.TrimSpace(ev.Text) == "" {
		d.metrics.RecordEventIgnored(ctx, kind, ReasonEmptyText)
		return ignored(ReasonEmptyText), nil
	}

	// The first top-level message in a conversation that was never greeted
	// gets the greeting instead of a generated reply. Threaded follow-ups
	// and already-greeted conversations go straight to generation.
	if ev.IsThreadRoot() {
		claimed, err := d.store.ClaimGreeting(ctx, ev.ThreadKey())
		if err != nil {
			return nil, fmt.Errorf("claiming greeting: %w", err)
		}
		if claimed {
			return d.postGreeting(ctx, ev)
		}
	}

	return d.reply(ctx, ev, ev.Text)
}

func (d *Dispatcher) handleMention(ctx context.Context, ev *entity.InboundEvent) (*Outcome, error) {
	kind := string(ev.Kind)

	// Mentions are deduplicated by client message ID: the platform can
	// deliver the same mention under distinct delivery IDs.
	mentionKey := ev.ClientMsgID
	if mentionKey == "" {
		mentionKey = ev.ThreadKey().ChannelID + ":" + ev.TS
	}
	claimed, err := d.store.ClaimMention(ctx, mentionKey)
	if err != nil {
		return nil, fmt.Errorf("claiming mention: %w", err)
	}
	if !claimed {
		d.logger.Debug("duplicate mention", "clientMsgID", mentionKey)
		d.metrics.RecordEventIgnored(ctx, kind, ReasonDuplicateMention)
		return ignored(ReasonDuplicateMention), nil
	}

	text := d.stripMention(ev.Text)
	if text == "" {
		// The user pinged us with nothing to answer; prompt instead of
		// staying silent.
		outcome, err := d.post(ctx, ev, repeatText, ActionReplied)
		if err != nil {
			if relErr := d.store.ReleaseMention(ctx, mentionKey); relErr != nil {
				d.logger.Error("releasing mention claim", "clientMsgID", mentionKey, "error", relErr)
			}
			return nil, err
		}
		return outcome, nil
	}

	outcome, err := d.reply(ctx, ev, text)
	if err != nil {
		if relErr := d.store.ReleaseMention(ctx, mentionKey); relErr != nil {
			d.logger.Error("releasing mention claim", "clientMsgID", mentionKey, "error", relErr)
		}
		return nil, err
	}
	return outcome, nil
}

// greet claims and posts the greeting for a brand-new conversation.
func (d *Dispatcher) greet(ctx context.Context, ev *entity.InboundEvent) (*Outcome, error) {
	claimed, err := d.store.ClaimGreeting(ctx, ev.ThreadKey())
	if err != nil {
		return nil, fmt.Errorf("claiming greeting: %w", err)
	}
	if !claimed {
		d.metrics.RecordEventIgnored(ctx, string(ev.Kind), ReasonDuplicateDelivery)
		return ignored(ReasonDuplicateDelivery), nil
	}
	return d.postGreeting(ctx, ev)
}

func (d *Dispatcher) postGreeting(ctx context.Context, ev *entity.InboundEvent) (*Outcome, error) {
	text := greetingAnonymous
	if userID := entity.NormalizeUserID(ev.UserID); userID != "" {
		name, err := d.names.PreferredName(ctx, userID)
		if err != nil {
			d.logger.Warn("resolving preferred name", "userID", userID, "error", err)
		} else if name != "" {
			text = fmt.Sprintf(greetingNamed, name)
		}
	}

	ts, err := d.poster.PostReply(ctx, ev.ChannelID, ev.ThreadID(), text)
	if err != nil {
		// Release so a redelivery can greet after a transient post failure.
		if relErr := d.store.ReleaseGreeting(ctx, ev.ThreadKey()); relErr != nil {
			d.logger.Error("releasing greeting claim", "thread", ev.ThreadKey().String(), "error", relErr)
		}
		d.metrics.RecordPost(ctx, "greeting", false)
		return nil, fmt.Errorf("posting greeting: %w", err)
	}

	if err := d.store.RecordReply(ctx, ts); err != nil {
		d.logger.Error("recording greeting timestamp", "ts", ts, "error", err)
	}
	d.metrics.RecordPost(ctx, "greeting", true)
	d.logger.Info("greeting posted", "channel", ev.ChannelID, "thread", ev.ThreadID(), "ts", ts)

	return &Outcome{Action: ActionGreeted, PostedTS: ts}, nil
}

// reply generates an answer and posts it into the event's thread.
func (d *Dispatcher) reply(ctx context.Context, ev *entity.InboundEvent, text string) (*Outcome, error) {
	userID := entity.NormalizeUserID(ev.UserID)

	answer, err := d.generator.Reply(ctx, userID, text)
	if err != nil {
		d.logger.Error("generation failed", "channel", ev.ChannelID, "thread", ev.ThreadID(), "error", err)
		answer = apologyText
	} else if strings.TrimSpace(answer) == "" {
		answer = repeatText
	}

	return d.post(ctx, ev, answer, ActionReplied)
}

func (d *Dispatcher) post(ctx context.Context, ev *entity.InboundEvent, text, action string) (*Outcome, error) {
	ts, err := d.poster.PostReply(ctx, ev.ChannelID, ev.ThreadID(), text)
	if err != nil {
		d.metrics.RecordPost(ctx, "reply", false)
		return nil, fmt.Errorf("posting reply: %w", err)
	}

	if err := d.store.RecordReply(ctx, ts); err != nil {
		d.logger.Error("recording reply timestamp", "ts", ts, "error", err)
	}
	d.metrics.RecordPost(ctx, "reply", true)
	d.logger.Info("reply posted", "channel", ev.ChannelID, "thread", ev.ThreadID(), "ts", ts)

	return &Outcome{Action: action, PostedTS: ts}, nil
}

// stripMention removes the relay's own mention tokens from text.
func (d *Dispatcher) stripMention(text string) string {
	if d.botUserID != "" {
		text = strings.ReplaceAll(text, fmt.Sprintf("<@%s>", d.botUserID), "")
	}
	return strings.TrimSpace(text)
}
