package pagerduty

import (
	"context"
	"fmt"
	"time"

	"github.com/PagerDuty/go-pagerduty"
)

// Escalator pages on-call when the generation backend has an outage.
// Implements generation.Escalator.
type Escalator struct {
	routingKey string
	now        func() time.Time
	send       func(ctx context.Context, event pagerduty.V2Event) (*pagerduty.V2EventResponse, error)
}

// NewEscalator creates an Events API v2 escalator.
func NewEscalator(routingKey string) *Escalator {
	return &Escalator{
		routingKey: routingKey,
		now:        time.Now,
		send:       pagerduty.ManageEventWithContext,
	}
}

// EscalateOutage triggers an incident describing the outage. The dedup key
// is fixed per day so repeated escalations of the same outage coalesce.
func (e *Escalator) EscalateOutage(ctx context.Context, summary string) error {
	if e.routingKey == "" {
		return fmt.Errorf("pagerduty routing key not configured")
	}

	now := e.now().UTC()
	event := pagerduty.V2Event{
		RoutingKey: e.routingKey,
		Action:     "trigger",
		DedupKey:   fmt.Sprintf("chat-relay-generation-outage-%s", now.Format("2006-01-02")),
		Payload: &pagerduty.V2Payload{
			Summary:   summary,
			Source:    "chat-relay",
			Severity:  "error",
			Timestamp: now.Format("2006-01-02T15:04:05.000Z"),
			Component: "generation",
		},
	}

	if _, err := e.send(ctx, event); err != nil {
		return fmt.Errorf("sending pagerduty event: %w", err)
	}
	return nil
}
