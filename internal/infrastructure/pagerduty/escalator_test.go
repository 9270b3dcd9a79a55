package pagerduty

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/PagerDuty/go-pagerduty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscalateOutage_SendsTriggerEvent(t *testing.T) {
	var sent pagerduty.V2Event
	e := NewEscalator("rk-123")
	e.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	e.send = func(_ context.Context, event pagerduty.V2Event) (*pagerduty.V2EventResponse, error) {
		sent = event
		return &pagerduty.V2EventResponse{Status: "success"}, nil
	}

	err := e.EscalateOutage(context.Background(), "generation failing")
	require.NoError(t, err)

	assert.Equal(t, "rk-123", sent.RoutingKey)
	assert.Equal(t, "trigger", sent.Action)
	assert.Equal(t, "chat-relay-generation-outage-2025-06-01", sent.DedupKey)
	assert.Equal(t, "generation failing", sent.Payload.Summary)
	assert.Equal(t, "error", sent.Payload.Severity)
}

func TestEscalateOutage_MissingRoutingKey(t *testing.T) {
	e := NewEscalator("")

	err := e.EscalateOutage(context.Background(), "down")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "routing key")
}

func TestEscalateOutage_SendFailure(t *testing.T) {
	e := NewEscalator("rk-123")
	e.send = func(context.Context, pagerduty.V2Event) (*pagerduty.V2EventResponse, error) {
		return nil, errors.New("api unavailable")
	}

	err := e.EscalateOutage(context.Background(), "down")
	require.Error(t, err)
}
