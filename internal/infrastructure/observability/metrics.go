package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics.
type Metrics struct {
	meter metric.Meter

	// HTTP metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPRequestsActive  metric.Int64UpDownCounter

	// Event pipeline metrics
	EventsReceivedTotal metric.Int64Counter
	EventsIgnoredTotal  metric.Int64Counter
	EventQueueDepth     metric.Int64UpDownCounter
	EventsDroppedTotal  metric.Int64Counter

	// Posting metrics
	GreetingsPostedTotal metric.Int64Counter
	RepliesPostedTotal   metric.Int64Counter
	PostErrorsTotal      metric.Int64Counter

	// Generation metrics
	GenerationDuration    metric.Float64Histogram
	GenerationErrorsTotal metric.Int64Counter
	ToolCallsTotal        metric.Int64Counter

	// Dedup store metrics
	SweepEvictionsTotal metric.Int64Counter
}

// NewMetrics creates and registers all application metrics.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{meter: meter}

	var err error

	// HTTP metrics
	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http.server.requests.total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{requests}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating http_requests_total: %w", err)
	}

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating http_request_duration: %w", err)
	}

	m.HTTPRequestsActive, err = meter.Int64UpDownCounter(
		"http.server.requests.active",
		metric.WithDescription("Number of active HTTP requests"),
		metric.WithUnit("{requests}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating http_requests_active: %w", err)
	}

	// Event pipeline metrics
	m.EventsReceivedTotal, err = meter.Int64Counter(
		"events.received.total",
		metric.WithDescription("Total number of webhook events received"),
		metric.WithUnit("{events}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating events_received_total: %w", err)
	}

	m.EventsIgnoredTotal, err = meter.Int64Counter(
		"events.ignored.total",
		metric.WithDescription("Total number of events dropped without action"),
		metric.WithUnit("{events}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating events_ignored_total: %w", err)
	}

	m.EventQueueDepth, err = meter.Int64UpDownCounter(
		"events.queue.depth",
		metric.WithDescription("Number of events waiting for a worker"),
		metric.WithUnit("{events}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating event_queue_depth: %w", err)
	}

	m.EventsDroppedTotal, err = meter.Int64Counter(
		"events.dropped.total",
		metric.WithDescription("Total number of events dropped due to a full queue"),
		metric.WithUnit("{events}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating events_dropped_total: %w", err)
	}

	// Posting metrics
	m.GreetingsPostedTotal, err = meter.Int64Counter(
		"greetings.posted.total",
		metric.WithDescription("Total number of greetings posted"),
		metric.WithUnit("{messages}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating greetings_posted_total: %w", err)
	}

	m.RepliesPostedTotal, err = meter.Int64Counter(
		"replies.posted.total",
		metric.WithDescription("Total number of generated replies posted"),
		metric.WithUnit("{messages}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating replies_posted_total: %w", err)
	}

	m.PostErrorsTotal, err = meter.Int64Counter(
		"post.errors.total",
		metric.WithDescription("Total number of failed message posts"),
		metric.WithUnit("{errors}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating post_errors_total: %w", err)
	}

	// Generation metrics
	m.GenerationDuration, err = meter.Float64Histogram(
		"generation.duration",
		metric.WithDescription("Text generation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating generation_duration: %w", err)
	}

	m.GenerationErrorsTotal, err = meter.Int64Counter(
		"generation.errors.total",
		metric.WithDescription("Total number of failed generation calls"),
		metric.WithUnit("{errors}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating generation_errors_total: %w", err)
	}

	m.ToolCallsTotal, err = meter.Int64Counter(
		"generation.tool_calls.total",
		metric.WithDescription("Total number of tool invocations during generation"),
		metric.WithUnit("{calls}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tool_calls_total: %w", err)
	}

	// Dedup store metrics
	m.SweepEvictionsTotal, err = meter.Int64Counter(
		"dedup.sweep.evictions.total",
		metric.WithDescription("Total number of dedup entries evicted by sweep"),
		metric.WithUnit("{entries}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sweep_evictions_total: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.route", path),
		attribute.Int("http.status_code", statusCode),
	}

	m.HTTPRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.HTTPRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordEventReceived records an inbound webhook event.
func (m *Metrics) RecordEventReceived(ctx context.Context, kind string) {
	m.EventsReceivedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event.kind", kind),
	))
}

// RecordEventIgnored records an event dropped without action.
func (m *Metrics) RecordEventIgnored(ctx context.Context, kind, reason string) {
	m.EventsIgnoredTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event.kind", kind),
		attribute.String("reason", reason),
	))
}

// RecordPost records a posted message or a post failure.
func (m *Metrics) RecordPost(ctx context.Context, kind string, success bool) {
	attrs := metric.WithAttributes(attribute.String("message.kind", kind))
	if !success {
		m.PostErrorsTotal.Add(ctx, 1, attrs)
		return
	}
	switch kind {
	case "greeting":
		m.GreetingsPostedTotal.Add(ctx, 1, attrs)
	default:
		m.RepliesPostedTotal.Add(ctx, 1, attrs)
	}
}

// RecordGeneration records a generation attempt.
func (m *Metrics) RecordGeneration(ctx context.Context, duration time.Duration, toolCalls int, success bool) {
	attrs := metric.WithAttributes(attribute.Bool("success", success))
	m.GenerationDuration.Record(ctx, duration.Seconds(), attrs)
	if toolCalls > 0 {
		m.ToolCallsTotal.Add(ctx, int64(toolCalls))
	}
	if !success {
		m.GenerationErrorsTotal.Add(ctx, 1)
	}
}

// AddQueueDepth adjusts the pending-event gauge.
func (m *Metrics) AddQueueDepth(ctx context.Context, delta int64) {
	m.EventQueueDepth.Add(ctx, delta)
}

// RecordEventDropped records an event rejected because the queue was full.
func (m *Metrics) RecordEventDropped(ctx context.Context) {
	m.EventsDroppedTotal.Add(ctx, 1)
}

// RecordSweep records dedup entries evicted by a retention sweep.
func (m *Metrics) RecordSweep(ctx context.Context, evicted int) {
	if evicted > 0 {
		m.SweepEvictionsTotal.Add(ctx, int64(evicted))
	}
}
