package event

import "context"

// Poster posts messages into a channel thread.
// Returns the platform timestamp of the posted message.
type Poster interface {
	PostReply(ctx context.Context, channelID, threadTS, text string) (ts string, err error)
}

// Generator produces the text of a reply for a user message.
type Generator interface {
	Reply(ctx context.Context, userID, text string) (string, error)
}

// NameResolver resolves a workspace user ID to a preferred display name.
// An empty name means the greeting falls back to its anonymous form.
type NameResolver interface {
	PreferredName(ctx context.Context, userID string) (string, error)
}

// MetricsRecorder records pipeline metrics.
type MetricsRecorder interface {
	RecordEventReceived(ctx context.Context, kind string)
	RecordEventIgnored(ctx context.Context, kind, reason string)
	RecordPost(ctx context.Context, kind string, success bool)
	AddQueueDepth(ctx context.Context, delta int64)
	RecordEventDropped(ctx context.Context)
	RecordSweep(ctx context.Context, evicted int)
}

// Logger defines the contract for logging within use cases.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}
