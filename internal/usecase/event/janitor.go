package event

import (
	"context"
	"time"

	"github.com/qj0r9j0vc2/chat-relay/internal/domain/repository"
)

// Janitor periodically evicts dedup entries older than the retention
// window. Without it the store grows without bound; with it, entries live
// comfortably longer than the platform's redelivery horizon.
type Janitor struct {
	store     repository.DedupStore
	retention time.Duration
	interval  time.Duration
	metrics   MetricsRecorder
	logger    Logger
}

// NewJanitor creates a retention sweeper over the dedup store.
func NewJanitor(store repository.DedupStore, retention, interval time.Duration, metrics MetricsRecorder, logger Logger) *Janitor {
	return &Janitor{
		store:     store,
		retention: retention,
		interval:  interval,
		metrics:   metrics,
		logger:    logger,
	}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-j.retention)
	evicted, err := j.store.Sweep(ctx, cutoff)
	if err != nil {
		j.logger.Error("dedup sweep failed", "error", err)
		return
	}
	j.metrics.RecordSweep(ctx, evicted)
	if evicted > 0 {
		j.logger.Info("dedup sweep completed", "evicted", evicted)
	}
}
