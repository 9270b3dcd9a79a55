package event

import (
	"context"
	"sync"
	"time"

	"github.com/qj0r9j0vc2/chat-relay/internal/domain/entity"
)

// Pool runs dispatches on a bounded set of workers so the webhook handler
// can acknowledge immediately. The queue is bounded too: when it fills, new
// events are dropped and the platform's redelivery picks them up once the
// backlog clears.
type Pool struct {
	dispatcher *Dispatcher
	tasks      chan *entity.InboundEvent
	timeout    time.Duration
	metrics    MetricsRecorder
	logger     Logger

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewPool creates a worker pool over the dispatcher. timeout bounds each
// dispatch, generation included.
func NewPool(dispatcher *Dispatcher, workers, queueSize int, timeout time.Duration, metrics MetricsRecorder, logger Logger) *Pool {
	p := &Pool{
		dispatcher: dispatcher,
		tasks:      make(chan *entity.InboundEvent, queueSize),
		timeout:    timeout,
		metrics:    metrics,
		logger:     logger,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit enqueues an event without blocking. Returns false when the queue
// is full.
func (p *Pool) Submit(ev *entity.InboundEvent) bool {
	select {
	case p.tasks <- ev:
		p.metrics.AddQueueDepth(context.Background(), 1)
		return true
	default:
		p.metrics.RecordEventDropped(context.Background())
		p.logger.Warn("event queue full, dropping event",
			"deliveryID", ev.DeliveryID,
			"kind", string(ev.Kind),
		)
		return false
	}
}

// Shutdown stops accepting work and waits for in-flight dispatches.
func (p *Pool) Shutdown() {
	p.stopOnce.Do(func() {
		close(p.tasks)
	})
	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for ev := range p.tasks {
		p.metrics.AddQueueDepth(context.Background(), -1)
		p.process(ev)
	}
}

func (p *Pool) process(ev *entity.InboundEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	outcome, err := p.dispatcher.Execute(ctx, ev)
	if err != nil {
		p.logger.Error("event dispatch failed",
			"deliveryID", ev.DeliveryID,
			"kind", string(ev.Kind),
			"channel", ev.ChannelID,
			"error", err,
		)
		return
	}

	p.logger.Debug("event dispatched",
		"deliveryID", ev.DeliveryID,
		"kind", string(ev.Kind),
		"action", outcome.Action,
		"reason", outcome.Reason,
	)
}
