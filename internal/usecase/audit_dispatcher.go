package usecase

import (
	"context"
	"sync"
	"time"

	"PairScout/internal/domain/models"
	drepo "PairScout/internal/domain/repository"
	applogger "PairScout/pkg/logger"
	"PairScout/pkg/queue"
)

// AuditDispatcher fans engine audit events out to the external sinks: the
// audit topic, the hot store mirror and (when no consumer handles the topic)
// direct cold persistence. Emit never blocks the engine; when the internal
// buffer is full the event is dropped and counted.
type AuditDispatcher struct {
	publisher drepo.AuditPublisher
	hot       drepo.HotStore
	cold      drepo.SignalStore
	jobs      queue.QueueService
	metrics   drepo.Metrics
	logger    *applogger.Logger

	events chan *models.AuditEvent
	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

type DispatcherOption func(*AuditDispatcher)

// WithColdStore enables direct persistence of events, used when the audit
// topic has no consumer attached in this deployment.
func WithColdStore(store drepo.SignalStore) DispatcherOption {
	return func(d *AuditDispatcher) { d.cold = store }
}

// WithQueue routes cold persistence through the job queue instead of
// writing synchronously; the queue's retry policy then covers store outages.
func WithQueue(q queue.QueueService) DispatcherOption {
	return func(d *AuditDispatcher) { d.jobs = q }
}

// NewAuditDispatcher creates a dispatcher. publisher and hot may be nil when
// the corresponding backend is disabled.
func NewAuditDispatcher(
	publisher drepo.AuditPublisher,
	hot drepo.HotStore,
	metrics drepo.Metrics,
	logger *applogger.Logger,
	opts ...DispatcherOption,
) *AuditDispatcher {
	d := &AuditDispatcher{
		publisher: publisher,
		hot:       hot,
		metrics:   metrics,
		logger:    logger,
		events:    make(chan *models.AuditEvent, 256),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the delivery worker.
func (d *AuditDispatcher) Start(ctx context.Context) {
	go d.run(ctx)
}

// Emit implements engine.EventSink. It is non-blocking: a full buffer means
// the event is dropped, which costs an audit record but never stalls ingest.
func (d *AuditDispatcher) Emit(ev *models.AuditEvent) {
	if ev == nil {
		return
	}
	select {
	case d.events <- ev:
	default:
		d.metrics.RecordError("audit_buffer_full")
	}
}

func (d *AuditDispatcher) run(ctx context.Context) {
	defer close(d.doneCh)
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopCh:
			// Drain what is buffered before exiting.
			for {
				select {
				case ev := <-d.events:
					d.deliver(context.Background(), ev)
				default:
					return
				}
			}
		case ev := <-d.events:
			d.deliver(ctx, ev)
		}
	}
}

func (d *AuditDispatcher) deliver(ctx context.Context, ev *models.AuditEvent) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if d.publisher != nil {
		if err := d.publisher.Publish(ctx, ev); err != nil {
			d.logger.Warn("audit publish failed",
				applogger.String("type", string(ev.Type)),
				applogger.Error(err))
			d.metrics.RecordError("audit_publish")
		}
	}

	if d.hot != nil {
		if ev.Type == models.EventSignalActive && ev.Signal != nil {
			if err := d.hot.SetSignal(ctx, ev.Signal); err != nil {
				d.metrics.RecordError("hot_store_signal")
			}
		}
		if err := d.hot.AppendLog(ctx, ev); err != nil {
			d.metrics.RecordError("hot_store_log")
		}
	}

	switch {
	case d.jobs != nil:
		if ev.Type == models.EventSignalActive && ev.Signal != nil {
			if err := d.jobs.PublishMessage(ctx, MsgPersistSignal, ev.Signal); err != nil {
				d.metrics.RecordError("queue_signal")
			}
		}
		if err := d.jobs.PublishMessage(ctx, MsgPersistEvent, ev); err != nil {
			d.metrics.RecordError("queue_event")
		}
	case d.cold != nil:
		if ev.Type == models.EventSignalActive && ev.Signal != nil {
			if err := d.cold.StoreSignal(ctx, ev.Signal); err != nil {
				d.metrics.RecordError("cold_store_signal")
			}
		}
		if err := d.cold.StoreEvent(ctx, ev); err != nil {
			d.metrics.RecordError("cold_store_event")
		}
	}
}

// Shutdown stops the worker after draining buffered events.
func (d *AuditDispatcher) Shutdown(ctx context.Context) error {
	d.once.Do(func() { close(d.stopCh) })
	select {
	case <-d.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
