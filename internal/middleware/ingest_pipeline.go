package middleware

import (
	"context"
	"sync"
	"time"

	"PairScout/internal/domain/models"
	domrepo "PairScout/internal/domain/repository"
)

// Proc is the minimal processor interface the pipeline feeds.
type Proc interface {
	Process(ctx context.Context, t *models.PriceTick) error
}

// IngestPipeline sits between the feed and the engine. It validates, applies
// an optional per-instrument throttle, and decouples feed reads from
// processing through a bounded queue. When the queue is full the oldest
// unprocessed tick is dropped so the feed is never blocked indefinitely and
// memory never grows silently.
type IngestPipeline struct {
	proc    Proc
	metrics domrepo.Metrics

	queueSize int
	maxRPS    int
	queue     chan *models.PriceTick

	mu       sync.Mutex
	started  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	lastSeen map[string]time.Time
}

type PipelineOption func(*IngestPipeline)

// WithQueueSize bounds the internal tick queue.
func WithQueueSize(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.queueSize = n
		}
	}
}

// WithMaxPerSecond caps accepted ticks per instrument per second.
// Zero disables throttling.
func WithMaxPerSecond(n int) PipelineOption {
	return func(p *IngestPipeline) { p.maxRPS = n }
}

// NewIngestPipeline creates a pipeline in front of proc.
func NewIngestPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *IngestPipeline {
	p := &IngestPipeline{
		proc:      proc,
		metrics:   metrics,
		queueSize: 1000,
		lastSeen:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.queue = make(chan *models.PriceTick, p.queueSize)
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	return p
}

// Start launches the single worker that drains the queue. One worker keeps
// per-instrument arrival order intact.
func (p *IngestPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		defer close(p.doneCh)
		for {
			select {
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			case t := <-p.queue:
				if t == nil {
					continue
				}
				start := time.Now()
				if err := p.proc.Process(ctx, t); err != nil {
					p.metrics.RecordError("pipeline_process")
					continue
				}
				p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
			}
		}
	}()
}

// Stop halts the worker after the in-flight tick completes, leaving window
// state consistent. It blocks until the worker has exited.
func (p *IngestPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	close(p.stopCh)
	p.mu.Unlock()
	<-p.doneCh
}

// Offer enqueues a tick without ever blocking the feed. Under overflow the
// oldest queued tick is discarded in favor of the newest (drop-oldest).
func (p *IngestPipeline) Offer(t *models.PriceTick) {
	if t == nil {
		return
	}
	if !p.allow(t.Instrument, time.Now()) {
		p.metrics.RecordError("pipeline_throttle")
		return
	}
	for {
		select {
		case p.queue <- t:
			return
		default:
		}
		select {
		case <-p.queue:
			p.metrics.RecordDroppedTick()
		default:
		}
	}
}

// QueueDepth reports the number of queued, unprocessed ticks.
func (p *IngestPipeline) QueueDepth() int { return len(p.queue) }

func (p *IngestPipeline) allow(instrument string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last, ok := p.lastSeen[instrument]
	if ok && now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[instrument] = now
	return true
}
