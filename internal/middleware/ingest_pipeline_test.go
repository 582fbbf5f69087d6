package middleware

import (
	"context"
	"sync"
	"testing"
	"time"

	"PairScout/internal/domain/models"
)

type countingMetrics struct {
	mu      sync.Mutex
	dropped int
	errors  map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{errors: make(map[string]int)}
}

func (m *countingMetrics) RecordTick(string)               {}
func (m *countingMetrics) RecordInvalidTick(string)        {}
func (m *countingMetrics) RecordWindowReset(string)        {}
func (m *countingMetrics) RecordSignal(string, string)     {}
func (m *countingMetrics) RecordActiveSignals(int)         {}
func (m *countingMetrics) RecordLastPrice(string, float64) {}
func (m *countingMetrics) RecordLatency(string, float64)   {}

func (m *countingMetrics) RecordDroppedTick() {
	m.mu.Lock()
	m.dropped++
	m.mu.Unlock()
}

func (m *countingMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}

func (m *countingMetrics) droppedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

func (m *countingMetrics) errorCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

// collectProc records processed ticks in arrival order.
type collectProc struct {
	mu    sync.Mutex
	ticks []*models.PriceTick
	done  chan struct{} // closed when want ticks have arrived
	want  int
}

func newCollectProc(want int) *collectProc {
	return &collectProc{done: make(chan struct{}), want: want}
}

func (p *collectProc) Process(_ context.Context, t *models.PriceTick) error {
	p.mu.Lock()
	p.ticks = append(p.ticks, t)
	if len(p.ticks) == p.want {
		close(p.done)
	}
	p.mu.Unlock()
	return nil
}

func (p *collectProc) processed() []*models.PriceTick {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*models.PriceTick, len(p.ticks))
	copy(out, p.ticks)
	return out
}

func tick(id string, price float64) *models.PriceTick {
	return &models.PriceTick{Instrument: id, Price: price, ObservedAt: time.Now()}
}

func TestPipelineDropOldest(t *testing.T) {
	metrics := newCountingMetrics()
	p := NewIngestPipeline(newCollectProc(0), metrics, WithQueueSize(3))

	// Without a running worker the queue fills and overflows drop-oldest.
	for i := 0; i < 5; i++ {
		p.Offer(tick("BTC", float64(100+i)))
	}
	if got := p.QueueDepth(); got != 3 {
		t.Fatalf("queue depth = %d, want 3", got)
	}
	if got := metrics.droppedCount(); got != 2 {
		t.Fatalf("dropped = %d, want 2", got)
	}
}

func TestPipelineDeliversInOrder(t *testing.T) {
	metrics := newCountingMetrics()
	proc := newCollectProc(5)
	p := NewIngestPipeline(proc, metrics, WithQueueSize(100))

	p.Start(context.Background())
	defer p.Stop()

	for i := 0; i < 5; i++ {
		p.Offer(tick("BTC", float64(100+i)))
	}

	select {
	case <-proc.done:
	case <-time.After(5 * time.Second):
		t.Fatalf("ticks not processed in time")
	}

	got := proc.processed()
	for i, tk := range got {
		if tk.Price != float64(100+i) {
			t.Fatalf("tick %d price = %v, arrival order broken", i, tk.Price)
		}
	}
	if metrics.droppedCount() != 0 {
		t.Fatalf("unexpected drops: %d", metrics.droppedCount())
	}
}

func TestPipelineThrottle(t *testing.T) {
	metrics := newCountingMetrics()
	p := NewIngestPipeline(newCollectProc(0), metrics, WithQueueSize(100), WithMaxPerSecond(1))

	p.Offer(tick("BTC", 100))
	p.Offer(tick("BTC", 101)) // same instrument within the window: throttled
	p.Offer(tick("ETH", 10))  // different instrument: admitted

	if got := p.QueueDepth(); got != 2 {
		t.Fatalf("queue depth = %d, want 2", got)
	}
	if got := metrics.errorCount("pipeline_throttle"); got != 1 {
		t.Fatalf("throttled = %d, want 1", got)
	}
}

func TestPipelineStopIsIdempotent(t *testing.T) {
	p := NewIngestPipeline(newCollectProc(0), newCountingMetrics())
	p.Start(context.Background())
	p.Start(context.Background()) // second start is a no-op
	p.Stop()
	p.Stop() // second stop must not panic or block
}

func TestPipelineNilTickIgnored(t *testing.T) {
	p := NewIngestPipeline(newCollectProc(0), newCountingMetrics())
	p.Offer(nil)
	if p.QueueDepth() != 0 {
		t.Fatalf("nil tick was queued")
	}
}
