package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"PairScout/internal/domain/models"
	applogger "PairScout/pkg/logger"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []*models.AuditEvent
}

func (p *fakePublisher) Publish(_ context.Context, ev *models.AuditEvent) error {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) published() []*models.AuditEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*models.AuditEvent, len(p.events))
	copy(out, p.events)
	return out
}

type fakeHotStore struct {
	mu      sync.Mutex
	signals []*models.Signal
	logs    []*models.AuditEvent
}

func (h *fakeHotStore) SetPrice(context.Context, string, float64, time.Time) error { return nil }

func (h *fakeHotStore) SetSignal(_ context.Context, s *models.Signal) error {
	h.mu.Lock()
	h.signals = append(h.signals, s)
	h.mu.Unlock()
	return nil
}

func (h *fakeHotStore) AppendLog(_ context.Context, ev *models.AuditEvent) error {
	h.mu.Lock()
	h.logs = append(h.logs, ev)
	h.mu.Unlock()
	return nil
}

func (h *fakeHotStore) Close() error { return nil }

type fakeColdStore struct {
	mu      sync.Mutex
	signals []*models.Signal
	events  []*models.AuditEvent
}

func (c *fakeColdStore) Init(context.Context) error { return nil }

func (c *fakeColdStore) StoreSignal(_ context.Context, s *models.Signal) error {
	c.mu.Lock()
	c.signals = append(c.signals, s)
	c.mu.Unlock()
	return nil
}

func (c *fakeColdStore) StoreEvent(_ context.Context, ev *models.AuditEvent) error {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
	return nil
}

func (c *fakeColdStore) QuerySignals(context.Context, string, time.Time, time.Time, int) ([]models.Signal, error) {
	return nil, nil
}

func (c *fakeColdStore) Health(context.Context) error { return nil }
func (c *fakeColdStore) Close() error                 { return nil }

type fakeJobQueue struct {
	mu       sync.Mutex
	messages map[string]int
}

func (q *fakeJobQueue) PublishMessage(_ context.Context, msgType string, _ interface{}) error {
	q.mu.Lock()
	if q.messages == nil {
		q.messages = make(map[string]int)
	}
	q.messages[msgType]++
	q.mu.Unlock()
	return nil
}

func (q *fakeJobQueue) count(msgType string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.messages[msgType]
}

type dispatcherMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func (m *dispatcherMetrics) RecordTick(string)               {}
func (m *dispatcherMetrics) RecordInvalidTick(string)        {}
func (m *dispatcherMetrics) RecordDroppedTick()              {}
func (m *dispatcherMetrics) RecordWindowReset(string)        {}
func (m *dispatcherMetrics) RecordSignal(string, string)     {}
func (m *dispatcherMetrics) RecordActiveSignals(int)         {}
func (m *dispatcherMetrics) RecordLastPrice(string, float64) {}
func (m *dispatcherMetrics) RecordLatency(string, float64)   {}

func (m *dispatcherMetrics) RecordError(kind string) {
	m.mu.Lock()
	if m.errors == nil {
		m.errors = make(map[string]int)
	}
	m.errors[kind]++
	m.mu.Unlock()
}

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func activeEvent() *models.AuditEvent {
	now := time.Now()
	return &models.AuditEvent{
		Type: models.EventSignalActive,
		Pair: "BTC/ETH",
		Signal: &models.Signal{
			Pair:       "BTC/ETH",
			ZScore:     2.5,
			Confidence: 0.8,
			Direction:  models.ShortSpread,
			CreatedAt:  now,
			ExpiresAt:  now.Add(time.Hour),
		},
		At: now,
	}
}

func TestDispatcherDeliversToAllSinks(t *testing.T) {
	pub := &fakePublisher{}
	hot := &fakeHotStore{}
	cold := &fakeColdStore{}
	d := NewAuditDispatcher(pub, hot, &dispatcherMetrics{}, testLogger(t), WithColdStore(cold))
	d.Start(context.Background())

	d.Emit(activeEvent())
	d.Emit(&models.AuditEvent{Type: models.EventWindowReset, Instrument: "BTC", Reason: "stale_feed_gap", At: time.Now()})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	if got := pub.published(); len(got) != 2 {
		t.Fatalf("published = %d, want 2", len(got))
	}
	if len(hot.signals) != 1 {
		t.Fatalf("hot signals = %d, want 1 (only active events mirror)", len(hot.signals))
	}
	if len(hot.logs) != 2 {
		t.Fatalf("hot log entries = %d, want 2", len(hot.logs))
	}
	if len(cold.signals) != 1 || len(cold.events) != 2 {
		t.Fatalf("cold store: signals=%d events=%d", len(cold.signals), len(cold.events))
	}
}

func TestDispatcherPrefersQueueOverColdStore(t *testing.T) {
	cold := &fakeColdStore{}
	jobs := &fakeJobQueue{}
	d := NewAuditDispatcher(nil, nil, &dispatcherMetrics{}, testLogger(t), WithColdStore(cold), WithQueue(jobs))
	d.Start(context.Background())

	d.Emit(activeEvent())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	if jobs.count(MsgPersistSignal) != 1 {
		t.Fatalf("persist signal jobs = %d", jobs.count(MsgPersistSignal))
	}
	if jobs.count(MsgPersistEvent) != 1 {
		t.Fatalf("persist event jobs = %d", jobs.count(MsgPersistEvent))
	}
	if len(cold.signals) != 0 || len(cold.events) != 0 {
		t.Fatalf("cold store must be bypassed when the queue is wired")
	}
}

func TestDispatcherEmitNeverBlocks(t *testing.T) {
	metrics := &dispatcherMetrics{}
	// No Start: the buffer fills and further emits are dropped, not blocked.
	d := NewAuditDispatcher(nil, nil, metrics, testLogger(t))

	done := make(chan struct{})
	go func() {
		for i := 0; i < 300; i++ {
			d.Emit(activeEvent())
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("emit blocked on a full buffer")
	}

	metrics.mu.Lock()
	dropped := metrics.errors["audit_buffer_full"]
	metrics.mu.Unlock()
	if dropped != 300-256 {
		t.Fatalf("dropped = %d, want %d", dropped, 300-256)
	}
}

func TestDispatcherDrainsOnShutdown(t *testing.T) {
	pub := &fakePublisher{}
	d := NewAuditDispatcher(pub, nil, &dispatcherMetrics{}, testLogger(t))

	// Buffer events before the worker starts, then start and stop: every
	// buffered event must still be delivered.
	for i := 0; i < 10; i++ {
		d.Emit(activeEvent())
	}
	d.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if got := pub.published(); len(got) != 10 {
		t.Fatalf("published = %d, want 10", len(got))
	}
}

func TestDispatcherIgnoresNil(t *testing.T) {
	d := NewAuditDispatcher(nil, nil, &dispatcherMetrics{}, testLogger(t))
	d.Emit(nil)
	select {
	case ev := <-d.events:
		t.Fatalf("nil event buffered: %+v", ev)
	default:
	}
}
