package engine

import (
	"context"
	"math"
	"testing"
	"time"

	"PairScout/internal/domain/models"
)

// recorderMetrics counts engine metric calls without Prometheus.
type recorderMetrics struct {
	ticks        int
	invalid      map[string]int
	dropped      int
	windowResets int
	signals      int
	errors       int
}

func newRecorderMetrics() *recorderMetrics {
	return &recorderMetrics{invalid: make(map[string]int)}
}

func (m *recorderMetrics) RecordTick(string)                 { m.ticks++ }
func (m *recorderMetrics) RecordInvalidTick(reason string)   { m.invalid[reason]++ }
func (m *recorderMetrics) RecordDroppedTick()                { m.dropped++ }
func (m *recorderMetrics) RecordWindowReset(string)          { m.windowResets++ }
func (m *recorderMetrics) RecordSignal(string, string)       { m.signals++ }
func (m *recorderMetrics) RecordActiveSignals(int)           {}
func (m *recorderMetrics) RecordLastPrice(string, float64)   {}
func (m *recorderMetrics) RecordLatency(string, float64)     {}
func (m *recorderMetrics) RecordError(string)                { m.errors++ }

// captureSink records every emitted audit event in order.
type captureSink struct {
	events []*models.AuditEvent
}

func (s *captureSink) Emit(ev *models.AuditEvent) { s.events = append(s.events, ev) }

func (s *captureSink) byType(t models.AuditEventType) []*models.AuditEvent {
	var out []*models.AuditEvent
	for _, ev := range s.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func testEngineConfig() Config {
	return Config{
		Instruments:    []string{"AAA", "BBB"},
		WindowCapacity: 1000,
		SpreadWindow:   20,
		CorrWindow:     50,
		MinSamples:     20,
		ZThreshold:     2.0,
		CorrThreshold:  0.7,
		MinConfidence:  0.6,
		SignalTTL:      24 * time.Hour,
		StaleGap:       10 * time.Minute,
		TickTolerance:  time.Second,
	}
}

func ingest(t *testing.T, e *Engine, id string, price float64, at time.Time) {
	t.Helper()
	if err := e.Ingest(context.Background(), &models.PriceTick{Instrument: id, Price: price, ObservedAt: at}); err != nil {
		t.Fatalf("ingest %s %v: %v", id, price, err)
	}
}

func TestEngineDetectsSpreadDivergence(t *testing.T) {
	metrics := newRecorderMetrics()
	sink := &captureSink{}
	e := New(testEngineConfig(), metrics, nil)
	e.SetSink(sink)

	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// Two strongly correlated legs ramping together. The tiny alternating
	// term keeps the spread window's standard deviation strictly positive.
	for i := 0; i < 60; i++ {
		at := t0.Add(time.Duration(2*i) * time.Second)
		ingest(t, e, "BBB", 200+2*float64(i), at)
		ingest(t, e, "AAA", 100+float64(i)+0.01*float64(i%2), at.Add(time.Second))
	}

	if got := sink.byType(models.EventSignalActive); len(got) != 0 {
		t.Fatalf("signal fired during a stable ramp: %+v", got[0])
	}
	if len(e.Signals(0)) != 0 {
		t.Fatalf("unexpected active signals during ramp")
	}

	// One leg jumps away from the relationship.
	outlierAt := t0.Add(121 * time.Second)
	ingest(t, e, "AAA", 165, outlierAt)

	active := sink.byType(models.EventSignalActive)
	if len(active) != 1 {
		t.Fatalf("expected exactly one active signal, got %d", len(active))
	}
	sig := active[0].Signal
	if sig == nil {
		t.Fatalf("active event without signal payload")
	}
	if sig.Pair != "AAA/BBB" {
		t.Fatalf("pair = %q", sig.Pair)
	}
	if sig.Direction != models.ShortSpread {
		t.Fatalf("direction = %v, want short_spread for a positive z", sig.Direction)
	}
	if sig.ZScore < 2.0 {
		t.Fatalf("z = %v, want >= threshold", sig.ZScore)
	}
	if sig.Confidence < 0.6 || sig.Confidence > 1 {
		t.Fatalf("confidence = %v", sig.Confidence)
	}
	if math.Abs(sig.Correlation) < 0.7 {
		t.Fatalf("correlation = %v", sig.Correlation)
	}
	if metrics.signals != 1 {
		t.Fatalf("signal metric = %d", metrics.signals)
	}

	got := e.Signals(0)
	if len(got) != 1 || got[0].Pair != "AAA/BBB" {
		t.Fatalf("active signals = %+v", got)
	}
}

func TestEngineConstantPricesNoSignal(t *testing.T) {
	metrics := newRecorderMetrics()
	sink := &captureSink{}
	e := New(testEngineConfig(), metrics, nil)
	e.SetSink(sink)

	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 40; i++ {
		at := t0.Add(time.Duration(2*i) * time.Second)
		ingest(t, e, "AAA", 100, at)
		ingest(t, e, "BBB", 200, at.Add(time.Second))
	}

	if got := sink.byType(models.EventSignalActive); len(got) != 0 {
		t.Fatalf("constant prices produced a signal: %+v", got[0])
	}
	// Constant legs make the correlation undefined, so the off-diagonal
	// cells stay absent.
	m := e.CorrelationMatrix()
	if _, ok := m["AAA"]["BBB"]; ok {
		t.Fatalf("constant legs must leave correlation undefined")
	}
	if m["AAA"]["AAA"] != 1.0 || m["BBB"]["BBB"] != 1.0 {
		t.Fatalf("diagonal = %+v", m)
	}
}

func TestEngineRejectsInvalidTicks(t *testing.T) {
	metrics := newRecorderMetrics()
	e := New(testEngineConfig(), metrics, nil)
	ctx := context.Background()
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	bad := []*models.PriceTick{
		{Instrument: "AAA", Price: 0, ObservedAt: at},
		{Instrument: "AAA", Price: -5, ObservedAt: at},
		{Instrument: "AAA", Price: math.NaN(), ObservedAt: at},
		{Instrument: "AAA", Price: math.Inf(1), ObservedAt: at},
		{Instrument: "", Price: 100, ObservedAt: at},
		{Instrument: "AAA", Price: 100},
	}
	for _, tick := range bad {
		if err := e.Ingest(ctx, tick); err == nil {
			t.Fatalf("expected rejection for %+v", tick)
		}
	}
	if metrics.invalid["malformed"] != len(bad) {
		t.Fatalf("malformed count = %d, want %d", metrics.invalid["malformed"], len(bad))
	}
	if metrics.ticks != 0 {
		t.Fatalf("rejected ticks must not count as ingested")
	}
}

func TestEngineTimestampRegression(t *testing.T) {
	metrics := newRecorderMetrics()
	e := New(testEngineConfig(), metrics, nil)
	ctx := context.Background()
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	ingest(t, e, "AAA", 100, at)

	// Beyond the tolerance: rejected.
	err := e.Ingest(ctx, &models.PriceTick{Instrument: "AAA", Price: 101, ObservedAt: at.Add(-2 * time.Second)})
	if err == nil {
		t.Fatalf("expected regression rejection")
	}
	if metrics.invalid["timestamp_regression"] != 1 {
		t.Fatalf("regression count = %d", metrics.invalid["timestamp_regression"])
	}

	// Within the tolerance: accepted.
	ingest(t, e, "AAA", 101, at.Add(-500*time.Millisecond))

	// Other instruments are unaffected by AAA's history.
	ingest(t, e, "BBB", 200, at.Add(-time.Hour))
}

func TestEngineStaleGapResetsWindows(t *testing.T) {
	metrics := newRecorderMetrics()
	sink := &captureSink{}
	e := New(testEngineConfig(), metrics, nil)
	e.SetSink(sink)

	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		at := t0.Add(time.Duration(2*i) * time.Second)
		ingest(t, e, "AAA", 100+float64(i), at)
		ingest(t, e, "BBB", 200+float64(i), at.Add(time.Second))
	}

	// AAA goes quiet past the stale gap, then resumes.
	resumeAt := t0.Add(30 * time.Minute)
	ingest(t, e, "AAA", 140, resumeAt)

	resets := sink.byType(models.EventWindowReset)
	if len(resets) != 1 {
		t.Fatalf("expected one window reset event, got %d", len(resets))
	}
	if resets[0].Instrument != "AAA" || resets[0].Reason != "stale_feed_gap" {
		t.Fatalf("reset event = %+v", resets[0])
	}
	if metrics.windowResets != 1 {
		t.Fatalf("reset metric = %d", metrics.windowResets)
	}

	// The price window restarts from the resuming tick.
	for _, entry := range e.MarketSnapshot() {
		if entry.Instrument == "AAA" && entry.SampleCount > 1 {
			t.Fatalf("AAA window not reset: %+v", entry)
		}
	}
	// The pair window restarts from the resuming tick's spread.
	if vals, err := e.SpreadHistory("AAA/BBB", 0); err != nil || len(vals) != 1 {
		t.Fatalf("pair spread window not reset: %v, %v", vals, err)
	}
}

func TestEngineSnapshotConsistency(t *testing.T) {
	metrics := newRecorderMetrics()
	e := New(testEngineConfig(), metrics, nil)

	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 30; i++ {
		at := t0.Add(time.Duration(2*i) * time.Second)
		ingest(t, e, "AAA", 100+float64(i)+0.01*float64(i%2), at)
		ingest(t, e, "BBB", 200+2*float64(i), at.Add(time.Second))
	}

	snap := e.Snapshot()
	if snap.TakenAt.IsZero() {
		t.Fatalf("snapshot timestamp missing")
	}
	if len(snap.Markets) != 2 {
		t.Fatalf("markets = %+v", snap.Markets)
	}
	for _, entry := range snap.Markets {
		if entry.Price <= 0 || entry.SampleCount == 0 {
			t.Fatalf("entry = %+v", entry)
		}
		if entry.ZScore == nil {
			t.Fatalf("z-score missing for %s", entry.Instrument)
		}
	}
	if snap.Correlations["AAA"]["AAA"] != 1.0 {
		t.Fatalf("diagonal = %v", snap.Correlations["AAA"]["AAA"])
	}
	if c, ok := snap.Correlations["AAA"]["BBB"]; !ok || c < 0.99 {
		t.Fatalf("ramping legs should be near-perfectly correlated, got %v (ok=%v)", c, ok)
	}
}

func TestEngineSpreadHistory(t *testing.T) {
	metrics := newRecorderMetrics()
	e := New(testEngineConfig(), metrics, nil)

	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		at := t0.Add(time.Duration(2*i) * time.Second)
		ingest(t, e, "AAA", 100+float64(i), at)
		ingest(t, e, "BBB", 200+float64(i), at.Add(time.Second))
	}

	all, err := e.SpreadHistory("BBB/AAA", 0)
	if err != nil {
		t.Fatalf("spread history: %v", err)
	}
	if len(all) == 0 {
		t.Fatalf("expected buffered spreads")
	}

	tail, err := e.SpreadHistory("AAA/BBB", 5)
	if err != nil {
		t.Fatalf("spread history with limit: %v", err)
	}
	if len(tail) != 5 {
		t.Fatalf("limited history length = %d", len(tail))
	}
	if tail[len(tail)-1] != all[len(all)-1] {
		t.Fatalf("limit must keep the newest values")
	}

	if _, err := e.SpreadHistory("notapair", 0); err == nil {
		t.Fatalf("expected error for malformed pair")
	}
}

func TestEngineSweepExpiresSignals(t *testing.T) {
	cfg := testEngineConfig()
	cfg.SignalTTL = time.Hour
	metrics := newRecorderMetrics()
	sink := &captureSink{}
	e := New(cfg, metrics, nil)
	e.SetSink(sink)

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	e.SetClock(func() time.Time { return now })

	t0 := now
	for i := 0; i < 60; i++ {
		at := t0.Add(time.Duration(2*i) * time.Second)
		ingest(t, e, "BBB", 200+2*float64(i), at)
		ingest(t, e, "AAA", 100+float64(i)+0.01*float64(i%2), at.Add(time.Second))
	}
	ingest(t, e, "AAA", 165, t0.Add(121*time.Second))

	if len(e.Signals(0)) != 1 {
		t.Fatalf("expected one active signal before expiry")
	}

	now = now.Add(2 * time.Hour)
	e.Sweep()

	expired := sink.byType(models.EventSignalExpired)
	if len(expired) == 0 {
		t.Fatalf("expected expiry event after sweep")
	}
	if expired[len(expired)-1].Reason != "ttl" {
		t.Fatalf("expiry reason = %q", expired[len(expired)-1].Reason)
	}
	if len(e.Signals(0)) != 0 {
		t.Fatalf("signal survived sweep past TTL")
	}
}
