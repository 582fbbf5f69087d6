package signal

import (
	"math"
	"testing"
	"time"

	"PairScout/internal/domain/models"
	"PairScout/internal/engine/correlation"
)

func testConfig() Config {
	return Config{
		MinSamples:     20,
		ZThreshold:     2.0,
		CorrThreshold:  0.7,
		MinConfidence:  0.6,
		TTL:            24 * time.Hour,
		WindowCapacity: 1000,
	}
}

// passingInput clears all four entry gates with room to spare.
func passingInput() Input {
	return Input{
		Spread:      0.05,
		ZScore:      3.0,
		ZDefined:    true,
		SampleCount: 1000,
		Correlation: 0.9,
		CorrDefined: true,
	}
}

func TestEvaluateEmitsActiveSignal(t *testing.T) {
	e := NewEvaluator(testConfig())
	pair := correlation.NewPairKey("BTC", "ETH")

	sig, events := e.Evaluate(pair, passingInput())
	if sig == nil {
		t.Fatalf("expected a signal")
	}
	if sig.Direction != models.ShortSpread {
		t.Fatalf("direction = %v, want short_spread for z > 0", sig.Direction)
	}
	if sig.Pair != "BTC/ETH" {
		t.Fatalf("pair = %q", sig.Pair)
	}
	if len(events) != 1 || events[0].Type != models.EventSignalActive {
		t.Fatalf("events = %+v", events)
	}
	if got := e.Active(0); len(got) != 1 {
		t.Fatalf("active = %d", len(got))
	}
}

func TestEvaluateDirectionLongSpread(t *testing.T) {
	e := NewEvaluator(testConfig())
	in := passingInput()
	in.ZScore = -3.0
	sig, _ := e.Evaluate(correlation.NewPairKey("BTC", "ETH"), in)
	if sig == nil {
		t.Fatalf("expected a signal")
	}
	if sig.Direction != models.LongSpread {
		t.Fatalf("direction = %v, want long_spread for z < 0", sig.Direction)
	}
}

func TestEvaluateGates(t *testing.T) {
	pair := correlation.NewPairKey("BTC", "ETH")

	// Each case flips exactly one gate; none may produce a signal.
	undefined := passingInput()
	undefined.ZDefined = false

	undefinedCorr := passingInput()
	undefinedCorr.CorrDefined = false

	fewSamples := passingInput()
	fewSamples.SampleCount = 19

	lowZ := passingInput()
	lowZ.ZScore = 1.9

	lowCorr := passingInput()
	lowCorr.Correlation = 0.69

	cases := map[string]Input{
		"undefined zscore":      undefined,
		"undefined correlation": undefinedCorr,
		"too few samples":       fewSamples,
		"z below threshold":     lowZ,
		"corr below threshold":  lowCorr,
	}
	for name, in := range cases {
		e := NewEvaluator(testConfig())
		if sig, _ := e.Evaluate(pair, in); sig != nil {
			t.Fatalf("%s: unexpected signal %+v", name, sig)
		}
	}
}

func TestEvaluateZeroZNeverSignals(t *testing.T) {
	cfg := testConfig()
	cfg.ZThreshold = 0
	cfg.MinConfidence = 0
	e := NewEvaluator(cfg)
	in := passingInput()
	in.ZScore = 0
	if sig, _ := e.Evaluate(correlation.NewPairKey("BTC", "ETH"), in); sig != nil {
		t.Fatalf("z == 0 must never signal even with a zero threshold")
	}
}

func TestEvaluateConfidenceGate(t *testing.T) {
	cfg := testConfig()
	cfg.MinConfidence = 0.99
	e := NewEvaluator(cfg)
	if sig, _ := e.Evaluate(correlation.NewPairKey("BTC", "ETH"), passingInput()); sig != nil {
		t.Fatalf("confidence gate did not block: %+v", sig)
	}
}

func TestConfidence(t *testing.T) {
	cfg := testConfig()

	// Full adequacy, perfect correlation, saturated z: every component maxed.
	if c := cfg.Confidence(1000, 1.0, 4.0); math.Abs(c-1.0) > 1e-12 {
		t.Fatalf("max confidence = %v, want 1", c)
	}
	// Extreme z saturates rather than exceeding the cap.
	if c := cfg.Confidence(1000, 1.0, 100.0); math.Abs(c-1.0) > 1e-12 {
		t.Fatalf("saturated confidence = %v, want 1", c)
	}
	// Known midpoint: 0.2*0.5 + 0.5*0.8 + 0.3*(2/4) = 0.65.
	if c := cfg.Confidence(500, 0.8, 2.0); math.Abs(c-0.65) > 1e-12 {
		t.Fatalf("confidence = %v, want 0.65", c)
	}
	// Monotone in each factor.
	base := cfg.Confidence(500, 0.8, 2.0)
	if cfg.Confidence(600, 0.8, 2.0) <= base {
		t.Fatalf("confidence not monotone in samples")
	}
	if cfg.Confidence(500, 0.9, 2.0) <= base {
		t.Fatalf("confidence not monotone in correlation")
	}
	if cfg.Confidence(500, 0.8, 3.0) <= base {
		t.Fatalf("confidence not monotone in z")
	}
	// Negative correlation contributes by magnitude.
	if cfg.Confidence(500, -0.8, 2.0) != base {
		t.Fatalf("correlation sign must not change confidence")
	}
}

func TestEvaluateSupersede(t *testing.T) {
	e := NewEvaluator(testConfig())
	pair := correlation.NewPairKey("BTC", "ETH")

	first, _ := e.Evaluate(pair, passingInput())
	if first == nil {
		t.Fatalf("expected first signal")
	}

	in := passingInput()
	in.ZScore = 3.5
	second, events := e.Evaluate(pair, in)
	if second == nil {
		t.Fatalf("expected superseding signal")
	}
	if len(events) != 2 {
		t.Fatalf("expected expired+active, got %d events", len(events))
	}
	if events[0].Type != models.EventSignalExpired || events[0].Reason != "superseded" {
		t.Fatalf("first event = %+v", events[0])
	}
	if events[0].Signal != first {
		t.Fatalf("expired event must carry the superseded signal")
	}
	if events[1].Type != models.EventSignalActive {
		t.Fatalf("second event = %+v", events[1])
	}
	if got := e.Active(0); len(got) != 1 || got[0].ZScore != 3.5 {
		t.Fatalf("active after supersede = %+v", got)
	}
}

func TestSweepExpiresByTTL(t *testing.T) {
	cfg := testConfig()
	cfg.TTL = time.Hour
	e := NewEvaluator(cfg)

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	e.SetClock(func() time.Time { return now })

	pair := correlation.NewPairKey("BTC", "ETH")
	if sig, _ := e.Evaluate(pair, passingInput()); sig == nil {
		t.Fatalf("expected signal")
	}

	// One second before expiry nothing happens.
	now = now.Add(time.Hour - time.Second)
	if events := e.Sweep(); len(events) != 0 {
		t.Fatalf("premature expiry: %+v", events)
	}
	if got := e.Active(0); len(got) != 1 {
		t.Fatalf("active before expiry = %d", len(got))
	}

	now = now.Add(2 * time.Second)
	events := e.Sweep()
	if len(events) != 1 {
		t.Fatalf("expected one expiry event, got %d", len(events))
	}
	if events[0].Type != models.EventSignalExpired || events[0].Reason != "ttl" {
		t.Fatalf("event = %+v", events[0])
	}
	if got := e.Active(0); len(got) != 0 {
		t.Fatalf("active after expiry = %d", len(got))
	}
}

func TestActiveFiltersExpiredWithoutSweep(t *testing.T) {
	cfg := testConfig()
	cfg.TTL = time.Hour
	e := NewEvaluator(cfg)

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	e.SetClock(func() time.Time { return now })
	e.Evaluate(correlation.NewPairKey("BTC", "ETH"), passingInput())

	now = now.Add(2 * time.Hour)
	if got := e.Active(0); len(got) != 0 {
		t.Fatalf("expired signal leaked into Active: %+v", got)
	}
}

func TestActiveSortAndLimit(t *testing.T) {
	e := NewEvaluator(testConfig())

	low := passingInput()
	low.Correlation = 0.75
	e.Evaluate(correlation.NewPairKey("BTC", "ETH"), low)

	high := passingInput()
	high.Correlation = 0.95
	e.Evaluate(correlation.NewPairKey("SOL", "AVAX"), high)

	got := e.Active(0)
	if len(got) != 2 {
		t.Fatalf("active = %d", len(got))
	}
	if got[0].Confidence < got[1].Confidence {
		t.Fatalf("not sorted by confidence: %v < %v", got[0].Confidence, got[1].Confidence)
	}
	if got[0].Pair != "AVAX/SOL" {
		t.Fatalf("top signal = %q", got[0].Pair)
	}
	if limited := e.Active(1); len(limited) != 1 {
		t.Fatalf("limit not applied: %d", len(limited))
	}
}

func TestDrop(t *testing.T) {
	e := NewEvaluator(testConfig())
	pair := correlation.NewPairKey("BTC", "ETH")
	e.Evaluate(pair, passingInput())

	ev := e.Drop(pair, "window_reset")
	if ev == nil {
		t.Fatalf("expected drop event")
	}
	if ev.Type != models.EventSignalExpired || ev.Reason != "window_reset" {
		t.Fatalf("event = %+v", ev)
	}
	if got := e.Active(0); len(got) != 0 {
		t.Fatalf("signal survived drop")
	}
	if ev := e.Drop(pair, "window_reset"); ev != nil {
		t.Fatalf("second drop must be a no-op, got %+v", ev)
	}
}
