package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"PairScout/internal/domain/models"
	domrepo "PairScout/internal/domain/repository"
	"PairScout/internal/engine/correlation"
	"PairScout/internal/engine/signal"
	"PairScout/internal/engine/window"
	applogger "PairScout/pkg/logger"
)

// Config holds the statistical parameters of one engine instance.
type Config struct {
	Instruments    []string
	WindowCapacity int           // per-instrument price window
	SpreadWindow   int           // z-score window for pair spreads
	CorrWindow     int           // overlap window for Pearson correlation
	MinSamples     int
	ZThreshold     float64
	CorrThreshold  float64
	MinConfidence  float64
	SignalTTL      time.Duration
	StaleGap       time.Duration // feed gap that triggers a window reset
	TickTolerance  time.Duration // allowed timestamp regression per instrument
}

func (c *Config) applyDefaults() {
	if c.WindowCapacity <= 0 {
		c.WindowCapacity = 1000
	}
	if c.SpreadWindow <= 0 {
		c.SpreadWindow = 20
	}
	if c.CorrWindow <= 0 {
		c.CorrWindow = 50
	}
	if c.MinSamples <= 0 {
		c.MinSamples = 20
	}
	if c.ZThreshold <= 0 {
		c.ZThreshold = 2.0
	}
	if c.CorrThreshold <= 0 {
		c.CorrThreshold = 0.7
	}
	if c.MinConfidence <= 0 {
		c.MinConfidence = 0.6
	}
	if c.SignalTTL <= 0 {
		c.SignalTTL = 24 * time.Hour
	}
	if c.StaleGap <= 0 {
		c.StaleGap = 10 * time.Minute
	}
	if c.TickTolerance <= 0 {
		c.TickTolerance = time.Second
	}
}

// EventSink receives engine state transitions. Implementations must not
// block: the ingestion path treats emission as fire-and-forget.
type EventSink interface {
	Emit(ev *models.AuditEvent)
}

type noopSink struct{}

func (noopSink) Emit(*models.AuditEvent) {}

// Engine is the statistical signal detection core. It owns all window,
// correlation and signal state explicitly; multiple engines coexist freely.
// Ingestion is the only writer; snapshot reads take a consistent copy under
// a short exclusive pass instead of blocking ingestion for the duration of
// query handling.
type Engine struct {
	cfg     Config
	pairs   []correlation.PairKey
	prices  *window.Store
	spreads *window.Store
	corr    *correlation.Engine
	eval    *signal.Evaluator

	// snapMu serializes ingestion against snapshot assembly. Ingest holds
	// the read side so ticks for different instruments stay concurrent.
	snapMu sync.RWMutex

	stateMu   sync.Mutex
	lastPrice map[string]float64
	lastTick  map[string]time.Time

	sink    EventSink
	metrics domrepo.Metrics
	logger  *applogger.Logger
}

// New creates an engine for the configured basket. Every unordered pair of
// monitored instruments is tracked.
func New(cfg Config, metrics domrepo.Metrics, logger *applogger.Logger) *Engine {
	cfg.applyDefaults()
	pairs := make([]correlation.PairKey, 0, len(cfg.Instruments)*(len(cfg.Instruments)-1)/2)
	for i := 0; i < len(cfg.Instruments); i++ {
		for j := i + 1; j < len(cfg.Instruments); j++ {
			pairs = append(pairs, correlation.NewPairKey(cfg.Instruments[i], cfg.Instruments[j]))
		}
	}
	return &Engine{
		cfg:     cfg,
		pairs:   pairs,
		prices:  window.NewStore(cfg.WindowCapacity),
		spreads: window.NewStore(cfg.SpreadWindow),
		corr:    correlation.NewEngine(cfg.CorrWindow),
		eval: signal.NewEvaluator(signal.Config{
			MinSamples:     cfg.MinSamples,
			ZThreshold:     cfg.ZThreshold,
			CorrThreshold:  cfg.CorrThreshold,
			MinConfidence:  cfg.MinConfidence,
			TTL:            cfg.SignalTTL,
			WindowCapacity: cfg.SpreadWindow,
		}),
		sink:      noopSink{},
		metrics:   metrics,
		logger:    logger,
		lastPrice: make(map[string]float64),
		lastTick:  make(map[string]time.Time),
	}
}

// SetSink wires the audit event sink. Must be called before ingestion starts.
func (e *Engine) SetSink(s EventSink) {
	if s != nil {
		e.sink = s
	}
}

// SetClock overrides the evaluator time source; tests drive TTL with it.
func (e *Engine) SetClock(now func() time.Time) { e.eval.SetClock(now) }

// Config returns the effective engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Pairs returns the monitored pair keys.
func (e *Engine) Pairs() []correlation.PairKey { return e.pairs }

// Ingest applies one tick: validation, staleness check, window update,
// spread recomputation for every pair involving the instrument, correlation
// update and signal evaluation. Invalid ticks are rejected and counted; the
// returned error is diagnostic, never fatal to the caller.
func (e *Engine) Ingest(ctx context.Context, tick *models.PriceTick) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tick.Validate(); err != nil {
		e.metrics.RecordInvalidTick("malformed")
		return fmt.Errorf("invalid tick: %w", err)
	}

	e.snapMu.RLock()
	defer e.snapMu.RUnlock()

	e.stateMu.Lock()
	last, seen := e.lastTick[tick.Instrument]
	e.stateMu.Unlock()

	if seen && tick.ObservedAt.Before(last.Add(-e.cfg.TickTolerance)) {
		e.metrics.RecordInvalidTick("timestamp_regression")
		return fmt.Errorf("invalid tick: timestamp %s regresses past %s", tick.ObservedAt, last)
	}

	if seen && tick.ObservedAt.Sub(last) > e.cfg.StaleGap {
		e.resetInstrument(tick.Instrument, tick.ObservedAt)
	}

	e.stateMu.Lock()
	e.lastPrice[tick.Instrument] = tick.Price
	e.lastTick[tick.Instrument] = tick.ObservedAt
	counterparts := make(map[string]float64, len(e.pairs))
	for _, pk := range e.pairs {
		if !pk.Contains(tick.Instrument) {
			continue
		}
		other := pk.Other(tick.Instrument)
		if p, ok := e.lastPrice[other]; ok {
			counterparts[other] = p
		}
	}
	e.stateMu.Unlock()

	e.prices.Push(tick.Instrument, tick.Price, tick.ObservedAt)
	e.metrics.RecordTick(tick.Instrument)
	e.metrics.RecordLastPrice(tick.Instrument, tick.Price)

	for _, pk := range e.pairs {
		if !pk.Contains(tick.Instrument) {
			continue
		}
		otherPrice, ok := counterparts[pk.Other(tick.Instrument)]
		if !ok {
			continue
		}
		pa, pb := tick.Price, otherPrice
		if pk.A != tick.Instrument {
			pa, pb = otherPrice, tick.Price
		}
		e.updatePair(pk, pa, pb, tick.ObservedAt)
	}
	return nil
}

// updatePair recomputes the pair spread, refreshes correlation and runs the
// evaluator. Spread is normalized by the leg average so instruments at
// different price scales stay comparable.
func (e *Engine) updatePair(pk correlation.PairKey, priceA, priceB float64, at time.Time) {
	avg := (priceA + priceB) / 2
	if avg == 0 {
		return
	}
	spread := (priceA - priceB) / avg

	key := pk.String()
	st, statErr := e.spreads.Push(key, spread, at)
	corrRes := e.corr.Update(pk.A, pk.B, priceA, priceB)

	in := signal.Input{
		Spread:      spread,
		SampleCount: st.SampleCount,
		Correlation: corrRes.Coeff,
		CorrDefined: corrRes.Defined,
	}
	if statErr == nil && st.StdDev > 0 {
		in.ZScore = (spread - st.Mean) / st.StdDev
		in.ZDefined = true
	}

	sig, events := e.eval.Evaluate(pk, in)
	if sig != nil {
		e.metrics.RecordSignal(key, string(sig.Direction))
		if e.logger != nil {
			e.logger.Info("signal active",
				applogger.String("pair", key),
				applogger.Any("z_score", sig.ZScore),
				applogger.Any("confidence", sig.Confidence),
				applogger.String("direction", string(sig.Direction)))
		}
	}
	e.emit(events)
	e.metrics.RecordActiveSignals(len(e.eval.Active(0)))
}

// resetInstrument discards the instrument window and every dependent pair
// after a stale feed gap, so a discontinuity cannot manufacture a signal.
func (e *Engine) resetInstrument(id string, at time.Time) {
	e.prices.Reset(id)
	affected := e.corr.ResetInstrument(id)
	var events []*models.AuditEvent
	for _, pk := range affected {
		e.spreads.Reset(pk.String())
		if ev := e.eval.Drop(pk, "window_reset"); ev != nil {
			events = append(events, ev)
		}
	}
	e.stateMu.Lock()
	delete(e.lastPrice, id)
	e.stateMu.Unlock()

	e.metrics.RecordWindowReset(id)
	events = append(events, &models.AuditEvent{
		Type:       models.EventWindowReset,
		Instrument: id,
		Reason:     "stale_feed_gap",
		At:         at,
	})
	if e.logger != nil {
		e.logger.Warn("window reset after stale feed gap", applogger.String("instrument", id))
	}
	e.emit(events)
}

func (e *Engine) emit(events []*models.AuditEvent) {
	for _, ev := range events {
		e.sink.Emit(ev)
	}
}

// Signals returns currently Active signals sorted by confidence descending.
func (e *Engine) Signals(limit int) []models.Signal {
	return e.eval.Active(limit)
}

// CorrelationMatrix returns the symmetric basket matrix with unit diagonal.
func (e *Engine) CorrelationMatrix() models.CorrelationMatrix {
	return e.corr.Matrix(e.cfg.Instruments)
}

// MarketSnapshot reports per-instrument price, z-score of the latest price
// against its own rolling window, relative deviation from the rolling mean
// and sample count.
func (e *Engine) MarketSnapshot() []models.MarketEntry {
	e.stateMu.Lock()
	prices := make(map[string]float64, len(e.lastPrice))
	times := make(map[string]time.Time, len(e.lastTick))
	for k, v := range e.lastPrice {
		prices[k] = v
	}
	for k, v := range e.lastTick {
		times[k] = v
	}
	e.stateMu.Unlock()

	out := make([]models.MarketEntry, 0, len(e.cfg.Instruments))
	for _, id := range e.cfg.Instruments {
		price, ok := prices[id]
		if !ok {
			continue
		}
		entry := models.MarketEntry{Instrument: id, Price: price, UpdatedAt: times[id]}
		if st, err := e.prices.Stats(id); err == nil {
			entry.SampleCount = st.SampleCount
			if st.StdDev > 0 {
				z := (price - st.Mean) / st.StdDev
				entry.ZScore = &z
			}
			if st.Mean != 0 {
				dev := (price - st.Mean) / st.Mean
				entry.Spread = &dev
			}
		} else {
			entry.SampleCount = st.SampleCount
		}
		out = append(out, entry)
	}
	return out
}

// SpreadHistory returns the buffered spread values for a pair, oldest-first,
// capped at limit from the tail.
func (e *Engine) SpreadHistory(pair string, limit int) ([]float64, error) {
	pk, ok := correlation.ParsePairKey(pair)
	if !ok {
		return nil, fmt.Errorf("invalid pair %q", pair)
	}
	vals := e.spreads.Values(pk.String())
	if limit > 0 && len(vals) > limit {
		vals = vals[len(vals)-limit:]
	}
	return vals, nil
}

// Snapshot assembles a consistent point-in-time view: ingestion pauses only
// for the short copy pass, and all three sub-views reflect one instant.
func (e *Engine) Snapshot() models.Snapshot {
	e.snapMu.Lock()
	markets := e.MarketSnapshot()
	matrix := e.CorrelationMatrix()
	signals := e.Signals(0)
	e.snapMu.Unlock()
	return models.Snapshot{
		Markets:      markets,
		Correlations: matrix,
		Signals:      signals,
		TakenAt:      time.Now(),
	}
}

// Sweep expires TTL-dead signals outside the tick path; the collector runs
// it periodically so quiet pairs still transition to Expired on time.
func (e *Engine) Sweep() {
	e.emit(e.eval.Sweep())
	e.metrics.RecordActiveSignals(len(e.eval.Active(0)))
}
