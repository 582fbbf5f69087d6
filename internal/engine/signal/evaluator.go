package signal

import (
	"sort"
	"sync"
	"time"

	"PairScout/internal/domain/models"
	"PairScout/internal/engine/correlation"
)

// Config holds the entry gates and lifecycle settings for signal evaluation.
type Config struct {
	MinSamples     int
	ZThreshold     float64
	CorrThreshold  float64
	MinConfidence  float64
	TTL            time.Duration
	WindowCapacity int
}

// Input carries the statistics the evaluator combines for one pair. The
// Defined flags encode InsufficientData / UndefinedCorrelation: when either
// is false, evaluation short-circuits to no-signal without error.
type Input struct {
	Spread       float64
	ZScore       float64
	ZDefined     bool
	SampleCount  int
	Correlation  float64
	CorrDefined  bool
}

// zCap saturates the z-score contribution to confidence so extreme outliers
// cannot push confidence without bound.
const zCap = 4.0

// Confidence combines sample adequacy, correlation strength and z-score
// magnitude into a [0,1] score, monotone in each factor.
func (c Config) Confidence(sampleCount int, corr, z float64) float64 {
	adequacy := float64(sampleCount) / float64(c.WindowCapacity)
	if adequacy > 1 {
		adequacy = 1
	}
	zComp := abs(z) / zCap
	if zComp > 1 {
		zComp = 1
	}
	conf := 0.2*adequacy + 0.5*abs(corr) + 0.3*zComp
	if conf < 0 {
		conf = 0
	} else if conf > 1 {
		conf = 1
	}
	return conf
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Evaluator runs the Idle -> Active -> Expired state machine per pair. A new
// Active signal supersedes the previous one outright; expiry happens strictly
// at ExpiresAt. State from a dead signal never biases the next evaluation:
// every entry re-checks all four gates from scratch.
type Evaluator struct {
	cfg    Config
	mu     sync.Mutex
	active map[correlation.PairKey]*models.Signal
	now    func() time.Time
}

// NewEvaluator creates an evaluator with the given gates.
func NewEvaluator(cfg Config) *Evaluator {
	if cfg.WindowCapacity < 2 {
		cfg.WindowCapacity = 2
	}
	return &Evaluator{
		cfg:    cfg,
		active: make(map[correlation.PairKey]*models.Signal),
		now:    time.Now,
	}
}

// SetClock overrides the time source. Tests use it to drive TTL expiry.
func (e *Evaluator) SetClock(now func() time.Time) { e.now = now }

// Evaluate applies the entry gates for one pair and returns the new signal,
// if any, together with the audit events for every transition that occurred.
func (e *Evaluator) Evaluate(pair correlation.PairKey, in Input) (*models.Signal, []*models.AuditEvent) {
	now := e.now()

	e.mu.Lock()
	defer e.mu.Unlock()

	var events []*models.AuditEvent
	if ev := e.expireLocked(pair, now, "ttl"); ev != nil {
		events = append(events, ev)
	}

	if !in.ZDefined || !in.CorrDefined {
		return nil, events
	}
	if in.SampleCount < e.cfg.MinSamples {
		return nil, events
	}
	if abs(in.ZScore) < e.cfg.ZThreshold || in.ZScore == 0 {
		return nil, events
	}
	if abs(in.Correlation) < e.cfg.CorrThreshold {
		return nil, events
	}
	conf := e.cfg.Confidence(in.SampleCount, in.Correlation, in.ZScore)
	if conf < e.cfg.MinConfidence {
		return nil, events
	}

	dir := models.LongSpread
	if in.ZScore > 0 {
		dir = models.ShortSpread
	}
	sig := &models.Signal{
		Pair:           pair.String(),
		ZScore:         in.ZScore,
		Correlation:    in.Correlation,
		Confidence:     conf,
		Direction:      dir,
		SpreadAtSignal: in.Spread,
		SampleCount:    in.SampleCount,
		CreatedAt:      now,
		ExpiresAt:      now.Add(e.cfg.TTL),
	}

	// A newer Active replaces the previous one with no overlap.
	if prev, ok := e.active[pair]; ok {
		events = append(events, &models.AuditEvent{
			Type:   models.EventSignalExpired,
			Pair:   pair.String(),
			Signal: prev,
			Reason: "superseded",
			At:     now,
		})
	}
	e.active[pair] = sig
	events = append(events, &models.AuditEvent{
		Type:   models.EventSignalActive,
		Pair:   pair.String(),
		Signal: sig,
		At:     now,
	})
	return sig, events
}

// Sweep expires every signal past its TTL and returns the transitions.
func (e *Evaluator) Sweep() []*models.AuditEvent {
	now := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	var events []*models.AuditEvent
	for pair := range e.active {
		if ev := e.expireLocked(pair, now, "ttl"); ev != nil {
			events = append(events, ev)
		}
	}
	return events
}

func (e *Evaluator) expireLocked(pair correlation.PairKey, now time.Time, reason string) *models.AuditEvent {
	sig, ok := e.active[pair]
	if !ok || !sig.Expired(now) {
		return nil
	}
	delete(e.active, pair)
	return &models.AuditEvent{
		Type:   models.EventSignalExpired,
		Pair:   pair.String(),
		Signal: sig,
		Reason: reason,
		At:     now,
	}
}

// Drop discards the Active signal for pair, if any, and reports the
// transition. Used when a staleness reset invalidates the pair's statistics.
func (e *Evaluator) Drop(pair correlation.PairKey, reason string) *models.AuditEvent {
	now := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	sig, ok := e.active[pair]
	if !ok {
		return nil
	}
	delete(e.active, pair)
	return &models.AuditEvent{
		Type:   models.EventSignalExpired,
		Pair:   pair.String(),
		Signal: sig,
		Reason: reason,
		At:     now,
	}
}

// Active returns the live signals sorted by confidence descending, capped at
// limit (limit <= 0 means all). Signals past expiry are filtered, never
// returned; the read path does not mutate state.
func (e *Evaluator) Active(limit int) []models.Signal {
	now := e.now()
	e.mu.Lock()
	out := make([]models.Signal, 0, len(e.active))
	for _, sig := range e.active {
		if !sig.Expired(now) {
			out = append(out, *sig)
		}
	}
	e.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
