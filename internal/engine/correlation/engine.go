package correlation

import (
	"sync"

	"PairScout/internal/domain/models"
)

// Result is one correlation update outcome. Defined is false when the
// coefficient is undefined (constant leg or too few overlapping samples).
type Result struct {
	Pair    PairKey
	Coeff   float64
	Samples int
	Defined bool
}

// Engine maintains pairwise price series across the monitored basket and
// computes rolling Pearson correlation per unordered pair. Each series locks
// independently; the engine mutex only guards the map.
type Engine struct {
	mu       sync.RWMutex
	capacity int
	pairs    map[PairKey]*PairSeries
}

// NewEngine creates an engine whose pair windows share the given capacity.
func NewEngine(capacity int) *Engine {
	return &Engine{capacity: capacity, pairs: make(map[PairKey]*PairSeries)}
}

func (e *Engine) seriesFor(key PairKey) *PairSeries {
	e.mu.RLock()
	s, ok := e.pairs[key]
	e.mu.RUnlock()
	if ok {
		return s
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok = e.pairs[key]; ok {
		return s
	}
	s = NewPairSeries(e.capacity)
	e.pairs[key] = s
	return s
}

// Update admits one aligned observation for the pair (a contributes x,
// b contributes y) and returns the refreshed correlation estimate.
func (e *Engine) Update(a, b string, x, y float64) Result {
	key := NewPairKey(a, b)
	// Keep leg order aligned with the canonical key so repeated updates
	// accumulate consistently.
	if key.A != a {
		x, y = y, x
	}
	s := e.seriesFor(key)
	s.Push(x, y)
	coeff, n, ok := s.Corr()
	return Result{Pair: key, Coeff: coeff, Samples: n, Defined: ok}
}

// Corr returns the current estimate for the pair without mutating it.
func (e *Engine) Corr(a, b string) Result {
	key := NewPairKey(a, b)
	e.mu.RLock()
	s, ok := e.pairs[key]
	e.mu.RUnlock()
	if !ok {
		return Result{Pair: key}
	}
	coeff, n, defined := s.Corr()
	return Result{Pair: key, Coeff: coeff, Samples: n, Defined: defined}
}

// ResetInstrument drops every pair series involving the instrument. Used on
// staleness resets so a discontinuity in one leg cannot leak into pair state.
func (e *Engine) ResetInstrument(id string) []PairKey {
	e.mu.RLock()
	affected := make([]PairKey, 0, 4)
	for key, s := range e.pairs {
		if key.Contains(id) {
			s.Reset()
			affected = append(affected, key)
		}
	}
	e.mu.RUnlock()
	return affected
}

// Matrix builds the symmetric correlation matrix for the given instruments.
// Each unordered pair is read once and mirrored; the diagonal is set to
// exactly 1.0 and never computed numerically. Undefined pairs are absent.
func (e *Engine) Matrix(instruments []string) models.CorrelationMatrix {
	m := make(models.CorrelationMatrix, len(instruments))
	for _, id := range instruments {
		m[id] = map[string]float64{id: 1.0}
	}
	for i := 0; i < len(instruments); i++ {
		for j := i + 1; j < len(instruments); j++ {
			res := e.Corr(instruments[i], instruments[j])
			if !res.Defined {
				continue
			}
			m[instruments[i]][instruments[j]] = res.Coeff
			m[instruments[j]][instruments[i]] = res.Coeff
		}
	}
	return m
}
