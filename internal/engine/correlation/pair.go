package correlation

import (
	"math"
	"strings"
	"sync"
)

// PairKey identifies an unordered instrument pair. The constructor
// canonicalizes ordering so BTC/ETH and ETH/BTC map to the same key.
type PairKey struct {
	A string
	B string
}

// NewPairKey builds a canonical key with A < B lexicographically.
func NewPairKey(a, b string) PairKey {
	if a > b {
		a, b = b, a
	}
	return PairKey{A: a, B: b}
}

// ParsePairKey parses "BTC/ETH" into a canonical key.
func ParsePairKey(s string) (PairKey, bool) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return PairKey{}, false
	}
	return NewPairKey(parts[0], parts[1]), true
}

func (k PairKey) String() string { return k.A + "/" + k.B }

// Contains reports whether the pair involves the given instrument.
func (k PairKey) Contains(id string) bool { return k.A == id || k.B == id }

// Other returns the counterpart instrument of id within the pair.
func (k PairKey) Other(id string) string {
	if k.A == id {
		return k.B
	}
	return k.A
}

// PairSeries keeps two time-aligned rolling sequences and running sums for
// O(1) Pearson correlation over the overlapping window. Eviction subtracts
// the oldest sample pair from every sum before the newest is admitted.
type PairSeries struct {
	mu  sync.Mutex
	xs  []float64
	ys  []float64
	head, n int
	sx, sy  float64
	sxx, syy, sxy float64
}

// NewPairSeries creates a series with the given window capacity.
func NewPairSeries(capacity int) *PairSeries {
	if capacity < 2 {
		capacity = 2
	}
	return &PairSeries{xs: make([]float64, capacity), ys: make([]float64, capacity)}
}

// Push admits one aligned observation for both legs.
func (p *PairSeries) Push(x, y float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.n == len(p.xs) {
		ox, oy := p.xs[p.head], p.ys[p.head]
		p.head = (p.head + 1) % len(p.xs)
		p.n--
		p.sx -= ox
		p.sy -= oy
		p.sxx -= ox * ox
		p.syy -= oy * oy
		p.sxy -= ox * oy
	}
	idx := (p.head + p.n) % len(p.xs)
	p.xs[idx] = x
	p.ys[idx] = y
	p.n++
	p.sx += x
	p.sy += y
	p.sxx += x * x
	p.syy += y * y
	p.sxy += x * y
}

// Corr reports the Pearson coefficient over the overlapping window. ok is
// false while fewer than two samples overlap or when either leg has zero
// variance (constant price): an undefined coefficient, not zero.
func (p *PairSeries) Corr() (coeff float64, n int, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.corrLocked()
}

func (p *PairSeries) corrLocked() (float64, int, bool) {
	if p.n < 2 {
		return 0, p.n, false
	}
	fn := float64(p.n)
	varX := p.sxx - p.sx*p.sx/fn
	varY := p.syy - p.sy*p.sy/fn
	// Constant series leave variance at (numerically) zero.
	if varX <= varianceFloor(p.sxx) || varY <= varianceFloor(p.syy) {
		return 0, p.n, false
	}
	cov := p.sxy - p.sx*p.sy/fn
	r := cov / math.Sqrt(varX*varY)
	if r > 1 {
		r = 1
	} else if r < -1 {
		r = -1
	}
	return r, p.n, true
}

// Len returns the number of overlapping samples.
func (p *PairSeries) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.n
}

// Reset drops the series contents and running sums.
func (p *PairSeries) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.head, p.n = 0, 0
	p.sx, p.sy, p.sxx, p.syy, p.sxy = 0, 0, 0, 0, 0
}

// varianceFloor scales the zero-variance cutoff to the magnitude of the
// running sum of squares, so constant large prices are caught despite
// floating-point residue.
func varianceFloor(sumSquares float64) float64 {
	return 1e-12 * math.Abs(sumSquares)
}
