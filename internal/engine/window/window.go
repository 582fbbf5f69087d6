package window

import (
	"errors"
	"math"
)

// ErrInsufficientData is returned when a window holds fewer than two samples
// and no standard deviation can be reported. Callers treat it as a normal,
// frequent outcome, not a failure.
var ErrInsufficientData = errors.New("window: insufficient data")

// Stats is the incremental summary of the current window contents.
type Stats struct {
	SampleCount int
	Mean        float64
	StdDev      float64
}

// Window is a fixed-capacity FIFO buffer with O(1) incremental mean and
// variance (Welford). Evicting the oldest sample reverses the update instead
// of rescanning, so mean/variance always reflect exactly the buffered values.
// Not safe for concurrent use; Store serializes access per key.
type Window struct {
	buf  []float64
	head int
	n    int
	mean float64
	m2   float64 // sum of squared deviations from the mean
}

// New creates a window with the given capacity. Capacity must be >= 2.
func New(capacity int) *Window {
	if capacity < 2 {
		capacity = 2
	}
	return &Window{buf: make([]float64, capacity)}
}

// Capacity returns the fixed window capacity.
func (w *Window) Capacity() int { return len(w.buf) }

// Len returns the current number of buffered samples.
func (w *Window) Len() int { return w.n }

// Push admits a new sample, evicting the oldest first when full.
func (w *Window) Push(v float64) {
	if w.n == len(w.buf) {
		w.evict()
	}
	idx := (w.head + w.n) % len(w.buf)
	w.buf[idx] = v
	w.n++
	delta := v - w.mean
	w.mean += delta / float64(w.n)
	w.m2 += delta * (v - w.mean)
}

// evict removes the oldest sample and reverses its Welford contribution.
func (w *Window) evict() {
	old := w.buf[w.head]
	w.head = (w.head + 1) % len(w.buf)
	w.n--
	if w.n == 0 {
		w.mean = 0
		w.m2 = 0
		return
	}
	prevMean := w.mean
	w.mean = (prevMean*float64(w.n+1) - old) / float64(w.n)
	w.m2 -= (old - prevMean) * (old - w.mean)
	if w.m2 < 0 {
		w.m2 = 0
	}
}

// Stats reports count, mean and standard deviation of the buffered samples.
// StdDev requires at least two samples.
func (w *Window) Stats() (Stats, error) {
	if w.n < 2 {
		return Stats{SampleCount: w.n, Mean: w.mean}, ErrInsufficientData
	}
	variance := w.m2 / float64(w.n-1)
	if variance < 0 {
		variance = 0
	}
	return Stats{
		SampleCount: w.n,
		Mean:        w.mean,
		StdDev:      math.Sqrt(variance),
	}, nil
}

// ZScore returns how many standard deviations v lies from the rolling mean.
// Zero standard deviation yields ErrInsufficientData: a constant series has
// no meaningful deviation and must not manufacture a signal.
func (w *Window) ZScore(v float64) (float64, error) {
	st, err := w.Stats()
	if err != nil {
		return 0, err
	}
	if st.StdDev == 0 {
		return 0, ErrInsufficientData
	}
	return (v - st.Mean) / st.StdDev, nil
}

// Values returns the buffered samples oldest-first. Used by tests for direct
// recomputation and by the spread history endpoint.
func (w *Window) Values() []float64 {
	out := make([]float64, 0, w.n)
	for i := 0; i < w.n; i++ {
		out = append(out, w.buf[(w.head+i)%len(w.buf)])
	}
	return out
}

// Reset drops all samples and running aggregates.
func (w *Window) Reset() {
	w.head = 0
	w.n = 0
	w.mean = 0
	w.m2 = 0
}
