package window

import (
	"errors"
	"math"
	"testing"
)

// directStats recomputes mean and stddev from scratch for comparison with
// the incremental aggregates.
func directStats(values []float64) (mean, stddev float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))
	if len(values) < 2 {
		return mean, 0
	}
	var m2 float64
	for _, v := range values {
		m2 += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(m2 / float64(len(values)-1))
}

func TestWindowIncrementalMatchesDirect(t *testing.T) {
	w := New(50)
	// Deterministic pseudo-random sequence, long enough to wrap several times.
	x := 123.456
	for i := 0; i < 500; i++ {
		x = math.Mod(x*37.77+11.13, 1000)
		w.Push(x)

		if w.Len() < 2 {
			continue
		}
		st, err := w.Stats()
		if err != nil {
			t.Fatalf("stats error at i=%d: %v", i, err)
		}
		mean, stddev := directStats(w.Values())
		if math.Abs(st.Mean-mean) > 1e-9 {
			t.Fatalf("mean drift at i=%d: incremental=%v direct=%v", i, st.Mean, mean)
		}
		if math.Abs(st.StdDev-stddev) > 1e-9 {
			t.Fatalf("stddev drift at i=%d: incremental=%v direct=%v", i, st.StdDev, stddev)
		}
	}
}

func TestWindowEvictsOldest(t *testing.T) {
	w := New(3)
	for _, v := range []float64{1, 2, 3, 4} {
		w.Push(v)
	}
	got := w.Values()
	want := []float64{2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("unexpected length %d", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("values[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	st, err := w.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if math.Abs(st.Mean-3) > 1e-12 {
		t.Fatalf("mean = %v, want 3", st.Mean)
	}
}

func TestWindowInsufficientData(t *testing.T) {
	w := New(10)
	if _, err := w.Stats(); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData for empty window, got %v", err)
	}
	w.Push(5)
	if _, err := w.Stats(); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData for one sample, got %v", err)
	}
	w.Push(6)
	if _, err := w.Stats(); err != nil {
		t.Fatalf("unexpected error with two samples: %v", err)
	}
}

func TestWindowZScoreConstantSeries(t *testing.T) {
	w := New(10)
	for i := 0; i < 10; i++ {
		w.Push(42)
	}
	if _, err := w.ZScore(42); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("constant series must not produce a z-score, got %v", err)
	}
}

func TestWindowZScore(t *testing.T) {
	w := New(10)
	for _, v := range []float64{10, 12, 14, 16, 18} {
		w.Push(v)
	}
	// mean 14, stddev sqrt(40/4) = sqrt(10)
	z, err := w.ZScore(14 + math.Sqrt(10))
	if err != nil {
		t.Fatalf("zscore: %v", err)
	}
	if math.Abs(z-1) > 1e-9 {
		t.Fatalf("z = %v, want 1", z)
	}
}

func TestWindowReset(t *testing.T) {
	w := New(5)
	for i := 0; i < 7; i++ {
		w.Push(float64(i))
	}
	w.Reset()
	if w.Len() != 0 {
		t.Fatalf("len after reset = %d", w.Len())
	}
	if _, err := w.Stats(); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData after reset, got %v", err)
	}
	w.Push(1)
	w.Push(3)
	st, err := w.Stats()
	if err != nil {
		t.Fatalf("stats after refill: %v", err)
	}
	if st.Mean != 2 {
		t.Fatalf("mean after refill = %v", st.Mean)
	}
}
