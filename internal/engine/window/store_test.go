package window

import (
	"errors"
	"testing"
	"time"
)

func TestStoreKeyIsolation(t *testing.T) {
	s := NewStore(10)
	now := time.Now()

	for i := 0; i < 5; i++ {
		if _, err := s.Push("BTC", float64(100+i), now); err != nil && !errors.Is(err, ErrInsufficientData) {
			t.Fatalf("push BTC: %v", err)
		}
	}
	s.Push("ETH", 10, now)
	s.Push("ETH", 20, now)

	btc, err := s.Stats("BTC")
	if err != nil {
		t.Fatalf("stats BTC: %v", err)
	}
	if btc.SampleCount != 5 || btc.Mean != 102 {
		t.Fatalf("BTC stats = %+v", btc)
	}

	eth, err := s.Stats("ETH")
	if err != nil {
		t.Fatalf("stats ETH: %v", err)
	}
	if eth.SampleCount != 2 || eth.Mean != 15 {
		t.Fatalf("ETH stats = %+v", eth)
	}
}

func TestStoreUnknownKey(t *testing.T) {
	s := NewStore(10)
	if _, err := s.Stats("nope"); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData for unknown key, got %v", err)
	}
	if _, err := s.ZScore("nope", 1); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData for unknown key zscore, got %v", err)
	}
	if _, ok := s.LastSeen("nope"); ok {
		t.Fatalf("expected no last-seen for unknown key")
	}
	if v := s.Values("nope"); v != nil {
		t.Fatalf("expected nil values for unknown key, got %v", v)
	}
}

func TestStoreLastSeen(t *testing.T) {
	s := NewStore(10)
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s.Push("SOL", 150, at)

	seen, ok := s.LastSeen("SOL")
	if !ok {
		t.Fatalf("expected last-seen after push")
	}
	if !seen.Equal(at) {
		t.Fatalf("last-seen = %v, want %v", seen, at)
	}

	later := at.Add(time.Second)
	s.Push("SOL", 151, later)
	seen, _ = s.LastSeen("SOL")
	if !seen.Equal(later) {
		t.Fatalf("last-seen not advanced: %v", seen)
	}
}

func TestStoreReset(t *testing.T) {
	s := NewStore(10)
	now := time.Now()
	s.Push("AVAX", 30, now)
	s.Push("AVAX", 31, now)

	s.Reset("AVAX")

	if _, err := s.Stats("AVAX"); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected empty window after reset")
	}
	if _, ok := s.LastSeen("AVAX"); ok {
		t.Fatalf("last-seen should be cleared by reset")
	}
	// Resetting an unknown key is a no-op.
	s.Reset("nope")
}

func TestStoreSnapshotStats(t *testing.T) {
	s := NewStore(10)
	now := time.Now()
	s.Push("BTC", 100, now)
	s.Push("BTC", 102, now)
	s.Push("ETH", 10, now)

	snap := s.SnapshotStats()
	if _, ok := snap["BTC"]; !ok {
		t.Fatalf("expected BTC in snapshot")
	}
	if snap["BTC"].Mean != 101 {
		t.Fatalf("BTC snapshot mean = %v", snap["BTC"].Mean)
	}
	if snap["ETH"].SampleCount != 1 {
		t.Fatalf("ETH snapshot = %+v", snap["ETH"])
	}
}

func TestStoreKeys(t *testing.T) {
	s := NewStore(10)
	now := time.Now()
	s.Push("a", 1, now)
	s.Push("b", 1, now)
	keys := s.Keys()
	if len(keys) != 2 {
		t.Fatalf("keys = %v", keys)
	}
}
