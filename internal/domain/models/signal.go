package models

import "time"

// Direction is the side of a mean-reversion entry.
type Direction string

const (
	// LongSpread: spread below its rolling mean, expect reversion upward.
	LongSpread Direction = "long_spread"
	// ShortSpread: spread above its rolling mean, expect reversion downward.
	ShortSpread Direction = "short_spread"
)

// Signal is an entry opportunity for one instrument pair. Created by the
// evaluator when all entry gates hold; immutable afterwards. It dies either
// by TTL expiry or by being superseded by a newer signal for the same pair.
type Signal struct {
	Pair           string    `json:"pair"`
	ZScore         float64   `json:"z_score"`
	Correlation    float64   `json:"correlation"`
	Confidence     float64   `json:"confidence"`
	Direction      Direction `json:"direction"`
	SpreadAtSignal float64   `json:"spread_at_signal"`
	SampleCount    int       `json:"sample_count"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// Expired reports whether the signal is past its TTL at the given instant.
func (s *Signal) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
