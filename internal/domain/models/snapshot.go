package models

import "time"

// MarketEntry is the per-instrument row of the market snapshot.
type MarketEntry struct {
	Instrument  string    `json:"instrument"`
	Price       float64   `json:"price"`
	ZScore      *float64  `json:"z_score,omitempty"`
	Spread      *float64  `json:"spread,omitempty"`
	SampleCount int       `json:"sample_count"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CorrelationMatrix maps instrument -> instrument -> coefficient. Undefined
// pairs are absent rather than reported as zero. The diagonal is exactly 1.0
// for every monitored instrument.
type CorrelationMatrix map[string]map[string]float64

// Snapshot is a point-in-time view of engine state. All three sub-views
// reflect a single logical instant; callers treat it as a value.
type Snapshot struct {
	Markets      []MarketEntry     `json:"markets"`
	Correlations CorrelationMatrix `json:"correlations"`
	Signals      []Signal          `json:"active_signals"`
	TakenAt      time.Time         `json:"taken_at"`
}
