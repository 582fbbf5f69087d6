package models

import (
	"fmt"
	"math"
	"time"
)

// PriceTick is a single observation from the market feed. Immutable once
// created; validation happens at the ingestion boundary, never inside the
// engine.
type PriceTick struct {
	Instrument string
	Price      float64
	ObservedAt time.Time
}

// Validate rejects ticks that must never reach window state: non-finite or
// non-positive prices and zero timestamps. Timestamp monotonicity is checked
// per instrument by the engine, since it requires history.
func (t *PriceTick) Validate() error {
	if t == nil {
		return fmt.Errorf("tick is nil")
	}
	if t.Instrument == "" {
		return fmt.Errorf("instrument empty")
	}
	if math.IsNaN(t.Price) || math.IsInf(t.Price, 0) {
		return fmt.Errorf("price not finite: %v", t.Price)
	}
	if t.Price <= 0 {
		return fmt.Errorf("price not positive: %v", t.Price)
	}
	if t.ObservedAt.IsZero() {
		return fmt.Errorf("observed_at zero")
	}
	return nil
}
