package usecase

import (
	"context"
	"time"

	"PairScout/internal/domain/models"
	drepo "PairScout/internal/domain/repository"
	"PairScout/internal/engine"
)

// TickProcessor feeds validated ticks into the engine and mirrors the
// latest price to the hot store. Hot-store writes are fire-and-forget: a
// failing mirror never stalls or fails ingestion.
type TickProcessor struct {
	eng     *engine.Engine
	hot     drepo.HotStore
	metrics drepo.Metrics
}

// NewTickProcessor creates a processor for one engine instance.
func NewTickProcessor(eng *engine.Engine, hot drepo.HotStore, metrics drepo.Metrics) *TickProcessor {
	return &TickProcessor{eng: eng, hot: hot, metrics: metrics}
}

// Engine returns the underlying engine, used by the HTTP layer for reads.
func (p *TickProcessor) Engine() *engine.Engine { return p.eng }

// Process applies one tick to the engine. Rejected ticks surface as errors
// for logging but are an expected, non-fatal path.
func (p *TickProcessor) Process(ctx context.Context, t *models.PriceTick) error {
	start := time.Now()
	if err := p.eng.Ingest(ctx, t); err != nil {
		return err
	}
	p.metrics.RecordLatency("ingest", time.Since(start).Seconds())

	if p.hot != nil {
		go func(t models.PriceTick) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := p.hot.SetPrice(ctx, t.Instrument, t.Price, t.ObservedAt); err != nil {
				p.metrics.RecordError("hot_store_price")
			}
		}(*t)
	}
	return nil
}
