package repository

import (
	"context"
	"time"

	"PairScout/internal/domain/models"
)

// MarketStream is the external feed adapter boundary. Transport, reconnect
// and backoff live behind it.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.PriceTick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// AuditPublisher delivers engine state transitions to the external audit
// collaborator. Implementations own their own retry; the engine treats
// publishing as fire-and-forget.
type AuditPublisher interface {
	Publish(ctx context.Context, ev *models.AuditEvent) error
	Close() error
}

// SignalStore is the cold persistence boundary for signals and audit events.
type SignalStore interface {
	Init(ctx context.Context) error
	StoreSignal(ctx context.Context, s *models.Signal) error
	StoreEvent(ctx context.Context, ev *models.AuditEvent) error
	QuerySignals(ctx context.Context, pair string, from, to time.Time, limit int) ([]models.Signal, error)
	Health(ctx context.Context) error
	Close() error
}

// HotStore mirrors the latest engine output for fast external reads.
type HotStore interface {
	SetPrice(ctx context.Context, instrument string, price float64, at time.Time) error
	SetSignal(ctx context.Context, s *models.Signal) error
	AppendLog(ctx context.Context, ev *models.AuditEvent) error
	Close() error
}

// Metrics is the operational metrics boundary.
type Metrics interface {
	RecordTick(instrument string)
	RecordInvalidTick(reason string)
	RecordDroppedTick()
	RecordWindowReset(instrument string)
	RecordSignal(pair string, direction string)
	RecordActiveSignals(n int)
	RecordLastPrice(instrument string, price float64)
	RecordLatency(op string, seconds float64)
	RecordError(kind string)
}
