package usecase

import (
	"context"
	"fmt"

	"PairScout/internal/domain/models"
	drepo "PairScout/internal/domain/repository"
	applogger "PairScout/pkg/logger"
	"PairScout/pkg/queue"
)

// Queue message types for asynchronous persistence.
const (
	MsgPersistSignal = "persist_signal"
	MsgPersistEvent  = "persist_event"
	MsgErrorLogs     = "error_logs"
)

// PersistSignalJob lands signals in the cold store off the hot path.
type PersistSignalJob struct {
	store drepo.SignalStore
}

func NewPersistSignalJob(store drepo.SignalStore) *PersistSignalJob {
	return &PersistSignalJob{store: store}
}

func (j *PersistSignalJob) Name() string { return "persist_signal_job" }
func (j *PersistSignalJob) Type() string { return MsgPersistSignal }

func (j *PersistSignalJob) Handle(ctx context.Context, payload interface{}) error {
	sig, err := queue.ParsePayload[models.Signal](payload)
	if err != nil {
		return fmt.Errorf("parse signal payload: %w", err)
	}
	return j.store.StoreSignal(ctx, sig)
}

// PersistEventJob lands audit events in the cold store off the hot path.
type PersistEventJob struct {
	store drepo.SignalStore
}

func NewPersistEventJob(store drepo.SignalStore) *PersistEventJob {
	return &PersistEventJob{store: store}
}

func (j *PersistEventJob) Name() string { return "persist_event_job" }
func (j *PersistEventJob) Type() string { return MsgPersistEvent }

func (j *PersistEventJob) Handle(ctx context.Context, payload interface{}) error {
	ev, err := queue.ParsePayload[models.AuditEvent](payload)
	if err != nil {
		return fmt.Errorf("parse audit event payload: %w", err)
	}
	return j.store.StoreEvent(ctx, ev)
}

// ErrorLogStore persists aggregated warn/error log batches.
type ErrorLogStore interface {
	StoreErrorLogs(ctx context.Context, entries []applogger.AggregatedLogEntry) error
}

// ErrorLogsJob lands the logger collector's aggregated batches in the cold
// store so repeated runtime errors are queryable after the fact.
type ErrorLogsJob struct {
	store ErrorLogStore
}

func NewErrorLogsJob(store ErrorLogStore) *ErrorLogsJob {
	return &ErrorLogsJob{store: store}
}

func (j *ErrorLogsJob) Name() string { return "error_logs_job" }
func (j *ErrorLogsJob) Type() string { return MsgErrorLogs }

func (j *ErrorLogsJob) Handle(ctx context.Context, payload interface{}) error {
	entries, err := queue.ParsePayload[[]applogger.AggregatedLogEntry](payload)
	if err != nil {
		return fmt.Errorf("parse log batch payload: %w", err)
	}
	if entries == nil || len(*entries) == 0 {
		return nil
	}
	return j.store.StoreErrorLogs(ctx, *entries)
}
