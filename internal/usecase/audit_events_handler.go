package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"PairScout/internal/domain/models"
	drepo "PairScout/internal/domain/repository"
	applogger "PairScout/pkg/logger"
)

// AuditEventsHandler consumes the audit topic and lands events in the cold
// store. Running persistence behind the topic keeps ClickHouse writes off
// the ingest path entirely.
type AuditEventsHandler struct {
	topic  string
	store  drepo.SignalStore
	logger *applogger.Logger
}

// NewAuditEventsHandler creates a handler for the given audit topic.
func NewAuditEventsHandler(topic string, store drepo.SignalStore, logger *applogger.Logger) *AuditEventsHandler {
	return &AuditEventsHandler{topic: topic, store: store, logger: logger}
}

// Topic returns the topic this handler consumes.
func (h *AuditEventsHandler) Topic() string { return h.topic }

// Handle decodes one audit event and persists it. Decode failures are
// returned so the consumer's retry/DLQ policy applies.
func (h *AuditEventsHandler) Handle(ctx context.Context, payload []byte) error {
	var ev models.AuditEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("decode audit event: %w", err)
	}
	if ev.Type == "" {
		return fmt.Errorf("audit event missing type")
	}

	if ev.Type == models.EventSignalActive && ev.Signal != nil {
		if err := h.store.StoreSignal(ctx, ev.Signal); err != nil {
			return fmt.Errorf("store signal: %w", err)
		}
	}
	if err := h.store.StoreEvent(ctx, &ev); err != nil {
		return fmt.Errorf("store audit event: %w", err)
	}

	h.logger.Debug("audit event persisted",
		applogger.String("type", string(ev.Type)),
		applogger.String("pair", ev.Pair))
	return nil
}
