package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"PairScout/internal/domain/models"
	domrepo "PairScout/internal/domain/repository"
	pkgch "PairScout/pkg/clickhouse"
	applogger "PairScout/pkg/logger"
)

// ClickHouseSignalStore implements SignalStore backed by ClickHouse.
type ClickHouseSignalStore struct {
	db *sql.DB
	l  *applogger.Logger
}

// NewClickHouseSignalStore creates a cold store over an existing client.
func NewClickHouseSignalStore(ch *pkgch.Client) domrepo.SignalStore {
	return &ClickHouseSignalStore{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *ClickHouseSignalStore) SetLogger(l *applogger.Logger) { s.l = l }

var schemaStmts = []string{
	`CREATE TABLE IF NOT EXISTS pairscout.signals (
        pair             LowCardinality(String),
        direction        LowCardinality(String),
        z_score          Float64,
        correlation      Float64,
        confidence       Float64,
        spread_at_signal Float64,
        sample_count     UInt32,
        created_at       DateTime64(3),
        expires_at       DateTime64(3)
    ) ENGINE = MergeTree()
    PARTITION BY toYYYYMM(created_at)
    ORDER BY (pair, created_at)`,
	`CREATE TABLE IF NOT EXISTS pairscout.audit_events (
        type       LowCardinality(String),
        instrument LowCardinality(String),
        pair       LowCardinality(String),
        reason     String,
        at         DateTime64(3)
    ) ENGINE = MergeTree()
    PARTITION BY toYYYYMM(at)
    ORDER BY (type, at)`,
	`CREATE TABLE IF NOT EXISTS pairscout.error_logs (
        level      LowCardinality(String),
        message    String,
        fields     String,
        caller     String,
        count      UInt32,
        first_seen DateTime64(3),
        last_seen  DateTime64(3)
    ) ENGINE = MergeTree()
    PARTITION BY toYYYYMM(last_seen)
    ORDER BY (level, last_seen)`,
}

// Init creates the signal and audit tables if they do not exist.
func (s *ClickHouseSignalStore) Init(ctx context.Context) error {
	for _, stmt := range schemaStmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *ClickHouseSignalStore) StoreSignal(ctx context.Context, sig *models.Signal) error {
	const q = `INSERT INTO pairscout.signals
        (pair, direction, z_score, correlation, confidence, spread_at_signal, sample_count, created_at, expires_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		sig.Pair,
		string(sig.Direction),
		sig.ZScore,
		sig.Correlation,
		sig.Confidence,
		sig.SpreadAtSignal,
		uint32(sig.SampleCount),
		sig.CreatedAt,
		sig.ExpiresAt,
	)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse store_signal error",
				applogger.String("pair", sig.Pair),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("store signal: %w", err)
	}
	return nil
}

func (s *ClickHouseSignalStore) StoreEvent(ctx context.Context, ev *models.AuditEvent) error {
	const q = `INSERT INTO pairscout.audit_events
        (type, instrument, pair, reason, at)
        VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		string(ev.Type),
		ev.Instrument,
		ev.Pair,
		ev.Reason,
		ev.At,
	)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse store_event error",
				applogger.String("type", string(ev.Type)),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("store audit event: %w", err)
	}
	return nil
}

func (s *ClickHouseSignalStore) QuerySignals(ctx context.Context, pair string, from, to time.Time, limit int) ([]models.Signal, error) {
	start := time.Now()
	const q = `
        SELECT pair, direction, z_score, correlation, confidence, spread_at_signal, sample_count, created_at, expires_at
        FROM pairscout.signals
        WHERE pair = ? AND created_at >= ? AND created_at <= ?
        ORDER BY created_at DESC
        LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, pair, from, to, limit)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse query_signals error",
				applogger.String("pair", pair),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	out := make([]models.Signal, 0, limit)
	for rows.Next() {
		var (
			sig       models.Signal
			direction string
			samples   uint32
		)
		if err := rows.Scan(&sig.Pair, &direction, &sig.ZScore, &sig.Correlation,
			&sig.Confidence, &sig.SpreadAtSignal, &samples, &sig.CreatedAt, &sig.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		sig.Direction = models.Direction(direction)
		sig.SampleCount = int(samples)
		out = append(out, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse query_signals ok",
			applogger.String("pair", pair),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

// StoreErrorLogs lands a batch of aggregated warn/error log entries.
func (s *ClickHouseSignalStore) StoreErrorLogs(ctx context.Context, entries []applogger.AggregatedLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	values := make([]string, 0, len(entries))
	args := make([]interface{}, 0, len(entries)*7)
	for _, e := range entries {
		fields, err := json.Marshal(e.Fields)
		if err != nil {
			fields = []byte("{}")
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
		args = append(args, e.Level, e.Message, string(fields), e.Caller, uint32(e.Count), e.FirstSeen, e.LastSeen)
	}
	q := "INSERT INTO pairscout.error_logs (level, message, fields, caller, count, first_seen, last_seen) VALUES " +
		strings.Join(values, ",")
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("store error logs: %w", err)
	}
	return nil
}

func (s *ClickHouseSignalStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseSignalStore) Close() error {
	return nil // connection owned by pkg client
}
