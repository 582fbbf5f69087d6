package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"PairScout/internal/domain/models"
	domrepo "PairScout/internal/domain/repository"
	pkgcache "PairScout/pkg/cache"
)

const (
	hotPriceTTL  = 5 * time.Minute
	hotSignalTTL = 25 * time.Hour // just past the longest signal TTL
	auditLogKey  = "pairscout:audit:log"
	auditLogCap  = 1000
)

// RedisHotStore mirrors the latest engine output into Redis for external
// readers (dashboards, other services) that must not touch the engine.
type RedisHotStore struct {
	cache *pkgcache.RedisCache
}

// NewRedisHotStore creates a hot store over an existing Redis cache.
func NewRedisHotStore(cache *pkgcache.RedisCache) domrepo.HotStore {
	return &RedisHotStore{cache: cache}
}

type hotPrice struct {
	Price float64   `json:"price"`
	At    time.Time `json:"at"`
}

func (s *RedisHotStore) SetPrice(ctx context.Context, instrument string, price float64, at time.Time) error {
	key := fmt.Sprintf("price:%s", instrument)
	if err := s.cache.Set(ctx, key, hotPrice{Price: price, At: at}, hotPriceTTL); err != nil {
		return fmt.Errorf("set price %s: %w", instrument, err)
	}
	return nil
}

func (s *RedisHotStore) SetSignal(ctx context.Context, sig *models.Signal) error {
	key := fmt.Sprintf("signal:%s", sig.Pair)
	ttl := time.Until(sig.ExpiresAt)
	if ttl <= 0 {
		ttl = hotSignalTTL
	}
	if err := s.cache.Set(ctx, key, sig, ttl); err != nil {
		return fmt.Errorf("set signal %s: %w", sig.Pair, err)
	}
	return nil
}

// AppendLog pushes the event onto a capped list so the most recent audit
// trail is browsable without the cold store.
func (s *RedisHotStore) AppendLog(ctx context.Context, ev *models.AuditEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	client := s.cache.Client()
	pipe := client.Pipeline()
	pipe.LPush(ctx, auditLogKey, payload)
	pipe.LTrim(ctx, auditLogKey, 0, auditLogCap-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append audit log: %w", err)
	}
	return nil
}

func (s *RedisHotStore) Close() error {
	return nil // connection owned by pkg cache
}
