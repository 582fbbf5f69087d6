package api

import (
	"encoding/json"
	"time"

	"PairScout/internal/domain/models"
	drepo "PairScout/internal/domain/repository"
	icache "PairScout/internal/service/cache"
	"PairScout/internal/service/metrics"
	"PairScout/internal/service/ratelimit"
	"PairScout/internal/usecase"
	pkgcache "PairScout/pkg/cache"
	xhttp "PairScout/pkg/http"
	applogger "PairScout/pkg/logger"
	"PairScout/pkg/util"

	"github.com/labstack/echo/v4"
)

// EngineHandler exposes the engine's read surface over HTTP. Responses are
// served from a short-TTL cache so bursty polling never contends with
// ingestion for the snapshot lock.
type EngineHandler struct {
	collector *usecase.TickCollector
	cache     icache.BytesCache
	cacheTTL  time.Duration
	rl        *ratelimit.Limiter
	logger    *applogger.Logger

	store     drepo.SignalStore
	histCache pkgcache.Service
}

// NewEngineHandler creates the handler for the engine API.
func NewEngineHandler(collector *usecase.TickCollector, logger *applogger.Logger) *EngineHandler {
	metrics.Register()
	return &EngineHandler{
		collector: collector,
		cacheTTL:  2 * time.Second,
		rl:        ratelimit.New(),
		logger:    logger,
	}
}

// SetCache injects a response cache.
func (h *EngineHandler) SetCache(c icache.BytesCache) { h.cache = c }

// SetCacheTTL overrides the response cache TTL.
func (h *EngineHandler) SetCacheTTL(ttl time.Duration) {
	if ttl > 0 {
		h.cacheTTL = ttl
	}
}

// SetHistoryStore enables /api/signals/history backed by the cold store,
// with a cache in front of ClickHouse queries.
func (h *EngineHandler) SetHistoryStore(store drepo.SignalStore, cache pkgcache.Service) {
	h.store = store
	h.histCache = cache
}

func (h *EngineHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/signals", h.Signals)
	g.GET("/signals/history", h.SignalsHistory)
	g.GET("/markets", h.Markets)
	g.GET("/correlations", h.Correlations)
	g.GET("/spread/history", h.SpreadHistory)
	g.GET("/snapshot", h.Snapshot)
	e.GET("/healthz", h.Healthz)
}

// Signals returns currently active signals, highest confidence first.
func (h *EngineHandler) Signals(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.APILatency.WithLabelValues("signals").Observe(time.Since(start).Seconds()) }()

	req := &models.SignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":signals", 10, 5) {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("rate_limited", "", "too many requests", 429))
	}

	signals := h.collector.Processor().Engine().Signals(req.Limit)
	return xhttp.SuccessResponse(c, signals)
}

// SignalsHistory returns persisted signals for a pair from the cold store.
func (h *EngineHandler) SignalsHistory(c echo.Context) error {
	start := time.Now()
	defer func() {
		metrics.APILatency.WithLabelValues("signals_history").Observe(time.Since(start).Seconds())
	}()

	if h.store == nil {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("unavailable", "", "signal history disabled", 503))
	}
	req := &models.SignalsHistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":history", 5, 2) {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("rate_limited", "", "too many requests", 429))
	}

	now := time.Now()
	from := util.ParseTimeDefault(req.From, now.Add(-24*time.Hour))
	to := util.ParseTimeDefault(req.To, now)

	key := pkgcache.GenerateKeyWithParams("signals_history", req.Pair, from.Unix(), to.Unix(), req.Limit)
	if h.histCache != nil {
		var cached []models.Signal
		if err := h.histCache.Get(c.Request().Context(), key, &cached); err == nil {
			metrics.APICacheHits.WithLabelValues("signals_history").Inc()
			return xhttp.SuccessResponse(c, cached)
		}
	}

	signals, err := h.store.QuerySignals(c.Request().Context(), req.Pair, from, to, req.Limit)
	if err != nil {
		metrics.APIErrors.WithLabelValues("signals_history").Inc()
		h.logger.Error("signal history query failed",
			applogger.String("pair", req.Pair),
			applogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if h.histCache != nil {
		if err := h.histCache.Set(c.Request().Context(), key, signals, 30*time.Second); err != nil {
			h.logger.Warn("signal history cache set failed", applogger.Error(err))
		}
	}
	return xhttp.SuccessResponse(c, signals)
}

// Markets returns the per-instrument market snapshot.
func (h *EngineHandler) Markets(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.APILatency.WithLabelValues("markets").Observe(time.Since(start).Seconds()) }()

	if !h.rl.Allow(c.RealIP()+":markets", 10, 5) {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("rate_limited", "", "too many requests", 429))
	}
	if b, ok := h.cached("markets"); ok {
		return c.JSONBlob(200, b)
	}
	entries := h.collector.Processor().Engine().MarketSnapshot()
	return h.respondCached(c, "markets", entries)
}

// Correlations returns the basket correlation matrix.
func (h *EngineHandler) Correlations(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.APILatency.WithLabelValues("correlations").Observe(time.Since(start).Seconds()) }()

	if !h.rl.Allow(c.RealIP()+":correlations", 10, 5) {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("rate_limited", "", "too many requests", 429))
	}
	if b, ok := h.cached("correlations"); ok {
		return c.JSONBlob(200, b)
	}
	matrix := h.collector.Processor().Engine().CorrelationMatrix()
	return h.respondCached(c, "correlations", matrix)
}

// SpreadHistory returns the buffered spread series for one pair.
func (h *EngineHandler) SpreadHistory(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.APILatency.WithLabelValues("spread_history").Observe(time.Since(start).Seconds()) }()

	req := &models.SpreadHistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":spread", 10, 5) {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("rate_limited", "", "too many requests", 429))
	}

	values, err := h.collector.Processor().Engine().SpreadHistory(req.Pair, req.Limit)
	if err != nil {
		metrics.APIErrors.WithLabelValues("spread_history").Inc()
		h.logger.Warn("spread history request failed",
			applogger.String("pair", req.Pair),
			applogger.Error(err))
		return xhttp.BadRequestResponse(c, xhttp.BadRequestError(err.Error()))
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"pair":   req.Pair,
		"values": values,
	})
}

// Snapshot returns the consistent point-in-time engine view.
func (h *EngineHandler) Snapshot(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.APILatency.WithLabelValues("snapshot").Observe(time.Since(start).Seconds()) }()

	if !h.rl.Allow(c.RealIP()+":snapshot", 5, 2) {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("rate_limited", "", "too many requests", 429))
	}
	if b, ok := h.cached("snapshot"); ok {
		return c.JSONBlob(200, b)
	}
	snap := h.collector.Processor().Engine().Snapshot()
	return h.respondCached(c, "snapshot", snap)
}

// Healthz reports feed connectivity and active signal count.
func (h *EngineHandler) Healthz(c echo.Context) error {
	eng := h.collector.Processor().Engine()
	status := "ok"
	code := 200
	if !h.collector.IsConnected() {
		status = "degraded"
		code = 503
	}
	return c.JSON(code, map[string]interface{}{
		"status":         status,
		"feed_connected": h.collector.IsConnected(),
		"active_signals": len(eng.Signals(0)),
	})
}

func (h *EngineHandler) cached(endpoint string) ([]byte, bool) {
	if h.cache == nil {
		return nil, false
	}
	b, ok, err := h.cache.GetBytes(endpoint)
	if err != nil {
		h.logger.Warn("response cache get failed",
			applogger.String("endpoint", endpoint),
			applogger.Error(err))
		return nil, false
	}
	if ok {
		metrics.APICacheHits.WithLabelValues(endpoint).Inc()
	}
	return b, ok
}

// respondCached stores the full response envelope so cache hits and misses
// return byte-identical bodies.
func (h *EngineHandler) respondCached(c echo.Context, endpoint string, data interface{}) error {
	if h.cache != nil {
		envelope := xhttp.APIResponse{Status: 200, Message: "OK", Data: data}
		if b, err := json.Marshal(envelope); err == nil {
			if err := h.cache.SetBytes(endpoint, b, h.cacheTTL); err != nil {
				h.logger.Warn("response cache set failed",
					applogger.String("endpoint", endpoint),
					applogger.Error(err))
			}
		}
	}
	return xhttp.SuccessResponse(c, data)
}
