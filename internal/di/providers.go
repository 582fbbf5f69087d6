package di

import (
	"context"
	"fmt"
	"time"

	"PairScout/internal/domain/repository"
	"PairScout/internal/engine"
	"PairScout/internal/handler/api"
	mid "PairScout/internal/middleware"
	internalrepo "PairScout/internal/repository"
	icache "PairScout/internal/service/cache"
	"PairScout/internal/service/hyperliquid"
	"PairScout/internal/usecase"
	pkgcache "PairScout/pkg/cache"
	pkgch "PairScout/pkg/clickhouse"
	"PairScout/pkg/config"
	xhttp "PairScout/pkg/http"
	pkgkafka "PairScout/pkg/kafka"
	applogger "PairScout/pkg/logger"
	"PairScout/pkg/metrics"
	pkgqueue "PairScout/pkg/queue"
	"PairScout/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when the cold
// store is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS pairscout",
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideSignalStore creates the ClickHouse cold store, or nil when disabled.
func ProvideSignalStore(chClient *pkgch.Client, logger *applogger.Logger) (repository.SignalStore, error) {
	if chClient == nil {
		return nil, nil
	}
	store := internalrepo.NewClickHouseSignalStore(chClient)
	if s, ok := store.(interface{ SetLogger(*applogger.Logger) }); ok {
		s.SetLogger(logger)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("signal store init: %w", err)
	}
	return store, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideAuditPublisher creates the Kafka audit publisher, or nil when
// Kafka is disabled.
func ProvideAuditPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.AuditPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaAuditPublisher(producer, cfg.Kafka.AuditTopic)
}

// ProvideRedisCache creates the shared Redis client, or nil when disabled.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	prefix := cfg.Redis.Prefix
	if prefix == "" {
		prefix = "pairscout"
	}
	cache, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(cfg.Redis.Host),
		pkgcache.WithRedisPort(cfg.Redis.Port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
		pkgcache.WithRedisPrefix(prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return cache, nil
}

// ProvideHotStore creates the Redis hot store, or nil when disabled.
func ProvideHotStore(cache *pkgcache.RedisCache) repository.HotStore {
	if cache == nil {
		return nil
	}
	return internalrepo.NewRedisHotStore(cache)
}

// ProvideRedisQueue creates the async persistence queue. It requires both
// Redis (transport) and the cold store (destination); otherwise nil.
func ProvideRedisQueue(
	cache *pkgcache.RedisCache,
	store repository.SignalStore,
	logger *applogger.Logger,
	cfg *config.Config,
) *pkgqueue.RedisQueue {
	if cache == nil || store == nil {
		return nil
	}
	jobs := []pkgqueue.Job{
		usecase.NewPersistSignalJob(store),
		usecase.NewPersistEventJob(store),
	}
	if els, ok := store.(usecase.ErrorLogStore); ok {
		jobs = append(jobs, usecase.NewErrorLogsJob(els))
	}
	return pkgqueue.NewRedisConsumer(logger, &pkgqueue.QueueConfig{
		Workers:    cfg.Redis.QueueWorkers,
		RetryLimit: cfg.Redis.RetryLimit,
		RetryDelay: cfg.Redis.RetryDelay,
	}, cache.Client(), jobs, pkgqueue.WithKeyPrefix("pairscout:queue"))
}

// ProvideKafkaConsumer creates the audit topic consumer when enabled.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideAuditEventsHandler creates the consumer handler for audit events.
func ProvideAuditEventsHandler(store repository.SignalStore, logger *applogger.Logger, cfg *config.Config) *usecase.AuditEventsHandler {
	if store == nil || !cfg.Kafka.Consumer.Enabled {
		return nil
	}
	return usecase.NewAuditEventsHandler(cfg.Kafka.AuditTopic, store, logger)
}

// ProvideEngine creates the detection engine from config.
func ProvideEngine(cfg *config.Config, m repository.Metrics, logger *applogger.Logger) *engine.Engine {
	return engine.New(engine.Config{
		Instruments:    cfg.Engine.Instruments,
		WindowCapacity: cfg.Engine.WindowCapacity,
		SpreadWindow:   cfg.Engine.SpreadWindow,
		CorrWindow:     cfg.Engine.CorrWindow,
		MinSamples:     cfg.Engine.MinSamples,
		ZThreshold:     cfg.Engine.ZThreshold,
		CorrThreshold:  cfg.Engine.CorrThreshold,
		MinConfidence:  cfg.Engine.MinConfidence,
		SignalTTL:      cfg.Engine.SignalTTL,
		StaleGap:       cfg.Engine.StaleGap,
		TickTolerance:  cfg.Engine.TickTolerance,
	}, m, logger)
}

// ProvideAuditDispatcher creates the event fan-out and wires it as the
// engine sink. When the audit topic has no consumer in this deployment the
// dispatcher persists events directly.
func ProvideAuditDispatcher(
	eng *engine.Engine,
	publisher repository.AuditPublisher,
	hot repository.HotStore,
	store repository.SignalStore,
	rq *pkgqueue.RedisQueue,
	m repository.Metrics,
	logger *applogger.Logger,
	cfg *config.Config,
) *usecase.AuditDispatcher {
	opts := []usecase.DispatcherOption{}
	if publisher == nil || !cfg.Kafka.Consumer.Enabled {
		// Nothing downstream consumes the topic, so persist from here:
		// through the queue when available, synchronously otherwise.
		if rq != nil {
			opts = append(opts, usecase.WithQueue(rq))
		} else if store != nil {
			opts = append(opts, usecase.WithColdStore(store))
		}
	}
	d := usecase.NewAuditDispatcher(publisher, hot, m, logger, opts...)
	eng.SetSink(d)
	return d
}

// ProvideMarketStream creates the Hyperliquid WebSocket stream.
func ProvideMarketStream(cfg *config.Config, logger *applogger.Logger) repository.MarketStream {
	return hyperliquid.New(
		cfg.Feed.WebSocketURL,
		cfg.Feed.InfoURL,
		cfg.Engine.Instruments,
		cfg.Feed.ReconnectDelay,
		cfg.Feed.PingInterval,
		logger,
	)
}

// ProvideTickProcessor creates the tick processor use case.
func ProvideTickProcessor(eng *engine.Engine, hot repository.HotStore, m repository.Metrics) *usecase.TickProcessor {
	return usecase.NewTickProcessor(eng, hot, m)
}

// ProvideTickCollector creates the tick collector with its ingest pipeline.
func ProvideTickCollector(
	stream repository.MarketStream,
	processor *usecase.TickProcessor,
	m repository.Metrics,
	logger *applogger.Logger,
	cfg *config.Config,
) *usecase.TickCollector {
	pipe := mid.NewIngestPipeline(processor, m,
		mid.WithQueueSize(cfg.Pipeline.QueueSize),
		mid.WithMaxPerSecond(cfg.Pipeline.MaxPerSecond),
	)
	return usecase.NewTickCollector(stream, processor, pipe, m, logger)
}

// ProvideHTTPHandler creates the engine API handler. Response bytes are
// cached in Redis when available, in-process otherwise; history queries get
// a layered (memory + Redis) cache in front of ClickHouse.
func ProvideHTTPHandler(
	collector *usecase.TickCollector,
	store repository.SignalStore,
	redisCache *pkgcache.RedisCache,
	cfg *config.Config,
	logger *applogger.Logger,
) xhttp.Handler {
	eh := api.NewEngineHandler(collector, logger)
	if cfg.API.CacheTTL > 0 {
		eh.SetCacheTTL(cfg.API.CacheTTL)
	}

	if cfg.Redis.Enabled {
		eh.SetCache(icache.NewRedisCache(icache.RedisConfig{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}))
	} else {
		eh.SetCache(icache.NewTTLCache())
	}

	if store != nil {
		var hist pkgcache.Service
		if redisCache != nil {
			hist = pkgcache.NewLayeredCache(redisCache, pkgcache.WithLayeredMemorySize(512))
		} else {
			hist = pkgcache.NewMemoryCache()
		}
		eh.SetHistoryStore(store, hist)
	}
	return eh
}

// ProvideApp creates the application server. When the queue is available
// the logger's collector ships aggregated warn/error batches through it.
func ProvideApp(
	cfg *config.Config,
	collector *usecase.TickCollector,
	dispatcher *usecase.AuditDispatcher,
	consumer *pkgkafka.Consumer,
	kh *usecase.AuditEventsHandler,
	rq *pkgqueue.RedisQueue,
	chClient *pkgch.Client,
	httpHandler xhttp.Handler,
	logger *applogger.Logger,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	var mh pkgkafka.MessageHandler
	if kh != nil {
		mh = kh
	}
	if rq != nil {
		logger.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          usecase.MsgErrorLogs,
			Publisher:      rq,
		})
	}
	app := server.New(cfg, collector, dispatcher, consumer, mh, rq, chClient)
	app.SetHTTPHandler(httpHandler)
	return app
}
