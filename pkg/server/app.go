package server

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"PairScout/internal/handler/api"
	icache "PairScout/internal/service/cache"
	"PairScout/internal/usecase"
	pkgch "PairScout/pkg/clickhouse"
	"PairScout/pkg/config"
	xhttp "PairScout/pkg/http"
	pkgkafka "PairScout/pkg/kafka"
	applogger "PairScout/pkg/logger"
	pkgqueue "PairScout/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	collector   *usecase.TickCollector
	dispatcher  *usecase.AuditDispatcher
	consumer    *pkgkafka.Consumer
	kh          pkgkafka.MessageHandler
	queue       *pkgqueue.RedisQueue
	chClient    *pkgch.Client
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	collector *usecase.TickCollector,
	dispatcher *usecase.AuditDispatcher,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	queue *pkgqueue.RedisQueue,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:        cfg,
		collector:  collector,
		dispatcher: dispatcher,
		consumer:   consumer,
		kh:         kh,
		queue:      queue,
		chClient:   chClient,
	}
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l, _ := applogger.New(&applogger.Config{
		Level:  a.cfg.Log.Level,
		Format: a.cfg.Log.Format,
		Output: a.cfg.Log.Output,
	})

	httpHandler := a.httpHandler
	if httpHandler == nil {
		eh := api.NewEngineHandler(a.collector, l)
		eh.SetCache(icache.NewTTLCache())
		if a.cfg.API.CacheTTL > 0 {
			eh.SetCacheTTL(a.cfg.API.CacheTTL)
		}
		httpHandler = eh
	}

	a.httpServer = xhttp.NewServer(httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	// Persistence queue and audit fan-out run before the collector so no
	// engine event is lost.
	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			l.Error("queue start error", applogger.Error(err))
			return err
		}
	}
	a.dispatcher.Start(ctx)

	if err := a.collector.Start(ctx); err != nil {
		l.Error("collector start error", applogger.Error(err))
		return err
	}
	l.Info("collector started", applogger.Strings("instruments", a.cfg.Engine.Instruments))

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services, feed side first so the audit
// dispatcher can drain everything the engine emitted.
func (a *App) shutdown(ctx context.Context) error {
	l, err := applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})
	if err != nil {
		log.Printf("failed to create logger: %v", err)
		return err
	}
	l.Info("shutting down...")

	if err := a.collector.Shutdown(ctx); err != nil {
		l.Warn("collector stop error", applogger.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}

	if err := a.dispatcher.Shutdown(shutdownCtx); err != nil {
		l.Warn("audit dispatcher stop error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.queue != nil {
		if err := a.queue.Stop(shutdownCtx); err != nil {
			l.Warn("queue stop error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
	return nil
}
