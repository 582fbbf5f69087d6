package usecase

import (
	"context"
	"time"

	"PairScout/internal/domain/models"
	drepo "PairScout/internal/domain/repository"
	mid "PairScout/internal/middleware"
	applogger "PairScout/pkg/logger"
)

// TickCollector reads ticks from the market stream and drives them through
// the ingest pipeline. It also runs the periodic TTL sweep so signals on
// quiet pairs still expire on time.
type TickCollector struct {
	stream  drepo.MarketStream
	proc    *TickProcessor
	pipe    *mid.IngestPipeline
	metrics drepo.Metrics
	logger  *applogger.Logger

	sweepEvery time.Duration
	doneCh     chan struct{}
}

// NewTickCollector creates a collector over the given stream and pipeline.
func NewTickCollector(
	stream drepo.MarketStream,
	proc *TickProcessor,
	pipe *mid.IngestPipeline,
	metrics drepo.Metrics,
	logger *applogger.Logger,
) *TickCollector {
	return &TickCollector{
		stream:     stream,
		proc:       proc,
		pipe:       pipe,
		metrics:    metrics,
		logger:     logger,
		sweepEvery: time.Second,
		doneCh:     make(chan struct{}),
	}
}

// IsConnected reports whether the market stream is connected.
func (c *TickCollector) IsConnected() bool { return c.stream.IsConnected() }

// Processor returns the underlying processor, used by the HTTP layer.
func (c *TickCollector) Processor() *TickProcessor { return c.proc }

// Start connects, subscribes and launches the consume and sweep loops.
// The loops run until ctx is cancelled or Shutdown is called.
func (c *TickCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	c.pipe.Start(ctx)

	tickCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, tickCh, errCh)
	go c.sweep(ctx)

	c.logger.Info("tick collector started")
	return nil
}

func (c *TickCollector) consume(ctx context.Context, tickCh <-chan *models.PriceTick, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.doneCh:
			return
		case err := <-errCh:
			if err == nil {
				continue
			}
			c.logger.Warn("market stream error, reconnecting", applogger.Error(err))
			c.metrics.RecordError("stream_read")
			if rerr := c.stream.Reconnect(ctx); rerr != nil {
				if ctx.Err() != nil {
					return
				}
				c.logger.Error("market stream reconnect failed", applogger.Error(rerr))
				c.metrics.RecordError("stream_reconnect")
			}
		case t, ok := <-tickCh:
			if !ok {
				return
			}
			c.pipe.Offer(t)
		}
	}
}

// sweep expires overdue signals on a timer, independent of tick arrival,
// so a pair that stops trading still releases its signal at TTL.
func (c *TickCollector) sweep(ctx context.Context) {
	ticker := time.NewTicker(c.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.doneCh:
			return
		case <-ticker.C:
			c.proc.Engine().Sweep()
		}
	}
}

// Shutdown stops the loops, drains the pipeline worker and closes the stream.
func (c *TickCollector) Shutdown(ctx context.Context) error {
	close(c.doneCh)
	c.pipe.Stop()
	err := c.stream.Close()
	c.logger.Info("tick collector stopped")
	return err
}
