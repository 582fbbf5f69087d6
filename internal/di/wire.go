//go:build wireinject
// +build wireinject

package di

import (
	"PairScout/pkg/config"
	"PairScout/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideRedisCache,
		ProvideKafkaConsumer,

		// Repositories
		ProvideSignalStore,
		ProvideAuditPublisher,
		ProvideHotStore,
		ProvideRedisQueue,
		ProvideMarketStream,

		// Engine and use cases
		ProvideEngine,
		ProvideAuditDispatcher,
		ProvideAuditEventsHandler,
		ProvideTickProcessor,
		ProvideTickCollector,
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
