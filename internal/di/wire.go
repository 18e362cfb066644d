//go:build wireinject
// +build wireinject

package di

import (
	"stockpulse/pkg/config"
	"stockpulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvidePostgres,
		ProvideCache,

		// Repositories
		ProvideMarketStore,
		ProvidePredictionRepository,
		ProvideSymbolRepository,
		ProvideWatchlistRepository,
		ProvideTenantRepository,
		ProvideConfigRepository,
		ProvidePerformanceRepository,
		ProvideArtifactStore,
		ProvideNotifier,

		// Services
		ProvideTenantConfig,
		ProvideModelCache,
		ProvideLoader,
		ProvideSessionFactory,
		ProvideVerifier,
		ProvidePredictionService,

		// Use cases
		ProvideBatch,
		ProvideStatusRegistry,
		ProvidePipeline,

		// HTTP
		ProvidePredictionsHandler,
		ProvideBatchHandler,
		ProvideRouter,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
