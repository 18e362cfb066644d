package di

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	domrepo "stockpulse/internal/domain/repository"
	"stockpulse/internal/handler/api"
	internalrepo "stockpulse/internal/repository"
	"stockpulse/internal/services/featuresync"
	"stockpulse/internal/services/predict"
	"stockpulse/internal/services/prediction"
	"stockpulse/internal/services/tenantcfg"
	"stockpulse/internal/services/train"
	"stockpulse/internal/services/verify"
	"stockpulse/internal/usecase"
	"stockpulse/pkg/cache"
	pkgch "stockpulse/pkg/clickhouse"
	"stockpulse/pkg/config"
	pkgkafka "stockpulse/pkg/kafka"
	applogger "stockpulse/pkg/logger"
	"stockpulse/pkg/metrics"
	pkgpostgres "stockpulse/pkg/postgres"
	"stockpulse/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideMarketStore creates the EOD/feature store and its tables.
func ProvideMarketStore(ch *pkgch.Client, l *applogger.Logger) (domrepo.MarketStore, error) {
	store := internalrepo.NewCHMarketStore(ch, l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("market schema: %w", err)
	}
	return store, nil
}

// ProvidePostgres connects to the relational store.
func ProvidePostgres(cfg *config.Config) (*gorm.DB, error) {
	db, err := pkgpostgres.Connect(
		pkgpostgres.WithHost(cfg.Postgres.Host),
		pkgpostgres.WithPort(cfg.Postgres.Port),
		pkgpostgres.WithDatabase(cfg.Postgres.Database),
		pkgpostgres.WithCredentials(cfg.Postgres.User, cfg.Postgres.Password),
		pkgpostgres.WithSSLMode(cfg.Postgres.SSLMode),
		pkgpostgres.WithMaxConnections(cfg.Postgres.MaxOpenConns, cfg.Postgres.MaxIdleConns),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	return db, nil
}

// ProvideCache picks Redis when enabled, in-process memory otherwise.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(), nil
	}
	c, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return c, nil
}

// ProvideMetrics creates the Prometheus recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvidePredictionRepository creates the predictions repository.
func ProvidePredictionRepository(db *gorm.DB) domrepo.PredictionRepository {
	return internalrepo.NewGormPredictionRepository(db)
}

// ProvideSymbolRepository creates the symbol repository.
func ProvideSymbolRepository(db *gorm.DB) domrepo.SymbolRepository {
	return internalrepo.NewGormSymbolRepository(db)
}

// ProvideWatchlistRepository creates the watchlist repository.
func ProvideWatchlistRepository(db *gorm.DB) domrepo.WatchlistRepository {
	return internalrepo.NewGormWatchlistRepository(db)
}

// ProvideTenantRepository creates the tenant repository.
func ProvideTenantRepository(db *gorm.DB) domrepo.TenantRepository {
	return internalrepo.NewGormTenantRepository(db)
}

// ProvideConfigRepository creates the tenant config repository.
func ProvideConfigRepository(db *gorm.DB) domrepo.ConfigRepository {
	return internalrepo.NewGormConfigRepository(db)
}

// ProvidePerformanceRepository creates the performance repository.
func ProvidePerformanceRepository(db *gorm.DB) domrepo.PerformanceRepository {
	return internalrepo.NewGormPerformanceRepository(db)
}

// ProvideArtifactStore creates the on-disk model artifact store.
func ProvideArtifactStore(cfg *config.Config, l *applogger.Logger) (domrepo.ArtifactStore, error) {
	return internalrepo.NewFSArtifactStore(cfg.Models.Dir, l)
}

// ProvideNotifier creates the Kafka status notifier, or a no-op one
// when no brokers are configured.
func ProvideNotifier(cfg *config.Config, l *applogger.Logger) (domrepo.Notifier, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return internalrepo.NopNotifier{}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.WriteTimeout),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaNotifier(producer, cfg.Kafka.StatusTopic, l), nil
}

// ProvideTenantConfig creates the cached tenant configuration service.
func ProvideTenantConfig(repo domrepo.ConfigRepository, c cache.Service, cfg *config.Config, l *applogger.Logger) *tenantcfg.Service {
	return tenantcfg.New(repo, c, cfg.Models.ConfigCacheTTL, l)
}

// ProvideModelCache creates the shared tenant-qualified model cache.
func ProvideModelCache(cfg *config.Config, m domrepo.Metrics) *predict.ModelCache {
	return predict.NewModelCache(cfg.Models.CacheCapacity, m)
}

// ProvideLoader creates the artifact-backed model loader.
func ProvideLoader(artifacts domrepo.ArtifactStore, l *applogger.Logger) *predict.Loader {
	return predict.NewLoader(artifacts, l)
}

// ProvideSessionFactory builds per-worker batch sessions. Each worker
// gets its own relational session and service instances; the model
// cache and loader stay shared so workers reuse loaded models.
func ProvideSessionFactory(
	cfg *config.Config,
	db *gorm.DB,
	market domrepo.MarketStore,
	artifacts domrepo.ArtifactStore,
	performance domrepo.PerformanceRepository,
	symbols domrepo.SymbolRepository,
	tenants domrepo.TenantRepository,
	tenantConfig *tenantcfg.Service,
	modelCache *predict.ModelCache,
	loader *predict.Loader,
	m domrepo.Metrics,
	l *applogger.Logger,
) usecase.SessionFactory {
	return func(ctx context.Context) (*usecase.BatchSession, func(), error) {
		session := db.Session(&gorm.Session{NewDB: true, Context: ctx})
		predictions := internalrepo.NewGormPredictionRepository(session)

		return &usecase.BatchSession{
			Trainer:   train.New(market, artifacts, performance, tenantConfig, m, l),
			Predictor: predict.NewPredictor(modelCache, loader, market, predictions, symbols, tenants, tenantConfig, m, l),
			Sync:      featuresync.New(market, l, cfg.Pipeline.LookbackDays, cfg.Pipeline.FeatureBatchSize),
		}, func() {}, nil
	}
}

// ProvideBatch creates the batch orchestrator.
func ProvideBatch(
	cfg *config.Config,
	tenants domrepo.TenantRepository,
	symbols domrepo.SymbolRepository,
	watchlists domrepo.WatchlistRepository,
	notifier domrepo.Notifier,
	m domrepo.Metrics,
	l *applogger.Logger,
	sessions usecase.SessionFactory,
) *usecase.Batch {
	return usecase.NewBatch(tenants, symbols, watchlists, notifier, m, l, sessions, cfg.Pipeline.MaxWorkers)
}

// ProvideStatusRegistry creates the in-process task status registry.
func ProvideStatusRegistry() *usecase.StatusRegistry {
	return usecase.NewStatusRegistry()
}

// ProvideVerifier creates the prediction verifier.
func ProvideVerifier(
	predictions domrepo.PredictionRepository,
	market domrepo.MarketStore,
	tenantConfig *tenantcfg.Service,
	m domrepo.Metrics,
	l *applogger.Logger,
) *verify.Service {
	return verify.New(predictions, market, tenantConfig, m, l)
}

// ProvidePipeline creates the end-to-end pipeline use case.
func ProvidePipeline(batch *usecase.Batch, verifier *verify.Service, status *usecase.StatusRegistry, l *applogger.Logger) *usecase.Pipeline {
	return usecase.NewPipeline(batch, verifier, status, l)
}

// ProvidePredictionService creates the prediction query service.
func ProvidePredictionService(predictions domrepo.PredictionRepository, performance domrepo.PerformanceRepository) *prediction.Service {
	return prediction.New(predictions, performance)
}

// ProvidePredictionsHandler creates the predictions API handler.
func ProvidePredictionsHandler(l *applogger.Logger, svc *prediction.Service, verifier *verify.Service) *api.PredictionsHandler {
	return api.NewPredictionsHandler(l, svc, verifier)
}

// ProvideBatchHandler creates the batch API handler.
func ProvideBatchHandler(l *applogger.Logger, batch *usecase.Batch, pipeline *usecase.Pipeline, status *usecase.StatusRegistry) *api.BatchHandler {
	return api.NewBatchHandler(l, batch, pipeline, status)
}

// ProvideRouter composes the API route table.
func ProvideRouter(l *applogger.Logger, predictions *api.PredictionsHandler, batch *api.BatchHandler, market domrepo.MarketStore) *api.Router {
	return api.NewRouter(l, predictions, batch, market)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	router *api.Router,
	market domrepo.MarketStore,
	notifier domrepo.Notifier,
) *server.App {
	return server.New(cfg, l, router, market, notifier)
}
