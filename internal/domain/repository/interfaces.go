package repository

import (
	"context"
	"time"

	"stockpulse/internal/domain/models"
)

// MarketStore is the append-only EOD and feature series storage.
type MarketStore interface {
	Init(ctx context.Context) error // ensure tables exist
	EODRange(ctx context.Context, symbolID int64, from, to time.Time) ([]models.EODBar, error)
	EODAfter(ctx context.Context, symbolID int64, after time.Time, limit int) ([]models.EODBar, error)
	EODDates(ctx context.Context, symbolID int64) ([]time.Time, error)
	Closes(ctx context.Context, symbolID int64, from, to time.Time) ([]models.ClosePoint, error)
	InsertEOD(ctx context.Context, bars []models.EODBar) error

	FeatureDates(ctx context.Context, symbolID int64) ([]time.Time, error)
	FeatureRange(ctx context.Context, symbolID int64, from, to time.Time) ([]models.FeatureRow, error)
	LatestFeature(ctx context.Context, symbolID int64) (*models.FeatureRow, error)
	InsertFeatures(ctx context.Context, rows []models.FeatureRow) error

	Health(ctx context.Context) error
	Close() error
}

// PredictionRepository owns the mutable prediction rows.
type PredictionRepository interface {
	Replace(ctx context.Context, p *models.Prediction) error // delete-then-insert for (tenant, symbol, date)
	Unprocessed(ctx context.Context, tenantID int64, olderThan time.Time) ([]models.Prediction, error)
	UpdateVerification(ctx context.Context, preds []models.Prediction) error
	Latest(ctx context.Context, tenantID, symbolID int64) (*models.Prediction, error)
	List(ctx context.Context, tenantID int64, f PredictionFilter) ([]models.Prediction, int64, error)
	Stats(ctx context.Context, tenantID int64, from, to time.Time) (*models.PredictionStats, error)
	AccuracyTrend(ctx context.Context, tenantID int64, days int) ([]models.AccuracyPoint, error)
}

// PredictionFilter narrows prediction listings.
type PredictionFilter struct {
	SymbolID      *int64
	Date          *time.Time
	Verified      *bool
	Direction     *models.Direction
	MinConfidence *float64
	Limit         int
	Offset        int
}

// SymbolRepository reads the global symbol master.
type SymbolRepository interface {
	Get(ctx context.Context, id int64) (*models.Symbol, error)
	ActiveEligibleIDs(ctx context.Context) ([]int64, error) // active + F&O-eligible universe
}

// WatchlistRepository reads tenant symbol subscriptions.
type WatchlistRepository interface {
	ActiveSymbolIDs(ctx context.Context, tenantID int64) ([]int64, error)
}

// TenantRepository reads tenants.
type TenantRepository interface {
	Get(ctx context.Context, id int64) (*models.Tenant, error)
}

// ConfigRepository reads tenant-scoped configuration parameters.
type ConfigRepository interface {
	Get(ctx context.Context, tenantID int64, key string) (*models.ConfigParam, error)
}

// PerformanceRepository appends model evaluation history.
type PerformanceRepository interface {
	Append(ctx context.Context, rec *models.ModelPerformance) error
	History(ctx context.Context, tenantID, symbolID int64, limit int) ([]models.ModelPerformance, error)
}

// ArtifactStore persists serialized model artifacts keyed by
// (tenant, symbol, model type). Exactly one active artifact per key.
type ArtifactStore interface {
	Save(ctx context.Context, tenantID, symbolID int64, modelType models.ModelType, data []byte) error
	Load(ctx context.Context, tenantID, symbolID int64, modelType models.ModelType) ([]byte, error) // ErrArtifactNotFound when absent
}

// Notifier emits pipeline/batch lifecycle status events.
type Notifier interface {
	NotifyStatus(ctx context.Context, event StatusEvent) error
}

// StatusEvent is one well-formed lifecycle notification.
type StatusEvent struct {
	TenantID  int64     `json:"tenant_id"`
	Task      string    `json:"task"`
	State     string    `json:"state"`
	Step      string    `json:"step,omitempty"`
	Progress  float64   `json:"progress"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Metrics records operational measurements.
type Metrics interface {
	RecordTraining(tenant, modelType, result string)
	RecordPrediction(tenant, direction string)
	RecordVerification(tenant, outcome string)
	RecordError(kind string)
	RecordCacheEvent(event string)
	RecordModelAccuracy(tenant, symbol, modelType string, accuracy float64)
	RecordBatchDuration(stage string, seconds float64)
}
