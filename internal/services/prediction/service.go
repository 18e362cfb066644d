package prediction

import (
	"context"
	"fmt"
	"time"

	"stockpulse/internal/domain/models"
	"stockpulse/internal/domain/repository"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Service is the read side of the prediction store: listings, stats and
// model performance history, always scoped to one tenant.
type Service struct {
	predictions repository.PredictionRepository
	performance repository.PerformanceRepository
}

// New creates the query service.
func New(predictions repository.PredictionRepository, performance repository.PerformanceRepository) *Service {
	return &Service{predictions: predictions, performance: performance}
}

// Latest returns the most recent prediction for one symbol.
func (s *Service) Latest(ctx context.Context, tenantID, symbolID int64) (*models.Prediction, error) {
	return s.predictions.Latest(ctx, tenantID, symbolID)
}

// List returns a filtered page of predictions and the total match count.
// The limit is defaulted and clamped.
func (s *Service) List(ctx context.Context, tenantID int64, f repository.PredictionFilter) ([]models.Prediction, int64, error) {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.predictions.List(ctx, tenantID, f)
}

// Stats summarizes verification outcomes over [from, to]. A zero range
// defaults to the trailing 30 days.
func (s *Service) Stats(ctx context.Context, tenantID int64, from, to time.Time) (*models.PredictionStats, error) {
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}
	if from.After(to) {
		return nil, fmt.Errorf("invalid range: from %s is after to %s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	}
	return s.predictions.Stats(ctx, tenantID, from, to)
}

// AccuracyTrend returns the per-day accuracy series over the trailing
// days window.
func (s *Service) AccuracyTrend(ctx context.Context, tenantID int64, days int) ([]models.AccuracyPoint, error) {
	if days <= 0 {
		days = 30
	}
	if days > 365 {
		days = 365
	}
	return s.predictions.AccuracyTrend(ctx, tenantID, days)
}

// PerformanceHistory returns the append-only evaluation records for one
// symbol, most recent first.
func (s *Service) PerformanceHistory(ctx context.Context, tenantID, symbolID int64, limit int) ([]models.ModelPerformance, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.performance.History(ctx, tenantID, symbolID, limit)
}
