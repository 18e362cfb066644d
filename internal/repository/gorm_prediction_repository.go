package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"stockpulse/internal/domain/models"
	domrepo "stockpulse/internal/domain/repository"
)

// GormPredictionRepository implements PredictionRepository on Postgres
// via gorm.
type GormPredictionRepository struct {
	db *gorm.DB
}

// NewGormPredictionRepository creates the repository.
func NewGormPredictionRepository(db *gorm.DB) *GormPredictionRepository {
	return &GormPredictionRepository{db: db}
}

// Replace removes any existing row for the prediction's
// (tenant, symbol, date) key and inserts the new one, atomically.
// Partial fields from a prior run are never retained.
func (r *GormPredictionRepository) Replace(ctx context.Context, p *models.Prediction) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("tenant_id = ? AND symbol_id = ? AND date = ?", p.TenantID, p.SymbolID, p.Date).
			Delete(&models.Prediction{}).Error; err != nil {
			return fmt.Errorf("delete prior prediction: %w", err)
		}
		p.ID = 0
		if err := tx.Create(p).Error; err != nil {
			return fmt.Errorf("insert prediction: %w", err)
		}
		return nil
	})
}

// Unprocessed returns a tenant's predictions dated before olderThan that
// the verifier has not yet settled.
func (r *GormPredictionRepository) Unprocessed(ctx context.Context, tenantID int64, olderThan time.Time) ([]models.Prediction, error) {
	var out []models.Prediction
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND processed = ? AND date < ?", tenantID, false, olderThan).
		Order("date ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("load unprocessed predictions: %w", err)
	}
	return out, nil
}

// UpdateVerification persists verifier outcomes in one transaction.
func (r *GormPredictionRepository) UpdateVerification(ctx context.Context, preds []models.Prediction) error {
	if len(preds) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range preds {
			p := &preds[i]
			err := tx.Model(&models.Prediction{}).
				Where("id = ?", p.ID).
				Updates(map[string]interface{}{
					"verified":            p.Verified,
					"processed":           p.Processed,
					"verification_date":   p.VerificationDate,
					"actual_move_percent": p.ActualMovePercent,
					"actual_direction":    p.ActualDirection,
					"days_to_fulfill":     p.DaysToFulfill,
					"updated_at":          time.Now().UTC(),
				}).Error
			if err != nil {
				return fmt.Errorf("update prediction %d: %w", p.ID, err)
			}
		}
		return nil
	})
}

// Latest returns the most recent prediction for one symbol.
func (r *GormPredictionRepository) Latest(ctx context.Context, tenantID, symbolID int64) (*models.Prediction, error) {
	var p models.Prediction
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND symbol_id = ?", tenantID, symbolID).
		Order("date DESC").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domrepo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load latest prediction: %w", err)
	}
	return &p, nil
}

// List returns a filtered page of a tenant's predictions plus the total
// match count.
func (r *GormPredictionRepository) List(ctx context.Context, tenantID int64, f domrepo.PredictionFilter) ([]models.Prediction, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Prediction{}).Where("tenant_id = ?", tenantID)

	if f.SymbolID != nil {
		q = q.Where("symbol_id = ?", *f.SymbolID)
	}
	if f.Date != nil {
		q = q.Where("date = ?", *f.Date)
	}
	if f.Verified != nil {
		q = q.Where("verified = ?", *f.Verified)
	}
	if f.Direction != nil {
		q = q.Where("direction_prediction = ?", *f.Direction)
	}
	if f.MinConfidence != nil {
		q = q.Where("strong_move_confidence >= ?", *f.MinConfidence)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count predictions: %w", err)
	}

	page := q.Order("date DESC, symbol_id ASC")
	if f.Limit > 0 {
		page = page.Limit(f.Limit)
	}
	if f.Offset > 0 {
		page = page.Offset(f.Offset)
	}
	var out []models.Prediction
	err := page.Find(&out).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list predictions: %w", err)
	}
	return out, total, nil
}

// Stats aggregates verification outcomes over [from, to].
func (r *GormPredictionRepository) Stats(ctx context.Context, tenantID int64, from, to time.Time) (*models.PredictionStats, error) {
	base := r.db.WithContext(ctx).Model(&models.Prediction{}).
		Where("tenant_id = ? AND date >= ? AND date <= ?", tenantID, from, to)

	stats := &models.PredictionStats{}
	type agg struct {
		Total     int64
		Processed int64
		Verified  int64
		Up        int64
		Down      int64
	}
	var a agg
	err := base.Session(&gorm.Session{}).
		Select(`
            COUNT(*) AS total,
            COALESCE(SUM(CASE WHEN processed THEN 1 ELSE 0 END), 0) AS processed,
            COALESCE(SUM(CASE WHEN verified THEN 1 ELSE 0 END), 0) AS verified,
            COALESCE(SUM(CASE WHEN direction_prediction = 'UP' THEN 1 ELSE 0 END), 0) AS up,
            COALESCE(SUM(CASE WHEN direction_prediction = 'DOWN' THEN 1 ELSE 0 END), 0) AS down`).
		Scan(&a).Error
	if err != nil {
		return nil, fmt.Errorf("aggregate prediction stats: %w", err)
	}
	stats.Total = a.Total
	stats.Processed = a.Processed
	stats.Verified = a.Verified
	stats.UpPredictions = a.Up
	stats.DownPredictions = a.Down
	if a.Processed > 0 {
		stats.DirectionAccuracy = float64(a.Verified) / float64(a.Processed)
	}

	var avg sql.NullFloat64
	err = base.Session(&gorm.Session{}).
		Where("verified = ? AND days_to_fulfill IS NOT NULL", true).
		Select("AVG(days_to_fulfill)").
		Scan(&avg).Error
	if err != nil {
		return nil, fmt.Errorf("average days to fulfill: %w", err)
	}
	if avg.Valid {
		v := avg.Float64
		stats.AvgDaysToFulfill = &v
	}
	return stats, nil
}

// AccuracyTrend returns per-day totals and accuracy over the trailing
// days window, oldest first.
func (r *GormPredictionRepository) AccuracyTrend(ctx context.Context, tenantID int64, days int) ([]models.AccuracyPoint, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)

	type row struct {
		Date     time.Time
		Total    int64
		Verified int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&models.Prediction{}).
		Select(`date,
            COUNT(*) AS total,
            SUM(CASE WHEN verified THEN 1 ELSE 0 END) AS verified`).
		Where("tenant_id = ? AND processed = ? AND date >= ?", tenantID, true, since).
		Group("date").
		Order("date ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("accuracy trend: %w", err)
	}

	out := make([]models.AccuracyPoint, len(rows))
	for i, r := range rows {
		out[i] = models.AccuracyPoint{Date: r.Date, Total: r.Total, Verified: r.Verified}
		if r.Total > 0 {
			out[i].Accuracy = float64(r.Verified) / float64(r.Total)
		}
	}
	return out, nil
}
