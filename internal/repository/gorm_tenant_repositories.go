package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"stockpulse/internal/domain/models"
	domrepo "stockpulse/internal/domain/repository"
)

// GormTenantRepository reads tenants.
type GormTenantRepository struct {
	db *gorm.DB
}

func NewGormTenantRepository(db *gorm.DB) *GormTenantRepository {
	return &GormTenantRepository{db: db}
}

func (r *GormTenantRepository) Get(ctx context.Context, id int64) (*models.Tenant, error) {
	var t models.Tenant
	err := r.db.WithContext(ctx).Where("id = ? AND active = ?", id, true).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domrepo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load tenant: %w", err)
	}
	return &t, nil
}

// GormSymbolRepository reads the global symbol master.
type GormSymbolRepository struct {
	db *gorm.DB
}

func NewGormSymbolRepository(db *gorm.DB) *GormSymbolRepository {
	return &GormSymbolRepository{db: db}
}

func (r *GormSymbolRepository) Get(ctx context.Context, id int64) (*models.Symbol, error) {
	var s models.Symbol
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domrepo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load symbol: %w", err)
	}
	return &s, nil
}

func (r *GormSymbolRepository) ActiveEligibleIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&models.Symbol{}).
		Where("active = ? AND fno_eligible = ?", true, true).
		Order("id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("load eligible symbols: %w", err)
	}
	return ids, nil
}

// GormWatchlistRepository reads tenant symbol subscriptions.
type GormWatchlistRepository struct {
	db *gorm.DB
}

func NewGormWatchlistRepository(db *gorm.DB) *GormWatchlistRepository {
	return &GormWatchlistRepository{db: db}
}

func (r *GormWatchlistRepository) ActiveSymbolIDs(ctx context.Context, tenantID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&models.TenantSymbol{}).
		Where("tenant_id = ? AND active = ?", tenantID, true).
		Order("priority DESC, symbol_id ASC").
		Pluck("symbol_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("load watchlist: %w", err)
	}
	return ids, nil
}

// GormConfigRepository reads tenant-scoped configuration parameters.
type GormConfigRepository struct {
	db *gorm.DB
}

func NewGormConfigRepository(db *gorm.DB) *GormConfigRepository {
	return &GormConfigRepository{db: db}
}

func (r *GormConfigRepository) Get(ctx context.Context, tenantID int64, key string) (*models.ConfigParam, error) {
	var p models.ConfigParam
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND key = ?", tenantID, key).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domrepo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load config param: %w", err)
	}
	return &p, nil
}

// GormPerformanceRepository appends and reads model evaluation history.
// Records are append-only; there is no update path.
type GormPerformanceRepository struct {
	db *gorm.DB
}

func NewGormPerformanceRepository(db *gorm.DB) *GormPerformanceRepository {
	return &GormPerformanceRepository{db: db}
}

func (r *GormPerformanceRepository) Append(ctx context.Context, rec *models.ModelPerformance) error {
	rec.ID = 0
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("append performance record: %w", err)
	}
	return nil
}

func (r *GormPerformanceRepository) History(ctx context.Context, tenantID, symbolID int64, limit int) ([]models.ModelPerformance, error) {
	var out []models.ModelPerformance
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND symbol_id = ?", tenantID, symbolID).
		Order("evaluation_date DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("load performance history: %w", err)
	}
	return out, nil
}
