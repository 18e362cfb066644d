package tenantcfg

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"stockpulse/internal/domain/models"
	"stockpulse/internal/domain/repository"
	"stockpulse/internal/ml"
	"stockpulse/pkg/cache"
	"stockpulse/pkg/logger"
)

// Tenant-overridable configuration keys.
const (
	KeyStrongMoveThreshold           = "STRONG_MOVE_THRESHOLD"
	KeyMaxDays                       = "MAX_DAYS"
	KeyModelType                     = "MODEL_TYPE"
	KeyStrongMoveConfidenceThreshold = "STRONG_MOVE_CONFIDENCE_THRESHOLD"
)

// Static defaults, used when a tenant has no override.
const (
	DefaultStrongMoveThreshold           = 3.0
	DefaultMaxDays                       = 5
	DefaultModelType                     = string(ml.KindGradientBoost)
	DefaultStrongMoveConfidenceThreshold = 0.5
)

// Service resolves tenant-scoped configuration with static fallbacks.
// Resolved values are cached with a short TTL.
type Service struct {
	repo   repository.ConfigRepository
	cache  cache.Service
	ttl    time.Duration
	logger *logger.Logger
}

// New creates the config service.
func New(repo repository.ConfigRepository, c cache.Service, ttl time.Duration, log *logger.Logger) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{repo: repo, cache: c, ttl: ttl, logger: log}
}

// StrongMoveThreshold returns the tenant's strong-move threshold in percent.
func (s *Service) StrongMoveThreshold(ctx context.Context, tenantID int64) float64 {
	if v, ok := s.float(ctx, tenantID, KeyStrongMoveThreshold); ok {
		return v
	}
	return DefaultStrongMoveThreshold
}

// MaxDays returns the tenant's fulfillment window in trading days.
func (s *Service) MaxDays(ctx context.Context, tenantID int64) int {
	if v, ok := s.int(ctx, tenantID, KeyMaxDays); ok && v > 0 {
		return int(v)
	}
	return DefaultMaxDays
}

// ConfidenceThreshold returns the move-confidence gate for direction
// classification.
func (s *Service) ConfidenceThreshold(ctx context.Context, tenantID int64) float64 {
	if v, ok := s.float(ctx, tenantID, KeyStrongMoveConfidenceThreshold); ok {
		return v
	}
	return DefaultStrongMoveConfidenceThreshold
}

// ModelKind returns the tenant's configured classifier kind. A
// configured value outside the registry is an error, never a silent
// substitution.
func (s *Service) ModelKind(ctx context.Context, tenantID int64) (ml.Kind, error) {
	raw, ok := s.str(ctx, tenantID, KeyModelType)
	if !ok {
		raw = DefaultModelType
	}
	kind, err := ml.ParseKind(raw)
	if err != nil {
		return "", fmt.Errorf("tenant %d: %w", tenantID, err)
	}
	return kind, nil
}

// ModelParams layers the tenant's hyperparameter overrides (keys like
// GRADIENT_BOOST_N_ESTIMATORS) over the kind's static defaults.
func (s *Service) ModelParams(ctx context.Context, tenantID int64, kind ml.Kind) ml.Params {
	params := ml.DefaultParams(kind)
	prefix := hyperPrefix(kind)

	if v, ok := s.int(ctx, tenantID, prefix+"_N_ESTIMATORS"); ok && v > 0 {
		params.NEstimators = int(v)
	}
	if v, ok := s.int(ctx, tenantID, prefix+"_MAX_DEPTH"); ok && v > 0 {
		params.MaxDepth = int(v)
	}
	if v, ok := s.float(ctx, tenantID, prefix+"_LEARNING_RATE"); ok && v > 0 {
		params.LearningRate = v
	}
	return params
}

func hyperPrefix(kind ml.Kind) string {
	switch kind {
	case ml.KindRandomForest:
		return "RANDOM_FOREST"
	default:
		return "GRADIENT_BOOST"
	}
}

func (s *Service) float(ctx context.Context, tenantID int64, key string) (float64, bool) {
	p := s.lookup(ctx, tenantID, key)
	if p == nil {
		return 0, false
	}
	switch {
	case p.FloatValue != nil:
		return *p.FloatValue, true
	case p.IntValue != nil:
		return float64(*p.IntValue), true
	case p.StringValue != nil:
		if v, err := strconv.ParseFloat(*p.StringValue, 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

func (s *Service) int(ctx context.Context, tenantID int64, key string) (int64, bool) {
	p := s.lookup(ctx, tenantID, key)
	if p == nil {
		return 0, false
	}
	switch {
	case p.IntValue != nil:
		return *p.IntValue, true
	case p.FloatValue != nil:
		return int64(*p.FloatValue), true
	case p.StringValue != nil:
		if v, err := strconv.ParseInt(*p.StringValue, 10, 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

func (s *Service) str(ctx context.Context, tenantID int64, key string) (string, bool) {
	p := s.lookup(ctx, tenantID, key)
	if p == nil || p.StringValue == nil {
		return "", false
	}
	return *p.StringValue, true
}

func (s *Service) lookup(ctx context.Context, tenantID int64, key string) *models.ConfigParam {
	cacheKey := fmt.Sprintf("cfg:%d:%s", tenantID, key)

	if s.cache != nil {
		var cached models.ConfigParam
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached
		}
	}

	p, err := s.repo.Get(ctx, tenantID, key)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) && s.logger != nil {
			s.logger.Warn("config lookup failed",
				logger.Int64("tenant_id", tenantID),
				logger.String("key", key),
				logger.Error(err),
			)
		}
		return nil
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, cacheKey, p, s.ttl)
	}
	return p
}
