package predict

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"stockpulse/internal/domain/models"
	"stockpulse/internal/domain/repository"
	"stockpulse/internal/services/tenantcfg"
	"stockpulse/pkg/logger"
)

// ErrNoModel means no trained move model exists for the symbol.
var ErrNoModel = errors.New("predict: no trained model")

// ErrNoFeatures means the symbol has no feature row to score.
var ErrNoFeatures = errors.New("predict: no feature data")

// featureTTL bounds how long a latest-feature row is reused between
// predictions for the same symbol.
const featureTTL = 5 * time.Minute

type featureEntry struct {
	row       *models.FeatureRow
	fetchedAt time.Time
}

// Predictor scores the latest feature row of a symbol with a tenant's
// trained cascade and replaces the prediction row for that date.
type Predictor struct {
	cache       *ModelCache
	loader      *Loader
	market      repository.MarketStore
	predictions repository.PredictionRepository
	symbols     repository.SymbolRepository
	tenants     repository.TenantRepository
	config      *tenantcfg.Service
	metrics     repository.Metrics
	logger      *logger.Logger

	featMu   sync.Mutex
	features map[int64]featureEntry
}

// NewPredictor creates a Predictor.
func NewPredictor(
	cache *ModelCache,
	loader *Loader,
	market repository.MarketStore,
	predictions repository.PredictionRepository,
	symbols repository.SymbolRepository,
	tenants repository.TenantRepository,
	config *tenantcfg.Service,
	metrics repository.Metrics,
	log *logger.Logger,
) *Predictor {
	return &Predictor{
		cache:       cache,
		loader:      loader,
		market:      market,
		predictions: predictions,
		symbols:     symbols,
		tenants:     tenants,
		config:      config,
		metrics:     metrics,
		logger:      log,
		features:    make(map[int64]featureEntry),
	}
}

// InvalidateModels drops the cached cascade for a (tenant, symbol) so
// the next prediction reloads the stored artifacts. Called after a
// retrain replaces them.
func (p *Predictor) InvalidateModels(tenantID, symbolID int64) {
	p.cache.InvalidateSymbol(tenantID, symbolID)
}

// PredictOne generates and persists the prediction for one
// (tenant, symbol) from the symbol's latest feature row. The direction
// stage only runs when the move confidence clears the tenant's
// threshold; below it the direction fields stay unset. The stored row
// for (tenant, symbol, date) is replaced wholesale.
func (p *Predictor) PredictOne(ctx context.Context, tenantID, symbolID int64) (*models.Prediction, error) {
	if _, err := p.tenants.Get(ctx, tenantID); err != nil {
		return nil, fmt.Errorf("tenant %d: %w", tenantID, err)
	}
	if _, err := p.symbols.Get(ctx, symbolID); err != nil {
		return nil, fmt.Errorf("symbol %d: %w", symbolID, err)
	}

	row, err := p.latestFeature(ctx, symbolID)
	if err != nil {
		return nil, err
	}

	moveKey := ModelKey{TenantID: tenantID, SymbolID: symbolID, ModelType: models.ModelTypeMove}
	move, err := p.cache.GetOrLoad(ctx, moveKey, p.loader.Func(moveKey))
	if err != nil {
		return nil, fmt.Errorf("load move model: %w", err)
	}
	if move == nil {
		return nil, fmt.Errorf("%w: tenant=%d symbol=%d", ErrNoModel, tenantID, symbolID)
	}

	moveProb, err := move.Classifier.PredictProba(p.vector(row, move.SelectedFeatures))
	if err != nil {
		return nil, fmt.Errorf("score move model: %w", err)
	}

	pred := &models.Prediction{
		TenantID:             tenantID,
		SymbolID:             symbolID,
		Date:                 row.Date,
		StrongMoveConfidence: moveProb,
	}

	direction := "NONE"
	if moveProb >= p.config.ConfidenceThreshold(ctx, tenantID) {
		dirKey := ModelKey{TenantID: tenantID, SymbolID: symbolID, ModelType: models.ModelTypeDirection}
		dir, err := p.cache.GetOrLoad(ctx, dirKey, p.loader.Func(dirKey))
		if err != nil {
			return nil, fmt.Errorf("load direction model: %w", err)
		}
		if dir != nil {
			dirProb, err := dir.Classifier.PredictProba(p.vector(row, dir.SelectedFeatures))
			if err != nil {
				return nil, fmt.Errorf("score direction model: %w", err)
			}
			d := models.DirectionDown
			conf := 1 - dirProb
			if dirProb >= 0.5 {
				d = models.DirectionUp
				conf = dirProb
			}
			pred.DirectionPrediction = &d
			pred.DirectionConfidence = &conf
			direction = string(d)
		}
	}

	if err := p.predictions.Replace(ctx, pred); err != nil {
		return nil, fmt.Errorf("store prediction: %w", err)
	}

	p.metrics.RecordPrediction(fmt.Sprint(tenantID), direction)
	p.logger.Debug("prediction stored",
		logger.Int64("tenant_id", tenantID),
		logger.Int64("symbol_id", symbolID),
		logger.Time("date", pred.Date),
		logger.Float64("move_confidence", moveProb),
		logger.String("direction", direction),
	)
	return pred, nil
}

// vector aligns the feature row to the model's selected features. An
// unknown name or a NaN value scores as 0.
func (p *Predictor) vector(row *models.FeatureRow, selected []string) []float64 {
	names := selected
	if len(names) == 0 {
		names = models.FeatureNames()
	}
	out := make([]float64, len(names))
	for i, name := range names {
		v, ok := row.Value(name)
		if !ok {
			p.logger.Warn("model references unknown feature, scoring it as 0",
				logger.String("feature", name),
				logger.Int64("symbol_id", row.SymbolID),
			)
			continue
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out[i] = v
	}
	return out
}

func (p *Predictor) latestFeature(ctx context.Context, symbolID int64) (*models.FeatureRow, error) {
	p.featMu.Lock()
	if e, ok := p.features[symbolID]; ok && time.Since(e.fetchedAt) < featureTTL {
		p.featMu.Unlock()
		return e.row, nil
	}
	p.featMu.Unlock()

	row, err := p.market.LatestFeature(ctx, symbolID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: symbol=%d", ErrNoFeatures, symbolID)
		}
		return nil, fmt.Errorf("load latest feature: %w", err)
	}
	if row == nil {
		return nil, fmt.Errorf("%w: symbol=%d", ErrNoFeatures, symbolID)
	}

	p.featMu.Lock()
	p.features[symbolID] = featureEntry{row: row, fetchedAt: time.Now()}
	p.featMu.Unlock()
	return row, nil
}
