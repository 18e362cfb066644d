package verify

import (
	"context"
	"fmt"
	"math"
	"time"

	"stockpulse/internal/domain/models"
	"stockpulse/internal/domain/repository"
	"stockpulse/internal/services/tenantcfg"
	"stockpulse/pkg/logger"
	"stockpulse/pkg/util"
)

// Verification outcomes, as recorded in metrics.
const (
	outcomeFulfilled      = "fulfilled"
	outcomeWrongDirection = "wrong_direction"
	outcomeNoMove         = "no_move"
)

// Service reconciles pending predictions against realized price paths.
type Service struct {
	predictions repository.PredictionRepository
	market      repository.MarketStore
	config      *tenantcfg.Service
	metrics     repository.Metrics
	logger      *logger.Logger
}

// New creates the verifier.
func New(
	predictions repository.PredictionRepository,
	market repository.MarketStore,
	config *tenantcfg.Service,
	metrics repository.Metrics,
	log *logger.Logger,
) *Service {
	return &Service{
		predictions: predictions,
		market:      market,
		config:      config,
		metrics:     metrics,
		logger:      log,
	}
}

// VerifyPending resolves a tenant's unprocessed predictions dated before
// today and returns how many rows were updated. A prediction whose
// fulfillment window has not elapsed and whose thresholds were never
// crossed is left untouched for a later run; everything else is marked
// processed exactly once. All updates commit in one call.
func (s *Service) VerifyPending(ctx context.Context, tenantID int64) (int, error) {
	threshold := s.config.StrongMoveThreshold(ctx, tenantID)
	maxDays := s.config.MaxDays(ctx, tenantID)
	cutoff := util.TruncateToDay(time.Now().UTC())

	pending, err := s.predictions.Unprocessed(ctx, tenantID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("load pending predictions: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	var updates []models.Prediction
	for i := range pending {
		p := &pending[i]
		resolved, outcome, err := s.resolve(ctx, p, threshold, maxDays)
		if err != nil {
			s.logger.Warn("skipping prediction",
				logger.Int64("tenant_id", tenantID),
				logger.Int64("symbol_id", p.SymbolID),
				logger.Time("date", p.Date),
				logger.Error(err),
			)
			continue
		}
		if !resolved {
			continue
		}
		updates = append(updates, *p)
		s.metrics.RecordVerification(fmt.Sprint(tenantID), outcome)
	}

	if len(updates) == 0 {
		return 0, nil
	}
	if err := s.predictions.UpdateVerification(ctx, updates); err != nil {
		return 0, fmt.Errorf("commit verification updates: %w", err)
	}

	s.logger.Info("verification pass complete",
		logger.Int64("tenant_id", tenantID),
		logger.Int("pending", len(pending)),
		logger.Int("updated", len(updates)),
	)
	return len(updates), nil
}

// resolve applies the resolution rules to one prediction, mutating it in
// place when it can be settled. The up/down moves are measured from the
// close on the prediction date: up against each day's high, down against
// each day's low, both inclusive at the threshold.
func (s *Service) resolve(ctx context.Context, p *models.Prediction, threshold float64, maxDays int) (bool, string, error) {
	ref, err := s.referenceClose(ctx, p)
	if err != nil {
		return false, "", err
	}

	window, err := s.market.EODAfter(ctx, p.SymbolID, p.Date, maxDays)
	if err != nil {
		return false, "", fmt.Errorf("load verification window: %w", err)
	}
	if len(window) == 0 {
		return false, "", nil
	}

	maxUp, minDown := math.Inf(-1), math.Inf(1)
	maxUpIdx, minDownIdx := -1, -1
	for i, b := range window {
		up := (b.High - ref) / ref * 100
		down := (b.Low - ref) / ref * 100
		if up > maxUp {
			maxUp, maxUpIdx = up, i
		}
		if down < minDown {
			minDown, minDownIdx = down, i
		}
	}

	upCrossed := maxUp >= threshold
	downCrossed := minDown <= -threshold
	predicted := p.DirectionPrediction

	switch {
	case predicted != nil && *predicted == models.DirectionUp && upCrossed:
		s.settle(p, true, models.DirectionUp, maxUp, window[maxUpIdx].Date, maxUpIdx+1)
		return true, outcomeFulfilled, nil

	case predicted != nil && *predicted == models.DirectionDown && downCrossed:
		s.settle(p, true, models.DirectionDown, minDown, window[minDownIdx].Date, minDownIdx+1)
		return true, outcomeFulfilled, nil

	case upCrossed || downCrossed:
		// A move happened but not the predicted one. Record whichever
		// excursion was larger in magnitude.
		if maxUp >= math.Abs(minDown) {
			s.settle(p, false, models.DirectionUp, maxUp, window[maxUpIdx].Date, maxUpIdx+1)
		} else {
			s.settle(p, false, models.DirectionDown, minDown, window[minDownIdx].Date, minDownIdx+1)
		}
		return true, outcomeWrongDirection, nil

	case len(window) >= maxDays:
		// Window elapsed, nothing crossed. Resolved negative; actual
		// fields stay null.
		p.Processed = true
		p.Verified = false
		return true, outcomeNoMove, nil

	default:
		// Window still open and nothing crossed yet.
		return false, "", nil
	}
}

func (s *Service) settle(p *models.Prediction, verified bool, dir models.Direction, movePct float64, day time.Time, days int) {
	p.Processed = true
	p.Verified = verified
	p.ActualDirection = &dir
	p.ActualMovePercent = &movePct
	p.VerificationDate = &day
	p.DaysToFulfill = &days
}

func (s *Service) referenceClose(ctx context.Context, p *models.Prediction) (float64, error) {
	bars, err := s.market.EODRange(ctx, p.SymbolID, p.Date, p.Date)
	if err != nil {
		return 0, fmt.Errorf("load reference close: %w", err)
	}
	if len(bars) == 0 {
		return 0, fmt.Errorf("no eod bar on prediction date %s", p.Date.Format(util.DateLayout))
	}
	if bars[0].Close <= 0 {
		return 0, fmt.Errorf("non-positive reference close on %s", p.Date.Format(util.DateLayout))
	}
	return bars[0].Close, nil
}
