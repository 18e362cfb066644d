package featuresync

import (
	"context"
	"fmt"
	"sort"
	"time"

	"stockpulse/internal/domain/models"
	"stockpulse/internal/domain/repository"
	"stockpulse/internal/services/features"
	"stockpulse/pkg/logger"
	"stockpulse/pkg/util"
)

// Status classifies one symbol's sync outcome.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusSkipped   Status = "skipped"
	StatusError     Status = "error"
)

// Result is the per-symbol outcome of a sync run.
type Result struct {
	SymbolID int64  `json:"symbol_id"`
	Status   Status `json:"status"`
	Inserted int    `json:"inserted"`
	Reason   string `json:"reason,omitempty"`
}

// Service computes and persists missing feature rows. Idempotent: dates
// that already have a feature row are never recomputed or rewritten.
type Service struct {
	market       repository.MarketStore
	logger       *logger.Logger
	lookbackDays int
	batchSize    int
}

// New creates the sync service. lookbackDays seeds rolling windows
// before the earliest missing date; batchSize bounds bulk inserts.
func New(market repository.MarketStore, log *logger.Logger, lookbackDays, batchSize int) *Service {
	if lookbackDays <= 0 {
		lookbackDays = 60
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Service{market: market, logger: log, lookbackDays: lookbackDays, batchSize: batchSize}
}

// SyncSymbol fills the feature gap for one symbol. A symbol with no EOD
// data is reported as skipped, not an error. Safe to run per-symbol in
// parallel.
func (s *Service) SyncSymbol(ctx context.Context, symbolID int64) Result {
	eodDates, err := s.market.EODDates(ctx, symbolID)
	if err != nil {
		return Result{SymbolID: symbolID, Status: StatusError, Reason: fmt.Sprintf("load eod dates: %v", err)}
	}
	if len(eodDates) == 0 {
		return Result{SymbolID: symbolID, Status: StatusSkipped, Reason: "no eod data"}
	}

	featureDates, err := s.market.FeatureDates(ctx, symbolID)
	if err != nil {
		return Result{SymbolID: symbolID, Status: StatusError, Reason: fmt.Sprintf("load feature dates: %v", err)}
	}

	have := make(map[time.Time]struct{}, len(featureDates))
	for _, d := range featureDates {
		have[util.TruncateToDay(d)] = struct{}{}
	}

	missing := make(map[time.Time]struct{})
	var earliest, latest time.Time
	for _, d := range eodDates {
		day := util.TruncateToDay(d)
		if latest.IsZero() || day.After(latest) {
			latest = day
		}
		if _, ok := have[day]; ok {
			continue
		}
		missing[day] = struct{}{}
		if earliest.IsZero() || day.Before(earliest) {
			earliest = day
		}
	}
	if len(missing) == 0 {
		return Result{SymbolID: symbolID, Status: StatusCompleted, Inserted: 0}
	}

	from := earliest.AddDate(0, 0, -s.lookbackDays)
	bars, err := s.market.EODRange(ctx, symbolID, from, latest)
	if err != nil {
		return Result{SymbolID: symbolID, Status: StatusError, Reason: fmt.Sprintf("load eod range: %v", err)}
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })

	rows := features.Calculate(bars)

	// keep only the dates that were actually missing
	toInsert := make([]models.FeatureRow, 0, len(missing))
	for _, r := range rows {
		if _, ok := missing[util.TruncateToDay(r.Date)]; ok {
			toInsert = append(toInsert, r)
		}
	}
	if len(toInsert) == 0 {
		return Result{SymbolID: symbolID, Status: StatusCompleted, Inserted: 0}
	}

	inserted := s.insertBatches(ctx, symbolID, toInsert)
	return Result{SymbolID: symbolID, Status: StatusCompleted, Inserted: inserted}
}

// insertBatches persists rows in bounded batches; a failed batch falls
// back to row-by-row inserts so one bad row cannot sink its batch.
func (s *Service) insertBatches(ctx context.Context, symbolID int64, rows []models.FeatureRow) int {
	inserted := 0
	for start := 0; start < len(rows); start += s.batchSize {
		end := start + s.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]

		if err := s.market.InsertFeatures(ctx, batch); err == nil {
			inserted += len(batch)
			continue
		}

		for _, row := range batch {
			if err := s.market.InsertFeatures(ctx, []models.FeatureRow{row}); err != nil {
				s.logger.Warn("feature row insert failed",
					logger.Int64("symbol_id", symbolID),
					logger.Time("date", row.Date),
					logger.Error(err),
				)
				continue
			}
			inserted++
		}
	}
	return inserted
}
