package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"stockpulse/internal/domain/models"
	"stockpulse/internal/domain/repository"
	"stockpulse/internal/services/featuresync"
	"stockpulse/internal/services/predict"
	"stockpulse/internal/services/train"
	"stockpulse/pkg/logger"
	"stockpulse/pkg/workerpool"
)

// progressEvery controls how often a running batch emits a progress
// status event.
const progressEvery = 10

// ErrSymbolNotAllowed means a non-privileged caller asked for a symbol
// outside its active watchlist.
var ErrSymbolNotAllowed = errors.New("symbol not in tenant watchlist")

// BatchSession bundles the per-worker service instances. Every worker
// in a batch gets its own session so no two concurrent tasks share a
// storage connection.
type BatchSession struct {
	Trainer   *train.Trainer
	Predictor *predict.Predictor
	Sync      *featuresync.Service
}

// SessionFactory builds one BatchSession for one worker; the release
// callback runs when the worker exits.
type SessionFactory func(ctx context.Context) (*BatchSession, func(), error)

// PredictOutcome is the per-symbol result of a prediction batch.
type PredictOutcome struct {
	Success    bool               `json:"success"`
	Error      string             `json:"error,omitempty"`
	Prediction *models.Prediction `json:"prediction,omitempty"`
}

// Batch fans training, prediction and feature-sync work out over a
// tenant's symbol set. One symbol's failure never aborts its siblings.
type Batch struct {
	tenants    repository.TenantRepository
	symbols    repository.SymbolRepository
	watchlists repository.WatchlistRepository
	notifier   repository.Notifier
	metrics    repository.Metrics
	logger     *logger.Logger
	sessions   SessionFactory
	workers    int
}

// NewBatch creates the orchestrator. workers <= 0 selects the default
// pool size.
func NewBatch(
	tenants repository.TenantRepository,
	symbols repository.SymbolRepository,
	watchlists repository.WatchlistRepository,
	notifier repository.Notifier,
	metrics repository.Metrics,
	log *logger.Logger,
	sessions SessionFactory,
	workers int,
) *Batch {
	if workers <= 0 {
		workers = workerpool.DefaultSize()
	}
	return &Batch{
		tenants:    tenants,
		symbols:    symbols,
		watchlists: watchlists,
		notifier:   notifier,
		metrics:    metrics,
		logger:     log,
		sessions:   sessions,
		workers:    workers,
	}
}

// SelectSymbols resolves the symbol set a caller may operate on. An
// explicit list from a non-privileged caller is intersected with the
// tenant's active watchlist; a privileged caller's explicit list is
// taken as-is. Without an explicit list, privileged callers get the
// full active eligible universe and ordinary callers their watchlist.
func (b *Batch) SelectSymbols(ctx context.Context, principal models.Principal, explicit []int64) ([]int64, error) {
	if len(explicit) > 0 {
		if principal.Privileged {
			return explicit, nil
		}
		allowed, err := b.watchlists.ActiveSymbolIDs(ctx, principal.TenantID)
		if err != nil {
			return nil, fmt.Errorf("load watchlist: %w", err)
		}
		allowedSet := make(map[int64]struct{}, len(allowed))
		for _, id := range allowed {
			allowedSet[id] = struct{}{}
		}
		var out []int64
		for _, id := range explicit {
			if _, ok := allowedSet[id]; ok {
				out = append(out, id)
			}
		}
		return out, nil
	}

	if principal.Privileged {
		return b.symbols.ActiveEligibleIDs(ctx)
	}
	return b.watchlists.ActiveSymbolIDs(ctx, principal.TenantID)
}

// TrainForTenant trains the cascade for every selected symbol and
// returns the per-symbol result map.
func (b *Batch) TrainForTenant(ctx context.Context, principal models.Principal, explicit []int64) (map[int64]models.TrainingResult, error) {
	ids, err := b.prepare(ctx, principal, explicit, "train")
	if err != nil {
		return nil, err
	}

	start := time.Now()
	results := make(map[int64]models.TrainingResult, len(ids))
	var mu sync.Mutex
	progress := b.progressReporter(ctx, principal.TenantID, "train", len(ids))

	tasks := make([]func(context.Context, *BatchSession) error, len(ids))
	for i, id := range ids {
		id := id
		tasks[i] = func(ctx context.Context, s *BatchSession) error {
			res := s.Trainer.Train(ctx, principal.TenantID, id)
			if res.Status == models.TrainStatusSuccess {
				s.Predictor.InvalidateModels(principal.TenantID, id)
			}
			mu.Lock()
			results[id] = res
			mu.Unlock()
			progress()
			return nil
		}
	}

	errs := workerpool.RunScoped(ctx, b.workers, b.sessions, tasks)
	for i, err := range errs {
		if err == nil {
			continue
		}
		mu.Lock()
		results[ids[i]] = models.TrainingResult{
			TenantID: principal.TenantID,
			SymbolID: ids[i],
			Status:   models.TrainStatusError,
			Reason:   err.Error(),
		}
		mu.Unlock()
	}

	b.finish(ctx, principal.TenantID, "train", start, len(ids), countTrainFailures(results))
	return results, nil
}

// PredictForTenant generates predictions for every selected symbol.
func (b *Batch) PredictForTenant(ctx context.Context, principal models.Principal, explicit []int64) (map[int64]PredictOutcome, error) {
	ids, err := b.prepare(ctx, principal, explicit, "predict")
	if err != nil {
		return nil, err
	}

	start := time.Now()
	results := make(map[int64]PredictOutcome, len(ids))
	var mu sync.Mutex
	progress := b.progressReporter(ctx, principal.TenantID, "predict", len(ids))

	tasks := make([]func(context.Context, *BatchSession) error, len(ids))
	for i, id := range ids {
		id := id
		tasks[i] = func(ctx context.Context, s *BatchSession) error {
			pred, err := s.Predictor.PredictOne(ctx, principal.TenantID, id)
			outcome := PredictOutcome{Success: err == nil, Prediction: pred}
			if err != nil {
				outcome.Error = err.Error()
				b.logger.Warn("prediction failed",
					logger.Int64("tenant_id", principal.TenantID),
					logger.Int64("symbol_id", id),
					logger.Error(err),
				)
			}
			mu.Lock()
			results[id] = outcome
			mu.Unlock()
			progress()
			return nil
		}
	}

	errs := workerpool.RunScoped(ctx, b.workers, b.sessions, tasks)
	failed := 0
	for i, err := range errs {
		if err != nil {
			mu.Lock()
			results[ids[i]] = PredictOutcome{Error: err.Error()}
			mu.Unlock()
		}
	}
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}

	b.finish(ctx, principal.TenantID, "predict", start, len(ids), failed)
	return results, nil
}

// SyncFeaturesForTenant fills feature gaps for every selected symbol.
func (b *Batch) SyncFeaturesForTenant(ctx context.Context, principal models.Principal, explicit []int64) (map[int64]featuresync.Result, error) {
	ids, err := b.prepare(ctx, principal, explicit, "feature_sync")
	if err != nil {
		return nil, err
	}

	start := time.Now()
	results := make(map[int64]featuresync.Result, len(ids))
	var mu sync.Mutex
	progress := b.progressReporter(ctx, principal.TenantID, "feature_sync", len(ids))

	tasks := make([]func(context.Context, *BatchSession) error, len(ids))
	for i, id := range ids {
		id := id
		tasks[i] = func(ctx context.Context, s *BatchSession) error {
			res := s.Sync.SyncSymbol(ctx, id)
			mu.Lock()
			results[id] = res
			mu.Unlock()
			progress()
			return nil
		}
	}

	errs := workerpool.RunScoped(ctx, b.workers, b.sessions, tasks)
	failed := 0
	for i, err := range errs {
		if err != nil {
			mu.Lock()
			results[ids[i]] = featuresync.Result{SymbolID: ids[i], Status: featuresync.StatusError, Reason: err.Error()}
			mu.Unlock()
		}
	}
	for _, r := range results {
		if r.Status == featuresync.StatusError {
			failed++
		}
	}

	b.finish(ctx, principal.TenantID, "feature_sync", start, len(ids), failed)
	return results, nil
}

// RefreshOutcome is the result of a single-symbol refresh.
type RefreshOutcome struct {
	Training   *models.TrainingResult `json:"training,omitempty"`
	Prediction *models.Prediction     `json:"prediction"`
}

// RefreshOne regenerates the prediction for a single symbol, optionally
// retraining the cascade first. A successful retrain evicts the cached
// models so the fresh artifacts score the prediction.
func (b *Batch) RefreshOne(ctx context.Context, principal models.Principal, symbolID int64, retrain bool) (*RefreshOutcome, error) {
	if _, err := b.tenants.Get(ctx, principal.TenantID); err != nil {
		return nil, fmt.Errorf("tenant %d: %w", principal.TenantID, err)
	}
	ids, err := b.SelectSymbols(ctx, principal, []int64{symbolID})
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("symbol %d: %w", symbolID, ErrSymbolNotAllowed)
	}

	s, release, err := b.sessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	if release != nil {
		defer release()
	}

	out := &RefreshOutcome{}
	if retrain {
		res := s.Trainer.Train(ctx, principal.TenantID, symbolID)
		out.Training = &res
		if res.Status == models.TrainStatusSuccess {
			s.Predictor.InvalidateModels(principal.TenantID, symbolID)
		}
	}

	pred, err := s.Predictor.PredictOne(ctx, principal.TenantID, symbolID)
	if err != nil {
		return nil, err
	}
	out.Prediction = pred
	return out, nil
}

func (b *Batch) prepare(ctx context.Context, principal models.Principal, explicit []int64, task string) ([]int64, error) {
	if _, err := b.tenants.Get(ctx, principal.TenantID); err != nil {
		return nil, fmt.Errorf("tenant %d: %w", principal.TenantID, err)
	}
	ids, err := b.SelectSymbols(ctx, principal, explicit)
	if err != nil {
		return nil, err
	}
	b.notify(ctx, repository.StatusEvent{
		TenantID: principal.TenantID,
		Task:     task,
		State:    "started",
		Message:  fmt.Sprintf("%d symbols", len(ids)),
	})
	return ids, nil
}

// progressReporter returns a callback that emits a progress event every
// progressEvery completions.
func (b *Batch) progressReporter(ctx context.Context, tenantID int64, task string, total int) func() {
	var done int64
	var mu sync.Mutex
	return func() {
		mu.Lock()
		done++
		n := done
		mu.Unlock()
		if total == 0 || (n%progressEvery != 0 && int(n) != total) {
			return
		}
		b.notify(ctx, repository.StatusEvent{
			TenantID: tenantID,
			Task:     task,
			State:    "running",
			Progress: float64(n) / float64(total) * 100,
		})
	}
}

func (b *Batch) finish(ctx context.Context, tenantID int64, task string, start time.Time, total, failed int) {
	elapsed := time.Since(start)
	b.metrics.RecordBatchDuration(task, elapsed.Seconds())
	b.notify(ctx, repository.StatusEvent{
		TenantID: tenantID,
		Task:     task,
		State:    "completed",
		Progress: 100,
		Message:  fmt.Sprintf("%d/%d succeeded", total-failed, total),
	})
	b.logger.Info("batch complete",
		logger.Int64("tenant_id", tenantID),
		logger.String("task", task),
		logger.Int("total", total),
		logger.Int("failed", failed),
		logger.Duration("duration", elapsed),
	)
}

func (b *Batch) notify(ctx context.Context, event repository.StatusEvent) {
	event.Timestamp = time.Now().UTC()
	if err := b.notifier.NotifyStatus(ctx, event); err != nil {
		b.logger.Warn("status notification failed",
			logger.String("task", event.Task),
			logger.Error(err),
		)
	}
}

func countTrainFailures(results map[int64]models.TrainingResult) int {
	n := 0
	for _, r := range results {
		if r.Status == models.TrainStatusError {
			n++
		}
	}
	return n
}
