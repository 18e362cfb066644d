package train

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"stockpulse/internal/domain/models"
	"stockpulse/internal/domain/repository"
	"stockpulse/internal/ml"
	"stockpulse/internal/services/dataset"
	"stockpulse/internal/services/tenantcfg"
	"stockpulse/pkg/logger"
)

// FeatureCap is the selection cutoff: datasets at or under it keep all
// features, larger ones keep the top FeatureCap by importance.
const FeatureCap = 10

// minTrainRows is the smallest dataset the move model trains on.
const minTrainRows = 20

// minDirectionRows gates direction training on strong-move support.
const minDirectionRows = 10

// Trainer builds datasets and trains the move/direction cascade for one
// (tenant, symbol).
type Trainer struct {
	market    repository.MarketStore
	artifacts repository.ArtifactStore
	perf      repository.PerformanceRepository
	config    *tenantcfg.Service
	metrics   repository.Metrics
	logger    *logger.Logger
}

// New creates a Trainer.
func New(
	market repository.MarketStore,
	artifacts repository.ArtifactStore,
	perf repository.PerformanceRepository,
	config *tenantcfg.Service,
	metrics repository.Metrics,
	log *logger.Logger,
) *Trainer {
	return &Trainer{
		market:    market,
		artifacts: artifacts,
		perf:      perf,
		config:    config,
		metrics:   metrics,
		logger:    log,
	}
}

// Train runs the full training pass for one symbol. Data insufficiency
// comes back as an error-status result, never a panic or Go error; the
// caller decides what a failed symbol means for its batch.
func (t *Trainer) Train(ctx context.Context, tenantID, symbolID int64) models.TrainingResult {
	start := time.Now()
	res := models.TrainingResult{TenantID: tenantID, SymbolID: symbolID}

	fail := func(reason string) models.TrainingResult {
		res.Status = models.TrainStatusError
		res.Reason = reason
		res.Duration = time.Since(start)
		t.metrics.RecordTraining(fmt.Sprint(tenantID), string(models.ModelTypeMove), "error")
		return res
	}

	kind, err := t.config.ModelKind(ctx, tenantID)
	if err != nil {
		return fail(fmt.Sprintf("resolve model kind: %v", err))
	}
	res.ModelKind = string(kind)
	params := t.config.ModelParams(ctx, tenantID, kind)

	ds, err := t.buildDataset(ctx, tenantID, symbolID)
	if err != nil {
		return fail(fmt.Sprintf("build dataset: %v", err))
	}
	if ds.Len() < minTrainRows {
		return fail(fmt.Sprintf("insufficient samples: %d rows, need %d", ds.Len(), minTrainRows))
	}

	x := sanitize(ds.X)

	// move model
	selIdx, selNames := t.selectFeatures(x, ds.YMove, ds.FeatureNames, params.Seed)
	res.FeatureCount = len(selNames)

	moveResult, moveModel := t.trainOne(kind, params, project(x, selIdx), ds.YMove, true)
	res.Move = moveResult
	if moveResult.Status != models.TrainStatusSuccess {
		return fail("move model: " + moveResult.Reason)
	}

	if err := t.persistModel(ctx, tenantID, symbolID, models.ModelTypeMove, moveModel, selNames, moveResult); err != nil {
		return fail(fmt.Sprintf("persist move model: %v", err))
	}
	t.metrics.RecordTraining(fmt.Sprint(tenantID), string(models.ModelTypeMove), "success")
	if moveResult.Metrics != nil {
		t.metrics.RecordModelAccuracy(fmt.Sprint(tenantID), fmt.Sprint(symbolID), string(models.ModelTypeMove), moveResult.Metrics.Accuracy)
	}

	// direction model, gated on strong-move support
	dirX, dirY := ds.StrongMoveSubset()
	if len(dirX) < minDirectionRows {
		res.Direction = models.ModelTrainResult{
			Status: models.TrainStatusSkipped,
			Reason: fmt.Sprintf("only %d strong-move rows, need %d", len(dirX), minDirectionRows),
		}
	} else {
		dirX = sanitize(dirX)
		dirIdx, dirNames := t.selectFeatures(dirX, dirY, ds.FeatureNames, params.Seed)
		withSplit := len(dirX) > minDirectionRows

		dirResult, dirModel := t.trainOne(kind, params, project(dirX, dirIdx), dirY, withSplit)
		res.Direction = dirResult
		if dirResult.Status == models.TrainStatusSuccess {
			if err := t.persistModel(ctx, tenantID, symbolID, models.ModelTypeDirection, dirModel, dirNames, dirResult); err != nil {
				res.Direction.Status = models.TrainStatusError
				res.Direction.Reason = fmt.Sprintf("persist direction model: %v", err)
			} else {
				t.metrics.RecordTraining(fmt.Sprint(tenantID), string(models.ModelTypeDirection), "success")
			}
		}
	}

	res.Status = models.TrainStatusSuccess
	res.Duration = time.Since(start)
	t.logger.Info("training complete",
		logger.Int64("tenant_id", tenantID),
		logger.Int64("symbol_id", symbolID),
		logger.String("model_kind", string(kind)),
		logger.Int("features", res.FeatureCount),
		logger.Duration("duration", res.Duration),
	)
	return res
}

func (t *Trainer) buildDataset(ctx context.Context, tenantID, symbolID int64) (*dataset.Dataset, error) {
	from := time.Time{}
	to := time.Now().UTC()

	features, err := t.market.FeatureRange(ctx, symbolID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load features: %w", err)
	}
	closes, err := t.market.Closes(ctx, symbolID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load closes: %w", err)
	}

	cfg := dataset.Config{
		ThresholdPercent: t.config.StrongMoveThreshold(ctx, tenantID),
		MaxDays:          t.config.MaxDays(ctx, tenantID),
	}
	return dataset.Build(features, closes, cfg)
}

// trainOne fits one classifier. With withSplit it holds out the most
// recent 20% of rows chronologically for evaluation; without it the
// model fits all rows and metrics are omitted.
func (t *Trainer) trainOne(kind ml.Kind, params ml.Params, x [][]float64, y []int, withSplit bool) (models.ModelTrainResult, ml.Classifier) {
	clf, err := ml.New(kind, params)
	if err != nil {
		return models.ModelTrainResult{Status: models.TrainStatusError, Reason: err.Error()}, nil
	}

	trainX, trainY := x, y
	var testX [][]float64
	var testY []int
	if withSplit {
		cut := int(float64(len(x)) * 0.8)
		if cut == 0 || cut == len(x) {
			return models.ModelTrainResult{Status: models.TrainStatusError, Reason: "split leaves an empty partition"}, nil
		}
		trainX, trainY = x[:cut], y[:cut]
		testX, testY = x[cut:], y[cut:]
	}

	if err := clf.Fit(trainX, trainY); err != nil {
		return models.ModelTrainResult{Status: models.TrainStatusError, Reason: fmt.Sprintf("fit: %v", err)}, nil
	}

	result := models.ModelTrainResult{
		Status:       models.TrainStatusSuccess,
		TrainSamples: len(trainX),
		TestSamples:  len(testX),
	}

	if len(testX) > 0 {
		probs := make([]float64, len(testX))
		for i := range testX {
			p, err := clf.PredictProba(testX[i])
			if err != nil {
				return models.ModelTrainResult{Status: models.TrainStatusError, Reason: fmt.Sprintf("score: %v", err)}, nil
			}
			probs[i] = p
		}
		ev := ml.Evaluate(probs, testY)
		result.Metrics = &models.ModelMetrics{
			Accuracy:  ev.Accuracy,
			Precision: ev.Precision,
			Recall:    ev.Recall,
			F1:        ev.F1,
			ROCAUC:    ev.ROCAUC,
			MSE:       &ev.MSE,
			RMSE:      &ev.RMSE,
			MAE:       &ev.MAE,
		}
	}
	return result, clf
}

func (t *Trainer) persistModel(
	ctx context.Context,
	tenantID, symbolID int64,
	modelType models.ModelType,
	clf ml.Classifier,
	selected []string,
	result models.ModelTrainResult,
) error {
	var ev *ml.Evaluation
	if result.Metrics != nil {
		ev = &ml.Evaluation{
			Accuracy:  result.Metrics.Accuracy,
			Precision: result.Metrics.Precision,
			Recall:    result.Metrics.Recall,
			F1:        result.Metrics.F1,
			ROCAUC:    result.Metrics.ROCAUC,
		}
	}

	data, err := ml.EncodeArtifact(clf, selected, time.Now().UTC(), ev)
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	if err := t.artifacts.Save(ctx, tenantID, symbolID, modelType, data); err != nil {
		return fmt.Errorf("save artifact: %w", err)
	}

	rec := &models.ModelPerformance{
		TenantID:       tenantID,
		SymbolID:       symbolID,
		ModelType:      modelType,
		ModelKind:      string(clf.Kind()),
		EvaluationDate: time.Now().UTC(),
		TrainSamples:   result.TrainSamples,
		TestSamples:    result.TestSamples,
	}
	if result.Metrics != nil {
		rec.Accuracy = result.Metrics.Accuracy
		rec.Precision = result.Metrics.Precision
		rec.Recall = result.Metrics.Recall
		rec.F1 = result.Metrics.F1
		rec.ROCAUC = result.Metrics.ROCAUC
	}
	if err := t.perf.Append(ctx, rec); err != nil {
		return fmt.Errorf("append performance record: %w", err)
	}
	return nil
}

// selectFeatures keeps everything when at or under the cap; otherwise
// ranks by random-forest importance and keeps the top FeatureCap. A
// failed ranking falls back to the first FeatureCap columns rather than
// failing the training run.
func (t *Trainer) selectFeatures(x [][]float64, y []int, names []string, seed int64) ([]int, []string) {
	if len(names) <= FeatureCap {
		idx := make([]int, len(names))
		for i := range idx {
			idx[i] = i
		}
		return idx, names
	}

	ranker := ml.NewRandomForest(ml.Params{NEstimators: 50, MaxDepth: 10, Seed: seed})
	if err := ranker.Fit(x, y); err != nil {
		t.logger.Warn("feature ranking failed, falling back to first columns", logger.Error(err))
		idx := make([]int, FeatureCap)
		sel := make([]string, FeatureCap)
		for i := 0; i < FeatureCap; i++ {
			idx[i] = i
			sel[i] = names[i]
		}
		return idx, sel
	}

	imp := ranker.FeatureImportances()
	order := make([]int, len(names))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return imp[order[a]] > imp[order[b]] })

	idx := append([]int(nil), order[:FeatureCap]...)
	sort.Ints(idx) // keep original column order for stable vectors
	sel := make([]string, len(idx))
	for i, j := range idx {
		sel[i] = names[j]
	}
	return idx, sel
}

// sanitize replaces NaN/Inf with 0 in a copy of the matrix.
func sanitize(x [][]float64) [][]float64 {
	out := make([][]float64, len(x))
	for i, row := range x {
		clean := make([]float64, len(row))
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				clean[j] = 0
			} else {
				clean[j] = v
			}
		}
		out[i] = clean
	}
	return out
}

func project(x [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(x))
	for i, row := range x {
		sel := make([]float64, len(idx))
		for k, j := range idx {
			sel[k] = row[j]
		}
		out[i] = sel
	}
	return out
}
