package usecase

import (
	"context"
	"fmt"

	"stockpulse/internal/domain/models"
	"stockpulse/internal/services/featuresync"
	"stockpulse/internal/services/verify"
	"stockpulse/pkg/logger"
)

// PipelineResult aggregates one full pipeline run for a tenant.
type PipelineResult struct {
	TaskID   string                          `json:"task_id"`
	Sync     map[int64]featuresync.Result    `json:"sync"`
	Train    map[int64]models.TrainingResult `json:"train"`
	Predict  map[int64]PredictOutcome        `json:"predict"`
	Verified int                             `json:"verified"`
}

// Pipeline runs the full daily sequence for one tenant: feature sync,
// training, prediction, then verification of older predictions. The
// stage order is fixed; within a stage symbols complete in any order.
type Pipeline struct {
	batch    *Batch
	verifier *verify.Service
	status   *StatusRegistry
	logger   *logger.Logger
}

// NewPipeline creates the pipeline runner.
func NewPipeline(batch *Batch, verifier *verify.Service, status *StatusRegistry, log *logger.Logger) *Pipeline {
	return &Pipeline{batch: batch, verifier: verifier, status: status, logger: log}
}

// Run executes all four stages. A stage-level failure stops the run and
// marks the task failed; per-symbol failures inside a stage do not.
func (p *Pipeline) Run(ctx context.Context, principal models.Principal, explicit []int64) (*PipelineResult, error) {
	taskID := p.status.Create(principal.TenantID, "pipeline")
	p.status.Start(taskID)
	result := &PipelineResult{TaskID: taskID}

	syncRes, err := p.batch.SyncFeaturesForTenant(ctx, principal, explicit)
	if err != nil {
		return p.fail(taskID, fmt.Errorf("feature sync stage: %w", err))
	}
	result.Sync = syncRes
	p.status.Progress(taskID, 25, "features synced")

	trainRes, err := p.batch.TrainForTenant(ctx, principal, explicit)
	if err != nil {
		return p.fail(taskID, fmt.Errorf("training stage: %w", err))
	}
	result.Train = trainRes
	p.status.Progress(taskID, 50, "models trained")

	predictRes, err := p.batch.PredictForTenant(ctx, principal, explicit)
	if err != nil {
		return p.fail(taskID, fmt.Errorf("prediction stage: %w", err))
	}
	result.Predict = predictRes
	p.status.Progress(taskID, 75, "predictions generated")

	verified, err := p.verifier.VerifyPending(ctx, principal.TenantID)
	if err != nil {
		return p.fail(taskID, fmt.Errorf("verification stage: %w", err))
	}
	result.Verified = verified

	p.status.Complete(taskID, fmt.Sprintf("%d predictions verified", verified))
	p.logger.Info("pipeline run complete",
		logger.Int64("tenant_id", principal.TenantID),
		logger.String("task_id", taskID),
		logger.Int("verified", verified),
	)
	return result, nil
}

// Status returns the live status of one pipeline task.
func (p *Pipeline) Status(taskID string) (TaskStatus, bool) {
	return p.status.Get(taskID)
}

func (p *Pipeline) fail(taskID string, err error) (*PipelineResult, error) {
	p.status.Fail(taskID, err)
	return nil, err
}
