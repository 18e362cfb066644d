package api

import (
	"errors"

	"github.com/labstack/echo/v4"

	domrepo "stockpulse/internal/domain/repository"
	"stockpulse/internal/services/predict"
	"stockpulse/internal/usecase"
	xhttp "stockpulse/pkg/http"
	xlogger "stockpulse/pkg/logger"
)

// BatchHandler triggers training, prediction, and feature sync batches
// plus the end-to-end pipeline, and exposes task status.
type BatchHandler struct {
	logger   *xlogger.Logger
	batch    *usecase.Batch
	pipeline *usecase.Pipeline
	status   *usecase.StatusRegistry
}

func NewBatchHandler(logger *xlogger.Logger, batch *usecase.Batch, pipeline *usecase.Pipeline, status *usecase.StatusRegistry) *BatchHandler {
	return &BatchHandler{logger: logger, batch: batch, pipeline: pipeline, status: status}
}

func (h *BatchHandler) Train(c echo.Context) error {
	p := principal(c)
	req := &BatchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	results, err := h.batch.TrainForTenant(c.Request().Context(), p, req.SymbolIDs)
	if err != nil {
		return h.batchError(c, "batch.train", err)
	}
	return xhttp.SuccessResponse(c, results)
}

func (h *BatchHandler) Predict(c echo.Context) error {
	p := principal(c)
	req := &BatchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	results, err := h.batch.PredictForTenant(c.Request().Context(), p, req.SymbolIDs)
	if err != nil {
		return h.batchError(c, "batch.predict", err)
	}
	return xhttp.SuccessResponse(c, results)
}

func (h *BatchHandler) SyncFeatures(c echo.Context) error {
	p := principal(c)
	req := &BatchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	results, err := h.batch.SyncFeaturesForTenant(c.Request().Context(), p, req.SymbolIDs)
	if err != nil {
		return h.batchError(c, "batch.sync", err)
	}
	return xhttp.SuccessResponse(c, results)
}

// RunPipeline executes sync, train, predict, and verify in order for
// the caller's symbol set, synchronously.
func (h *BatchHandler) RunPipeline(c echo.Context) error {
	p := principal(c)
	req := &BatchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	result, err := h.pipeline.Run(c.Request().Context(), p, req.SymbolIDs)
	if err != nil {
		return h.batchError(c, "pipeline.run", err)
	}
	return xhttp.SuccessResponse(c, result)
}

// Refresh retrains (optionally) and regenerates the prediction for one
// symbol, bypassing the batch pool.
func (h *BatchHandler) Refresh(c echo.Context) error {
	p := principal(c)
	req := &RefreshRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	out, err := h.batch.RefreshOne(c.Request().Context(), p, req.SymbolID, req.Retrain)
	switch {
	case err == nil:
		return xhttp.SuccessResponse(c, out)
	case errors.Is(err, usecase.ErrSymbolNotAllowed):
		return xhttp.AppErrorResponse(c, xhttp.ForbiddenError(err.Error()))
	case errors.Is(err, predict.ErrNoModel), errors.Is(err, predict.ErrNoFeatures):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()))
	default:
		return h.batchError(c, "batch.refresh", err)
	}
}

func (h *BatchHandler) TaskStatus(c echo.Context) error {
	id := c.Param("id")
	status, ok := h.pipeline.Status(id)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("task %s not found", id))
	}
	if status.TenantID != principal(c).TenantID {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("task %s not found", id))
	}
	return xhttp.SuccessResponse(c, status)
}

func (h *BatchHandler) Tasks(c echo.Context) error {
	tasks := h.status.ListByTenant(principal(c).TenantID)
	return xhttp.ListResponse(c, tasks, int64(len(tasks)))
}

func (h *BatchHandler) batchError(c echo.Context, op string, err error) error {
	if errors.Is(err, domrepo.ErrNotFound) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("tenant not found"))
	}
	h.logger.Error(op+" error", xlogger.Error(err))
	return xhttp.AppErrorResponse(c, err)
}
