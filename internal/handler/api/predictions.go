package api

import (
	"errors"
	"time"

	"github.com/labstack/echo/v4"

	domrepo "stockpulse/internal/domain/repository"
	"stockpulse/internal/services/prediction"
	"stockpulse/internal/services/verify"
	xhttp "stockpulse/pkg/http"
	xlogger "stockpulse/pkg/logger"
)

// PredictionsHandler serves tenant-scoped prediction queries and the
// verification trigger.
type PredictionsHandler struct {
	logger      *xlogger.Logger
	predictions *prediction.Service
	verifier    *verify.Service
}

func NewPredictionsHandler(logger *xlogger.Logger, predictions *prediction.Service, verifier *verify.Service) *PredictionsHandler {
	return &PredictionsHandler{logger: logger, predictions: predictions, verifier: verifier}
}

func (h *PredictionsHandler) List(c echo.Context) error {
	p := principal(c)
	req := &ListPredictionsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	f := domrepo.PredictionFilter{
		SymbolID:      req.SymbolID,
		Verified:      req.Verified,
		MinConfidence: req.MinConfidence,
		Limit:         req.Limit,
		Offset:        req.Offset,
	}
	if req.Date != "" {
		t, ok := xhttp.ParseTime(req.Date)
		if !ok {
			return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{
				Code:    "ERR_DATE",
				Field:   "date",
				Message: "date must be RFC3339 or unix seconds",
			}})
		}
		f.Date = &t
	}
	if req.Direction != "" {
		d := toDirection(req.Direction)
		f.Direction = &d
	}

	rows, total, err := h.predictions.List(c.Request().Context(), p.TenantID, f)
	if err != nil {
		h.logger.Error("predictions.list error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, rows, total)
}

func (h *PredictionsHandler) Latest(c echo.Context) error {
	p := principal(c)
	req := &LatestPredictionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	row, err := h.predictions.Latest(c.Request().Context(), p.TenantID, req.SymbolID)
	if errors.Is(err, domrepo.ErrNotFound) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no prediction for symbol %d", req.SymbolID))
	}
	if err != nil {
		h.logger.Error("predictions.latest error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, row)
}

func (h *PredictionsHandler) Stats(c echo.Context) error {
	p := principal(c)
	req := &StatsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	var from, to time.Time
	if req.From != "" {
		from = xhttp.ParseTimeDefault(req.From, time.Time{})
	}
	if req.To != "" {
		to = xhttp.ParseTimeDefault(req.To, time.Time{})
	}

	stats, err := h.predictions.Stats(c.Request().Context(), p.TenantID, from, to)
	if err != nil {
		h.logger.Error("predictions.stats error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, stats)
}

func (h *PredictionsHandler) Trend(c echo.Context) error {
	p := principal(c)
	req := &TrendRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	points, err := h.predictions.AccuracyTrend(c.Request().Context(), p.TenantID, req.Days)
	if err != nil {
		h.logger.Error("predictions.trend error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, points)
}

// Verify settles the caller's pending predictions against realized
// prices and reports how many rows changed.
func (h *PredictionsHandler) Verify(c echo.Context) error {
	p := principal(c)

	updated, err := h.verifier.VerifyPending(c.Request().Context(), p.TenantID)
	if err != nil {
		h.logger.Error("predictions.verify error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]int{"updated": updated})
}

func (h *PredictionsHandler) Performance(c echo.Context) error {
	p := principal(c)
	req := &PerformanceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	hist, err := h.predictions.PerformanceHistory(c.Request().Context(), p.TenantID, req.SymbolID, req.Limit)
	if err != nil {
		h.logger.Error("predictions.performance error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, hist)
}
