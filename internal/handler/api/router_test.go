package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"stockpulse/internal/domain/models"
	domrepo "stockpulse/internal/domain/repository"
	"stockpulse/internal/services/prediction"
	"stockpulse/internal/services/tenantcfg"
	"stockpulse/internal/services/verify"
	"stockpulse/pkg/cache"
	xhttp "stockpulse/pkg/http"
	"stockpulse/pkg/logger"
)

type stubPredictions struct {
	rows []models.Prediction
}

func (s *stubPredictions) Replace(ctx context.Context, p *models.Prediction) error { return nil }
func (s *stubPredictions) Unprocessed(ctx context.Context, tenantID int64, olderThan time.Time) ([]models.Prediction, error) {
	return nil, nil
}
func (s *stubPredictions) UpdateVerification(ctx context.Context, preds []models.Prediction) error {
	return nil
}
func (s *stubPredictions) Latest(ctx context.Context, tenantID, symbolID int64) (*models.Prediction, error) {
	for i := range s.rows {
		if s.rows[i].TenantID == tenantID && s.rows[i].SymbolID == symbolID {
			return &s.rows[i], nil
		}
	}
	return nil, domrepo.ErrNotFound
}
func (s *stubPredictions) List(ctx context.Context, tenantID int64, f domrepo.PredictionFilter) ([]models.Prediction, int64, error) {
	var out []models.Prediction
	for _, r := range s.rows {
		if r.TenantID == tenantID {
			out = append(out, r)
		}
	}
	return out, int64(len(out)), nil
}
func (s *stubPredictions) Stats(ctx context.Context, tenantID int64, from, to time.Time) (*models.PredictionStats, error) {
	return &models.PredictionStats{}, nil
}
func (s *stubPredictions) AccuracyTrend(ctx context.Context, tenantID int64, days int) ([]models.AccuracyPoint, error) {
	return nil, nil
}

type stubPerformance struct{}

func (stubPerformance) Append(ctx context.Context, rec *models.ModelPerformance) error { return nil }
func (stubPerformance) History(ctx context.Context, tenantID, symbolID int64, limit int) ([]models.ModelPerformance, error) {
	return nil, nil
}

type stubMarket struct{}

func (stubMarket) Init(ctx context.Context) error { return nil }
func (stubMarket) EODRange(ctx context.Context, symbolID int64, from, to time.Time) ([]models.EODBar, error) {
	return nil, nil
}
func (stubMarket) EODAfter(ctx context.Context, symbolID int64, after time.Time, limit int) ([]models.EODBar, error) {
	return nil, nil
}
func (stubMarket) Closes(ctx context.Context, symbolID int64, from, to time.Time) ([]models.ClosePoint, error) {
	return nil, nil
}
func (stubMarket) EODDates(ctx context.Context, symbolID int64) ([]time.Time, error) {
	return nil, nil
}
func (stubMarket) InsertEOD(ctx context.Context, bars []models.EODBar) error { return nil }
func (stubMarket) FeatureDates(ctx context.Context, symbolID int64) ([]time.Time, error) {
	return nil, nil
}
func (stubMarket) FeatureRange(ctx context.Context, symbolID int64, from, to time.Time) ([]models.FeatureRow, error) {
	return nil, nil
}
func (stubMarket) LatestFeature(ctx context.Context, symbolID int64) (*models.FeatureRow, error) {
	return nil, domrepo.ErrNotFound
}
func (stubMarket) InsertFeatures(ctx context.Context, rows []models.FeatureRow) error { return nil }
func (stubMarket) Health(ctx context.Context) error                                   { return nil }
func (stubMarket) Close() error                                                       { return nil }

type emptyConfigRepo struct{}

func (emptyConfigRepo) Get(ctx context.Context, tenantID int64, key string) (*models.ConfigParam, error) {
	return nil, domrepo.ErrNotFound
}

type nopMetrics struct{}

func (nopMetrics) RecordTraining(tenant, modelType, result string)                      {}
func (nopMetrics) RecordPrediction(tenant, direction string)                            {}
func (nopMetrics) RecordVerification(tenant, outcome string)                            {}
func (nopMetrics) RecordError(kind string)                                              {}
func (nopMetrics) RecordCacheEvent(event string)                                        {}
func (nopMetrics) RecordModelAccuracy(tenant, symbol, modelType string, accuracy float64) {}
func (nopMetrics) RecordBatchDuration(stage string, seconds float64)                    {}

func testRouter(preds *stubPredictions) *echo.Echo {
	log := logger.Nop()
	cfg := tenantcfg.New(emptyConfigRepo{}, cache.NewMemoryCache(), time.Minute, log)
	svc := prediction.New(preds, stubPerformance{})
	ver := verify.New(preds, stubMarket{}, cfg, nopMetrics{}, log)

	ph := NewPredictionsHandler(log, svc, ver)
	r := NewRouter(log, ph, nil, stubMarket{})

	e := echo.New()
	e.GET("/healthz", r.Health)
	g := e.Group("/api/v1", requireTenant)
	g.GET("/predictions", ph.List)
	g.GET("/predictions/latest", ph.Latest)
	return e
}

func TestRequireTenantRejectsMissingHeader(t *testing.T) {
	e := testRouter(&stubPredictions{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/predictions", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var body xhttp.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 envelope, got %d", body.Status)
	}
}

func TestListScopedToCallerTenant(t *testing.T) {
	preds := &stubPredictions{rows: []models.Prediction{
		{TenantID: 1, SymbolID: 10, StrongMoveConfidence: 0.8},
		{TenantID: 2, SymbolID: 10, StrongMoveConfidence: 0.9},
	}}
	e := testRouter(preds)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/predictions", nil)
	req.Header.Set(headerTenantID, "1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Status int `json:"status"`
		Data   struct {
			Rows  []models.Prediction `json:"rows"`
			Total int64               `json:"total"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.Total != 1 || len(body.Data.Rows) != 1 {
		t.Fatalf("expected one row for tenant 1, got %+v", body.Data)
	}
	if body.Data.Rows[0].TenantID != 1 {
		t.Fatalf("leaked another tenant's row: %+v", body.Data.Rows[0])
	}
}

func TestLatestMissingPredictionIs404Envelope(t *testing.T) {
	e := testRouter(&stubPredictions{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/predictions/latest?symbol_id=10", nil)
	req.Header.Set(headerTenantID, "1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var body xhttp.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != http.StatusNotFound {
		t.Fatalf("expected 404 envelope, got %d: %s", body.Status, rec.Body.String())
	}
}

func TestLatestValidatesSymbolID(t *testing.T) {
	e := testRouter(&stubPredictions{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/predictions/latest", nil)
	req.Header.Set(headerTenantID, "1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var body xhttp.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != http.StatusBadRequest {
		t.Fatalf("expected 400 envelope, got %d", body.Status)
	}
	if !strings.Contains(rec.Body.String(), "SymbolID") {
		t.Fatalf("expected validation detail for SymbolID, got %s", rec.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	e := testRouter(&stubPredictions{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
