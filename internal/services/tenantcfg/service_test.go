package tenantcfg

import (
	"context"
	"fmt"
	"testing"

	"stockpulse/internal/domain/models"
	"stockpulse/internal/domain/repository"
	"stockpulse/internal/ml"
	"stockpulse/pkg/cache"
	"stockpulse/pkg/logger"
)

type fakeConfigRepo struct {
	params map[string]*models.ConfigParam
	calls  int
}

func (f *fakeConfigRepo) Get(_ context.Context, tenantID int64, key string) (*models.ConfigParam, error) {
	f.calls++
	p, ok := f.params[fmt.Sprintf("%d:%s", tenantID, key)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func floatParam(tenantID int64, key string, v float64) *models.ConfigParam {
	return &models.ConfigParam{TenantID: tenantID, Key: key, ValueType: "float", FloatValue: &v}
}

func intParam(tenantID int64, key string, v int64) *models.ConfigParam {
	return &models.ConfigParam{TenantID: tenantID, Key: key, ValueType: "int", IntValue: &v}
}

func strParam(tenantID int64, key string, v string) *models.ConfigParam {
	return &models.ConfigParam{TenantID: tenantID, Key: key, ValueType: "string", StringValue: &v}
}

func TestDefaultsWhenUnset(t *testing.T) {
	svc := New(&fakeConfigRepo{params: map[string]*models.ConfigParam{}}, nil, 0, logger.Nop())
	ctx := context.Background()

	if got := svc.StrongMoveThreshold(ctx, 1); got != 3.0 {
		t.Fatalf("expected default threshold 3.0, got %v", got)
	}
	if got := svc.MaxDays(ctx, 1); got != 5 {
		t.Fatalf("expected default max days 5, got %v", got)
	}
	if got := svc.ConfidenceThreshold(ctx, 1); got != 0.5 {
		t.Fatalf("expected default confidence threshold 0.5, got %v", got)
	}
	kind, err := svc.ModelKind(ctx, 1)
	if err != nil {
		t.Fatalf("model kind: %v", err)
	}
	if kind != ml.KindGradientBoost {
		t.Fatalf("expected default gradient_boost, got %s", kind)
	}
}

func TestTenantOverrides(t *testing.T) {
	repo := &fakeConfigRepo{params: map[string]*models.ConfigParam{
		"7:STRONG_MOVE_THRESHOLD":          floatParam(7, KeyStrongMoveThreshold, 5.5),
		"7:MAX_DAYS":                       intParam(7, KeyMaxDays, 10),
		"7:MODEL_TYPE":                     strParam(7, KeyModelType, "random_forest"),
		"7:RANDOM_FOREST_N_ESTIMATORS":     intParam(7, "RANDOM_FOREST_N_ESTIMATORS", 50),
		"7:RANDOM_FOREST_MAX_DEPTH":        intParam(7, "RANDOM_FOREST_MAX_DEPTH", 4),
	}}
	svc := New(repo, nil, 0, logger.Nop())
	ctx := context.Background()

	if got := svc.StrongMoveThreshold(ctx, 7); got != 5.5 {
		t.Fatalf("expected 5.5, got %v", got)
	}
	if got := svc.MaxDays(ctx, 7); got != 10 {
		t.Fatalf("expected 10, got %v", got)
	}
	kind, err := svc.ModelKind(ctx, 7)
	if err != nil {
		t.Fatalf("model kind: %v", err)
	}
	if kind != ml.KindRandomForest {
		t.Fatalf("expected random_forest, got %s", kind)
	}
	params := svc.ModelParams(ctx, 7, kind)
	if params.NEstimators != 50 || params.MaxDepth != 4 {
		t.Fatalf("expected overridden hyperparameters, got %+v", params)
	}

	// other tenants are unaffected
	if got := svc.StrongMoveThreshold(ctx, 8); got != 3.0 {
		t.Fatalf("tenant 8 must see the default, got %v", got)
	}
}

func TestInvalidModelKindIsAnError(t *testing.T) {
	repo := &fakeConfigRepo{params: map[string]*models.ConfigParam{
		"2:MODEL_TYPE": strParam(2, KeyModelType, "lightgbm"),
	}}
	svc := New(repo, nil, 0, logger.Nop())

	if _, err := svc.ModelKind(context.Background(), 2); err == nil {
		t.Fatalf("configured unknown model kind must be an error, not a substitution")
	}
}

func TestLookupUsesCache(t *testing.T) {
	repo := &fakeConfigRepo{params: map[string]*models.ConfigParam{
		"3:MAX_DAYS": intParam(3, KeyMaxDays, 7),
	}}
	mc := cache.NewMemoryCache()
	defer mc.Close()
	svc := New(repo, mc, 0, logger.Nop())
	ctx := context.Background()

	if got := svc.MaxDays(ctx, 3); got != 7 {
		t.Fatalf("expected 7, got %v", got)
	}
	if got := svc.MaxDays(ctx, 3); got != 7 {
		t.Fatalf("expected 7 from cache, got %v", got)
	}
	if repo.calls != 1 {
		t.Fatalf("expected one repository hit, got %d", repo.calls)
	}
}
