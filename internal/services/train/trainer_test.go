package train

import (
	"context"
	"fmt"
	"testing"
	"time"

	"stockpulse/internal/domain/models"
	"stockpulse/internal/domain/repository"
	"stockpulse/internal/ml"
	"stockpulse/internal/services/tenantcfg"
	"stockpulse/pkg/cache"
	"stockpulse/pkg/logger"
)

type memMarket struct {
	bars     map[int64][]models.EODBar
	features map[int64][]models.FeatureRow
}

func newMemMarket() *memMarket {
	return &memMarket{
		bars:     make(map[int64][]models.EODBar),
		features: make(map[int64][]models.FeatureRow),
	}
}

func (m *memMarket) Init(context.Context) error { return nil }

func (m *memMarket) EODRange(_ context.Context, symbolID int64, from, to time.Time) ([]models.EODBar, error) {
	var out []models.EODBar
	for _, b := range m.bars[symbolID] {
		if !b.Date.Before(from) && !b.Date.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memMarket) Closes(_ context.Context, symbolID int64, from, to time.Time) ([]models.ClosePoint, error) {
	var out []models.ClosePoint
	for _, b := range m.bars[symbolID] {
		if !b.Date.Before(from) && !b.Date.After(to) {
			out = append(out, models.ClosePoint{SymbolID: b.SymbolID, Date: b.Date, Close: b.Close})
		}
	}
	return out, nil
}

func (m *memMarket) EODAfter(_ context.Context, symbolID int64, after time.Time, limit int) ([]models.EODBar, error) {
	var out []models.EODBar
	for _, b := range m.bars[symbolID] {
		if b.Date.After(after) {
			out = append(out, b)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memMarket) EODDates(_ context.Context, symbolID int64) ([]time.Time, error) {
	var out []time.Time
	for _, b := range m.bars[symbolID] {
		out = append(out, b.Date)
	}
	return out, nil
}

func (m *memMarket) InsertEOD(_ context.Context, bars []models.EODBar) error {
	for _, b := range bars {
		m.bars[b.SymbolID] = append(m.bars[b.SymbolID], b)
	}
	return nil
}

func (m *memMarket) FeatureDates(_ context.Context, symbolID int64) ([]time.Time, error) {
	var out []time.Time
	for _, r := range m.features[symbolID] {
		out = append(out, r.Date)
	}
	return out, nil
}

func (m *memMarket) FeatureRange(_ context.Context, symbolID int64, from, to time.Time) ([]models.FeatureRow, error) {
	var out []models.FeatureRow
	for _, r := range m.features[symbolID] {
		if !r.Date.Before(from) && !r.Date.After(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memMarket) LatestFeature(_ context.Context, symbolID int64) (*models.FeatureRow, error) {
	rows := m.features[symbolID]
	if len(rows) == 0 {
		return nil, repository.ErrNotFound
	}
	latest := rows[0]
	for _, r := range rows[1:] {
		if r.Date.After(latest.Date) {
			latest = r
		}
	}
	return &latest, nil
}

func (m *memMarket) InsertFeatures(_ context.Context, rows []models.FeatureRow) error {
	for _, r := range rows {
		m.features[r.SymbolID] = append(m.features[r.SymbolID], r)
	}
	return nil
}

func (m *memMarket) Health(context.Context) error { return nil }
func (m *memMarket) Close() error                { return nil }

type memArtifacts struct {
	data map[string][]byte
}

func newMemArtifacts() *memArtifacts { return &memArtifacts{data: make(map[string][]byte)} }

func artifactKey(tenantID, symbolID int64, mt models.ModelType) string {
	return fmt.Sprintf("%d/%d/%s", tenantID, symbolID, mt)
}

func (a *memArtifacts) Save(_ context.Context, tenantID, symbolID int64, mt models.ModelType, data []byte) error {
	a.data[artifactKey(tenantID, symbolID, mt)] = data
	return nil
}

func (a *memArtifacts) Load(_ context.Context, tenantID, symbolID int64, mt models.ModelType) ([]byte, error) {
	d, ok := a.data[artifactKey(tenantID, symbolID, mt)]
	if !ok {
		return nil, repository.ErrArtifactNotFound
	}
	return d, nil
}

type memPerf struct {
	records []models.ModelPerformance
}

func (p *memPerf) Append(_ context.Context, rec *models.ModelPerformance) error {
	p.records = append(p.records, *rec)
	return nil
}

func (p *memPerf) History(_ context.Context, tenantID, symbolID int64, limit int) ([]models.ModelPerformance, error) {
	var out []models.ModelPerformance
	for _, r := range p.records {
		if r.TenantID == tenantID && r.SymbolID == symbolID {
			out = append(out, r)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type nopMetrics struct{}

func (nopMetrics) RecordTraining(string, string, string)          {}
func (nopMetrics) RecordPrediction(string, string)                {}
func (nopMetrics) RecordVerification(string, string)              {}
func (nopMetrics) RecordError(string)                             {}
func (nopMetrics) RecordCacheEvent(string)                        {}
func (nopMetrics) RecordModelAccuracy(string, string, string, float64) {}
func (nopMetrics) RecordBatchDuration(string, float64)            {}

type mapConfigRepo struct {
	params map[string]*models.ConfigParam
}

func (r *mapConfigRepo) Get(_ context.Context, tenantID int64, key string) (*models.ConfigParam, error) {
	p, ok := r.params[fmt.Sprintf("%d:%s", tenantID, key)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func (r *mapConfigRepo) set(tenantID int64, key, value string) {
	if r.params == nil {
		r.params = make(map[string]*models.ConfigParam)
	}
	v := value
	r.params[fmt.Sprintf("%d:%s", tenantID, key)] = &models.ConfigParam{
		TenantID: tenantID, Key: key, ValueType: "string", StringValue: &v,
	}
}

func testConfig(repo repository.ConfigRepository) *tenantcfg.Service {
	return tenantcfg.New(repo, cache.NewMemoryCache(), time.Minute, logger.Nop())
}

// seedMarket writes n consecutive daily bars for one symbol. Closes sit
// at 100 except on spike days, where they alternate 105 and 95 so the
// labeler sees strong moves in both directions. Every feature row gets
// varied but deterministic values.
func seedMarket(m *memMarket, symbolID int64, n, spikeEvery int) {
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		date := start.AddDate(0, 0, i)
		px := 100.0
		if spikeEvery > 0 && i > 0 && i%spikeEvery == 0 {
			if (i/spikeEvery)%2 == 0 {
				px = 105
			} else {
				px = 95
			}
		}
		m.bars[symbolID] = append(m.bars[symbolID], models.EODBar{
			SymbolID: symbolID,
			Date:     date,
			Open:     px - 0.5,
			High:     px + 1,
			Low:      px - 1,
			Close:    px,
			Volume:   1000,
		})
		m.features[symbolID] = append(m.features[symbolID], models.FeatureRow{
			SymbolID:         symbolID,
			Date:             date,
			WeekDay:          float64(i % 5),
			HLRange:          2.0 / px * 100,
			GapPct:           float64(i%7) * 0.1,
			BodyToRangeRatio: 0.25 + float64(i%4)*0.1,
			Return3D:         float64(i%11)*0.001 - 0.005,
			RSI14:            40 + float64(i%30),
			ATR5:             1.5 + float64(i%3)*0.2,
			VolumeSpikeRatio: 0.8 + float64(i%5)*0.1,
		})
	}
}

func newTrainer(m *memMarket, a *memArtifacts, p *memPerf, cfg *tenantcfg.Service) *Trainer {
	return New(m, a, p, cfg, nopMetrics{}, logger.Nop())
}

func TestTrainSuccess(t *testing.T) {
	m := newMemMarket()
	seedMarket(m, 1, 120, 8)
	arts := newMemArtifacts()
	perf := &memPerf{}
	tr := newTrainer(m, arts, perf, testConfig(&mapConfigRepo{}))

	res := tr.Train(context.Background(), 1, 1)
	if res.Status != models.TrainStatusSuccess {
		t.Fatalf("status = %s (%s), want success", res.Status, res.Reason)
	}
	if res.Move.Status != models.TrainStatusSuccess {
		t.Fatalf("move status = %s (%s)", res.Move.Status, res.Move.Reason)
	}
	if res.Move.Metrics == nil {
		t.Fatal("move metrics missing")
	}
	if res.ModelKind != string(ml.KindGradientBoost) {
		t.Fatalf("model kind = %s, want default gradient_boost", res.ModelKind)
	}
	if res.FeatureCount != FeatureCap {
		t.Fatalf("feature count = %d, want %d", res.FeatureCount, FeatureCap)
	}

	data, err := arts.Load(context.Background(), 1, 1, models.ModelTypeMove)
	if err != nil {
		t.Fatalf("move artifact missing: %v", err)
	}
	art, err := ml.DecodeArtifact(data)
	if err != nil {
		t.Fatalf("decode artifact: %v", err)
	}
	if art.FormatVersion != ml.ArtifactFormatVersion {
		t.Fatalf("format version = %d", art.FormatVersion)
	}
	if len(art.SelectedFeatures) != FeatureCap {
		t.Fatalf("selected features = %d, want %d", len(art.SelectedFeatures), FeatureCap)
	}

	if len(perf.records) == 0 {
		t.Fatal("no performance records appended")
	}
}

func TestTrainDirectionWithEnoughStrongMoves(t *testing.T) {
	m := newMemMarket()
	seedMarket(m, 1, 120, 8)
	arts := newMemArtifacts()
	tr := newTrainer(m, arts, &memPerf{}, testConfig(&mapConfigRepo{}))

	res := tr.Train(context.Background(), 1, 1)
	if res.Direction.Status != models.TrainStatusSuccess {
		t.Fatalf("direction status = %s (%s), want success", res.Direction.Status, res.Direction.Reason)
	}
	if _, err := arts.Load(context.Background(), 1, 1, models.ModelTypeDirection); err != nil {
		t.Fatalf("direction artifact missing: %v", err)
	}
}

func TestTrainDirectionSkippedWithoutStrongMoves(t *testing.T) {
	m := newMemMarket()
	seedMarket(m, 1, 120, 0) // flat closes, no strong moves
	arts := newMemArtifacts()
	tr := newTrainer(m, arts, &memPerf{}, testConfig(&mapConfigRepo{}))

	res := tr.Train(context.Background(), 1, 1)
	if res.Status != models.TrainStatusSuccess {
		t.Fatalf("status = %s (%s), want success", res.Status, res.Reason)
	}
	if res.Direction.Status != models.TrainStatusSkipped {
		t.Fatalf("direction status = %s, want skipped", res.Direction.Status)
	}
	if _, err := arts.Load(context.Background(), 1, 1, models.ModelTypeDirection); err == nil {
		t.Fatal("direction artifact written despite skip")
	}
}

func TestTrainInsufficientData(t *testing.T) {
	m := newMemMarket()
	seedMarket(m, 1, 10, 0)
	tr := newTrainer(m, newMemArtifacts(), &memPerf{}, testConfig(&mapConfigRepo{}))

	res := tr.Train(context.Background(), 1, 1)
	if res.Status != models.TrainStatusError {
		t.Fatalf("status = %s, want error", res.Status)
	}
	if res.Reason == "" {
		t.Fatal("error result has no reason")
	}
}

func TestTrainUnknownModelKind(t *testing.T) {
	m := newMemMarket()
	seedMarket(m, 1, 120, 8)
	repo := &mapConfigRepo{}
	repo.set(1, tenantcfg.KeyModelType, "xgboost")
	arts := newMemArtifacts()
	tr := newTrainer(m, arts, &memPerf{}, testConfig(repo))

	res := tr.Train(context.Background(), 1, 1)
	if res.Status != models.TrainStatusError {
		t.Fatalf("status = %s, want error for unknown model kind", res.Status)
	}
	if len(arts.data) != 0 {
		t.Fatal("artifacts written despite config error")
	}
}

func TestTrainRespectsModelKindOverride(t *testing.T) {
	m := newMemMarket()
	seedMarket(m, 1, 120, 8)
	repo := &mapConfigRepo{}
	repo.set(1, tenantcfg.KeyModelType, string(ml.KindRandomForest))
	arts := newMemArtifacts()
	tr := newTrainer(m, arts, &memPerf{}, testConfig(repo))

	res := tr.Train(context.Background(), 1, 1)
	if res.Status != models.TrainStatusSuccess {
		t.Fatalf("status = %s (%s)", res.Status, res.Reason)
	}

	data, err := arts.Load(context.Background(), 1, 1, models.ModelTypeMove)
	if err != nil {
		t.Fatalf("artifact: %v", err)
	}
	art, err := ml.DecodeArtifact(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if art.ModelKind != ml.KindRandomForest {
		t.Fatalf("artifact kind = %s, want random_forest", art.ModelKind)
	}
}
