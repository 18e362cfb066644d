package ml

import (
	"encoding/json"
	"testing"
	"time"
)

func TestArtifactRoundTrip(t *testing.T) {
	x, y := separableSet(100, 5)
	g := NewGradientBoost(Params{NEstimators: 10, Seed: 3})
	if err := g.Fit(x, y); err != nil {
		t.Fatalf("fit: %v", err)
	}

	selected := []string{"rsi_14", "macd_histogram"}
	trainedAt := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	data, err := EncodeArtifact(g, selected, trainedAt, nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	art, err := DecodeArtifact(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if art.FormatVersion != ArtifactFormatVersion {
		t.Fatalf("expected format version %d, got %d", ArtifactFormatVersion, art.FormatVersion)
	}
	if art.ModelKind != KindGradientBoost {
		t.Fatalf("expected gradient_boost, got %s", art.ModelKind)
	}
	if len(art.SelectedFeatures) != 2 || art.SelectedFeatures[0] != "rsi_14" {
		t.Fatalf("selected features lost: %v", art.SelectedFeatures)
	}
	if !art.TrainedAt.Equal(trainedAt) {
		t.Fatalf("trained-at lost: %v", art.TrainedAt)
	}

	model, err := art.Instantiate()
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	want, _ := g.PredictProba(x[0])
	got, err := model.PredictProba(x[0])
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if got != want {
		t.Fatalf("restored model predicts %v, original %v", got, want)
	}
}

func TestDecodeLegacyBareModel(t *testing.T) {
	x, y := separableSet(50, 6)
	f := NewRandomForest(Params{NEstimators: 5, MaxDepth: 3, Seed: 3})
	if err := f.Fit(x, y); err != nil {
		t.Fatalf("fit: %v", err)
	}

	// a bare model document, no envelope
	bare, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	art, err := DecodeArtifact(bare)
	if err != nil {
		t.Fatalf("decode legacy: %v", err)
	}
	if art.ModelKind != KindRandomForest {
		t.Fatalf("expected random_forest inferred, got %s", art.ModelKind)
	}
	if art.SelectedFeatures != nil {
		t.Fatalf("legacy artifacts must normalize to nil selected features, got %v", art.SelectedFeatures)
	}
	if _, err := art.Instantiate(); err != nil {
		t.Fatalf("instantiate legacy: %v", err)
	}
}

func TestDecodeRejectsUnsupportedVersion(t *testing.T) {
	if _, err := DecodeArtifact([]byte(`{"format_version": 99, "model": {}}`)); err == nil {
		t.Fatalf("expected error for unsupported version")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := DecodeArtifact([]byte(`{"foo": "bar"}`)); err == nil {
		t.Fatalf("expected error for unrecognizable document")
	}
}
