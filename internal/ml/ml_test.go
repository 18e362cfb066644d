package ml

import (
	"math"
	"math/rand"
	"testing"
)

// separableSet builds a toy set where feature 0 fully determines the
// label and feature 1 is uniform noise.
func separableSet(n int, seed int64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	x := make([][]float64, n)
	y := make([]int, n)
	for i := range x {
		label := i % 2
		v := rng.Float64()*0.4 + float64(label)
		x[i] = []float64{v, rng.Float64() * 10}
		y[i] = label
	}
	return x, y
}

func TestRandomForestLearnsSeparableData(t *testing.T) {
	x, y := separableSet(200, 1)
	f := NewRandomForest(Params{NEstimators: 20, MaxDepth: 5, Seed: 7})
	if err := f.Fit(x, y); err != nil {
		t.Fatalf("fit: %v", err)
	}

	correct := 0
	for i := range x {
		p, err := f.PredictProba(x[i])
		if err != nil {
			t.Fatalf("predict: %v", err)
		}
		pred := 0
		if p >= 0.5 {
			pred = 1
		}
		if pred == y[i] {
			correct++
		}
	}
	if acc := float64(correct) / float64(len(x)); acc < 0.95 {
		t.Fatalf("expected near-perfect training accuracy, got %.3f", acc)
	}
}

func TestGradientBoostLearnsSeparableData(t *testing.T) {
	x, y := separableSet(200, 2)
	g := NewGradientBoost(Params{NEstimators: 50, MaxDepth: 3, LearningRate: 0.2, Seed: 7})
	if err := g.Fit(x, y); err != nil {
		t.Fatalf("fit: %v", err)
	}

	correct := 0
	for i := range x {
		p, err := g.PredictProba(x[i])
		if err != nil {
			t.Fatalf("predict: %v", err)
		}
		pred := 0
		if p >= 0.5 {
			pred = 1
		}
		if pred == y[i] {
			correct++
		}
	}
	if acc := float64(correct) / float64(len(x)); acc < 0.95 {
		t.Fatalf("expected near-perfect training accuracy, got %.3f", acc)
	}
}

func TestFitIsDeterministicForFixedSeed(t *testing.T) {
	x, y := separableSet(100, 3)
	probe := []float64{0.7, 5.0}

	var first float64
	for run := 0; run < 2; run++ {
		g := NewGradientBoost(Params{NEstimators: 20, Seed: 11})
		if err := g.Fit(x, y); err != nil {
			t.Fatalf("fit: %v", err)
		}
		p, err := g.PredictProba(probe)
		if err != nil {
			t.Fatalf("predict: %v", err)
		}
		if run == 0 {
			first = p
		} else if p != first {
			t.Fatalf("expected identical output across runs, got %v and %v", first, p)
		}
	}
}

func TestForestImportancesFavorInformativeFeature(t *testing.T) {
	x, y := separableSet(300, 4)
	f := NewRandomForest(Params{NEstimators: 30, MaxDepth: 5, Seed: 9})
	if err := f.Fit(x, y); err != nil {
		t.Fatalf("fit: %v", err)
	}

	imp := f.FeatureImportances()
	if len(imp) != 2 {
		t.Fatalf("expected 2 importances, got %d", len(imp))
	}
	if imp[0] <= imp[1] {
		t.Fatalf("expected informative feature to dominate: %v", imp)
	}
}

func TestPredictBeforeFit(t *testing.T) {
	g := NewGradientBoost(Params{})
	if _, err := g.PredictProba([]float64{1}); err != ErrNotFitted {
		t.Fatalf("expected ErrNotFitted, got %v", err)
	}
	f := NewRandomForest(Params{})
	if _, err := f.PredictProba([]float64{1}); err != ErrNotFitted {
		t.Fatalf("expected ErrNotFitted, got %v", err)
	}
}

func TestRegistryRejectsUnknownKind(t *testing.T) {
	if _, err := New(Kind("xgboost"), Params{}); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
	if _, err := ParseKind("lightgbm"); err == nil {
		t.Fatalf("expected error for unknown kind string")
	}
}

func TestEvaluateZeroDivisionSafety(t *testing.T) {
	// all-negative predictions on all-negative labels: precision and
	// recall denominators are zero
	ev := Evaluate([]float64{0.1, 0.2, 0.3}, []int{0, 0, 0})
	if ev.Accuracy != 1.0 {
		t.Fatalf("expected accuracy 1.0, got %v", ev.Accuracy)
	}
	if ev.Precision != 0 || ev.Recall != 0 || ev.F1 != 0 {
		t.Fatalf("expected zero-safe precision/recall/f1, got %+v", ev)
	}
	if ev.ROCAUC != nil {
		t.Fatalf("expected nil ROC-AUC for single-class labels")
	}
}

func TestEvaluateROCAUC(t *testing.T) {
	// perfectly ranked probabilities
	ev := Evaluate([]float64{0.1, 0.2, 0.8, 0.9}, []int{0, 0, 1, 1})
	if ev.ROCAUC == nil || math.Abs(*ev.ROCAUC-1.0) > 1e-9 {
		t.Fatalf("expected AUC 1.0, got %v", ev.ROCAUC)
	}

	// reversed ranking
	ev = Evaluate([]float64{0.9, 0.8, 0.2, 0.1}, []int{0, 0, 1, 1})
	if ev.ROCAUC == nil || math.Abs(*ev.ROCAUC) > 1e-9 {
		t.Fatalf("expected AUC 0.0, got %v", ev.ROCAUC)
	}
}
