package ml

import (
	"math"
	"math/rand"
)

// RandomForest is a bagged ensemble of gini decision trees with
// per-split feature subsampling. Exported fields keep the fitted model
// JSON-serializable.
type RandomForest struct {
	Trees       []*TreeNode `json:"trees"`
	NFeatures   int         `json:"n_features"`
	Importances []float64   `json:"importances,omitempty"`
	Hyper       Params      `json:"params"`
}

// NewRandomForest creates an unfitted forest.
func NewRandomForest(params Params) *RandomForest {
	return &RandomForest{Hyper: params.withDefaults(KindRandomForest)}
}

func (f *RandomForest) Kind() Kind { return KindRandomForest }

// Fit trains the forest with bootstrap sampling. Deterministic for a
// fixed seed.
func (f *RandomForest) Fit(x [][]float64, y []int) error {
	if err := validateTrainingSet(x, y); err != nil {
		return err
	}

	f.NFeatures = len(x[0])
	f.Trees = make([]*TreeNode, 0, f.Hyper.NEstimators)
	f.Importances = make([]float64, f.NFeatures)

	target := make([]float64, len(y))
	for i, v := range y {
		target[i] = float64(v)
	}

	maxFeatures := int(math.Sqrt(float64(f.NFeatures)))
	if maxFeatures < 1 {
		maxFeatures = 1
	}

	rng := rand.New(rand.NewSource(f.Hyper.Seed))
	for t := 0; t < f.Hyper.NEstimators; t++ {
		bx := make([][]float64, len(x))
		bt := make([]float64, len(x))
		for i := range x {
			j := rng.Intn(len(x))
			bx[i] = x[j]
			bt[i] = target[j]
		}

		builder := &treeBuilder{
			criterion:      criterionGini,
			maxDepth:       f.Hyper.MaxDepth,
			minSamplesLeaf: f.Hyper.MinSamplesLeaf,
			maxFeatures:    maxFeatures,
			rng:            rng,
		}
		f.Trees = append(f.Trees, builder.build(bx, bt, nil))
		for i, imp := range builder.importances {
			f.Importances[i] += imp
		}
	}

	normalize(f.Importances)
	return nil
}

// PredictProba averages the positive-class fraction across trees.
func (f *RandomForest) PredictProba(x []float64) (float64, error) {
	if len(f.Trees) == 0 {
		return 0, ErrNotFitted
	}
	var sum float64
	for _, t := range f.Trees {
		sum += t.predict(x)
	}
	return sum / float64(len(f.Trees)), nil
}

// FeatureImportances returns normalized impurity-decrease scores.
func (f *RandomForest) FeatureImportances() []float64 {
	return f.Importances
}

func normalize(v []float64) {
	var total float64
	for _, x := range v {
		total += x
	}
	if total <= 0 {
		return
	}
	for i := range v {
		v[i] /= total
	}
}
