package ml

import (
	"errors"
	"fmt"
)

// Kind identifies a supported classifier algorithm. The set is fixed at
// compile time; an unknown kind is a configuration error, never a
// silent substitution.
type Kind string

const (
	KindGradientBoost Kind = "gradient_boost"
	KindRandomForest  Kind = "random_forest"
)

// ErrUnknownKind is returned for a model kind outside the registry.
var ErrUnknownKind = errors.New("ml: unknown model kind")

// ErrNotFitted is returned when predicting with an untrained model.
var ErrNotFitted = errors.New("ml: model is not fitted")

// Params are classifier hyperparameters. Zero values are replaced by
// the kind's defaults at construction.
type Params struct {
	NEstimators    int     `json:"n_estimators"`
	MaxDepth       int     `json:"max_depth"`
	LearningRate   float64 `json:"learning_rate"`
	MinSamplesLeaf int     `json:"min_samples_leaf"`
	Seed           int64   `json:"seed"`
}

// DefaultParams returns the static defaults for a model kind.
func DefaultParams(kind Kind) Params {
	switch kind {
	case KindGradientBoost:
		return Params{NEstimators: 100, MaxDepth: 3, LearningRate: 0.1, MinSamplesLeaf: 1, Seed: 42}
	default:
		return Params{NEstimators: 100, MaxDepth: 10, MinSamplesLeaf: 1, Seed: 42}
	}
}

func (p Params) withDefaults(kind Kind) Params {
	def := DefaultParams(kind)
	if p.NEstimators <= 0 {
		p.NEstimators = def.NEstimators
	}
	if p.MaxDepth <= 0 {
		p.MaxDepth = def.MaxDepth
	}
	if p.LearningRate <= 0 {
		p.LearningRate = def.LearningRate
	}
	if p.MinSamplesLeaf <= 0 {
		p.MinSamplesLeaf = def.MinSamplesLeaf
	}
	if p.Seed == 0 {
		p.Seed = def.Seed
	}
	return p
}

// Classifier is a binary classifier over dense float vectors.
// PredictProba returns P(class=1) for one sample.
type Classifier interface {
	Fit(x [][]float64, y []int) error
	PredictProba(x []float64) (float64, error)
	Kind() Kind
}

// ImportanceRanker is implemented by classifiers that expose per-feature
// importance scores after fitting.
type ImportanceRanker interface {
	FeatureImportances() []float64
}

// New constructs a classifier of the requested kind. Registry is fixed:
// both kinds are compiled in, so construction only fails on an unknown
// kind.
func New(kind Kind, params Params) (Classifier, error) {
	switch kind {
	case KindGradientBoost:
		return NewGradientBoost(params), nil
	case KindRandomForest:
		return NewRandomForest(params), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// ParseKind validates a configured model-kind string.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindGradientBoost, KindRandomForest:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

func validateTrainingSet(x [][]float64, y []int) error {
	if len(x) == 0 {
		return errors.New("ml: empty training set")
	}
	if len(x) != len(y) {
		return fmt.Errorf("ml: feature rows (%d) and labels (%d) differ", len(x), len(y))
	}
	width := len(x[0])
	if width == 0 {
		return errors.New("ml: training rows have no features")
	}
	for i, row := range x {
		if len(row) != width {
			return fmt.Errorf("ml: ragged feature row at index %d", i)
		}
	}
	return nil
}
