package ml

import (
	"math"
	"math/rand"
)

// GradientBoost is a gradient-boosted ensemble of shallow regression
// trees under logistic loss, with Newton-step leaf values.
type GradientBoost struct {
	Trees    []*TreeNode `json:"trees"`
	BasePred float64     `json:"base_pred"` // initial log-odds
	Hyper    Params      `json:"params"`
	Fitted   bool        `json:"fitted"`
}

// NewGradientBoost creates an unfitted booster.
func NewGradientBoost(params Params) *GradientBoost {
	return &GradientBoost{Hyper: params.withDefaults(KindGradientBoost)}
}

func (g *GradientBoost) Kind() Kind { return KindGradientBoost }

// Fit trains the booster. Deterministic for a fixed seed.
func (g *GradientBoost) Fit(x [][]float64, y []int) error {
	if err := validateTrainingSet(x, y); err != nil {
		return err
	}

	n := len(x)
	var pos float64
	for _, v := range y {
		pos += float64(v)
	}
	// clamp so the log-odds stays finite on one-class data
	p := pos / float64(n)
	if p < 1e-6 {
		p = 1e-6
	}
	if p > 1-1e-6 {
		p = 1 - 1e-6
	}
	g.BasePred = math.Log(p / (1 - p))

	scores := make([]float64, n)
	for i := range scores {
		scores[i] = g.BasePred
	}

	grad := make([]float64, n)
	hess := make([]float64, n)
	rng := rand.New(rand.NewSource(g.Hyper.Seed))

	g.Trees = make([]*TreeNode, 0, g.Hyper.NEstimators)
	for t := 0; t < g.Hyper.NEstimators; t++ {
		for i := range x {
			pi := sigmoid(scores[i])
			grad[i] = float64(y[i]) - pi
			hess[i] = pi * (1 - pi)
		}

		builder := &treeBuilder{
			criterion:      criterionMSE,
			maxDepth:       g.Hyper.MaxDepth,
			minSamplesLeaf: g.Hyper.MinSamplesLeaf,
			rng:            rng,
		}
		tree := builder.build(x, grad, hess)
		g.Trees = append(g.Trees, tree)

		for i := range x {
			scores[i] += g.Hyper.LearningRate * tree.predict(x[i])
		}
	}

	g.Fitted = true
	return nil
}

// PredictProba returns the sigmoid of the boosted score.
func (g *GradientBoost) PredictProba(x []float64) (float64, error) {
	if !g.Fitted {
		return 0, ErrNotFitted
	}
	score := g.BasePred
	for _, t := range g.Trees {
		score += g.Hyper.LearningRate * t.predict(x)
	}
	return sigmoid(score), nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
