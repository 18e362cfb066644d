package ml

import (
	"math"
	"math/rand"
	"sort"
)

// TreeNode is one node of a binary decision tree. Exported fields keep
// the tree JSON-serializable for artifact persistence.
type TreeNode struct {
	Leaf      bool      `json:"leaf"`
	Value     float64   `json:"value"`
	Feature   int       `json:"feature,omitempty"`
	Threshold float64   `json:"threshold,omitempty"`
	Left      *TreeNode `json:"left,omitempty"`
	Right     *TreeNode `json:"right,omitempty"`
}

// predict walks the tree for one sample.
func (n *TreeNode) predict(x []float64) float64 {
	node := n
	for !node.Leaf {
		v := 0.0
		if node.Feature < len(x) {
			v = x[node.Feature]
		}
		if v <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Value
}

type treeCriterion int

const (
	criterionGini treeCriterion = iota
	criterionMSE
)

// treeBuilder grows a single tree. For classification targets are 0/1
// and leaves hold the positive-class fraction; for regression leaves
// hold a Newton step sum(grad)/sum(hess) when hessians are supplied,
// otherwise the target mean.
type treeBuilder struct {
	criterion      treeCriterion
	maxDepth       int
	minSamplesLeaf int
	maxFeatures    int // per-split feature subsample; 0 means all
	rng            *rand.Rand

	x           [][]float64
	target      []float64
	hess        []float64
	importances []float64
}

func (b *treeBuilder) build(x [][]float64, target, hess []float64) *TreeNode {
	b.x = x
	b.target = target
	b.hess = hess
	if len(x) > 0 {
		b.importances = make([]float64, len(x[0]))
	}

	idx := make([]int, len(x))
	for i := range idx {
		idx[i] = i
	}
	return b.grow(idx, 0)
}

func (b *treeBuilder) grow(idx []int, depth int) *TreeNode {
	if depth >= b.maxDepth || len(idx) < 2*b.minSamplesLeaf || b.pure(idx) {
		return &TreeNode{Leaf: true, Value: b.leafValue(idx)}
	}

	feature, threshold, gain := b.bestSplit(idx)
	if feature < 0 {
		return &TreeNode{Leaf: true, Value: b.leafValue(idx)}
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < b.minSamplesLeaf || len(right) < b.minSamplesLeaf {
		return &TreeNode{Leaf: true, Value: b.leafValue(idx)}
	}

	b.importances[feature] += gain * float64(len(idx))

	return &TreeNode{
		Feature:   feature,
		Threshold: threshold,
		Left:      b.grow(left, depth+1),
		Right:     b.grow(right, depth+1),
	}
}

func (b *treeBuilder) pure(idx []int) bool {
	if len(idx) == 0 {
		return true
	}
	first := b.target[idx[0]]
	for _, i := range idx[1:] {
		if b.target[i] != first {
			return false
		}
	}
	return true
}

func (b *treeBuilder) leafValue(idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	if b.hess != nil {
		var g, h float64
		for _, i := range idx {
			g += b.target[i]
			h += b.hess[i]
		}
		if h < 1e-12 {
			return 0
		}
		return g / h
	}
	var sum float64
	for _, i := range idx {
		sum += b.target[i]
	}
	return sum / float64(len(idx))
}

// bestSplit scans candidate features for the split with the largest
// impurity decrease. Returns feature -1 when no valid split exists.
func (b *treeBuilder) bestSplit(idx []int) (int, float64, float64) {
	nFeatures := len(b.x[0])
	features := make([]int, nFeatures)
	for i := range features {
		features[i] = i
	}
	if b.maxFeatures > 0 && b.maxFeatures < nFeatures {
		b.rng.Shuffle(nFeatures, func(i, j int) {
			features[i], features[j] = features[j], features[i]
		})
		features = features[:b.maxFeatures]
	}

	parent := b.impurity(idx)
	bestFeature := -1
	bestThreshold := 0.0
	bestGain := 1e-12

	vals := make([]float64, len(idx))
	order := make([]int, len(idx))

	for _, f := range features {
		for k, i := range idx {
			vals[k] = b.x[i][f]
			order[k] = i
		}
		sort.Sort(&byFeature{vals: vals, idx: order})

		// prefix sums over the sorted order
		var sumT float64
		prefT := make([]float64, len(order)+1)
		for k, i := range order {
			sumT += b.target[i]
			prefT[k+1] = sumT
		}

		for k := b.minSamplesLeaf; k <= len(order)-b.minSamplesLeaf; k++ {
			if vals[k] == vals[k-1] {
				continue
			}
			gain := parent - b.splitImpurity(order, prefT, k)
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = (vals[k-1] + vals[k]) / 2
			}
		}
	}

	return bestFeature, bestThreshold, bestGain
}

func (b *treeBuilder) impurity(idx []int) float64 {
	n := float64(len(idx))
	if n == 0 {
		return 0
	}
	if b.criterion == criterionGini {
		var pos float64
		for _, i := range idx {
			pos += b.target[i]
		}
		p := pos / n
		return 2 * p * (1 - p)
	}
	var sum, sumSq float64
	for _, i := range idx {
		sum += b.target[i]
		sumSq += b.target[i] * b.target[i]
	}
	mean := sum / n
	return sumSq/n - mean*mean
}

// splitImpurity computes the weighted child impurity of splitting the
// sorted order at position k, using target prefix sums.
func (b *treeBuilder) splitImpurity(order []int, prefT []float64, k int) float64 {
	n := float64(len(order))
	nl := float64(k)
	nr := n - nl
	if nl == 0 || nr == 0 {
		return math.Inf(1)
	}

	sumL := prefT[k]
	sumR := prefT[len(order)] - sumL

	if b.criterion == criterionGini {
		pl := sumL / nl
		pr := sumR / nr
		return (nl/n)*2*pl*(1-pl) + (nr/n)*2*pr*(1-pr)
	}

	// MSE impurity needs squared sums; recompute over the two halves.
	var sqL, sqR float64
	for i := 0; i < k; i++ {
		t := b.target[order[i]]
		sqL += t * t
	}
	for i := k; i < len(order); i++ {
		t := b.target[order[i]]
		sqR += t * t
	}
	ml := sumL / nl
	mr := sumR / nr
	varL := sqL/nl - ml*ml
	varR := sqR/nr - mr*mr
	return (nl/n)*varL + (nr/n)*varR
}

// byFeature sorts sample indices by their feature value, keeping the
// two slices aligned.
type byFeature struct {
	vals []float64
	idx  []int
}

func (s *byFeature) Len() int           { return len(s.vals) }
func (s *byFeature) Less(i, j int) bool { return s.vals[i] < s.vals[j] }
func (s *byFeature) Swap(i, j int) {
	s.vals[i], s.vals[j] = s.vals[j], s.vals[i]
	s.idx[i], s.idx[j] = s.idx[j], s.idx[i]
}
