package ml

import (
	"math"
	"sort"
)

// Evaluation holds classification scores for one model on one test set.
type Evaluation struct {
	Accuracy  float64
	Precision float64
	Recall    float64
	F1        float64
	ROCAUC    *float64
	MSE       float64
	RMSE      float64
	MAE       float64
}

// Evaluate scores predicted probabilities against 0/1 labels with a 0.5
// decision boundary. Precision/recall/F1 are defined as 0 when their
// denominator is 0. ROC-AUC is nil when the test set has only one class.
func Evaluate(probs []float64, y []int) Evaluation {
	var tp, fp, tn, fn float64
	var mse, mae float64

	for i, p := range probs {
		pred := 0
		if p >= 0.5 {
			pred = 1
		}
		switch {
		case pred == 1 && y[i] == 1:
			tp++
		case pred == 1 && y[i] == 0:
			fp++
		case pred == 0 && y[i] == 0:
			tn++
		default:
			fn++
		}
		diff := p - float64(y[i])
		mse += diff * diff
		mae += math.Abs(diff)
	}

	n := float64(len(probs))
	ev := Evaluation{}
	if n == 0 {
		return ev
	}

	ev.Accuracy = (tp + tn) / n
	if tp+fp > 0 {
		ev.Precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		ev.Recall = tp / (tp + fn)
	}
	if ev.Precision+ev.Recall > 0 {
		ev.F1 = 2 * ev.Precision * ev.Recall / (ev.Precision + ev.Recall)
	}
	ev.MSE = mse / n
	ev.RMSE = math.Sqrt(ev.MSE)
	ev.MAE = mae / n

	if auc, ok := rocAUC(probs, y); ok {
		ev.ROCAUC = &auc
	}
	return ev
}

// rocAUC computes the area under the ROC curve via the rank-sum
// formulation, with midrank tie handling. Undefined when only one class
// is present.
func rocAUC(probs []float64, y []int) (float64, bool) {
	n := len(probs)
	var nPos, nNeg float64
	for _, v := range y {
		if v == 1 {
			nPos++
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		return 0, false
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return probs[order[a]] < probs[order[b]]
	})

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j < n && probs[order[j]] == probs[order[i]] {
			j++
		}
		// midrank for ties; ranks are 1-based
		mid := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[order[k]] = mid
		}
		i = j
	}

	var rankSumPos float64
	for i, v := range y {
		if v == 1 {
			rankSumPos += ranks[i]
		}
	}

	auc := (rankSumPos - nPos*(nPos+1)/2) / (nPos * nNeg)
	return auc, true
}
