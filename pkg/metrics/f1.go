// Package metrics provides classification quality scores.
package metrics

import (
	"errors"
	"math"
)

// WeightedF1 returns the per-class F1 score averaged with weights equal to
// each class's support in yTrue. Classes that only appear in yPred carry no
// weight. A class whose precision and recall are both zero scores 0.
func WeightedF1(yTrue, yPred []int) (float64, error) {
	if len(yTrue) != len(yPred) {
		return 0, errors.New("label and prediction lengths differ")
	}
	if len(yTrue) == 0 {
		return 0, errors.New("no samples to score")
	}

	tp := map[int]int{}
	fp := map[int]int{}
	support := map[int]int{}
	for i, truth := range yTrue {
		support[truth]++
		if yPred[i] == truth {
			tp[truth]++
		} else {
			fp[yPred[i]]++
		}
	}

	score := 0.0
	for class, n := range support {
		fn := n - tp[class]
		score += float64(n) * f1(tp[class], fp[class], fn)
	}
	return score / float64(len(yTrue)), nil
}

// f1 is 2·TP / (2·TP + FP + FN), the harmonic mean of precision and recall.
func f1(tp, fp, fn int) float64 {
	denom := 2*tp + fp + fn
	if denom == 0 {
		return 0
	}
	return float64(2*tp) / float64(denom)
}

// Round rounds x half away from zero to the given number of decimals.
func Round(x float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Round(x*scale) / scale
}
