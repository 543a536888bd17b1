// Package evaluate scores predictions against ground truth: multi-label
// quality, safety-oriented error analysis and per-model aggregates.
package evaluate

import (
	"github.com/IsseiKhai277/foodallergens/internal/allergen"
	"github.com/IsseiKhai277/foodallergens/internal/model"
)

// Quality scores one prediction. Both arguments are comma lists; blank or
// EMPTY is the empty set.
func Quality(groundTruth, predicted string) model.QualityMetrics {
	actual := allergen.Normalize(groundTruth)
	pred := allergen.Normalize(predicted)

	tp, fp, fn := confusion(actual, pred)
	labels := allergen.Size()

	return model.QualityMetrics{
		TP:          tp,
		FP:          fp,
		FN:          fn,
		TN:          labels - len(actual) - fp,
		Precision:   ratio(tp, tp+fp),
		Recall:      ratio(tp, tp+fn),
		MicroF1:     ratio(2*tp, 2*tp+fp+fn),
		MacroF1:     macroF1(actual, pred),
		ExactMatch:  sameSet(actual, pred),
		HammingLoss: ratio(fp+fn, labels),
		FNR:         ratio(fn, tp+fn),
	}
}

func confusion(actual, pred map[string]bool) (tp, fp, fn int) {
	for l := range pred {
		if actual[l] {
			tp++
		} else {
			fp++
		}
	}
	for l := range actual {
		if !pred[l] {
			fn++
		}
	}
	return tp, fp, fn
}

// macroF1 averages the binary F1 of every vocabulary label on a single
// sample. A label absent from both sets scores 0.
func macroF1(actual, pred map[string]bool) float64 {
	vocab := allergen.Vocabulary()
	var sum float64
	for _, l := range vocab {
		var tp, fp, fn int
		switch {
		case actual[l] && pred[l]:
			tp = 1
		case pred[l]:
			fp = 1
		case actual[l]:
			fn = 1
		}
		sum += ratio(2*tp, 2*tp+fp+fn)
	}
	return sum / float64(len(vocab))
}

func sameSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func ratio(num, den int) float64 {
	if den <= 0 {
		return 0
	}
	return float64(num) / float64(den)
}
