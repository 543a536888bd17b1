package evaluate

import (
	"slices"
	"time"

	"github.com/IsseiKhai277/foodallergens/internal/allergen"
	"github.com/IsseiKhai277/foodallergens/internal/model"
	"github.com/IsseiKhai277/foodallergens/internal/result"
)

// Score fills the quality and safety metrics of p from its item and
// predicted labels.
func Score(p *model.Prediction) {
	predicted := allergen.Join(p.Predicted)
	p.Quality = Quality(p.Item.AllergensMapped, predicted)
	p.Safety = Safety(p.Item.Ingredients, p.Item.AllergensMapped, predicted)
}

// Summarize aggregates the predictions of one model. Quality and safety
// cover every sample; efficiency averages skip errored samples and metrics
// left at the -1 sentinel.
func Summarize(modelName string, preds []model.Prediction) model.Summary {
	s := model.Summary{Model: modelName, Samples: len(preds)}
	if len(preds) == 0 {
		s.AbstentionAccuracy = 100
		return s
	}

	var sumPrecision, sumRecall, sumMacro, sumHamming float64
	var latency, ttft, itps, otps, oet, heap mean

	for _, p := range preds {
		q := p.Quality
		s.TotalTP += q.TP
		s.TotalFP += q.FP
		s.TotalFN += q.FN
		s.TotalTN += q.TN
		if q.ExactMatch {
			s.ExactMatches++
		}
		sumPrecision += q.Precision
		sumRecall += q.Recall
		sumMacro += q.MacroF1
		sumHamming += q.HammingLoss

		if p.Safety.HasHallucination() {
			s.HallucinationCount++
		}
		if p.Safety.HasOverPrediction() {
			s.OverPredictionCount++
		}
		if p.Safety.CorrectAbstention != nil {
			s.AbstentionCases++
			if *p.Safety.CorrectAbstention {
				s.CorrectAbstentions++
			}
		}

		if p.Error != "" {
			s.Errors++
			continue
		}
		m := p.Inference
		latency.add(m.LatencyMs)
		ttft.add(m.TTFTMs)
		itps.add(m.ITPS)
		otps.add(m.OTPS)
		oet.add(m.OETMs)
		heap.addAny(m.HeapDeltaKB)
	}

	n := float64(len(preds))
	s.AvgPrecision = sumPrecision / n
	s.AvgRecall = sumRecall / n
	s.MicroF1 = ratio(2*s.TotalTP, 2*s.TotalTP+s.TotalFP+s.TotalFN)
	s.MacroF1 = sumMacro / n
	s.EMR = float64(s.ExactMatches) / n * 100
	s.AvgHammingLoss = sumHamming / n
	s.FNR = ratio(s.TotalFN, s.TotalTP+s.TotalFN)

	s.HallucinationRate = float64(s.HallucinationCount) / n * 100
	s.OverPredictionRate = float64(s.OverPredictionCount) / n * 100
	s.AbstentionAccuracy = 100
	if s.AbstentionCases > 0 {
		s.AbstentionAccuracy = float64(s.CorrectAbstentions) / float64(s.AbstentionCases) * 100
	}

	s.AvgLatencyMs = latency.value()
	s.AvgTTFTMs = ttft.value()
	s.AvgITPS = itps.value()
	s.AvgOTPS = otps.value()
	s.AvgOETMs = oet.value()
	s.AvgHeapDeltaKB = heap.value()
	return s
}

// SummarizeAll groups predictions by model and summarizes each group, in
// model name order.
func SummarizeAll(preds []model.Prediction) []model.Summary {
	groups := make(map[string][]model.Prediction)
	for _, p := range preds {
		groups[p.Model] = append(groups[p.Model], p)
	}
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]model.Summary, 0, len(names))
	for _, name := range names {
		out = append(out, Summarize(name, groups[name]))
	}
	return out
}

// NewPrediction builds a scored prediction from an item and the encoded
// result of classifying it.
func NewPrediction(item model.FoodItem, modelName string, set int, encoded string, at time.Time) model.Prediction {
	p := model.Prediction{
		Item:      item,
		Model:     modelName,
		DataSet:   set,
		Timestamp: at,
		Raw:       encoded,
		Inference: model.InferenceMetrics{
			TTFTMs: result.Unset,
			ITPS:   result.Unset,
			OTPS:   result.Unset,
			OETMs:  result.Unset,
		},
	}

	res, err := result.Parse(encoded)
	switch {
	case err != nil:
		p.Error = err.Error()
	case res.IsError():
		p.Error = res.Payload
		p.Inference.TTFTMs = res.Metrics.TTFTMs
		p.Inference.ITPS = res.Metrics.ITPS
		p.Inference.OTPS = res.Metrics.OTPS
		p.Inference.OETMs = res.Metrics.OETMs
	default:
		p.Predicted = allergen.Ordered(toSet(res.Labels()))
		p.Inference.TTFTMs = res.Metrics.TTFTMs
		p.Inference.ITPS = res.Metrics.ITPS
		p.Inference.OTPS = res.Metrics.OTPS
		p.Inference.OETMs = res.Metrics.OETMs
	}
	Score(&p)
	return p
}

func toSet(labels []string) map[string]bool {
	set := make(map[string]bool, len(labels))
	for _, l := range labels {
		set[l] = true
	}
	return set
}

type mean struct {
	sum int64
	n   int
}

func (m *mean) add(v int64) {
	if v >= 0 {
		m.addAny(v)
	}
}

func (m *mean) addAny(v int64) {
	m.sum += v
	m.n++
}

func (m mean) value() float64 {
	if m.n == 0 {
		return 0
	}
	return float64(m.sum) / float64(m.n)
}
