/*
PURPOSE:
  Defines the core data structures shared across foodallergens.
  These models represent dataset rows, predictions and their metrics.

REQUIREMENTS:
  User-specified:
  - Record latency, heap delta, TTFT, ITPS, OTPS and OET per prediction.
  - Track model name, dataset number and the ground truth used.

  Implementation-discovered:
  - Need JSON tags for NDJSON output, the HTTP API and gojq queries.
  - The Badger store encodes with msgpack using the same json tags.
  - Metrics that were never computed stay at -1.

ARCHITECTURE INTEGRATION:
  - Used by: internal/engine, internal/evaluate, internal/store, internal/output, internal/server
  - Shared across boundaries.

ERROR HANDLING:
  - None (pure data structs).

IMPLEMENTATION RULES:
  - Keep structs simple and public.
  - Sets of labels are stored as ordered slices (vocabulary order).

USAGE:
  p := model.Prediction{Item: item, Model: "qwen2.5-1.5b", ...}

RELATED FILES:
  - internal/output/csv.go
  - internal/output/json.go
  - internal/store/store.go
*/

package model

import (
	"time"
)

// FoodItem is one dataset row.
type FoodItem struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Link            string `json:"link,omitempty"`
	Ingredients     string `json:"ingredients"`
	Allergens       string `json:"allergens,omitempty"`        // raw, as published
	AllergensMapped string `json:"allergens_mapped,omitempty"` // ground truth in the vocabulary, or EMPTY
}

// InferenceMetrics are the efficiency figures of one classification.
type InferenceMetrics struct {
	LatencyMs   int64 `json:"latency_ms"` // client side, around the whole call
	HeapDeltaKB int64 `json:"heap_delta_kb"`
	TTFTMs      int64 `json:"ttft_ms"`
	ITPS        int64 `json:"itps"`
	OTPS        int64 `json:"otps"`
	OETMs       int64 `json:"oet_ms"`
}

// QualityMetrics score one prediction against its ground truth.
type QualityMetrics struct {
	TP          int     `json:"tp"`
	FP          int     `json:"fp"`
	FN          int     `json:"fn"`
	TN          int     `json:"tn"`
	Precision   float64 `json:"precision"`
	Recall      float64 `json:"recall"`
	MicroF1     float64 `json:"micro_f1"`
	MacroF1     float64 `json:"macro_f1"`
	ExactMatch  bool    `json:"exact_match"`
	HammingLoss float64 `json:"hamming_loss"`
	FNR         float64 `json:"fnr"`
}

// SafetyMetrics flag the dangerous kinds of error in one prediction.
type SafetyMetrics struct {
	Hallucinated  []string `json:"hallucinated,omitempty"`
	OverPredicted []string `json:"over_predicted,omitempty"`
	Missed        []string `json:"missed,omitempty"`
	// CorrectAbstention is nil unless the ground truth is empty.
	CorrectAbstention *bool `json:"correct_abstention,omitempty"`
}

// HasHallucination reports whether any label was hallucinated.
func (s SafetyMetrics) HasHallucination() bool { return len(s.Hallucinated) > 0 }

// HasOverPrediction reports whether any label was predicted beyond the ground truth.
func (s SafetyMetrics) HasOverPrediction() bool { return len(s.OverPredicted) > 0 }

// Prediction is one classified dataset item.
type Prediction struct {
	ID        string           `json:"id,omitempty"`
	Item      FoodItem         `json:"item"`
	Model     string           `json:"model"`
	DataSet   int              `json:"data_set"`
	Timestamp time.Time        `json:"timestamp"`
	Raw       string           `json:"raw"`       // encoded result string
	Predicted []string         `json:"predicted"` // labels, vocabulary order
	Inference InferenceMetrics `json:"inference"`
	Quality   QualityMetrics   `json:"quality"`
	Safety    SafetyMetrics    `json:"safety"`
	Error     string           `json:"error,omitempty"`
}

// Summary aggregates the predictions of one model.
type Summary struct {
	Model   string `json:"model"`
	Samples int    `json:"samples"`
	Errors  int    `json:"errors"`

	TotalTP        int     `json:"total_tp"`
	TotalFP        int     `json:"total_fp"`
	TotalFN        int     `json:"total_fn"`
	TotalTN        int     `json:"total_tn"`
	AvgPrecision   float64 `json:"avg_precision"`
	AvgRecall      float64 `json:"avg_recall"`
	MicroF1        float64 `json:"micro_f1"`
	MacroF1        float64 `json:"macro_f1"`
	ExactMatches   int     `json:"exact_matches"`
	EMR            float64 `json:"emr_pct"`
	AvgHammingLoss float64 `json:"avg_hamming_loss"`
	FNR            float64 `json:"fnr"`

	HallucinationCount  int     `json:"hallucination_count"`
	OverPredictionCount int     `json:"over_prediction_count"`
	AbstentionCases     int     `json:"abstention_cases"`
	CorrectAbstentions  int     `json:"correct_abstentions"`
	HallucinationRate   float64 `json:"hallucination_pct"`
	OverPredictionRate  float64 `json:"over_prediction_pct"`
	AbstentionAccuracy  float64 `json:"abstention_accuracy_pct"`

	AvgLatencyMs   float64 `json:"avg_latency_ms"`
	AvgTTFTMs      float64 `json:"avg_ttft_ms"`
	AvgITPS        float64 `json:"avg_itps"`
	AvgOTPS        float64 `json:"avg_otps"`
	AvgOETMs       float64 `json:"avg_oet_ms"`
	AvgHeapDeltaKB float64 `json:"avg_heap_delta_kb"`
}
