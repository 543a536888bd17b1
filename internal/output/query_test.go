package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/IsseiKhai277/foodallergens/internal/model"
)

func queryFixture() []model.Prediction {
	a := samplePrediction("qwen")

	b := samplePrediction("qwen")
	b.Item.ID = "8"
	b.Quality.ExactMatch = true
	b.Inference.LatencyMs = 100
	b.Inference.TTFTMs = -1
	b.Safety = model.SafetyMetrics{}

	c := samplePrediction("phi")
	c.Item.ID = "9"
	c.Safety = model.SafetyMetrics{Missed: []string{"tree nut"}}
	c.Error = "ERROR_DECODE_FAILED"
	return []model.Prediction{a, b, c}
}

func TestQueryPerPrediction(t *testing.T) {
	var out bytes.Buffer
	if err := Query(".model", queryFixture(), false, &out); err != nil {
		t.Fatalf("Query: %v", err)
	}
	if got := out.String(); got != "\"qwen\"\n\"qwen\"\n\"phi\"\n" {
		t.Errorf("output = %q", got)
	}
}

func TestQueryHelpers(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"hallucinations | .item.id", "\"7\"\n"},
		{"misses | .item.id", "\"9\"\n"},
		{"errored | .error", "\"ERROR_DECODE_FAILED\"\n"},
		{"exact | .item.id", "\"8\"\n"},
		{"by_model(\"phi\") | .item.name", "\"Granola\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			var out bytes.Buffer
			if err := Query(tt.expr, queryFixture(), false, &out); err != nil {
				t.Fatalf("Query: %v", err)
			}
			if out.String() != tt.want {
				t.Errorf("output = %q, want %q", out.String(), tt.want)
			}
		})
	}
}

func TestQuerySlurpSummary(t *testing.T) {
	var out bytes.Buffer
	if err := Query("model_summary", queryFixture(), true, &out); err != nil {
		t.Fatalf("Query: %v", err)
	}
	var rows []map[string]any
	if err := json.Unmarshal(out.Bytes(), &rows); err != nil {
		t.Fatalf("decode %q: %v", out.String(), err)
	}
	if len(rows) != 2 || rows[0]["model"] != "phi" {
		t.Fatalf("rows = %v", rows)
	}
	qwen := rows[1]
	if qwen["n"] != float64(2) || qwen["emr_pct"] != float64(50) || qwen["latency_ms"] != float64(500) || qwen["ttft_ms"] != float64(150) {
		t.Errorf("qwen row = %v", qwen)
	}
}

func TestQueryRejectsInvalidExpression(t *testing.T) {
	err := Query(".model |", queryFixture(), false, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "invalid query") {
		t.Fatalf("err = %v", err)
	}
}

func TestPreludeListsHelpers(t *testing.T) {
	prelude, err := Prelude()
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"def by_model", "def model_summary", "def mean"} {
		if !strings.Contains(prelude, name) {
			t.Errorf("prelude missing %q", name)
		}
	}
}
