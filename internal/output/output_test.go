package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/IsseiKhai277/foodallergens/internal/model"
)

func samplePrediction(modelName string) model.Prediction {
	no := false
	return model.Prediction{
		Item:      model.FoodItem{ID: "7", Name: "Granola", Ingredients: "oats, almonds, honey", AllergensMapped: "tree nut"},
		Model:     modelName,
		DataSet:   1,
		Timestamp: time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC),
		Predicted: []string{"tree nut", "wheat"},
		Inference: model.InferenceMetrics{LatencyMs: 900, TTFTMs: 150, ITPS: 80, OTPS: 12, OETMs: 600},
		Quality:   model.QualityMetrics{TP: 1, FP: 1, TN: 7, Precision: 0.5, Recall: 1},
		Safety:    model.SafetyMetrics{OverPredicted: []string{"wheat"}, Hallucinated: []string{"wheat"}, CorrectAbstention: &no},
	}
}

func TestCSVWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.csv")
	w, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("NewCSVWriter: %v", err)
	}
	if err := w.Write(samplePrediction("qwen")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if len(rows[1]) != len(Header) {
		t.Fatalf("row has %d columns, header %d", len(rows[1]), len(Header))
	}
	col := func(name string) string {
		for i, h := range Header {
			if h == name {
				return rows[1][i]
			}
		}
		t.Fatalf("no column %q", name)
		return ""
	}
	if got := col("predicted"); got != "tree nut,wheat" {
		t.Errorf("predicted = %q", got)
	}
	if got := col("ttft_ms"); got != "150" {
		t.Errorf("ttft_ms = %q", got)
	}
	if got := col("correct_abstention"); got != "false" {
		t.Errorf("correct_abstention = %q", got)
	}
}

func TestJSONWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.jsonl")
	w, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("NewJSONWriter: %v", err)
	}
	for _, m := range []string{"a", "b"} {
		if err := w.Write(samplePrediction(m)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	w.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	got, err := ReadPredictions(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadPredictions: %v", err)
	}
	if len(got) != 2 || got[1].Model != "b" || got[0].Inference.OETMs != 600 {
		t.Fatalf("predictions = %+v", got)
	}

	if _, err := ReadPredictions(strings.NewReader("{}\nnot json\n")); err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("bad line error = %v", err)
	}
}

func TestWriteWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	grouped := map[string][]model.Prediction{
		"qwen2.5-1.5b.gguf": {samplePrediction("qwen2.5-1.5b.gguf")},
		"summary":           {samplePrediction("summary")},
	}
	summaries := []model.Summary{{Model: "qwen2.5-1.5b.gguf", Samples: 1, MicroF1: 0.667}}

	if err := WriteWorkbook(path, grouped, summaries); err != nil {
		t.Fatalf("WriteWorkbook: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	want := []string{SummarySheet, "qwen2.5-1.5b", "summary~2"}
	if strings.Join(sheets, "|") != strings.Join(want, "|") {
		t.Fatalf("sheets = %v, want %v", sheets, want)
	}
	rows, err := f.GetRows("qwen2.5-1.5b")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[1][0] != "qwen2.5-1.5b.gguf" {
		t.Errorf("model sheet rows = %v", rows)
	}
	if v, _ := f.GetCellValue(SummarySheet, "A2"); v != "qwen2.5-1.5b.gguf" {
		t.Errorf("summary A2 = %q", v)
	}
}

func TestSheetNameTruncatesAndEscapes(t *testing.T) {
	used := map[string]bool{}
	long := strings.Repeat("x", 40)
	a := sheetName(long, used)
	b := sheetName(long, used)
	if len(a) != 31 || len(b) != 31 || a == b {
		t.Errorf("names = %q, %q", a, b)
	}
	if got := sheetName("org/model:v1", used); got != "org_model_v1" {
		t.Errorf("sheetName = %q", got)
	}
}

func TestWriteReport(t *testing.T) {
	var buf bytes.Buffer
	err := WriteReport(&buf, []model.Summary{{Model: "phi-3.5", Samples: 20, MicroF1: 0.8126, AbstentionAccuracy: 100}})
	if err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Prediction quality", "Safety", "Efficiency", "phi-3.5", "0.813", "100.0"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := WriteReport(&buf, nil); err != nil || !strings.Contains(buf.String(), "No predictions") {
		t.Errorf("empty report = %q, %v", buf.String(), err)
	}
}

func TestConfigureJSON(t *testing.T) {
	prev := Logger
	defer SetLogger(prev)

	var buf bytes.Buffer
	Configure(&buf, FormatJSON, false)
	Logger.Debug("hidden")
	Logger.Info("shown", "k", "v")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if rec["msg"] != "shown" || rec["k"] != "v" {
		t.Errorf("record = %v", rec)
	}
}
