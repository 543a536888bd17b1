package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/IsseiKhai277/foodallergens/internal/config"
	"github.com/IsseiKhai277/foodallergens/internal/engine"
	"github.com/IsseiKhai277/foodallergens/internal/llama"
	"github.com/IsseiKhai277/foodallergens/internal/model"
	"github.com/IsseiKhai277/foodallergens/internal/output"
	"github.com/IsseiKhai277/foodallergens/internal/result"
)

// execute runs the root command with args and returns what it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() {
		cfgFile, logFormat, verbose = "", "", false
		classifyModel, classifyPrompt, classifyIngredients = "", "", ""
		modelDirOverride, functionsDir = "", ""
		reportModel, reportFrom, reportDeleteAll = "", "", false
		storeOverride, querySlurp = "", false
		output.SetLogger(output.NewLogger(os.Stderr, output.FormatText, false))
	})
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writePredictions(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), engine.JSONFile)
	w, err := output.NewJSONWriter(path)
	if err != nil {
		t.Fatal(err)
	}
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, p := range []model.Prediction{
		{Item: model.FoodItem{ID: "1", Name: "Bread", AllergensMapped: "wheat"}, Model: "qwen.gguf", Timestamp: at,
			Predicted: []string{"wheat"}, Quality: model.QualityMetrics{TP: 1, TN: 8, Precision: 1, Recall: 1, MicroF1: 1, MacroF1: 1, ExactMatch: true}},
		{Item: model.FoodItem{ID: "2", Name: "Tofu", AllergensMapped: "soy"}, Model: "phi.gguf", Timestamp: at,
			Quality: model.QualityMetrics{FN: 1, TN: 8, FNR: 1}, Safety: model.SafetyMetrics{Missed: []string{"soy"}}},
	} {
		if err := w.Write(p); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestListModels(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "qwen.gguf"), []byte("GGUF"), 0644); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "list-models", "--model-dir", dir)
	if err != nil {
		t.Fatalf("list-models: %v", err)
	}
	if out != "- qwen.gguf (4 B)\n" {
		t.Errorf("output = %q", out)
	}
}

func TestClassifyNeedsOneInput(t *testing.T) {
	if _, err := execute(t, "classify", "--model", "x.gguf"); err == nil {
		t.Error("classify without input succeeded")
	}
	if _, err := execute(t, "classify", "--prompt", "a", "--ingredients", "b"); err == nil {
		t.Error("classify with both inputs succeeded")
	}
}

func TestClassifyReportsBackendFailure(t *testing.T) {
	if llama.Available {
		t.Skip("built with an inference library")
	}
	modelPath := filepath.Join(t.TempDir(), "qwen.gguf")
	if err := os.WriteFile(modelPath, []byte("GGUF"), 0644); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "classify", "--model", modelPath, "--ingredients", "milk")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	res, err := result.Parse(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("Parse(%q): %v", out, err)
	}
	if res.ErrorReason() != result.BackendInitFailed {
		t.Errorf("result = %q", out)
	}
}

func TestQueryCommand(t *testing.T) {
	path := writePredictions(t)
	out, err := execute(t, "query", "misses | .item.name", path)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if out != "\"Tofu\"\n" {
		t.Errorf("output = %q", out)
	}

	out, err = execute(t, "query", "-s", "length", path)
	if err != nil || out != "2\n" {
		t.Errorf("slurp output = %q, %v", out, err)
	}
}

func TestReportFromExport(t *testing.T) {
	path := writePredictions(t)
	out, err := execute(t, "report", "--from", path, "--model", "qwen.gguf")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !strings.Contains(out, "qwen.gguf") || strings.Contains(out, "phi.gguf") {
		t.Errorf("report:\n%s", out)
	}
}

func TestReportDeleteAll(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "foodallergens.yaml")
	storePath := filepath.Join(t.TempDir(), "predictions.db")
	if err := os.WriteFile(cfgPath, []byte("store_backend: sqlite\nstore_path: "+storePath+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "report", "--config", cfgPath, "--delete-all")
	if err != nil {
		t.Fatalf("report --delete-all: %v", err)
	}
	if out != "Deleted 0 predictions\n" {
		t.Errorf("output = %q", out)
	}
}

func TestFunctions(t *testing.T) {
	out, err := execute(t, "functions", "list")
	if err != nil || !strings.Contains(out, "def model_summary") {
		t.Fatalf("functions list = %q, %v", out, err)
	}

	dir := filepath.Join(t.TempDir(), "functions")
	if _, err := execute(t, "functions", "install", "--dir", dir); err != nil {
		t.Fatalf("functions install: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "foodallergens.jq")); err != nil {
		t.Errorf("installed file missing: %v", err)
	}

	written, unchanged, err := installFunctions(dir)
	if err != nil || written != 0 || unchanged != 1 {
		t.Errorf("reinstall = %d written, %d unchanged, %v", written, unchanged, err)
	}
}

func TestBuildPlans(t *testing.T) {
	items := make([]model.FoodItem, 5)
	models := []engine.ModelInfo{{Name: "m.gguf", Path: "m.gguf"}}

	cfg := config.DefaultConfig()
	cfg.Sets, cfg.SetIndex, cfg.OutputDir = 2, 2, "out"
	plans, err := buildPlans(cfg, models, items)
	if err != nil || len(plans) != 1 || len(plans[0].Items) != 2 || plans[0].DataSet != 2 || plans[0].OutputDir != "out" {
		t.Fatalf("single set plans = %+v, %v", plans, err)
	}

	cfg.SetIndex = 0
	plans, err = buildPlans(cfg, models, items)
	if err != nil || len(plans) != 2 {
		t.Fatalf("all sets plans = %+v, %v", plans, err)
	}
	if len(plans[0].Items) != 3 || plans[1].OutputDir != filepath.Join("out", "set_02") {
		t.Errorf("plans = %+v", plans)
	}

	if _, err := buildPlans(cfg, models, nil); err == nil {
		t.Error("empty dataset accepted")
	}
}

func TestHumanSize(t *testing.T) {
	for n, want := range map[int64]string{4: "4 B", 2048: "2.0 KiB", 3 << 30: "3.0 GiB"} {
		if got := humanSize(n); got != want {
			t.Errorf("humanSize(%d) = %q, want %q", n, got, want)
		}
	}
}
