/*
PURPOSE:
  High-level runner that orchestrates a batch evaluation.
  Loops through models -> dataset items, classifies each item and scores it.

REQUIREMENTS:
  User-specified:
  - Run the selected data set against every configured model.
  - Record latency and heap delta around each call, on top of the
    driver's own metrics.
  - Log results to CSV/JSON, the prediction store and an XLSX workbook.

  Implementation-discovered:
  - Needs to report progress (item n of m) in the log.
  - The terminal summary is printed once all models finished.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli (run)
  - Uses: Driver, internal/evaluate, internal/store, internal/output

ERROR HANDLING:
  - Logs errors but continues (resilience). A failed item is recorded with
    its error token and scored as an empty prediction.
  - Output setup failures abort before any model is loaded.
  - Context cancellation stops between items; finished items are kept.

IMPLEMENTATION RULES:
  - Sequential. One classification at a time.
  - Heap delta is runtime.MemStats.HeapAlloc after minus before, in KB.

USAGE:
  r := engine.NewRunner(driver, st)
  summaries, err := r.Run(ctx, plan)

RELATED FILES:
  - internal/engine/driver.go
  - internal/evaluate/aggregate.go
*/

package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/IsseiKhai277/foodallergens/internal/evaluate"
	"github.com/IsseiKhai277/foodallergens/internal/model"
	"github.com/IsseiKhai277/foodallergens/internal/output"
	"github.com/IsseiKhai277/foodallergens/internal/store"
)

// Output file names inside Plan.OutputDir.
const (
	CSVFile      = "predictions.csv"
	JSONFile     = "predictions.jsonl"
	WorkbookFile = "predictions.xlsx"
)

// Plan is one evaluation: which models, which items, where results go.
type Plan struct {
	Models    []ModelInfo
	Items     []model.FoodItem
	DataSet   int
	OutputDir string
}

// Runner runs plans through a Driver.
type Runner struct {
	Driver *Driver
	// Store is optional; nil skips persistence.
	Store store.Store
	// Report receives the terminal summary; nil discards it.
	Report io.Writer
	Now    func() time.Time
}

// NewRunner creates a Runner.
func NewRunner(d *Driver, st store.Store) *Runner {
	return &Runner{Driver: d, Store: st, Now: time.Now}
}

type sinks struct {
	csv  *output.CSVWriter
	json *output.JSONWriter
}

func openSinks(dir string) (*sinks, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	csvPath := filepath.Join(dir, CSVFile)
	cw, err := output.NewCSVWriter(csvPath)
	if err != nil {
		return nil, fmt.Errorf("failed to init CSV writer at %s: %w", csvPath, err)
	}
	jsonPath := filepath.Join(dir, JSONFile)
	jw, err := output.NewJSONWriter(jsonPath)
	if err != nil {
		cw.Close()
		return nil, fmt.Errorf("failed to init JSON writer at %s: %w", jsonPath, err)
	}
	return &sinks{csv: cw, json: jw}, nil
}

func (s *sinks) write(p model.Prediction) {
	if err := s.csv.Write(p); err != nil {
		output.Logger.Error("Failed to write prediction to CSV", "error", err)
	}
	if err := s.json.Write(p); err != nil {
		output.Logger.Error("Failed to write prediction to JSON", "error", err)
	}
}

func (s *sinks) close() {
	s.csv.Close()
	s.json.Close()
}

// Run executes the plan and returns one summary per model.
func (r *Runner) Run(ctx context.Context, plan Plan) ([]model.Summary, error) {
	if len(plan.Models) == 0 {
		return nil, fmt.Errorf("no models to run")
	}
	out, err := openSinks(plan.OutputDir)
	if err != nil {
		return nil, err
	}
	defer out.close()

	grouped := make(map[string][]model.Prediction)
	var runErr error

models:
	for _, m := range plan.Models {
		output.Logger.Info("Testing Model", "model", m.Name, "items", len(plan.Items), "data_set", plan.DataSet)

		for i, item := range plan.Items {
			if err := ctx.Err(); err != nil {
				output.Logger.Warn("Run cancelled", "model", m.Name, "done", i)
				runErr = err
				break models
			}

			p := r.classify(m, item, plan.DataSet)
			output.Logger.Info("Prediction",
				"model", m.Name,
				"progress", fmt.Sprintf("%d/%d", i+1, len(plan.Items)),
				"id", item.ID,
				"expected", item.AllergensMapped,
				"predicted", p.Predicted,
				"latency_ms", p.Inference.LatencyMs,
				"exact", p.Quality.ExactMatch,
				"error", p.Error,
			)

			if r.Store != nil {
				id, err := r.Store.Save(ctx, p)
				if err != nil {
					output.Logger.Error("Failed to store prediction", "model", m.Name, "id", item.ID, "error", err)
				} else {
					p.ID = id
				}
			}
			out.write(p)
			grouped[m.Name] = append(grouped[m.Name], p)
		}
	}

	var summaries []model.Summary
	for _, m := range plan.Models {
		if preds, ok := grouped[m.Name]; ok {
			summaries = append(summaries, evaluate.Summarize(m.Name, preds))
		}
	}

	xlsxPath := filepath.Join(plan.OutputDir, WorkbookFile)
	if err := output.WriteWorkbook(xlsxPath, grouped, summaries); err != nil {
		output.Logger.Error("Failed to write workbook", "path", xlsxPath, "error", err)
	}
	if r.Report != nil {
		if err := output.WriteReport(r.Report, summaries); err != nil {
			output.Logger.Error("Failed to write report", "error", err)
		}
	}
	return summaries, runErr
}

// classify runs one item and returns the scored prediction.
func (r *Runner) classify(m ModelInfo, item model.FoodItem, set int) model.Prediction {
	prompt := PromptFor(m.Name, item.Ingredients)

	before := heapKB()
	start := time.Now()
	outcome := r.Driver.Generate(prompt, m.Path)
	latency := time.Since(start)
	after := heapKB()

	p := evaluate.NewPrediction(item, m.Name, set, outcome.Result(), r.now())
	p.Inference.LatencyMs = latency.Milliseconds()
	p.Inference.HeapDeltaKB = after - before
	return p
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func heapKB() int64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return int64(ms.HeapAlloc / 1024)
}
