package output

import (
	"fmt"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/IsseiKhai277/foodallergens/internal/model"
)

// SummarySheet is the name of the workbook's aggregate sheet.
const SummarySheet = "Summary"

// SummaryHeader is the column list of the summary sheet and table.
var SummaryHeader = []string{
	"model", "samples", "errors",
	"micro_f1", "macro_f1", "emr_pct", "avg_precision", "avg_recall", "avg_hamming_loss", "fnr",
	"hallucination_pct", "over_prediction_pct", "abstention_accuracy_pct",
	"avg_latency_ms", "avg_ttft_ms", "avg_itps", "avg_otps", "avg_oet_ms", "avg_heap_delta_kb",
}

// WriteWorkbook writes one sheet per model plus a summary sheet to path.
func WriteWorkbook(path string, grouped map[string][]model.Prediction, summaries []model.Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SummarySheet); err != nil {
		return err
	}
	if err := writeRows(f, SummarySheet, SummaryHeader, len(summaries), func(i int) []any {
		return summaryRow(summaries[i])
	}); err != nil {
		return err
	}

	names := make([]string, 0, len(grouped))
	for name := range grouped {
		names = append(names, name)
	}
	slices.Sort(names)

	used := map[string]bool{strings.ToLower(SummarySheet): true}
	for _, name := range names {
		sheet := sheetName(name, used)
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("sheet for %s: %w", name, err)
		}
		preds := grouped[name]
		if err := writeRows(f, sheet, Header, len(preds), func(i int) []any {
			rec := record(preds[i])
			row := make([]any, len(rec))
			for j, v := range rec {
				row[j] = v
			}
			return row
		}); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, header []string, n int, row func(int) []any) error {
	hdr := make([]any, len(header))
	for i, h := range header {
		hdr[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &hdr); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		r := row(i)
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			return err
		}
	}
	return nil
}

func summaryRow(s model.Summary) []any {
	return []any{
		s.Model, s.Samples, s.Errors,
		s.MicroF1, s.MacroF1, s.EMR, s.AvgPrecision, s.AvgRecall, s.AvgHammingLoss, s.FNR,
		s.HallucinationRate, s.OverPredictionRate, s.AbstentionAccuracy,
		s.AvgLatencyMs, s.AvgTTFTMs, s.AvgITPS, s.AvgOTPS, s.AvgOETMs, s.AvgHeapDeltaKB,
	}
}

// sheetName derives a unique, valid sheet name (at most 31 characters,
// none of []:*?/\) from a model name.
func sheetName(modelName string, used map[string]bool) string {
	base := strings.TrimSuffix(modelName, ".gguf")
	base = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, base)
	if base == "" {
		base = "model"
	}
	base = truncate(base, 31)

	name := base
	for i := 2; used[strings.ToLower(name)]; i++ {
		suffix := fmt.Sprintf("~%d", i)
		name = truncate(base, 31-len(suffix)) + suffix
	}
	used[strings.ToLower(name)] = true
	return name
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
