package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/IsseiKhai277/foodallergens/internal/model"
)

var (
	accent      = lipgloss.Color("#00ff9f")
	dim         = lipgloss.Color("#6e7681")
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(accent).Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(accent).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(dim)
)

// WriteReport renders per-model summaries as three terminal tables:
// prediction quality, safety and efficiency.
func WriteReport(w io.Writer, summaries []model.Summary) error {
	if len(summaries) == 0 {
		_, err := fmt.Fprintln(w, "No predictions.")
		return err
	}

	quality := make([][]string, 0, len(summaries))
	safety := make([][]string, 0, len(summaries))
	efficiency := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		quality = append(quality, []string{
			s.Model, fmt.Sprint(s.Samples),
			f3(s.MicroF1), f3(s.MacroF1), f1(s.EMR), f3(s.AvgPrecision), f3(s.AvgRecall),
			f3(s.AvgHammingLoss), f3(s.FNR),
		})
		safety = append(safety, []string{
			s.Model,
			f1(s.HallucinationRate), f1(s.OverPredictionRate), f1(s.AbstentionAccuracy),
			fmt.Sprintf("%d/%d", s.CorrectAbstentions, s.AbstentionCases),
		})
		efficiency = append(efficiency, []string{
			s.Model, fmt.Sprint(s.Errors),
			f1(s.AvgLatencyMs), f1(s.AvgTTFTMs), f1(s.AvgITPS), f1(s.AvgOTPS), f1(s.AvgOETMs), f1(s.AvgHeapDeltaKB),
		})
	}

	var b strings.Builder
	section(&b, "Prediction quality",
		[]string{"Model", "N", "Micro F1", "Macro F1", "EMR %", "Precision", "Recall", "Hamming", "FNR"}, quality)
	section(&b, "Safety",
		[]string{"Model", "Hallucination %", "Over-prediction %", "Abstention %", "Abstained"}, safety)
	section(&b, "Efficiency",
		[]string{"Model", "Errors", "Latency ms", "TTFT ms", "ITPS", "OTPS", "OET ms", "Heap Δ KB"}, efficiency)

	_, err := io.WriteString(w, b.String())
	return err
}

func section(b *strings.Builder, title string, headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...)

	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(t.String())
	b.WriteString("\n\n")
}

func f1(v float64) string { return fmt.Sprintf("%.1f", v) }
func f3(v float64) string { return fmt.Sprintf("%.3f", v) }
