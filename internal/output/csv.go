/*
PURPOSE:
  Writes predictions to a CSV file, one row per classified item.
  Ensures data integrity by flushing writes immediately.

REQUIREMENTS:
  User-specified:
  - Output to CSV.
  - Keep file handle open for flushing so a crashed run keeps its rows.

  Implementation-discovered:
  - A new run overwrites the previous file.
  - Label lists are joined with "," inside one quoted cell.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine (Runner)
  - Consumes: internal/model.Prediction

ERROR HANDLING:
  - Returns error on file creation or write failure.

IMPLEMENTATION RULES:
  - Use encoding/csv.
  - Flush() after every write.
  - Mutex-guarded.

USAGE:
  w, err := output.NewCSVWriter("predictions.csv")
  w.Write(prediction)
  w.Close()

RELATED FILES:
  - internal/model/types.go

MAINTENANCE:
  - Update Header and record() together when Prediction changes.
*/

package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/IsseiKhai277/foodallergens/internal/allergen"
	"github.com/IsseiKhai277/foodallergens/internal/model"
)

// Header is the CSV column list, shared with the XLSX model sheets.
var Header = []string{
	"model", "data_set", "timestamp", "id", "name", "ingredients", "allergens_mapped", "predicted",
	"latency_ms", "heap_delta_kb", "ttft_ms", "itps", "otps", "oet_ms",
	"tp", "fp", "fn", "tn", "precision", "recall", "micro_f1", "macro_f1", "exact_match", "hamming_loss", "fnr",
	"hallucinated", "over_predicted", "missed", "correct_abstention",
	"error",
}

// CSVWriter handles writing predictions to a CSV file.
type CSVWriter struct {
	closer io.Closer
	writer *csv.Writer
	mu     sync.Mutex
}

// NewCSVWriter creates a new CSVWriter.
// It overwrites the file if it exists.
func NewCSVWriter(path string) (*CSVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w, err := newCSVWriter(f, f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

func newCSVWriter(out io.Writer, closer io.Closer) (*CSVWriter, error) {
	w := csv.NewWriter(out)
	if err := w.Write(Header); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return &CSVWriter{closer: closer, writer: w}, nil
}

// Write writes a single prediction to the CSV file.
// It is thread-safe.
func (cw *CSVWriter) Write(p model.Prediction) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if err := cw.writer.Write(record(p)); err != nil {
		return err
	}
	cw.writer.Flush()
	return cw.writer.Error()
}

// Close flushes and closes the underlying file.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.writer.Flush()
	if cw.closer == nil {
		return cw.writer.Error()
	}
	return cw.closer.Close()
}

// record maps a prediction onto Header.
func record(p model.Prediction) []string {
	m, q, s := p.Inference, p.Quality, p.Safety
	abstention := ""
	if s.CorrectAbstention != nil {
		abstention = strconv.FormatBool(*s.CorrectAbstention)
	}
	return []string{
		p.Model,
		strconv.Itoa(p.DataSet),
		p.Timestamp.Format(time.RFC3339),
		p.Item.ID,
		p.Item.Name,
		p.Item.Ingredients,
		p.Item.AllergensMapped,
		allergen.Join(p.Predicted),
		strconv.FormatInt(m.LatencyMs, 10),
		strconv.FormatInt(m.HeapDeltaKB, 10),
		strconv.FormatInt(m.TTFTMs, 10),
		strconv.FormatInt(m.ITPS, 10),
		strconv.FormatInt(m.OTPS, 10),
		strconv.FormatInt(m.OETMs, 10),
		strconv.Itoa(q.TP),
		strconv.Itoa(q.FP),
		strconv.Itoa(q.FN),
		strconv.Itoa(q.TN),
		fmt.Sprintf("%.4f", q.Precision),
		fmt.Sprintf("%.4f", q.Recall),
		fmt.Sprintf("%.4f", q.MicroF1),
		fmt.Sprintf("%.4f", q.MacroF1),
		strconv.FormatBool(q.ExactMatch),
		fmt.Sprintf("%.4f", q.HammingLoss),
		fmt.Sprintf("%.4f", q.FNR),
		strings.Join(s.Hallucinated, ","),
		strings.Join(s.OverPredicted, ","),
		strings.Join(s.Missed, ","),
		abstention,
		p.Error,
	}
}
