/*
PURPOSE:
  Writes predictions to a JSON Lines file (NDJSON) and reads them back.
  The file is what `foodallergens query` runs jq expressions over.

REQUIREMENTS:
  User-specified:
  - JSON output for easier parsing.

  Implementation-discovered:
  - JSON Lines is better for streaming than a single large array (append-friendly).

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine (Runner), internal/cli (query, report)
  - Consumes: internal/model.Prediction

ERROR HANDLING:
  - Returns error on file creation or write failure.
  - ReadPredictions reports the line number of a bad record.

IMPLEMENTATION RULES:
  - One encoder over a buffered writer, flushed per record.
  - Safe for concurrent Write calls.

USAGE:
  w, err := output.NewJSONWriter("predictions.jsonl")
  w.Write(prediction)
  w.Close()

RELATED FILES:
  - internal/model/types.go
*/

package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/IsseiKhai277/foodallergens/internal/model"
)

// JSONWriter appends predictions to a JSON Lines stream.
type JSONWriter struct {
	closer io.Closer
	buf    *bufio.Writer
	enc    *json.Encoder
	mu     sync.Mutex
}

// NewJSONWriter creates a new JSONWriter, truncating path.
func NewJSONWriter(path string) (*JSONWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return newJSONWriter(f, f), nil
}

func newJSONWriter(out io.Writer, closer io.Closer) *JSONWriter {
	buf := bufio.NewWriter(out)
	return &JSONWriter{closer: closer, buf: buf, enc: json.NewEncoder(buf)}
}

// Write appends p as one line. Each line is flushed so a crashed run keeps
// everything written before it.
func (jw *JSONWriter) Write(p model.Prediction) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.enc.Encode(p); err != nil {
		return err
	}
	return jw.buf.Flush()
}

// Close flushes and closes the underlying file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	flushErr := jw.buf.Flush()
	if err := jw.closer.Close(); err != nil {
		return err
	}
	return flushErr
}

// ReadPredictions decodes an NDJSON stream of predictions.
func ReadPredictions(r io.Reader) ([]model.Prediction, error) {
	var out []model.Prediction
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var p model.Prediction
		if err := json.Unmarshal(sc.Bytes(), &p); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, p)
	}
	return out, sc.Err()
}
