package output

import (
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"slices"
	"strings"

	"github.com/itchyny/gojq"

	"github.com/IsseiKhai277/foodallergens/internal/model"
)

// Functions holds the jq helper definitions available to every query.
//
//go:embed functions/*.jq
var Functions embed.FS

// Prelude returns the concatenated helper definitions.
func Prelude() (string, error) {
	names, err := fs.Glob(Functions, "functions/*.jq")
	if err != nil {
		return "", err
	}
	slices.Sort(names)
	var b strings.Builder
	for _, name := range names {
		data, err := fs.ReadFile(Functions, name)
		if err != nil {
			return "", err
		}
		b.Write(data)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// Query runs a jq expression over predictions. With slurp the input is the
// whole array, otherwise the expression runs once per prediction. Each
// result is written to w as one JSON line.
func Query(expr string, preds []model.Prediction, slurp bool, w io.Writer) error {
	prelude, err := Prelude()
	if err != nil {
		return fmt.Errorf("failed to load jq functions: %w", err)
	}
	q, err := gojq.Parse(prelude + expr)
	if err != nil {
		return fmt.Errorf("invalid query: %w", err)
	}
	code, err := gojq.Compile(q)
	if err != nil {
		return fmt.Errorf("invalid query: %w", err)
	}

	// gojq works on plain JSON values.
	raw, err := json.Marshal(preds)
	if err != nil {
		return err
	}
	var docs []any
	if err := json.Unmarshal(raw, &docs); err != nil {
		return err
	}

	inputs := docs
	if slurp {
		inputs = []any{docs}
	}

	enc := json.NewEncoder(w)
	for _, in := range inputs {
		iter := code.Run(in)
		for {
			v, ok := iter.Next()
			if !ok {
				break
			}
			if err, isErr := v.(error); isErr {
				if h, isHalt := err.(*gojq.HaltError); isHalt && h.Value() == nil {
					break
				}
				return fmt.Errorf("query failed: %w", err)
			}
			if err := enc.Encode(v); err != nil {
				return err
			}
		}
	}
	return nil
}
