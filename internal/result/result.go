/*
PURPOSE:
  Encodes and decodes the single string returned by a classification call:
    TTFT_MS=<n>;ITPS=<n>;OTPS=<n>;OET_MS=<n>|<payload>

REQUIREMENTS:
  User-specified:
  - Every exit path produces a well-formed result.
  - Failures carry zero metrics and an ERROR_<REASON> payload.

  Implementation-discovered:
  - Hosts parse the string back; unknown or missing numbers fall back to -1.
  - Model output can leak tokenizer artifacts ("Ġ") into the label list.

ARCHITECTURE INTEGRATION:
  - Used by: internal/engine (Driver), internal/server, internal/engine (Runner).

ERROR HANDLING:
  - Parse returns ErrMalformed for strings that do not match the grammar.

RELATED FILES:
  - internal/allergen/extract.go
*/

package result

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/IsseiKhai277/foodallergens/internal/allergen"
)

// Unset is the sentinel for a metric that was never computed.
const Unset int64 = -1

// ErrorPrefix starts every error payload.
const ErrorPrefix = "ERROR_"

// Failure reasons emitted by the driver.
const (
	BackendInitFailed  = "BACKEND_INIT_FAILED"
	ModelLoadFailed    = "MODEL_LOAD_FAILED"
	ContextInitFailed  = "CONTEXT_INIT_FAILED"
	TokenizationFailed = "TOKENIZATION_FAILED"
	DecodeFailed       = "DECODE_FAILED"
)

// ErrMalformed is returned by Parse for strings outside the result grammar.
var ErrMalformed = errors.New("malformed result")

// Metrics are the four latency/throughput figures of one call.
type Metrics struct {
	TTFTMs int64 `json:"ttft_ms"` // call start to first accepted token
	ITPS   int64 `json:"itps"`    // prompt tokens per second during prefill
	OTPS   int64 `json:"otps"`    // generated tokens per second
	OETMs  int64 `json:"oet_ms"`  // generation loop wall time
}

// UnsetMetrics returns metrics with every field at the Unset sentinel.
func UnsetMetrics() Metrics {
	return Metrics{TTFTMs: Unset, ITPS: Unset, OTPS: Unset, OETMs: Unset}
}

// Result is a decoded classification result.
type Result struct {
	Metrics Metrics `json:"metrics"`
	Payload string  `json:"payload"`
}

// Encode renders metrics and payload in the wire format.
func Encode(m Metrics, payload string) string {
	return fmt.Sprintf("TTFT_MS=%d;ITPS=%d;OTPS=%d;OET_MS=%d|%s",
		m.TTFTMs, m.ITPS, m.OTPS, m.OETMs, payload)
}

// Failure renders a failed call: zero metrics and ERROR_<reason>.
func Failure(reason string) string {
	return Encode(Metrics{}, ErrorPrefix+reason)
}

// String renders r in the wire format.
func (r Result) String() string {
	return Encode(r.Metrics, r.Payload)
}

// IsError reports whether the payload is an error token.
func (r Result) IsError() bool {
	return strings.HasPrefix(r.Payload, ErrorPrefix)
}

// ErrorReason returns the NAME part of an ERROR_NAME payload, or "".
func (r Result) ErrorReason() string {
	if !r.IsError() {
		return ""
	}
	return strings.TrimPrefix(r.Payload, ErrorPrefix)
}

// IsEmpty reports whether the payload asserts no allergen.
func (r Result) IsEmpty() bool {
	return r.Payload == allergen.Empty
}

// Labels returns the vocabulary labels carried by the payload, in payload order.
// Error and EMPTY payloads yield nil.
func (r Result) Labels() []string {
	if r.IsError() || r.IsEmpty() {
		return nil
	}
	return Labels(r.Payload)
}

// Labels cleans a comma separated label list the way hosts consume it:
// tokenizer artifacts are dropped, entries are lowercased and trimmed, and
// anything outside the vocabulary is discarded.
func Labels(payload string) []string {
	cleaned := strings.ToLower(strings.ReplaceAll(payload, "Ġ", ""))
	var out []string
	for _, part := range strings.Split(cleaned, ",") {
		part = strings.TrimSpace(part)
		if allergen.IsAllowed(part) {
			out = append(out, part)
		}
	}
	return out
}

// Parse decodes a wire-format result. Metric values that are missing or not
// integers decode as Unset; a missing "|" separator or an empty metrics
// section is ErrMalformed.
func Parse(s string) (Result, error) {
	meta, payload, ok := strings.Cut(s, "|")
	if !ok || meta == "" {
		return Result{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}

	res := Result{Metrics: UnsetMetrics(), Payload: payload}
	for _, part := range strings.Split(meta, ";") {
		key, val, _ := strings.Cut(part, "=")
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			n = Unset
		}
		switch key {
		case "TTFT_MS":
			res.Metrics.TTFTMs = n
		case "ITPS":
			res.Metrics.ITPS = n
		case "OTPS":
			res.Metrics.OTPS = n
		case "OET_MS":
			res.Metrics.OETMs = n
		}
	}
	return res, nil
}

// Validate checks s against the strict grammar: all four metrics present in
// order with integer values, and a payload that is EMPTY, an error token, or a
// non-empty comma list of non-empty labels.
func Validate(s string) error {
	meta, payload, ok := strings.Cut(s, "|")
	if !ok {
		return fmt.Errorf("%w: missing separator", ErrMalformed)
	}

	keys := []string{"TTFT_MS", "ITPS", "OTPS", "OET_MS"}
	parts := strings.Split(meta, ";")
	if len(parts) != len(keys) {
		return fmt.Errorf("%w: want %d metrics, got %d", ErrMalformed, len(keys), len(parts))
	}
	for i, part := range parts {
		key, val, ok := strings.Cut(part, "=")
		if !ok || key != keys[i] {
			return fmt.Errorf("%w: metric %d is %q, want %s", ErrMalformed, i, part, keys[i])
		}
		if _, err := strconv.ParseInt(val, 10, 64); err != nil {
			return fmt.Errorf("%w: %s is not an integer: %q", ErrMalformed, key, val)
		}
	}

	switch {
	case payload == allergen.Empty:
		return nil
	case strings.HasPrefix(payload, ErrorPrefix):
		if len(payload) == len(ErrorPrefix) {
			return fmt.Errorf("%w: error token without a name", ErrMalformed)
		}
		return nil
	}
	for _, label := range strings.Split(payload, ",") {
		if label == "" {
			return fmt.Errorf("%w: empty label in %q", ErrMalformed, payload)
		}
	}
	return nil
}
