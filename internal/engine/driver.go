/*
PURPOSE:
  Runs one end-to-end classification pass against a local model:
  backend init -> model load -> context -> tokenize -> prefill ->
  greedy decode loop -> allergen extraction -> encoded result.

REQUIREMENTS:
  User-specified:
  - Fixed session settings: 512 token context, 4 threads, 64 output tokens,
    prompt buffer of input length + 8.
  - Record TTFT, input tokens/s, output tokens/s and generation time.
  - Always return a well-formed result string, never an error.

  Implementation-discovered:
  - Every handle (model, context, sampler) is released on every exit path,
    so each acquisition is immediately followed by its deferred release.
  - Metric divisions are guarded; a zero-length interval leaves the metric
    at its -1 sentinel.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli (classify), internal/server, internal/engine (Runner).
  - Uses: internal/llama, internal/allergen, internal/result, internal/output.

ERROR HANDLING:
  - Failures before generation are fatal: zero metrics + ERROR_<REASON>.
  - A decode failure inside the generation loop only ends the loop; the text
    produced so far is kept and scored.
  - No retries. The caller re-invokes if it wants to.

IMPLEMENTATION RULES:
  - Single-threaded and blocking. No cancellation; the output budget bounds
    worst-case latency.
  - Loop state lives in genState, never in free variables.

USAGE:
  d := engine.NewDriver(llama.NewEngine(libDir))
  encoded := d.Classify(prompt, "/models/qwen2.5-1.5b-instruct-q4_k_m.gguf")

RELATED FILES:
  - internal/llama/engine.go
  - internal/allergen/extract.go
  - internal/result/result.go
*/

package engine

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/IsseiKhai277/foodallergens/internal/allergen"
	"github.com/IsseiKhai277/foodallergens/internal/llama"
	"github.com/IsseiKhai277/foodallergens/internal/output"
	"github.com/IsseiKhai277/foodallergens/internal/result"
)

// Settings are the fixed per-session parameters.
type Settings struct {
	ContextSize  int `yaml:"context_size" toml:"context_size"`
	Threads      int `yaml:"threads" toml:"threads"`
	OutputBudget int `yaml:"output_budget" toml:"output_budget"`
	PromptSlack  int `yaml:"prompt_slack" toml:"prompt_slack"`
}

// DefaultSettings returns the session parameters the classifier was tuned for.
func DefaultSettings() Settings {
	return Settings{
		ContextSize:  512,
		Threads:      4,
		OutputBudget: 64,
		PromptSlack:  8,
	}
}

// Stop reasons of the generation loop.
const (
	StopEOG    = "eog"
	StopBudget = "budget"
	StopDecode = "decode_error"
)

// Outcome is everything one pass produced.
type Outcome struct {
	Text         string // raw generated text
	Payload      string // extractor output, or ERROR_<reason>
	Metrics      result.Metrics
	PromptTokens int
	Generated    int
	StopReason   string
	Failure      string // non-empty for fatal failures
}

// Result renders the outcome in the wire format.
func (o Outcome) Result() string {
	if o.Failure != "" {
		return result.Failure(o.Failure)
	}
	return result.Encode(o.Metrics, o.Payload)
}

// Driver sequences engine calls for one classification.
type Driver struct {
	Engine   llama.Engine
	Settings Settings
	// Now is the time source; nil means time.Now.
	Now func() time.Time
}

// NewDriver returns a driver with default settings.
func NewDriver(e llama.Engine) *Driver {
	return &Driver{Engine: e, Settings: DefaultSettings()}
}

func (d *Driver) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Classify runs one pass and returns the encoded result.
func (d *Driver) Classify(prompt, modelPath string) string {
	return d.Generate(prompt, modelPath).Result()
}

// genState is the mutable state of the generation loop.
type genState struct {
	text      strings.Builder
	pos       int // next KV position
	limit     int // pos bound: prompt length + output budget
	generated int
	firstSeen bool
	ttftMs    int64
	stop      string
}

// Generate runs one pass and returns the full outcome.
func (d *Driver) Generate(prompt, modelPath string) Outcome {
	start := d.now()
	log := output.Logger.With("model", filepath.Base(modelPath))
	log.Info("Classification started", "prompt_bytes", len(prompt))

	fail := func(reason string, attrs ...any) Outcome {
		log.Error("Classification failed", append([]any{"reason", reason}, attrs...)...)
		return Outcome{Failure: reason, Payload: result.ErrorPrefix + reason}
	}

	if err := d.Engine.Init(); err != nil {
		return fail(result.BackendInitFailed, "error", err)
	}

	model, err := d.Engine.LoadModel(modelPath)
	if err != nil {
		return fail(result.ModelLoadFailed, "path", modelPath, "error", err)
	}
	defer model.Close()

	lctx, err := model.NewContext(llama.ContextParams{
		ContextSize: d.Settings.ContextSize,
		Threads:     d.Settings.Threads,
	})
	if err != nil {
		return fail(result.ContextInitFailed, "error", err)
	}
	defer lctx.Close()

	vocab := model.Vocab()
	tokens := vocab.Tokenize(prompt, true)
	if len(tokens) == 0 || len(tokens) > len(prompt)+d.Settings.PromptSlack {
		return fail(result.TokenizationFailed, "tokens", len(tokens))
	}

	sampler := lctx.NewGreedySampler()
	defer sampler.Close()

	out := Outcome{Metrics: result.UnsetMetrics(), PromptTokens: len(tokens)}

	prefillStart := d.now()
	if err := lctx.Decode(llama.PromptBatch(tokens)); err != nil {
		return fail(result.DecodeFailed, "phase", "prefill", "error", err)
	}
	if prefillMs := d.now().Sub(prefillStart).Milliseconds(); prefillMs > 0 {
		out.Metrics.ITPS = int64(len(tokens)) * 1000 / prefillMs
	}

	st := &genState{pos: len(tokens), limit: len(tokens) + d.Settings.OutputBudget, ttftMs: result.Unset}
	pieces := llama.NewPieceBuffer(llama.DefaultPieceSize)

	genStart := d.now()
	for d.step(st, start, vocab, lctx, sampler, pieces) {
	}
	genMs := d.now().Sub(genStart).Milliseconds()

	if genMs > 0 {
		out.Metrics.OTPS = int64(st.generated) * 1000 / genMs
	}
	out.Metrics.OETMs = genMs
	out.Metrics.TTFTMs = st.ttftMs

	out.Text = st.text.String()
	out.Generated = st.generated
	out.StopReason = st.stop
	log.Info("Raw model output", "text", out.Text, "tokens", st.generated, "stop", st.stop)

	out.Payload = allergen.Extract(out.Text)
	log.Info("Classification finished",
		"payload", out.Payload,
		"ttft_ms", out.Metrics.TTFTMs,
		"itps", out.Metrics.ITPS,
		"otps", out.Metrics.OTPS,
		"oet_ms", out.Metrics.OETMs,
	)
	return out
}

// step runs one iteration of the generation loop and reports whether the loop
// should continue.
func (d *Driver) step(st *genState, start time.Time, vocab llama.Vocab, lctx llama.Context, sampler llama.Sampler, pieces *llama.PieceBuffer) bool {
	if st.pos >= st.limit {
		st.stop = StopBudget
		return false
	}

	tok := sampler.Sample()
	if vocab.IsEOG(tok) {
		st.stop = StopEOG
		return false
	}

	if !st.firstSeen {
		st.ttftMs = d.now().Sub(start).Milliseconds()
		st.firstSeen = true
	}

	st.text.WriteString(pieces.Piece(vocab, tok))
	st.generated++

	if err := lctx.Decode(llama.TokenBatch(tok)); err != nil {
		output.Logger.Warn("Decode failed mid-generation, keeping partial output", "generated", st.generated, "error", err)
		st.stop = StopDecode
		return false
	}
	st.pos++
	return true
}
