/*
PURPOSE:
  Go-side view of the llama.cpp primitives a generation pass is built from:
  backend init, model load, context creation, tokenization, batched decode,
  greedy sampling, end-of-generation detection and token-to-text conversion.

REQUIREMENTS:
  User-specified:
  - The driver sequences these calls; the library does the real work.

  Implementation-discovered:
  - Handles must be releasable on every exit path, so every handle has Close().
  - The driver must be testable without a model file (see llamatest).

ARCHITECTURE INTEGRATION:
  - Implemented by: yzma.go (build tag yzma), unavailable.go (default build),
    internal/llama/llamatest (tests).
  - Used by: internal/engine (Driver).

ERROR HANDLING:
  - Load/context/decode failures are returned as errors; the driver maps them
    to result codes.

RELATED FILES:
  - internal/engine/driver.go
*/

package llama

import "errors"

// Token is a vocabulary token id.
type Token int32

var (
	// ErrUnavailable is returned by Init when no inference library is linked in.
	ErrUnavailable = errors.New("llama: inference library not available in this build")
	// ErrDecode is returned by Context.Decode when the engine rejects a batch.
	ErrDecode = errors.New("llama: decode failed")
)

// Engine is the process-level entry point of an inference library.
type Engine interface {
	// Init initializes the backend. Implementations must be idempotent and safe
	// for concurrent first use; see Backend.
	Init() error
	// LoadModel loads a model artifact from disk.
	LoadModel(path string) (Model, error)
}

// Model is a loaded model.
type Model interface {
	Vocab() Vocab
	NewContext(params ContextParams) (Context, error)
	Close()
}

// Vocab gives access to the model's tokenizer.
type Vocab interface {
	// Tokenize splits text into tokens, prepending BOS when addBOS is set.
	Tokenize(text string, addBOS bool) []Token
	// IsEOG reports whether tok ends generation.
	IsEOG(tok Token) bool
	// TokenToPiece writes the text of tok into buf and returns the number of
	// bytes written. A negative return is the buffer size the piece needs.
	TokenToPiece(tok Token, buf []byte) int
}

// Context is an inference context bound to a model.
type Context interface {
	Decode(batch Batch) error
	// NewGreedySampler returns an argmax sampler reading this context's logits.
	NewGreedySampler() Sampler
	Close()
}

// Sampler picks the next token from the last computed distribution.
type Sampler interface {
	Sample() Token
	Close()
}

// ContextParams configures NewContext.
type ContextParams struct {
	ContextSize int // n_ctx
	Threads     int // compute threads
}

// Batch is a run of tokens submitted to Decode. Logits marks the positions an
// output distribution is computed for.
type Batch struct {
	Tokens []Token
	Logits []bool
}

// PromptBatch builds the prefill batch: every prompt token, with a
// distribution requested only for the final position.
func PromptBatch(tokens []Token) Batch {
	b := Batch{
		Tokens: tokens,
		Logits: make([]bool, len(tokens)),
	}
	if len(tokens) > 0 {
		b.Logits[len(tokens)-1] = true
	}
	return b
}

// TokenBatch builds a single-token batch that requests its distribution.
func TokenBatch(tok Token) Batch {
	return Batch{Tokens: []Token{tok}, Logits: []bool{true}}
}

// Len returns the number of tokens in the batch.
func (b Batch) Len() int {
	return len(b.Tokens)
}
