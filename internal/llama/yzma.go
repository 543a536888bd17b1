//go:build yzma

package llama

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	yz "github.com/hybridgroup/yzma/pkg/llama"
)

// Available reports whether this build links an inference library.
const Available = true

var (
	sharedMu      sync.Mutex
	sharedBackend *Backend
)

// processBackend returns the one Backend of the process. The library
// directory of the first caller wins.
func processBackend(libDir string) *Backend {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if sharedBackend == nil {
		sharedBackend = NewBackend(func() error { return loadLibrary(libDir) })
	}
	return sharedBackend
}

func loadLibrary(libDir string) error {
	if dir := os.Getenv(LibraryEnv); dir != "" {
		libDir = dir
	}
	if libDir == "" {
		libDir = DefaultLibraryDir
	}
	if abs, err := filepath.Abs(libDir); err == nil {
		libDir = abs
	}
	if err := yz.Load(libDir); err != nil {
		return fmt.Errorf("failed to load llama.cpp libraries from %s: %w", libDir, err)
	}
	yz.Init()
	return nil
}

type yzmaEngine struct {
	backend *Backend
}

// NewEngine returns an Engine backed by llama.cpp through yzma's purego
// bindings. libDir locates the shared libraries unless LibraryEnv is set.
func NewEngine(libDir string) Engine {
	return &yzmaEngine{backend: processBackend(libDir)}
}

func (e *yzmaEngine) Init() error {
	return e.backend.Init()
}

func (e *yzmaEngine) LoadModel(path string) (Model, error) {
	m, err := yz.ModelLoadFromFile(path, yz.ModelDefaultParams())
	if err != nil {
		return nil, fmt.Errorf("failed to load model %s: %w", path, err)
	}
	return &yzmaModel{model: m, vocab: yzmaVocab{vocab: yz.ModelGetVocab(m)}}, nil
}

type yzmaModel struct {
	model yz.Model
	vocab yzmaVocab
}

func (m *yzmaModel) Vocab() Vocab {
	return m.vocab
}

func (m *yzmaModel) NewContext(params ContextParams) (Context, error) {
	p := yz.ContextDefaultParams()
	p.NCtx = uint32(params.ContextSize)
	p.NBatch = uint32(params.ContextSize)
	p.NThreads = int32(params.Threads)
	p.NThreadsBatch = int32(params.Threads)

	lctx, err := yz.InitFromModel(m.model, p)
	if err != nil {
		return nil, fmt.Errorf("failed to create context: %w", err)
	}
	return &yzmaContext{ctx: lctx}, nil
}

func (m *yzmaModel) Close() {
	yz.ModelFree(m.model)
}

type yzmaVocab struct {
	vocab yz.Vocab
}

func (v yzmaVocab) Tokenize(text string, addBOS bool) []Token {
	raw := yz.Tokenize(v.vocab, text, addBOS, false)
	out := make([]Token, len(raw))
	for i, t := range raw {
		out[i] = Token(t)
	}
	return out
}

func (v yzmaVocab) IsEOG(tok Token) bool {
	return yz.VocabIsEOG(v.vocab, yz.Token(tok))
}

func (v yzmaVocab) TokenToPiece(tok Token, buf []byte) int {
	return int(yz.TokenToPiece(v.vocab, yz.Token(tok), buf, 0, true))
}

type yzmaContext struct {
	ctx yz.Context
}

// Decode submits the batch with llama_batch_get_one semantics: a distribution
// is computed for the last position only, which is what both PromptBatch and
// TokenBatch ask for.
func (c *yzmaContext) Decode(batch Batch) error {
	if batch.Len() == 0 {
		return fmt.Errorf("%w: empty batch", ErrDecode)
	}
	tokens := make([]yz.Token, batch.Len())
	for i, t := range batch.Tokens {
		tokens[i] = yz.Token(t)
	}
	ret, err := yz.Decode(c.ctx, yz.BatchGetOne(tokens))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if ret != 0 {
		return fmt.Errorf("%w: status %d", ErrDecode, ret)
	}
	return nil
}

func (c *yzmaContext) NewGreedySampler() Sampler {
	chain := yz.SamplerChainInit(yz.SamplerChainDefaultParams())
	yz.SamplerChainAdd(chain, yz.SamplerInitGreedy())
	return &yzmaSampler{sampler: chain, ctx: c.ctx}
}

func (c *yzmaContext) Close() {
	yz.Free(c.ctx)
}

type yzmaSampler struct {
	sampler yz.Sampler
	ctx     yz.Context
}

func (s *yzmaSampler) Sample() Token {
	return Token(yz.SamplerSample(s.sampler, s.ctx, -1))
}

func (s *yzmaSampler) Close() {
	yz.SamplerFree(s.sampler)
}
