// Package llamatest provides a scripted in-memory llama.Engine for tests.
package llamatest

import (
	"strings"
	"sync"
	"time"

	"github.com/IsseiKhai277/foodallergens/internal/llama"
)

// Token ids used by the fake vocabulary.
const (
	BOS    llama.Token = 1
	EOG    llama.Token = 2
	Filler llama.Token = 3
	first  llama.Token = 100
)

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock starting at a fixed instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Engine is a scripted engine. Each loaded model replays Script as the
// generated pieces, then emits EOG.
type Engine struct {
	// Script is the text of each generated token, in order.
	Script []string
	// NeverEOG keeps emitting Filler after the script instead of EOG.
	NeverEOG bool

	InitErr    error
	LoadErr    error
	ContextErr error
	PrefillErr error
	// FailDecodeAt makes the n-th single-token decode fail (1-based, 0 = never).
	FailDecodeAt int
	// Tokenize overrides the default tokenizer (BOS + one token per field).
	Tokenize func(text string, addBOS bool) []llama.Token

	// Clock, when set, advances by PrefillStep/DecodeStep on each decode.
	Clock       *Clock
	PrefillStep time.Duration
	DecodeStep  time.Duration

	mu         sync.Mutex
	initCalls  int
	open       map[string]int
	lastParams llama.ContextParams
	batches    []llama.Batch
	loaded     []string
}

func (e *Engine) track(kind string, delta int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.open == nil {
		e.open = make(map[string]int)
	}
	e.open[kind] += delta
}

// Init counts calls and returns InitErr.
func (e *Engine) Init() error {
	e.mu.Lock()
	e.initCalls++
	e.mu.Unlock()
	return e.InitErr
}

// LoadModel returns a fresh scripted model or LoadErr.
func (e *Engine) LoadModel(path string) (llama.Model, error) {
	if e.LoadErr != nil {
		return nil, e.LoadErr
	}
	e.mu.Lock()
	e.loaded = append(e.loaded, path)
	e.mu.Unlock()
	e.track("model", 1)

	v := &vocab{engine: e, pieces: make(map[llama.Token]string)}
	for i, s := range e.Script {
		v.pieces[first+llama.Token(i)] = s
	}
	v.pieces[Filler] = " filler"
	return &model{engine: e, vocab: v}, nil
}

// InitCalls returns how many times Init ran.
func (e *Engine) InitCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initCalls
}

// Open returns the number of live handles of kind ("model", "context",
// "sampler").
func (e *Engine) Open(kind string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.open[kind]
}

// Leaked returns the total number of live handles.
func (e *Engine) Leaked() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.open {
		n += c
	}
	return n
}

// LastParams returns the params of the most recent NewContext.
func (e *Engine) LastParams() llama.ContextParams {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastParams
}

// Batches returns every batch passed to Decode.
func (e *Engine) Batches() []llama.Batch {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]llama.Batch, len(e.batches))
	copy(out, e.batches)
	return out
}

// Loaded returns every model path passed to LoadModel.
func (e *Engine) Loaded() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.loaded))
	copy(out, e.loaded)
	return out
}

type model struct {
	engine *Engine
	vocab  *vocab
}

func (m *model) Vocab() llama.Vocab {
	return m.vocab
}

func (m *model) NewContext(params llama.ContextParams) (llama.Context, error) {
	m.engine.mu.Lock()
	m.engine.lastParams = params
	m.engine.mu.Unlock()
	if m.engine.ContextErr != nil {
		return nil, m.engine.ContextErr
	}
	m.engine.track("context", 1)
	return &context{engine: m.engine}, nil
}

func (m *model) Close() {
	m.engine.track("model", -1)
}

type vocab struct {
	engine *Engine
	pieces map[llama.Token]string
}

func (v *vocab) Tokenize(text string, addBOS bool) []llama.Token {
	if v.engine.Tokenize != nil {
		return v.engine.Tokenize(text, addBOS)
	}
	var out []llama.Token
	if addBOS {
		out = append(out, BOS)
	}
	for i := range strings.Fields(text) {
		out = append(out, llama.Token(10+i%50))
	}
	return out
}

func (v *vocab) IsEOG(tok llama.Token) bool {
	return tok == EOG
}

func (v *vocab) TokenToPiece(tok llama.Token, buf []byte) int {
	s := v.pieces[tok]
	if len(buf) < len(s) {
		return -len(s)
	}
	return copy(buf, s)
}

type context struct {
	engine  *Engine
	decodes int
	next    int
}

func (c *context) Decode(batch llama.Batch) error {
	e := c.engine
	e.mu.Lock()
	e.batches = append(e.batches, batch)
	e.mu.Unlock()

	if batch.Len() > 1 || c.decodes == 0 {
		c.decodes++
		if e.Clock != nil {
			e.Clock.Advance(e.PrefillStep)
		}
		if e.PrefillErr != nil {
			return e.PrefillErr
		}
		return nil
	}

	c.decodes++
	if e.Clock != nil {
		e.Clock.Advance(e.DecodeStep)
	}
	if e.FailDecodeAt > 0 && c.decodes-1 == e.FailDecodeAt {
		return llama.ErrDecode
	}
	return nil
}

func (c *context) NewGreedySampler() llama.Sampler {
	c.engine.track("sampler", 1)
	return &sampler{ctx: c}
}

func (c *context) Close() {
	c.engine.track("context", -1)
}

type sampler struct {
	ctx *context
}

func (s *sampler) Sample() llama.Token {
	c := s.ctx
	if c.next < len(c.engine.Script) {
		tok := first + llama.Token(c.next)
		c.next++
		return tok
	}
	if c.engine.NeverEOG {
		return Filler
	}
	return EOG
}

func (s *sampler) Close() {
	s.ctx.engine.track("sampler", -1)
}
