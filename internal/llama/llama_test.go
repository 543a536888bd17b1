package llama

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestBackendInitRunsOnce(t *testing.T) {
	var calls atomic.Int32
	b := NewBackend(func() error {
		calls.Add(1)
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := b.Init(); err != nil {
				t.Errorf("Init: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("init ran %d times, want 1", got)
	}
}

func TestBackendInitMemoizesError(t *testing.T) {
	boom := errors.New("no library")
	calls := 0
	b := NewBackend(func() error {
		calls++
		return boom
	})
	for i := 0; i < 3; i++ {
		if err := b.Init(); !errors.Is(err, boom) {
			t.Fatalf("Init #%d = %v, want %v", i, err, boom)
		}
	}
	if calls != 1 {
		t.Fatalf("init ran %d times, want 1", calls)
	}
}

func TestPromptBatchMarksLastOnly(t *testing.T) {
	b := PromptBatch([]Token{1, 2, 3, 4})
	want := []bool{false, false, false, true}
	for i := range want {
		if b.Logits[i] != want[i] {
			t.Fatalf("Logits = %v, want %v", b.Logits, want)
		}
	}
	if b.Len() != 4 {
		t.Fatalf("Len = %d, want 4", b.Len())
	}
	if empty := PromptBatch(nil); empty.Len() != 0 || len(empty.Logits) != 0 {
		t.Fatalf("PromptBatch(nil) = %+v", empty)
	}

	tb := TokenBatch(7)
	if tb.Len() != 1 || !tb.Logits[0] || tb.Tokens[0] != 7 {
		t.Fatalf("TokenBatch = %+v", tb)
	}
}

type pieceVocab map[Token]string

func (v pieceVocab) Tokenize(string, bool) []Token { return nil }
func (v pieceVocab) IsEOG(Token) bool { return false }
func (v pieceVocab) TokenToPiece(tok Token, buf []byte) int {
	s := v[tok]
	if len(buf) < len(s) {
		return -len(s)
	}
	return copy(buf, s)
}

func TestPieceBufferGrows(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	v := pieceVocab{1: "milk", 2: string(long), 3: ""}

	p := NewPieceBuffer(8)
	if got := p.Piece(v, 1); got != "milk" {
		t.Errorf("Piece(1) = %q", got)
	}
	if got := p.Piece(v, 2); got != string(long) {
		t.Errorf("Piece(2) len = %d, want %d", len(got), len(long))
	}
	if p.Cap() != len(long) {
		t.Errorf("Cap = %d, want %d", p.Cap(), len(long))
	}
	if got := p.Piece(v, 3); got != "" {
		t.Errorf("Piece(3) = %q, want empty", got)
	}
}

type hugeVocab struct{}

func (hugeVocab) Tokenize(string, bool) []Token { return nil }
func (hugeVocab) IsEOG(Token) bool { return false }
func (hugeVocab) TokenToPiece(Token, []byte) int { return -(MaxPieceSize + 1) }

func TestPieceBufferRejectsOversizedRequest(t *testing.T) {
	p := NewPieceBuffer(0)
	if got := p.Piece(hugeVocab{}, 1); got != "" {
		t.Fatalf("Piece = %q, want empty", got)
	}
	if p.Cap() != DefaultPieceSize {
		t.Fatalf("Cap = %d, want %d", p.Cap(), DefaultPieceSize)
	}
}
