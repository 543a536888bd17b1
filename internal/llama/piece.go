package llama

// DefaultPieceSize is the initial scratch size for token text. Most pieces
// fit; longer ones grow the buffer.
const DefaultPieceSize = 128

// MaxPieceSize caps buffer growth. A request beyond it is treated as an
// engine fault and the piece is dropped.
const MaxPieceSize = 64 * 1024

// PieceBuffer converts tokens to text through a reusable, bounds-checked
// scratch buffer.
type PieceBuffer struct {
	buf []byte
}

// NewPieceBuffer returns a buffer with size bytes of scratch space.
func NewPieceBuffer(size int) *PieceBuffer {
	if size <= 0 {
		size = DefaultPieceSize
	}
	return &PieceBuffer{buf: make([]byte, size)}
}

// Piece returns the text of tok. When the vocab reports that the piece needs
// more room, the buffer grows to the requested size and the conversion is
// retried once. Out of range counts yield "".
func (p *PieceBuffer) Piece(v Vocab, tok Token) string {
	n := v.TokenToPiece(tok, p.buf)
	if n < 0 {
		need := -n
		if need > MaxPieceSize {
			return ""
		}
		if need > len(p.buf) {
			p.buf = make([]byte, need)
		}
		n = v.TokenToPiece(tok, p.buf)
	}
	if n <= 0 || n > len(p.buf) {
		return ""
	}
	return string(p.buf[:n])
}

// Cap returns the current scratch size.
func (p *PieceBuffer) Cap() int {
	return len(p.buf)
}
