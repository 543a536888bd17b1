//go:build !yzma

package llama

// Stub engine used when the binary is built without the yzma tag.
// Build with -tags yzma to call into llama.cpp.

// Available reports whether this build links an inference library.
const Available = false

type unavailableEngine struct{}

// NewEngine returns an engine whose Init always fails with ErrUnavailable.
func NewEngine(_ string) Engine {
	return unavailableEngine{}
}

func (unavailableEngine) Init() error {
	return ErrUnavailable
}

func (unavailableEngine) LoadModel(_ string) (Model, error) {
	return nil, ErrUnavailable
}
