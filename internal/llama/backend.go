package llama

import "sync"

// Backend guards process-wide library initialization. The first Init runs the
// init function; every later call, concurrent or not, returns the first
// call's result without running it again. There is no teardown.
type Backend struct {
	once sync.Once
	init func() error
	err  error
}

// NewBackend wraps init in a once-only guard.
func NewBackend(init func() error) *Backend {
	return &Backend{init: init}
}

// Init runs the wrapped init function at most once.
func (b *Backend) Init() error {
	b.once.Do(func() {
		if b.init != nil {
			b.err = b.init()
		}
	})
	return b.err
}
