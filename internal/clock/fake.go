package clock

import "sync/atomic"

// Fake is a manually driven clock for tests. Safe for concurrent use.
type Fake struct {
	now atomic.Uint32
}

// NewFake returns a Fake clock reading start.
func NewFake(start uint32) *Fake {
	f := &Fake{}
	f.now.Store(start)
	return f
}

// NowMs returns the current fake time.
func (f *Fake) NowMs() uint32 {
	return f.now.Load()
}

// Set moves the clock to ms.
func (f *Fake) Set(ms uint32) {
	f.now.Store(ms)
}

// Advance moves the clock forward by d milliseconds, wrapping on overflow.
func (f *Fake) Advance(d uint32) {
	f.now.Add(d)
}
