package gpio

import (
	"fmt"
	"sync"
)

// Fake is a test double that records attachments and fires edges on demand.
type Fake struct {
	mu       sync.Mutex
	handlers map[int]func()
	edges    map[int]Edge

	// AttachError, if set, is wrapped in ErrAttach and returned by Attach.
	AttachError error

	// Attaches and Detaches count successful calls per pin.
	Attaches map[int]int
	Detaches map[int]int

	// Levels holds the value Value reports per pin. Missing pins read 0.
	Levels map[int]int

	// Closed tracks if Close was called.
	Closed bool
}

// NewFake creates an empty Fake edge source.
func NewFake() *Fake {
	return &Fake{
		handlers: make(map[int]func()),
		edges:    make(map[int]Edge),
		Attaches: make(map[int]int),
		Detaches: make(map[int]int),
		Levels:   make(map[int]int),
	}
}

// Attach records handler for pin.
func (f *Fake) Attach(pin int, edge Edge, handler func()) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.AttachError != nil {
		return fmt.Errorf("%w: pin %d: %v", ErrAttach, pin, f.AttachError)
	}
	if _, ok := f.handlers[pin]; ok {
		return fmt.Errorf("%w: pin %d already attached", ErrAttach, pin)
	}
	f.handlers[pin] = handler
	f.edges[pin] = edge
	f.Attaches[pin]++
	return nil
}

// Detach removes the handler for pin.
func (f *Fake) Detach(pin int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.handlers[pin]; !ok {
		return nil
	}
	delete(f.handlers, pin)
	delete(f.edges, pin)
	f.Detaches[pin]++
	return nil
}

// Close detaches everything.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for pin := range f.handlers {
		f.Detaches[pin]++
	}
	f.handlers = make(map[int]func())
	f.edges = make(map[int]Edge)
	f.Closed = true
	return nil
}

// Fire delivers one edge on pin. It reports whether a handler was attached.
// The lock is held while the handler runs, so Fire and Detach serialize the
// same way a real edge source does.
func (f *Fake) Fire(pin int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	h, ok := f.handlers[pin]
	if !ok {
		return false
	}
	h()
	return true
}

// Attached reports whether pin currently has a handler and its edge kind.
func (f *Fake) Attached(pin int) (Edge, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, ok := f.handlers[pin]
	return f.edges[pin], ok
}

// Value returns the configured level of an attached pin.
func (f *Fake) Value(pin int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.handlers[pin]; !ok {
		return 0, fmt.Errorf("pin %d not attached", pin)
	}
	return f.Levels[pin], nil
}
