// Package gpio delivers edge events from GPIO input lines.
// The real implementation uses the Linux GPIO character device.
// The fake implementation lets tests fire edges by hand.
package gpio

import "errors"

// ErrAttach is wrapped by every error returned from EdgeSource.Attach.
// The line could not be bound to an edge handler, e.g. the offset does not
// exist or is already requested by another consumer.
var ErrAttach = errors.New("gpio: attach edge handler")

// Edge selects which transition triggers the handler.
type Edge int

const (
	EdgeRising Edge = iota
	EdgeFalling
)

func (e Edge) String() string {
	switch e {
	case EdgeRising:
		return "rising"
	case EdgeFalling:
		return "falling"
	default:
		return "unknown"
	}
}

// EdgeSource binds handlers to signal edges on GPIO lines.
type EdgeSource interface {
	// Attach starts calling handler once per qualifying transition on pin.
	// The handler runs on a goroutine owned by the source and is never
	// invoked concurrently with itself for the same pin.
	Attach(pin int, edge Edge, handler func()) error

	// Detach stops edge delivery for pin. When it returns, the handler is
	// not running and will not be called again. Detaching a pin that is not
	// attached is a no-op.
	Detach(pin int) error

	// Close detaches every pin and releases the underlying device.
	Close() error
}

// LevelReader reads the current level of an attached line.
type LevelReader interface {
	// Value returns 0 or 1, or an error if pin is not attached.
	Value(pin int) (int, error)
}

// DefaultChip is the gpiochip exposing the Raspberry Pi header pins.
const DefaultChip = "gpiochip0"

// DefaultPin is the BCM pin of the flow sensor signal wire.
const DefaultPin = 17
