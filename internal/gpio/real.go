//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// RealEdgeSource delivers edges from actual hardware using the Linux GPIO
// character device. One chip is shared by all attached pins.
type RealEdgeSource struct {
	chip *gpiocdev.Chip

	mu    sync.Mutex
	lines map[int]*gpiocdev.Line
}

// NewRealEdgeSource opens the named gpiochip, e.g. "gpiochip0".
func NewRealEdgeSource(chipName string) (*RealEdgeSource, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}
	return &RealEdgeSource{
		chip:  chip,
		lines: make(map[int]*gpiocdev.Line),
	}, nil
}

// Attach requests pin as an input with pull-up bias and edge detection.
// Flow sensors are typically open-collector, so the pull-up holds the line
// high between pulses.
func (s *RealEdgeSource) Attach(pin int, edge Edge, handler func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lines[pin]; ok {
		return fmt.Errorf("%w: pin %d already attached", ErrAttach, pin)
	}

	edgeOpt := gpiocdev.WithRisingEdge
	if edge == EdgeFalling {
		edgeOpt = gpiocdev.WithFallingEdge
	}

	line, err := s.chip.RequestLine(pin,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		edgeOpt,
		gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) {
			handler()
		}),
	)
	if err != nil {
		return fmt.Errorf("%w: pin %d: %v", ErrAttach, pin, err)
	}
	s.lines[pin] = line
	return nil
}

// Detach releases pin. Closing the line stops its event watcher before
// returning, so no handler call can follow.
func (s *RealEdgeSource) Detach(pin int) error {
	s.mu.Lock()
	line, ok := s.lines[pin]
	delete(s.lines, pin)
	s.mu.Unlock()

	if !ok {
		return nil
	}
	return releaseLine(pin, line)
}

// Value returns the raw level of an attached pin.
func (s *RealEdgeSource) Value(pin int) (int, error) {
	s.mu.Lock()
	line, ok := s.lines[pin]
	s.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("pin %d not attached", pin)
	}
	v, err := line.Value()
	if err != nil {
		return 0, fmt.Errorf("read pin %d: %w", pin, err)
	}
	return v, nil
}

// Close releases every line and the chip.
// Lines are reconfigured to input with pull-down (matching Pi boot defaults)
// before closing, so external hardware cannot hold them in an unexpected
// state during the next boot.
func (s *RealEdgeSource) Close() error {
	s.mu.Lock()
	lines := s.lines
	s.lines = make(map[int]*gpiocdev.Line)
	s.mu.Unlock()

	var errs []error
	for pin, line := range lines {
		if err := releaseLine(pin, line); err != nil {
			errs = append(errs, err)
		}
	}
	if s.chip != nil {
		if err := s.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %w", errors.Join(errs...))
	}
	return nil
}

func releaseLine(pin int, line *gpiocdev.Line) error {
	var errs []error
	if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", pin, err))
	}
	if err := line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close pin %d: %w", pin, err))
	}
	return errors.Join(errs...)
}
