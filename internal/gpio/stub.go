//go:build !linux

package gpio

import "errors"

// RealEdgeSource is not available on non-Linux platforms.
type RealEdgeSource struct{}

// NewRealEdgeSource returns an error on non-Linux platforms.
func NewRealEdgeSource(chipName string) (*RealEdgeSource, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Attach is not implemented on non-Linux platforms.
func (s *RealEdgeSource) Attach(pin int, edge Edge, handler func()) error {
	return ErrAttach
}

// Detach is not implemented on non-Linux platforms.
func (s *RealEdgeSource) Detach(pin int) error {
	return nil
}

// Value is not implemented on non-Linux platforms.
func (s *RealEdgeSource) Value(pin int) (int, error) {
	return 0, errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (s *RealEdgeSource) Close() error {
	return nil
}
