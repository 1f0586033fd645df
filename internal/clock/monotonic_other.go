//go:build !linux

package clock

import "time"

// Monotonic measures time since process start using the runtime's monotonic
// reading.
type Monotonic struct {
	start time.Time
}

// NewMonotonic returns a clock anchored at the current instant.
func NewMonotonic() Monotonic {
	return Monotonic{start: time.Now()}
}

// NowMs returns the milliseconds since the clock was created, wrapping at 2^32.
func (m Monotonic) NowMs() uint32 {
	return uint32(time.Since(m.start).Milliseconds())
}
