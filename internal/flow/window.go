package flow

import "github.com/sweeney/flow-sensor/internal/clock"

// window counts pulses over fixed back-to-back periods, not a sliding
// interval. Pulses accumulate in current until the window closes, then the
// count is frozen in previous and a new window opens exactly one period
// later. The reported rate lags by up to one window.
//
//	Pulses     | |  |   |    |     |      |       |        |
//	           ------|-----------------------|----------------|
//	                 |<------ previous ----->|<-- current --->|
//	                                    windowStart          now
type window struct {
	current  uint32
	previous uint32
	start    uint32
}

// rotate closes the current window if now is past its end. It reports
// whether the idle-gap branch was taken.
//
// One boundary crossed: freeze the count and advance the start by exactly one
// period, keeping the window phase stable. More than two periods elapsed:
// flow has stopped (or is slower than one pulse per window), so both counts
// are zeroed and the phase is resynchronized to now. This also stops a burst
// of stale rotations on the next pulse after a long pause.
func (w *window) rotate(now, period uint32) (idle bool) {
	dt := uint64(clock.Elapsed(w.start, now))
	p := uint64(period)

	switch {
	case dt < p:
	case dt <= 2*p:
		w.previous = w.current
		w.current = 0
		w.start += period
	default:
		w.previous = 0
		w.current = 0
		w.start = now
		return true
	}
	return false
}

func (w *window) reset(now uint32) {
	w.current = 0
	w.previous = 0
	w.start = now
}
