// Package clock provides the millisecond time source used by flow meters.
// Timestamps are uint32 and wrap roughly every 49.7 days, so durations must
// always be computed with Elapsed rather than by comparing timestamps.
package clock

// Clock is a monotonic millisecond counter.
type Clock interface {
	// NowMs returns the current time in milliseconds. The value wraps on
	// overflow and has no relation to wall-clock time.
	NowMs() uint32
}

// Elapsed returns the milliseconds from start to now, correct across a
// single wraparound of the counter.
func Elapsed(start, now uint32) uint32 {
	return now - start
}
