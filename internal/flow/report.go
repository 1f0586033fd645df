package flow

// Volume drains the pending pulse count into the accumulated volume and
// returns the new total. Pulses arriving during the call are either included
// now or left pending for the next call, never lost.
func (m *Meter) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.pending.Swap(0)
	m.volume += float64(n) * m.cal.VolumePerPulse
	return m.volume
}

// ResetVolume zeroes the accumulated volume and discards pending pulses.
// Rate window state is unaffected.
func (m *Meter) ResetVolume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = 0
	m.pending.Store(0)
}

// FlowRate returns volume per second over the last complete window. The
// window is rotated first, so the value stays current with no recent pulses.
func (m *Meter) FlowRate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.win.rotate(m.clk.NowMs(), m.cal.WindowPeriodMs) {
		// The last pulse is at least a period old; forget it so the
		// debounce check cannot misread it once the clock wraps.
		m.havePulse = false
	}
	return m.cal.rate(m.win.previous)
}

// FlowCounts returns pulses seen since the last Volume call.
func (m *Meter) FlowCounts() uint32 {
	return m.pending.Load()
}

// FlowRateCounts returns the pulse count of the last complete window.
func (m *Meter) FlowRateCounts() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.win.previous
}
