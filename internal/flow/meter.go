// Package flow estimates flow rate and accumulated volume from a pulse-output
// flow sensor.
//
// Pulses arrive asynchronously from a gpio.EdgeSource and are counted by the
// meter's edge handler. A polling caller reads volume and rate. The handler
// and the poller share a small amount of state: the pending volume counter
// is an atomic, and the window/debounce state sits behind a mutex whose
// critical section is a handful of integer operations on both sides.
package flow

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sweeney/flow-sensor/internal/clock"
	"github.com/sweeney/flow-sensor/internal/gpio"
)

// ErrClosed is returned by lifecycle calls on a closed meter.
var ErrClosed = errors.New("flow: meter closed")

// State is the lifecycle state of a meter.
type State int

const (
	StateCreated State = iota
	StateRunning
	StatePaused
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Meter counts pulses on one GPIO line.
type Meter struct {
	pin int
	src gpio.EdgeSource
	clk clock.Clock

	// life serializes Start/Pause/Resume/Close. It is never taken by the
	// edge handler, so Attach/Detach may block on in-flight handler calls.
	life    sync.Mutex
	state   State
	running atomic.Bool

	// pending counts pulses since the last Volume call.
	pending atomic.Uint32

	// mu guards everything below; held by handleEdge for O(1) work only.
	mu        sync.Mutex
	cal       Calibration
	win       window
	lastPulse uint32
	havePulse bool
	volume    float64
}

// NewMeter creates a meter for pin with the default calibration. Ingestion
// is disabled until Start.
func NewMeter(pin int, src gpio.EdgeSource, clk clock.Clock) *Meter {
	return &Meter{
		pin: pin,
		src: src,
		clk: clk,
		cal: DefaultCalibration(),
	}
}

// Pin returns the GPIO line the meter listens on.
func (m *Meter) Pin() int {
	return m.pin
}

// handleEdge is the edge callback. It must not allocate, block on anything
// but mu, or fail.
func (m *Meter) handleEdge() {
	m.mu.Lock()
	// Read the clock under the lock so rotations from the handler and the
	// poller see non-decreasing timestamps.
	now := m.clk.NowMs()
	if m.havePulse && clock.Elapsed(m.lastPulse, now) < m.cal.MinIntervalMs {
		m.mu.Unlock()
		return
	}
	m.win.rotate(now, m.cal.WindowPeriodMs)
	m.win.current++
	m.pending.Add(1)
	m.lastPulse = now
	m.havePulse = true
	m.mu.Unlock()
}

// Start enables ingestion. The first call opens the initial window at the
// current time. Starting a paused meter resumes it; starting a running meter
// does nothing. If the edge source cannot attach, the error wraps
// gpio.ErrAttach and the meter keeps its previous state.
func (m *Meter) Start() error {
	m.life.Lock()
	defer m.life.Unlock()

	switch m.state {
	case StateClosed:
		return ErrClosed
	case StateRunning:
		return nil
	case StateCreated:
		m.mu.Lock()
		m.win.reset(m.clk.NowMs())
		m.havePulse = false
		m.mu.Unlock()
	}
	return m.attachLocked()
}

// Resume re-enables ingestion after Pause without touching accumulated
// volume or window history. After a long pause the next rotation takes the
// idle-gap branch, so the rate reads zero rather than a stale value.
func (m *Meter) Resume() error {
	return m.Start()
}

// Pause disables ingestion. Counts, volume and window history are kept.
func (m *Meter) Pause() error {
	m.life.Lock()
	defer m.life.Unlock()

	switch m.state {
	case StateClosed:
		return ErrClosed
	case StateRunning:
	default:
		return nil
	}

	if err := m.src.Detach(m.pin); err != nil {
		return fmt.Errorf("pause meter on pin %d: %w", m.pin, err)
	}
	m.state = StatePaused
	m.running.Store(false)
	return nil
}

// Close disables ingestion permanently.
func (m *Meter) Close() error {
	m.life.Lock()
	defer m.life.Unlock()

	if m.state == StateClosed {
		return nil
	}
	var err error
	if m.state == StateRunning {
		if derr := m.src.Detach(m.pin); derr != nil {
			err = fmt.Errorf("close meter on pin %d: %w", m.pin, derr)
		}
	}
	m.state = StateClosed
	m.running.Store(false)
	return err
}

func (m *Meter) attachLocked() error {
	if err := m.src.Attach(m.pin, gpio.EdgeRising, m.handleEdge); err != nil {
		return fmt.Errorf("start meter on pin %d: %w", m.pin, err)
	}
	m.state = StateRunning
	m.running.Store(true)
	return nil
}

// IsRunning reports whether the meter is collecting pulses.
func (m *Meter) IsRunning() bool {
	return m.running.Load()
}

// State returns the current lifecycle state.
func (m *Meter) State() State {
	m.life.Lock()
	defer m.life.Unlock()
	return m.state
}

// Calibration returns a copy of the active calibration.
func (m *Meter) Calibration() Calibration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cal
}

// SetCalibration replaces the calibration. Invalid parameters are rejected
// and the previous calibration stays active. Callers should Pause first so
// that pulses in flight are counted entirely under one calibration.
func (m *Meter) SetCalibration(c Calibration) error {
	if err := c.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.cal = c
	m.mu.Unlock()
	return nil
}
