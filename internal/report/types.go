// Package report samples flow meters on the polling loop and decides when
// readings and heartbeats are due.
// Time is always injected via time.Time parameters.
package report

import (
	"time"

	"github.com/sweeney/flow-sensor/internal/units"
)

// Source is the polling side of a flow meter.
type Source interface {
	Volume() float64
	FlowRate() float64
	FlowCounts() uint32
	FlowRateCounts() uint32
	IsRunning() bool
}

// Meter is a named source with its presentation settings.
type Meter struct {
	Name      string
	Unit      string
	RateUnit  units.RateUnit
	Precision int32
	Source    Source
}

// Reading is one sample of a meter.
type Reading struct {
	Meter     string
	Timestamp time.Time

	// Volume is the accumulated volume in Unit.
	Volume float64

	// Rate is the flow rate in Unit per RateUnit.
	Rate float64

	Unit      string
	RateUnit  units.RateUnit
	Precision int32

	// Pulses is the pending count read just before Volume drained it. A
	// pulse landing between the two reads is in Volume but in no Pulses.
	Pulses uint32

	// WindowPulses is the pulse count of the last complete rate window.
	WindowPulses uint32

	Running bool
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Published int
}
