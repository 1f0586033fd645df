package flow

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidCalibration is returned when calibration parameters would make
// rate conversion undefined.
var ErrInvalidCalibration = errors.New("flow: invalid calibration")

// Calibration maps raw pulses to physical units.
type Calibration struct {
	// WindowPeriodMs is the length of one rate measurement window.
	WindowPeriodMs uint32

	// MinIntervalMs is the minimum time between accepted pulses.
	MinIntervalMs uint32

	// VolumePerPulse is the volume of fluid represented by one pulse, in
	// whatever unit the caller reports.
	VolumePerPulse float64
}

// Defaults applied to a new meter.
const (
	DefaultWindowPeriodMs = 1000
	DefaultMinIntervalMs  = 10
	DefaultVolumePerPulse = 1.0
)

// DefaultCalibration returns the calibration a new meter starts with.
func DefaultCalibration() Calibration {
	return Calibration{
		WindowPeriodMs: DefaultWindowPeriodMs,
		MinIntervalMs:  DefaultMinIntervalMs,
		VolumePerPulse: DefaultVolumePerPulse,
	}
}

// Validate rejects a zero window, a debounce floor that swallows the whole
// window, and a volume per pulse that is zero or not finite.
func (c Calibration) Validate() error {
	if c.WindowPeriodMs == 0 {
		return fmt.Errorf("%w: window period must be positive", ErrInvalidCalibration)
	}
	if c.MinIntervalMs >= c.WindowPeriodMs {
		return fmt.Errorf("%w: min interval %dms must be less than window period %dms",
			ErrInvalidCalibration, c.MinIntervalMs, c.WindowPeriodMs)
	}
	if c.VolumePerPulse == 0 || math.IsNaN(c.VolumePerPulse) || math.IsInf(c.VolumePerPulse, 0) {
		return fmt.Errorf("%w: volume per pulse must be a non-zero finite number, got %v",
			ErrInvalidCalibration, c.VolumePerPulse)
	}
	return nil
}

// rate converts a count over one window into volume per second.
func (c Calibration) rate(windowCounts uint32) float64 {
	return float64(windowCounts) * c.VolumePerPulse * (1000 / float64(c.WindowPeriodMs))
}
