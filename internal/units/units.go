// Package units converts meter output into the units published to consumers.
package units

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/cockroachdb/apd/v3"
)

// RateUnit is the time base a flow rate is expressed in.
type RateUnit string

const (
	PerSecond RateUnit = "per_second"
	PerMinute RateUnit = "per_minute"
	PerHour   RateUnit = "per_hour"
)

// ParseRateUnit accepts the config spelling of a rate unit. Empty means
// per_second.
func ParseRateUnit(s string) (RateUnit, error) {
	switch RateUnit(s) {
	case "", PerSecond:
		return PerSecond, nil
	case PerMinute, PerHour:
		return RateUnit(s), nil
	default:
		return "", fmt.Errorf("unknown rate unit %q", s)
	}
}

// Factor is the number of seconds in one rate unit.
func (u RateUnit) Factor() float64 {
	switch u {
	case PerMinute:
		return 60
	case PerHour:
		return 3600
	default:
		return 1
	}
}

// FromPerSecond converts a per-second rate into u.
func (u RateUnit) FromPerSecond(rate float64) float64 {
	return rate * u.Factor()
}

// Label renders a rate unit for volume unit vol, e.g. "L/min".
func (u RateUnit) Label(vol string) string {
	switch u {
	case PerMinute:
		return vol + "/min"
	case PerHour:
		return vol + "/h"
	default:
		return vol + "/s"
	}
}

// MaxPrecision bounds the decimal places accepted by Round.
const MaxPrecision = 9

var errNotFinite = errors.New("units: value is not finite")

// Round rounds v half-up to places decimal digits and returns it as a JSON
// number. Rounding works on the shortest decimal representation of v, so
// 2.675 rounds to 2.68 rather than the 2.67 binary rounding would give.
func Round(v float64, places int32) (json.Number, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", errNotFinite
	}
	if places < 0 || places > MaxPrecision {
		return "", fmt.Errorf("units: precision %d out of range [0, %d]", places, MaxPrecision)
	}

	var d apd.Decimal
	if _, err := d.SetFloat64(v); err != nil {
		return "", fmt.Errorf("units: convert %v: %w", v, err)
	}

	// Enough digits for every integer digit plus places, so large totals
	// are never out of range.
	prec := int64(d.NumDigits()) + int64(d.Exponent) + int64(places) + 1
	if prec < 34 {
		prec = 34
	}
	ctx := apd.BaseContext.WithPrecision(uint32(prec))
	ctx.Rounding = apd.RoundHalfUp

	var out apd.Decimal
	if _, err := ctx.Quantize(&out, &d, -places); err != nil {
		return "", fmt.Errorf("units: round %v to %d places: %w", v, places, err)
	}
	if out.IsZero() {
		out.Negative = false
	}
	return json.Number(out.Text('f')), nil
}

// MustRound is Round for values already known to be finite. On error it logs
// and falls back to zero at the requested precision.
func MustRound(v float64, places int32) json.Number {
	n, err := Round(v, places)
	if err != nil {
		log.Printf("%v, reporting 0", err)
		n, _ = Round(0, places)
	}
	return n
}
