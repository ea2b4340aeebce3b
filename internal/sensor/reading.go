package sensor

import (
	"math"
	"strconv"
)

// Sentinel is the conventional "no valid reading" value. It only appears at
// output boundaries; inside the module a missing value is a Reading with
// Valid unset.
const Sentinel = -9999.0

// Reading is one value that may be missing.
type Reading struct {
	Value float64
	Valid bool
}

// Missing returns a reading that carries no value.
func Missing() Reading {
	return Reading{}
}

// Valid returns a present reading. NaN and infinities are never valid.
func Valid(v float64) Reading {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Missing()
	}

	return Reading{Value: v, Valid: true}
}

// FromRaw maps a raw driver value that uses the sentinel convention.
func FromRaw(v float64) Reading {
	if v == Sentinel {
		return Missing()
	}

	return Valid(v)
}

// Float returns the value, or Sentinel when missing.
func (r Reading) Float() float64 {
	if !r.Valid {
		return Sentinel
	}

	return r.Value
}

// Format renders the value with the given number of decimal places.
func (r Reading) Format(resolution int) string {
	if !r.Valid {
		return strconv.FormatFloat(Sentinel, 'f', 0, 64)
	}

	return strconv.FormatFloat(r.Value, 'f', resolution, 64)
}

// Bounds is an inclusive plausibility range.
type Bounds struct {
	Min, Max float64
}

// Unbounded accepts every finite value.
func Unbounded() Bounds {
	return Bounds{Min: math.Inf(-1), Max: math.Inf(1)}
}

func (b Bounds) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// Variable describes one output of a sensor.
type Variable struct {
	Name       string
	Unit       string
	Code       string
	Resolution int
	Bounds     Bounds
}
