package scale

import (
	"errors"
	"math"
)

// ErrEmptyDomain is returned when no finite value is available to build a domain.
var ErrEmptyDomain = errors.New("empty domain")

// Extent returns the minimum and maximum of values, ignoring NaN.
func Extent(values []float64) (lo, hi float64, err error) {
	found := false
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if !found {
			lo, hi = v, v
			found = true
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	if !found {
		return 0, 0, ErrEmptyDomain
	}
	return lo, hi, nil
}

// Linear maps [Min, Max] onto the color ramp Low..High.
type Linear struct {
	Low  Color   `json:"low"`
	High Color   `json:"high"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// NewLinear builds a scale over [lo, hi].
func NewLinear(lo, hi float64, low, high Color) Linear {
	if lo > hi {
		lo, hi = hi, lo
	}
	return Linear{Min: lo, Max: hi, Low: low, High: high}
}

// Degenerate reports whether the domain collapses to a single value.
func (s Linear) Degenerate() bool {
	return s.Max == s.Min
}

// Color interpolates the ramp at v. Values outside the domain are clamped;
// a degenerate domain or NaN yields Low.
func (s Linear) Color(v float64) Color {
	if s.Degenerate() || math.IsNaN(v) {
		return s.Low
	}

	t := (v - s.Min) / (s.Max - s.Min)
	if t <= 0 {
		return s.Low
	}
	if t >= 1 {
		return s.High
	}

	return Color{
		R: lerp(s.Low.R, s.High.R, t),
		G: lerp(s.Low.G, s.High.G, t),
		B: lerp(s.Low.B, s.High.B, t),
	}
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(math.Round(float64(a) + t*(float64(b)-float64(a))))
}
