package scale

import (
	"fmt"
	"math"
)

// Legend tick placement modes.
const (
	ModeEven = "even" // evenly spaced samples including both domain ends
	ModeNice = "nice" // round 1, 2, 5 x 10^k steps inside the domain
)

// LegendEntry is one legend row: [Lower, Upper) painted with Color.
// Upper is nil for the final, open-ended bin.
type LegendEntry struct {
	Upper *float64 `json:"upper" yaml:"upper"`
	Label string   `json:"label" yaml:"label"`
	Color Color    `json:"color" yaml:"color"`
	Lower float64  `json:"lower" yaml:"lower"`
}

// Ticks returns up to n sample points across the domain in ascending order.
func (s Linear) Ticks(n int, mode string) []float64 {
	if n <= 0 {
		return nil
	}
	if s.Degenerate() || n == 1 {
		return []float64{s.Min}
	}
	if mode == ModeNice {
		return niceTicks(s.Min, s.Max, n)
	}

	ticks := make([]float64, n)
	step := (s.Max - s.Min) / float64(n-1)
	for i := range ticks {
		ticks[i] = s.Min + step*float64(i)
	}
	ticks[n-1] = s.Max

	return ticks
}

// Legend derives the legend rows for the scale. Rows whose two-decimal
// labels collide are merged, so a degenerate domain yields a single row.
func (s Linear) Legend(n int, mode string) []LegendEntry {
	ticks := dedupe(s.Ticks(n, mode))

	entries := make([]LegendEntry, 0, len(ticks))
	for i, tick := range ticks {
		e := LegendEntry{Lower: tick, Color: s.Color(tick)}
		if i < len(ticks)-1 {
			upper := ticks[i+1]
			e.Upper = &upper
			e.Label = fmt.Sprintf("%.2f - %.2f", tick, upper)
		} else {
			e.Label = fmt.Sprintf("%.2f - +", tick)
		}
		entries = append(entries, e)
	}

	return entries
}

func dedupe(ticks []float64) []float64 {
	out := ticks[:0:0]
	last := ""
	for _, t := range ticks {
		label := fmt.Sprintf("%.2f", t)
		if label == last {
			continue
		}
		last = label
		out = append(out, t)
	}
	return out
}

var (
	e10 = math.Sqrt(50)
	e5  = math.Sqrt(10)
	e2  = math.Sqrt(2)
)

// niceTicks places ticks on a round step close to (hi-lo)/count.
func niceTicks(lo, hi float64, count int) []float64 {
	inc := tickIncrement(lo, hi, count)
	if inc == 0 || math.IsInf(inc, 0) || math.IsNaN(inc) {
		return []float64{lo}
	}

	var ticks []float64
	if inc > 0 {
		i0, i1 := math.Ceil(lo/inc), math.Floor(hi/inc)
		for i := i0; i <= i1; i++ {
			ticks = append(ticks, i*inc)
		}
	} else {
		inc = -inc
		i0, i1 := math.Ceil(lo*inc), math.Floor(hi*inc)
		for i := i0; i <= i1; i++ {
			ticks = append(ticks, i/inc)
		}
	}

	if len(ticks) == 0 {
		return []float64{lo}
	}
	return ticks
}

// tickIncrement returns a positive step, or the negated inverse of a step
// below one so fractional ticks stay exact.
func tickIncrement(lo, hi float64, count int) float64 {
	step := (hi - lo) / float64(count)
	power := math.Floor(math.Log10(step))
	errRatio := step / math.Pow(10, power)

	factor := 1.0
	switch {
	case errRatio >= e10:
		factor = 10
	case errRatio >= e5:
		factor = 5
	case errRatio >= e2:
		factor = 2
	}

	if power >= 0 {
		return factor * math.Pow(10, power)
	}
	return -math.Pow(10, -power) / factor
}
