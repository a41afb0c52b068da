// Package numeric holds the small float helpers shared by the analytical
// engines.
package numeric

import (
	"math"
	"slices"

	"github.com/shopspring/decimal"
)

// Round rounds v to places decimal digits, half away from zero, using the
// shortest decimal representation of v.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

// RoundPtr rounds *p and returns a fresh pointer, or nil when p is nil.
func RoundPtr(p *float64, places int32) *float64 {
	if p == nil {
		return nil
	}
	v := Round(*p, places)
	return &v
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

// Finite reports whether v is neither NaN nor infinite.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Positive reports whether p is present and strictly positive.
func Positive(p *float64) bool {
	return p != nil && *p > 0
}

// Median returns the interpolated median of values. The input is not
// modified. ok is false for an empty slice.
func Median(values []float64) (median float64, ok bool) {
	n := len(values)
	if n == 0 {
		return 0, false
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	slices.Sort(sorted)
	if n%2 == 1 {
		return sorted[n/2], true
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2, true
}
