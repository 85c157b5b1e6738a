// Package mathx holds the small numeric helpers shared by the decision engine.
package mathx

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Clamp bounds v to [lo, hi].
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampFinite is Clamp for float64 inputs that may be NaN. NaN maps to lo,
// infinities map to the matching bound.
func ClampFinite(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return Clamp(v, lo, hi)
}
