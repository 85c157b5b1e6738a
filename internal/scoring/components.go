// Package scoring turns a candidate action into a six-channel score and
// reduces it to one scalar with a country's adaptive weights.
package scoring

import (
	"math"

	"github.com/talgya/statecraft/internal/country"
)

// Channel ranges after normalization.
const (
	DeltaLimit   = 32.0
	PenaltyLimit = 16.0
)

// Components is the six-channel score of one action. Deltas lie in
// [-DeltaLimit, DeltaLimit]; Cost and Risk in [0, PenaltyLimit].
type Components struct {
	DeltaRes    float64 `json:"delta_res"`
	DeltaSec    float64 `json:"delta_sec"`
	DeltaGrowth float64 `json:"delta_growth"`
	DeltaPos    float64 `json:"delta_pos"`
	Cost        float64 `json:"cost"`
	Risk        float64 `json:"risk"`
}

// Final is the weighted reduction: gains weighted up, cost and risk down.
func (c Components) Final(w country.AdaptiveWeights) float64 {
	return float64(w.Alpha)*c.DeltaRes +
		float64(w.Beta)*c.DeltaSec +
		float64(w.Gamma)*c.DeltaGrowth +
		float64(w.Delta)*c.DeltaPos -
		float64(w.Kappa)*c.Cost -
		float64(w.Rho)*c.Risk
}

// Normalize clamps every channel into range. NaN channels become 0.
func (c Components) Normalize() Components {
	return Components{
		DeltaRes:    channel(c.DeltaRes, -DeltaLimit, DeltaLimit),
		DeltaSec:    channel(c.DeltaSec, -DeltaLimit, DeltaLimit),
		DeltaGrowth: channel(c.DeltaGrowth, -DeltaLimit, DeltaLimit),
		DeltaPos:    channel(c.DeltaPos, -DeltaLimit, DeltaLimit),
		Cost:        channel(c.Cost, 0, PenaltyLimit),
		Risk:        channel(c.Risk, 0, PenaltyLimit),
	}
}

// InRange reports whether every channel is finite and inside its range.
func (c Components) InRange() bool {
	for _, d := range [...]float64{c.DeltaRes, c.DeltaSec, c.DeltaGrowth, c.DeltaPos} {
		if math.IsNaN(d) || d < -DeltaLimit || d > DeltaLimit {
			return false
		}
	}
	for _, p := range [...]float64{c.Cost, c.Risk} {
		if math.IsNaN(p) || p < 0 || p > PenaltyLimit {
			return false
		}
	}
	return true
}

func channel(v, lo, hi float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}
