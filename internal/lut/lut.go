// Package lut provides the precomputed function tables used by decision
// scoring. Tables are built once and read concurrently; lookups clamp their
// input to the table domain and never fail.
package lut

import (
	"math"

	"github.com/talgya/statecraft/internal/mathx"
)

// minLogRatio floors non-positive ratios so the log table stays finite.
const minLogRatio = 1e-6

// interpolated is a uniformly sampled function over [min, max].
type interpolated struct {
	samples []float64
	min     float64
	max     float64
	step    float64
}

func buildInterpolated(min, max float64, steps int, f func(float64) float64) interpolated {
	if steps < 2 {
		steps = 2
	}
	if max < min {
		min, max = max, min
	}
	step := (max - min) / float64(steps-1)
	samples := make([]float64, steps)
	for i := range samples {
		samples[i] = f(min + float64(i)*step)
	}
	return interpolated{samples: samples, min: min, max: max, step: step}
}

func (t interpolated) lookup(x float64) float64 {
	last := len(t.samples) - 1
	if t.step == 0 {
		return t.samples[last]
	}
	x = mathx.ClampFinite(x, t.min, t.max)
	pos := (x - t.min) / t.step
	idx := int(math.Floor(pos))
	if idx < 0 {
		idx = 0
	}
	if idx >= last {
		return t.samples[last]
	}
	frac := pos - float64(idx)
	return t.samples[idx]*(1-frac) + t.samples[idx+1]*frac
}

// Sigmoid approximates the logistic function 1/(1+e^-x).
type Sigmoid struct{ t interpolated }

// NewSigmoid samples the logistic function at steps points over [min, max].
func NewSigmoid(min, max float64, steps int) *Sigmoid {
	return &Sigmoid{t: buildInterpolated(min, max, steps, func(x float64) float64 {
		return 1 / (1 + math.Exp(-x))
	})}
}

// Lookup returns the interpolated sigmoid of x.
func (s *Sigmoid) Lookup(x float64) float64 { return s.t.lookup(x) }

// LogRatio approximates ln(r) for force and benefit ratios.
type LogRatio struct{ t interpolated }

// NewLogRatio samples ln(r) at steps points over [min, max].
func NewLogRatio(min, max float64, steps int) *LogRatio {
	return &LogRatio{t: buildInterpolated(min, max, steps, func(r float64) float64 {
		return math.Log(math.Max(r, minLogRatio))
	})}
}

// Lookup returns the interpolated natural log of r.
func (l *LogRatio) Lookup(r float64) float64 { return l.t.lookup(r) }

// Discount holds rate^h for h = 1..horizon.
type Discount struct {
	rate    float64
	factors []float64
}

// NewDiscount precomputes horizon discount factors.
func NewDiscount(rate float64, horizon int) *Discount {
	if horizon < 0 {
		horizon = 0
	}
	factors := make([]float64, horizon)
	for h := 1; h <= horizon; h++ {
		factors[h-1] = math.Pow(rate, float64(h))
	}
	return &Discount{rate: rate, factors: factors}
}

// Get returns the discount factor for step h (1-indexed). Steps outside
// 1..horizon return 0.
func (d *Discount) Get(h int) float64 {
	if h <= 0 || h > len(d.factors) {
		return 0
	}
	return d.factors[h-1]
}

// Horizon is the number of precomputed steps.
func (d *Discount) Horizon() int { return len(d.factors) }

// Rate is the per-step discount rate.
func (d *Discount) Rate() float64 { return d.rate }

// Factors returns a copy of the precomputed factors.
func (d *Discount) Factors() []float64 {
	out := make([]float64, len(d.factors))
	copy(out, d.factors)
	return out
}

// DistanceKernel holds exp(-decay*d) for d = 0..maxDistance.
type DistanceKernel struct {
	kernels []float64
}

// NewDistanceKernel precomputes an exponentially decaying kernel.
func NewDistanceKernel(maxDistance int, decay float64) *DistanceKernel {
	if maxDistance < 0 {
		maxDistance = 0
	}
	kernels := make([]float64, maxDistance+1)
	for d := range kernels {
		kernels[d] = math.Exp(-decay * float64(d))
	}
	return &DistanceKernel{kernels: kernels}
}

// Get returns the kernel weight for distance bucket d, or 0 when d is
// negative or beyond the maximum distance.
func (k *DistanceKernel) Get(d int) float64 {
	if d < 0 || d >= len(k.kernels) {
		return 0
	}
	return k.kernels[d]
}

// MaxDistance is the largest bucket with a nonzero weight.
func (k *DistanceKernel) MaxDistance() int { return len(k.kernels) - 1 }
