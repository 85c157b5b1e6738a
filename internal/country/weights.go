package country

import (
	"math"

	"github.com/talgya/statecraft/internal/mathx"
)

// Weight bounds. Every coefficient stays inside [WeightMin, WeightMax].
const (
	WeightMin = 2
	WeightMax = 16
)

// Control-law targets and gains.
const (
	resourceTarget = 1000.0
	resourceGain   = 0.5
	threatGain     = 0.8
	growthTarget   = 100.0
	growthGain     = 0.5
	lossScale      = 100.0

	baseAlpha = 8.0
	baseBeta  = 8.0
	baseGamma = 8.0
	baseDelta = 4.0
	baseKappa = 8
	baseRho   = 4.0
)

// AdaptiveWeights convert a six-channel score into one scalar.
type AdaptiveWeights struct {
	Alpha int `json:"alpha"` // resource
	Beta  int `json:"beta"`  // security
	Gamma int `json:"gamma"` // growth
	Delta int `json:"delta"` // position
	Kappa int `json:"kappa"` // cost
	Rho   int `json:"rho"`   // risk
}

// DefaultWeights returns the weights a country starts with.
func DefaultWeights() AdaptiveWeights {
	return AdaptiveWeights{Alpha: 8, Beta: 8, Gamma: 8, Delta: 4, Kappa: 8, Rho: 4}
}

// Signals are the live inputs of the weight control law.
type Signals struct {
	Resources    float64
	ThreatIndex  float64
	Growth       float64
	AllyCount    int
	RecentLosses float64
}

// ComputeWeights is a pure function of the current signals; it keeps no
// memory of previous weights.
func ComputeWeights(s Signals) AdaptiveWeights {
	isolation := 2.0
	if s.AllyCount > 0 {
		isolation = 1 / (float64(s.AllyCount) + 1)
	}
	tiNorm := s.ThreatIndex / (1 + s.ThreatIndex)

	return AdaptiveWeights{
		Alpha: weight(baseAlpha * (1 + resourceGain*(resourceTarget-s.Resources)/resourceTarget)),
		Beta:  weight(baseBeta * (1 + threatGain*tiNorm)),
		Gamma: weight(baseGamma * (1 + growthGain*(growthTarget-s.Growth)/growthTarget)),
		Delta: weight(baseDelta * isolation),
		Kappa: baseKappa,
		Rho:   weight(baseRho * (1 + s.RecentLosses/lossScale)),
	}
}

// weight rounds half away from zero and clamps before converting, so
// infinities and NaN never reach the int conversion.
func weight(v float64) int {
	return int(mathx.ClampFinite(math.Round(v), WeightMin, WeightMax))
}

// InBounds reports whether every coefficient lies in [WeightMin, WeightMax].
func (w AdaptiveWeights) InBounds() bool {
	for _, v := range [...]int{w.Alpha, w.Beta, w.Gamma, w.Delta, w.Kappa, w.Rho} {
		if v < WeightMin || v > WeightMax {
			return false
		}
	}
	return true
}

// MarginalValues are diminishing-returns values per unit of each stat.
type MarginalValues struct {
	Military  float64 `json:"military"`
	Economy   float64 `json:"economy"`
	Tech      float64 `json:"tech"`
	Diplomacy float64 `json:"diplomacy"`
}

// DefaultMarginal returns the marginal values a country starts with.
func DefaultMarginal() MarginalValues {
	return MarginalValues{Military: 1, Economy: 1, Tech: 1, Diplomacy: 1}
}

// ComputeMarginal derives marginal values from the current stats.
func ComputeMarginal(military, gdp, tech, prestige float64) MarginalValues {
	return MarginalValues{
		Military:  100 / (military + 10),
		Economy:   100 / (gdp + 10),
		Tech:      50 / (tech + 5),
		Diplomacy: 10 / (prestige + 1),
	}
}

// Signals returns the country's live weight-law inputs.
func (c *Country) Signals() Signals {
	return Signals{
		Resources:    c.Resources,
		ThreatIndex:  c.ThreatIndex,
		Growth:       c.Growth,
		AllyCount:    c.AllyCount,
		RecentLosses: c.RecentLosses,
	}
}

// RefreshWeights recomputes weights and marginal values from current stats.
// The threat index used is whatever was cached by the previous refresh.
func (c *Country) RefreshWeights() {
	c.Weights = ComputeWeights(c.Signals())
	c.Marginal = ComputeMarginal(c.Military, c.GDP, c.TechLevel, c.Prestige)
}
