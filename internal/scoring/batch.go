package scoring

import (
	"github.com/talgya/statecraft/internal/action"
	"github.com/talgya/statecraft/internal/country"
	"github.com/talgya/statecraft/internal/lut"
)

// Batch holds the components and final scores of a shortlist, index-aligned
// with the actions that produced them.
type Batch struct {
	Components []Components
	Scores     []float64
}

// ScoreBatch scores every action for c and reduces them with c's weights.
func ScoreBatch(c *country.Country, actions []action.Action, reg Registry, t *lut.Tables) Batch {
	comps := make([]Components, len(actions))
	for i, a := range actions {
		comps[i] = Score(c, a, reg, t)
	}
	return Batch{Components: comps, Scores: FinalScores(comps, c.Weights)}
}

// FinalScores reduces comps four at a time. Each result matches
// Components.Final to within floating-point reassociation error.
func FinalScores(comps []Components, w country.AdaptiveWeights) []float64 {
	gain := [4]float64{float64(w.Alpha), float64(w.Beta), float64(w.Gamma), float64(w.Delta)}
	kappa, rho := float64(w.Kappa), float64(w.Rho)

	out := make([]float64, len(comps))
	n := len(comps) &^ 3
	for i := 0; i < n; i += 4 {
		c0, c1, c2, c3 := &comps[i], &comps[i+1], &comps[i+2], &comps[i+3]
		g0 := gain[0]*c0.DeltaRes + gain[1]*c0.DeltaSec + gain[2]*c0.DeltaGrowth + gain[3]*c0.DeltaPos
		g1 := gain[0]*c1.DeltaRes + gain[1]*c1.DeltaSec + gain[2]*c1.DeltaGrowth + gain[3]*c1.DeltaPos
		g2 := gain[0]*c2.DeltaRes + gain[1]*c2.DeltaSec + gain[2]*c2.DeltaGrowth + gain[3]*c2.DeltaPos
		g3 := gain[0]*c3.DeltaRes + gain[1]*c3.DeltaSec + gain[2]*c3.DeltaGrowth + gain[3]*c3.DeltaPos
		out[i] = g0 - (kappa*c0.Cost + rho*c0.Risk)
		out[i+1] = g1 - (kappa*c1.Cost + rho*c1.Risk)
		out[i+2] = g2 - (kappa*c2.Cost + rho*c2.Risk)
		out[i+3] = g3 - (kappa*c3.Cost + rho*c3.Risk)
	}
	for i := n; i < len(comps); i++ {
		out[i] = comps[i].Final(w)
	}
	return out
}
