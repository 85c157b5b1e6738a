package scoring

import (
	"math"

	"github.com/talgya/statecraft/internal/action"
	"github.com/talgya/statecraft/internal/country"
	"github.com/talgya/statecraft/internal/lut"
)

// Registry resolves target countries.
type Registry = action.Registry

// Attack model coefficients.
const (
	attackSharpness   = 1.5
	fortifyPenalty    = 0.3
	terrainPenalty    = 0.2
	distancePenalty   = 0.1
	attackRiskScale   = 8.0
	casualtyWeight    = 0.5
	upkeepWeight      = 0.2
	friendshipPenalty = 0.3
)

// investHorizon is the number of discounted steps averaged by Invest.
const investHorizon = 8

// Attack scores attacker invading target. It returns zero components when
// the target is unknown or attacker has no edge to it.
func Attack(attacker *country.Country, target country.ID, reg Registry, t *lut.Tables) Components {
	defender, ok := reg.Country(target)
	if !ok {
		return Components{}
	}
	e, ok := attacker.Edge(target)
	if !ok {
		return Components{}
	}

	fr := attacker.Military / (defender.Military * (1 + e.TerrainPenalty))
	logit := attackSharpness * (t.LogRatio.Lookup(fr) -
		fortifyPenalty*e.Fortification -
		terrainPenalty*e.TerrainPenalty -
		distancePenalty*float64(e.DistanceBucket))
	p := t.Sigmoid.Lookup(logit)
	q := 1 - p

	winRes, lossRes := defender.Resources*0.5, -attacker.Resources*0.1
	winSec, lossSec := e.Hostility*defender.Military*0.8, -defender.Military*0.2
	winPos, lossPos := defender.Prestige*0.3, -attacker.Prestige*0.1

	casualties := attacker.Military * 0.1 * (q + 0.5)
	upkeep := defender.Military * 0.05
	friendship := math.Max(e.Relations, 0) * 0.5

	return Components{
		DeltaRes: (p*winRes + q*lossRes) / 50,
		DeltaSec: (p*winSec + q*lossSec) / 50,
		DeltaPos: (p*winPos + q*lossPos) / 20,
		Cost:     (casualtyWeight*casualties + upkeepWeight*upkeep + friendshipPenalty*friendship) / 20,
		Risk:     attackRiskScale * p * q,
	}.Normalize()
}

var (
	investBoost = [...]float64{
		action.Infrastructure: 3,
		action.Military:       2,
		action.Economy:         5,
		action.Technology:      4,
	}
	investCost = [...]float64{
		action.Infrastructure: 30,
		action.Military:       15,
		action.Economy:         20,
		action.Technology:      25,
	}
)

// Invest scores an investment in sector as the mean discounted GDP boost
// over the invest horizon.
func Invest(c *country.Country, sector action.Sector, t *lut.Tables) Components {
	if int(sector) >= len(investBoost) {
		return Components{}
	}
	var roi float64
	growth := 1 + c.Growth/100
	for h := 1; h <= investHorizon; h++ {
		roi += t.Discount.Get(h) * investBoost[sector] * math.Pow(growth, float64(h))
	}
	roi /= investHorizon

	return Components{
		DeltaGrowth: roi / 10,
		Cost:        investCost[sector] / math.Max(c.Resources, 10) * 10,
		Risk:        1,
	}.Normalize()
}

var (
	researchMultiplier = [...]float64{
		action.MilitaryAdvancement:       1.5,
		action.EconomicEfficiency:        1.8,
		action.DiplomaticInfluence:       1.2,
		action.TechnologicalBreakthrough: 2.0,
	}
	researchCost = [...]float64{
		action.MilitaryAdvancement:       30,
		action.EconomicEfficiency:        25,
		action.DiplomaticInfluence:       20,
		action.TechnologicalBreakthrough: 40,
	}
)

// Research scores tech from the country's cached marginal values. Research
// carries no risk.
func Research(c *country.Country, tech action.Tech) Components {
	if int(tech) >= len(researchMultiplier) {
		return Components{}
	}
	mv := c.Marginal
	value := [...]float64{
		action.MilitaryAdvancement:       mv.Military,
		action.EconomicEfficiency:        mv.Economy,
		action.DiplomaticInfluence:       mv.Diplomacy,
		action.TechnologicalBreakthrough: mv.Tech,
	}[tech]

	return Components{
		DeltaGrowth: value * researchMultiplier[tech] / 5,
		Cost:        researchCost[tech] / math.Max(c.Resources, 10) * 10,
	}.Normalize()
}

// Diplomacy scores an Ally, Pact or Trade proposal to target. Benefits are
// scaled by the probability the target accepts.
func Diplomacy(c *country.Country, kind action.Kind, target country.ID, reg Registry, t *lut.Tables) Components {
	partner, ok := reg.Country(target)
	if !ok {
		return Components{}
	}
	if _, ok := c.Edge(target); !ok {
		return Components{}
	}

	benefit := c.Military*0.2 + c.Prestige*0.1
	p := t.Sigmoid.Lookup(0.5 * benefit)

	var out Components
	switch kind {
	case action.Ally:
		out.DeltaSec = partner.Military * 0.5
		out.DeltaPos = 5
	case action.Pact:
		out.DeltaSec = partner.Military * 0.3
		out.DeltaPos = 3
	case action.Trade:
		out.DeltaRes = partner.GDP * 0.1
		out.DeltaGrowth = 2
	default:
		return Components{}
	}

	return Components{
		DeltaRes:    out.DeltaRes * p / 50,
		DeltaSec:    out.DeltaSec * p / 50,
		DeltaGrowth: out.DeltaGrowth * p / 5,
		DeltaPos:    out.DeltaPos * p / 5,
		Cost:        5,
		Risk:        2,
	}.Normalize()
}

// Fortify scores hardening one of c's border tiles.
func Fortify(c *country.Country, tile uint32) Components {
	bt, ok := c.Tile(tile)
	if !ok {
		return Components{}
	}
	return Components{
		DeltaSec: bt.ThreatGradient * 0.5 / 10,
		Cost:     3,
		Risk:     0.5,
	}.Normalize()
}

// Move scores shifting troops onto one of c's border tiles.
func Move(c *country.Country, tile uint32) Components {
	bt, ok := c.Tile(tile)
	if !ok {
		return Components{}
	}
	return Components{
		DeltaSec: bt.ThreatGradient * 0.3 / 10,
		DeltaPos: bt.ThreatGradient * 0.2 / 10,
		Cost:     2,
		Risk:     1,
	}.Normalize()
}

type scorer func(c *country.Country, a action.Action, reg Registry, t *lut.Tables) Components

func diplomacy(c *country.Country, a action.Action, reg Registry, t *lut.Tables) Components {
	return Diplomacy(c, a.Kind, a.Target, reg, t)
}

// scorers must have an entry for every action.Kind; a test enforces it.
var scorers = [action.NumKinds]scorer{
	action.Pass: func(*country.Country, action.Action, Registry, *lut.Tables) Components {
		return Components{}
	},
	action.Attack: func(c *country.Country, a action.Action, reg Registry, t *lut.Tables) Components {
		return Attack(c, a.Target, reg, t)
	},
	action.Invest: func(c *country.Country, a action.Action, _ Registry, t *lut.Tables) Components {
		return Invest(c, a.Sector, t)
	},
	action.Research: func(c *country.Country, a action.Action, _ Registry, _ *lut.Tables) Components {
		return Research(c, a.Tech)
	},
	action.Ally:  diplomacy,
	action.Pact:  diplomacy,
	action.Trade: diplomacy,
	action.Fortify: func(c *country.Country, a action.Action, _ Registry, _ *lut.Tables) Components {
		return Fortify(c, a.Tile)
	},
	action.Move: func(c *country.Country, a action.Action, _ Registry, _ *lut.Tables) Components {
		return Move(c, a.Tile)
	},
}

// Score dispatches a to its scorer. Unknown kinds score zero.
func Score(c *country.Country, a action.Action, reg Registry, t *lut.Tables) Components {
	if a.Kind >= action.NumKinds {
		return Components{}
	}
	return scorers[a.Kind](c, a, reg, t)
}
