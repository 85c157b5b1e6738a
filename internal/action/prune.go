package action

import (
	"math"
	"sort"

	"github.com/talgya/statecraft/internal/country"
)

// PruningConfig is the per-family top-K used when building a shortlist.
type PruningConfig struct {
	Attack    int `yaml:"attack" json:"attack"`
	Fortify   int `yaml:"fortify" json:"fortify"`
	Invest    int `yaml:"invest" json:"invest"`
	Research  int `yaml:"research" json:"research"`
	Diplomacy int `yaml:"diplomacy" json:"diplomacy"`
}

// DefaultPruning returns K=3 for attack and fortify, 2 for the rest.
func DefaultPruning() PruningConfig {
	return PruningConfig{Attack: 3, Fortify: 3, Invest: 2, Research: 2, Diplomacy: 2}
}

// MaxShortlist is the largest shortlist cfg can produce: Pass, one action
// per attack, invest and research slot, two per tile and three per
// diplomacy target.
func (cfg PruningConfig) MaxShortlist() int {
	return 1 + cfg.Attack + 2*cfg.Fortify + cfg.Invest + cfg.Research + 3*cfg.Diplomacy
}

// Registry resolves neighbor ids. *world.State satisfies it.
type Registry interface {
	Country(id country.ID) (*country.Country, bool)
}

// Diplomacy candidates need relations at or above this floor.
const minDiplomacyRelations = -20.0

// Research priority multipliers, indexed by Tech.
var researchPriority = [...]float64{
	MilitaryAdvancement:       1.5,
	EconomicEfficiency:        1.5,
	DiplomaticInfluence:       1.5,
	TechnologicalBreakthrough: 2.0,
}

type ranked[T any] struct {
	item     T
	priority float64
}

// topK stable-sorts by descending priority and keeps the first k items.
// Equal priorities keep their insertion order.
func topK[T any](cands []ranked[T], k int) []T {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].priority > cands[j].priority
	})
	if k < 0 {
		k = 0
	}
	if len(cands) > k {
		cands = cands[:k]
	}
	out := make([]T, len(cands))
	for i, c := range cands {
		out[i] = c.item
	}
	return out
}

// Shortlist builds the pruned candidate set for c. Pass always comes first,
// followed by the attack, fortify/move, invest, research and diplomacy
// families, each ranked by a cheap heuristic rather than the full scorer.
func Shortlist(c *country.Country, reg Registry, cfg PruningConfig) []Action {
	out := make([]Action, 0, cfg.MaxShortlist())
	out = append(out, NewPass())

	var attacks []ranked[country.ID]
	for _, e := range c.Edges {
		n, ok := reg.Country(e.NeighborID)
		if !ok {
			continue
		}
		p := 0.5*n.Resources + 0.3*e.Hostility*n.Military
		attacks = append(attacks, ranked[country.ID]{e.NeighborID, p})
	}
	for _, id := range topK(attacks, cfg.Attack) {
		out = append(out, NewAttack(id))
	}

	tiles := make([]ranked[uint32], 0, len(c.BorderTiles))
	for _, t := range c.BorderTiles {
		tiles = append(tiles, ranked[uint32]{t.ID, math.Abs(t.ThreatGradient)})
	}
	for _, id := range topK(tiles, cfg.Fortify) {
		out = append(out, NewFortify(id), NewMove(id))
	}

	mv := c.Marginal
	sectors := []ranked[Sector]{
		{Infrastructure, mv.Economy * 0.5},
		{Military, mv.Military},
		{Economy, mv.Economy},
		{Technology, mv.Tech},
	}
	for _, s := range topK(sectors, cfg.Invest) {
		out = append(out, NewInvest(s))
	}

	techs := []ranked[Tech]{
		{MilitaryAdvancement, mv.Military * researchPriority[MilitaryAdvancement]},
		{EconomicEfficiency, mv.Economy * researchPriority[EconomicEfficiency]},
		{DiplomaticInfluence, mv.Diplomacy * researchPriority[DiplomaticInfluence]},
		{TechnologicalBreakthrough, mv.Tech * researchPriority[TechnologicalBreakthrough]},
	}
	for _, t := range topK(techs, cfg.Research) {
		out = append(out, NewResearch(t))
	}

	var partners []ranked[country.ID]
	for _, e := range c.Edges {
		if e.Relations < minDiplomacyRelations {
			continue
		}
		partners = append(partners, ranked[country.ID]{e.NeighborID, e.Relations + 50})
	}
	for _, id := range topK(partners, cfg.Diplomacy) {
		out = append(out, NewAlly(id), NewPact(id), NewTrade(id))
	}

	return out
}
