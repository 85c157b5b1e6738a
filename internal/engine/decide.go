package engine

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/talgya/statecraft/internal/action"
	"github.com/talgya/statecraft/internal/country"
	"github.com/talgya/statecraft/internal/scoring"
)

// DecisionLog records one country's choice in one tick.
type DecisionLog struct {
	Tick       uint64                  `json:"tick"`
	CountryID  country.ID              `json:"country_id"`
	Action     string                  `json:"action"`
	Kind       string                  `json:"kind"`
	Score      float64                 `json:"score"`
	Components scoring.Components      `json:"components"`
	Weights    country.AdaptiveWeights `json:"weights"`
	Rejected   []Rejected              `json:"rejected"` // best first, at most maxRejected
}

// Rejected is a losing candidate and its score.
type Rejected struct {
	Action string  `json:"action"`
	Score  float64 `json:"score"`
}

const maxRejected = 2

// Resource effects are stored normalized; these convert back to raw units.
const (
	resourceScale = 50.0
	costScale     = 20.0
	growthApply   = 0.1
	techStep      = 0.1
	tileStep      = 0.5
)

type decision struct {
	country    *country.Country
	action     action.Action
	score      float64
	components scoring.Components
	weights    country.AdaptiveWeights
	rejected   []Rejected
}

// Tick advances the world by one step and returns the logs it produced,
// one per country in registry order.
func (s *System) Tick() []DecisionLog {
	start := time.Now()

	s.mu.Lock()
	tick := s.world.Tick()
	s.world.RefreshWeights()
	s.world.RefreshThreat(s.tables.DistanceKernel)

	decisions := s.decideAll(s.world.Countries())
	for _, d := range decisions {
		s.apply(d)
	}

	logs := make([]DecisionLog, len(decisions))
	for i, d := range decisions {
		logs[i] = DecisionLog{
			Tick:       tick,
			CountryID:  d.country.ID,
			Action:     d.action.String(),
			Kind:       d.action.Kind.String(),
			Score:      d.score,
			Components: d.components,
			Weights:    d.weights,
			Rejected:   d.rejected,
		}
	}
	s.world.Advance()
	s.retain(logs)
	s.mu.Unlock()

	s.publish(logs)
	s.log.Debug("tick complete", "tick", tick, "countries", len(logs), "elapsed", time.Since(start))
	return logs
}

// decideAll scores every country against tick-start state. Results are
// indexed like countries regardless of worker count.
func (s *System) decideAll(countries []*country.Country) []decision {
	out := make([]decision, len(countries))
	if s.workers <= 1 || len(countries) < 2 {
		for i, c := range countries {
			out[i] = s.decide(c)
		}
		return out
	}

	next := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < min(s.workers, len(countries)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				out[i] = s.decide(countries[i])
			}
		}()
	}
	for i := range countries {
		next <- i
	}
	close(next)
	wg.Wait()
	return out
}

func (s *System) decide(c *country.Country) decision {
	shortlist := action.Shortlist(c, s.world, s.pruning)
	batch := scoring.ScoreBatch(c, shortlist, s.world, s.tables)

	d := decision{country: c, action: action.NewPass(), weights: c.Weights}
	best := bestIndex(batch.Scores)
	if best < 0 {
		return d
	}
	d.action = shortlist[best]
	d.score = batch.Scores[best]
	d.components = batch.Components[best]
	d.rejected = topRejected(shortlist, batch.Scores, best)
	return d
}

// bestIndex is a strict arg-max: the first of several equal maxima wins.
// It returns -1 when no score beats negative infinity.
func bestIndex(scores []float64) int {
	best, bestScore := -1, math.Inf(-1)
	for i, v := range scores {
		if v > bestScore {
			best, bestScore = i, v
		}
	}
	return best
}

func topRejected(actions []action.Action, scores []float64, chosen int) []Rejected {
	out := make([]Rejected, 0, len(actions)-1)
	for i, a := range actions {
		if i == chosen {
			continue
		}
		out = append(out, Rejected{Action: a.String(), Score: scores[i]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > maxRejected {
		out = out[:maxRejected]
	}
	return out
}

// apply mutates the world with d's effect. Resources never drop below zero.
func (s *System) apply(d decision) {
	c, comp := d.country, d.components
	switch d.action.Kind {
	case action.Attack, action.Pact, action.Trade:
		c.Resources = math.Max(0, c.Resources+comp.DeltaRes*resourceScale)
	case action.Invest:
		c.Growth += comp.DeltaGrowth * growthApply
		c.Resources = math.Max(0, c.Resources-comp.Cost*costScale)
	case action.Research:
		c.TechLevel += techStep
		c.Resources = math.Max(0, c.Resources-comp.Cost*costScale)
	case action.Ally:
		s.world.AddAlliance(c.ID, d.action.Target)
	case action.Fortify:
		if t := c.TileRef(d.action.Tile); t != nil {
			t.Fortification += tileStep
		}
	case action.Move:
		if t := c.TileRef(d.action.Tile); t != nil {
			t.Garrison += tileStep
		}
	case action.Pass:
	}
}
