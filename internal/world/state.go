// Package world holds the country registry and the alliance set that the
// decision engine reads and mutates each tick.
package world

import (
	"sort"

	"github.com/talgya/statecraft/internal/country"
	"github.com/talgya/statecraft/internal/lut"
	"github.com/talgya/statecraft/internal/snapshot"
)

// Pair is an unordered country pair stored with Lo <= Hi.
type Pair struct {
	Lo, Hi country.ID
}

// NewPair normalizes (a, b) so that alliance lookups are symmetric.
func NewPair(a, b country.ID) Pair {
	if a > b {
		a, b = b, a
	}
	return Pair{Lo: a, Hi: b}
}

// State is the world: countries in registration order plus the alliance set.
// Countries are stored in an arena slice and addressed through an index so
// iteration order is stable across runs.
type State struct {
	countries []*country.Country
	index     map[country.ID]int
	alliances map[Pair]struct{}
	tick      uint64
}

// New returns an empty world at tick 0.
func New() *State {
	return &State{
		index:     make(map[country.ID]int),
		alliances: make(map[Pair]struct{}),
	}
}

// AddCountry registers c. It returns false and leaves the world unchanged
// when a country with the same id is already registered.
func (s *State) AddCountry(c *country.Country) bool {
	if _, ok := s.index[c.ID]; ok {
		return false
	}
	s.index[c.ID] = len(s.countries)
	s.countries = append(s.countries, c)
	return true
}

// Country returns the registered country with the given id.
func (s *State) Country(id country.ID) (*country.Country, bool) {
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return s.countries[i], true
}

// Countries returns the registry in registration order. The slice is shared;
// callers must not append to it.
func (s *State) Countries() []*country.Country {
	return s.countries
}

// Len returns the number of registered countries.
func (s *State) Len() int { return len(s.countries) }

// AddAlliance inserts the normalized pair and increments both countries'
// ally counts. The increment happens even when the pair already existed,
// and a self-alliance increments the same country twice.
func (s *State) AddAlliance(a, b country.ID) {
	s.alliances[NewPair(a, b)] = struct{}{}
	if c, ok := s.Country(a); ok {
		c.AllyCount++
	}
	if c, ok := s.Country(b); ok {
		c.AllyCount++
	}
}

// AreAllies reports whether a and b share an alliance, in either order.
func (s *State) AreAllies(a, b country.ID) bool {
	_, ok := s.alliances[NewPair(a, b)]
	return ok
}

// Alliances returns every pair sorted by (Lo, Hi).
func (s *State) Alliances() []Pair {
	out := make([]Pair, 0, len(s.alliances))
	for p := range s.alliances {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Lo != out[j].Lo {
			return out[i].Lo < out[j].Lo
		}
		return out[i].Hi < out[j].Hi
	})
	return out
}

// ThreatIndex is the kernel-weighted military pressure on c. Allied
// neighbors reduce it; hostile ones raise it in proportion to hostility.
// Edges to unregistered neighbors contribute nothing.
func (s *State) ThreatIndex(c *country.Country, kernel *lut.DistanceKernel) float64 {
	var threat float64
	for _, e := range c.Edges {
		n, ok := s.Country(e.NeighborID)
		if !ok {
			continue
		}
		k := kernel.Get(e.DistanceBucket)
		if s.AreAllies(c.ID, e.NeighborID) {
			threat -= k * n.Military
		} else {
			threat += k * n.Military * e.Hostility
		}
	}
	return threat
}

// RefreshWeights recomputes every country's weights and marginal values.
// It runs before RefreshThreat, so weights see the previous tick's threat.
func (s *State) RefreshWeights() {
	for _, c := range s.countries {
		c.RefreshWeights()
	}
}

// RefreshThreat recomputes and caches every country's threat index.
func (s *State) RefreshThreat(kernel *lut.DistanceKernel) {
	for _, c := range s.countries {
		c.ThreatIndex = s.ThreatIndex(c, kernel)
	}
}

// Tick returns the number of completed ticks.
func (s *State) Tick() uint64 { return s.tick }

// Advance increments the tick counter.
func (s *State) Advance() { s.tick++ }

// Snapshot returns a deep, serializable copy of the world.
func (s *State) Snapshot() snapshot.World {
	w := snapshot.World{
		Tick:      s.tick,
		Countries: make([]country.Country, 0, len(s.countries)),
		Alliances: make([]snapshot.Alliance, 0, len(s.alliances)),
	}
	for _, c := range s.countries {
		w.Countries = append(w.Countries, *c.Clone())
	}
	for _, p := range s.Alliances() {
		w.Alliances = append(w.Alliances, snapshot.Alliance{A: p.Lo, B: p.Hi})
	}
	return w
}

// Restore rebuilds a world from a snapshot. Ally counts are taken from the
// snapshot as stored rather than recomputed from the alliance list.
func Restore(w snapshot.World) *State {
	s := New()
	for i := range w.Countries {
		c := w.Countries[i]
		s.AddCountry(c.Clone())
	}
	for _, a := range w.Alliances {
		s.alliances[NewPair(a.A, a.B)] = struct{}{}
	}
	s.tick = w.Tick
	return s
}
