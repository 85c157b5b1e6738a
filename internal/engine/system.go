// Package engine runs the decision loop: each tick every country refreshes
// its weights and threat, picks the best action from its shortlist, and the
// chosen actions are applied in registry order.
package engine

import (
	"log/slog"
	"sync"

	"github.com/talgya/statecraft/internal/action"
	"github.com/talgya/statecraft/internal/country"
	"github.com/talgya/statecraft/internal/lut"
	"github.com/talgya/statecraft/internal/snapshot"
	"github.com/talgya/statecraft/internal/world"
)

// System owns the world state and everything needed to advance it.
// All methods are safe for concurrent use; Tick holds the write lock for
// the whole tick so readers never observe a half-applied tick.
type System struct {
	mu      sync.RWMutex
	world   *world.State
	tables  *lut.Tables
	pruning action.PruningConfig
	workers int
	log     *slog.Logger

	logs     []DecisionLog
	logLimit int // 0 keeps everything

	subMu   sync.Mutex
	subs    map[int]chan []DecisionLog
	nextSub int
}

// Option configures a System.
type Option func(*System)

// WithTables replaces the default lookup tables.
func WithTables(t *lut.Tables) Option {
	return func(s *System) { s.tables = t }
}

// WithPruning replaces the default per-family top-K.
func WithPruning(cfg action.PruningConfig) Option {
	return func(s *System) { s.pruning = cfg }
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *System) { s.log = l }
}

// WithLogLimit caps retained decision logs; the oldest are dropped first.
func WithLogLimit(n int) Option {
	return func(s *System) { s.logLimit = n }
}

// WithWorkers scores countries on n goroutines. Output is identical to the
// sequential path.
func WithWorkers(n int) Option {
	return func(s *System) { s.workers = n }
}

// New creates an empty system at tick 0.
func New(opts ...Option) *System {
	s := &System{
		world:   world.New(),
		tables:  lut.DefaultTables(),
		pruning: action.DefaultPruning(),
		workers: 1,
		log:     slog.Default(),
		subs:    make(map[int]chan []DecisionLog),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddCountry registers a baseline country. Registering an id twice is a
// no-op that returns false.
func (s *System) AddCountry(id country.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.world.AddCountry(country.New(id)) {
		s.log.Warn("duplicate country ignored", "country", id)
		return false
	}
	return true
}

// AddEdge adds a directed edge with the given distance bucket and
// hostility. Edges from an unregistered country are dropped.
func (s *System) AddEdge(from, to country.ID, distance int, hostility float64) bool {
	e := country.NewEdge(to)
	e.DistanceBucket = distance
	e.Hostility = hostility
	return s.AddEdgeDetail(from, e)
}

// AddEdgeDetail adds a fully specified edge from a registered country.
func (s *System) AddEdgeDetail(from country.ID, e country.Edge) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.world.Country(from)
	if !ok {
		s.log.Warn("edge from unknown country ignored", "from", from, "to", e.NeighborID)
		return false
	}
	c.AddEdge(e)
	return true
}

// AddAlliance records an alliance between a and b. Every call increments
// both ally counts, including repeats.
func (s *System) AddAlliance(a, b country.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.world.AddAlliance(a, b)
}

// AddBorderTile gives a registered country a border tile.
func (s *System) AddBorderTile(id country.ID, t country.BorderTile) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.world.Country(id)
	if !ok {
		s.log.Warn("border tile for unknown country ignored", "country", id, "tile", t.ID)
		return false
	}
	c.AddBorderTile(t)
	return true
}

// UpdateCountry runs fn on the live country under the write lock.
func (s *System) UpdateCountry(id country.ID, fn func(*country.Country)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.world.Country(id)
	if !ok {
		return false
	}
	fn(c)
	return true
}

// Country returns a copy of the country with the given id.
func (s *System) Country(id country.ID) (country.Country, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.world.Country(id)
	if !ok {
		return country.Country{}, false
	}
	return *c.Clone(), true
}

// CurrentTick returns the number of completed ticks.
func (s *System) CurrentTick() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.world.Tick()
}

// Snapshot returns a serializable copy of the world.
func (s *System) Snapshot() snapshot.World {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.world.Snapshot()
}

// Load replaces the world with one rebuilt from w. Decision logs are kept.
func (s *System) Load(w snapshot.World) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.world = world.Restore(w)
	s.log.Info("world restored", "tick", w.Tick, "countries", len(w.Countries))
}

// Stats is an aggregate view for status displays.
type Stats struct {
	Tick      uint64         `json:"tick"`
	Countries int            `json:"countries"`
	Alliances int            `json:"alliances"`
	Logged    int            `json:"logged_decisions"`
	ByKind    map[string]int `json:"by_kind"` // chosen actions among retained logs
}

// Stats summarizes the world and the retained decision logs.
func (s *System) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{
		Tick:      s.world.Tick(),
		Countries: s.world.Len(),
		Alliances: len(s.world.Alliances()),
		Logged:    len(s.logs),
		ByKind:    make(map[string]int),
	}
	for _, l := range s.logs {
		st.ByKind[l.Kind]++
	}
	return st
}
