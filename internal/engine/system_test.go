package engine

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"reflect"
	"testing"

	"github.com/talgya/statecraft/internal/action"
	"github.com/talgya/statecraft/internal/country"
	"github.com/talgya/statecraft/internal/scoring"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSystem(opts ...Option) *System {
	return New(append([]Option{WithLogger(quietLogger())}, opts...)...)
}

// threeCountries builds a fully connected three-country world.
func threeCountries(opts ...Option) *System {
	s := newTestSystem(opts...)
	for id := country.ID(1); id <= 3; id++ {
		s.AddCountry(id)
	}
	s.AddEdge(1, 2, 1, 0.7)
	s.AddEdge(1, 3, 2, 0.3)
	s.AddEdge(2, 1, 1, 0.5)
	s.AddEdge(2, 3, 1, 0.6)
	s.AddEdge(3, 1, 2, 0.2)
	s.AddEdge(3, 2, 1, 0.4)
	return s
}

// richWorld adds tiles, relations and uneven stats so every action family
// shows up in shortlists.
func richWorld(opts ...Option) *System {
	s := newTestSystem(opts...)
	for id := country.ID(1); id <= 8; id++ {
		s.AddCountry(id)
		s.UpdateCountry(id, func(c *country.Country) {
			c.Military = 60 + float64(id)*25
			c.Resources = 200 + float64(id%3)*300
			c.GDP = 80 + float64(id)*10
		})
		for k := uint32(1); k <= 3; k++ {
			tile := country.NewBorderTile(uint32(id)*10+k, int(k), int(id))
			tile.ThreatGradient = float64(k*uint32(id)%7) - 2
			s.AddBorderTile(id, tile)
		}
	}
	for from := country.ID(1); from <= 8; from++ {
		for _, to := range []country.ID{from%8 + 1, (from+2)%8 + 1} {
			e := country.NewEdge(to)
			e.DistanceBucket = int(from+to) % 4
			e.Hostility = float64((from*to)%10) / 10
			e.Relations = float64(int(from*7+to*3)%120) - 40
			e.TerrainPenalty = float64(to%3) * 0.5
			s.AddEdgeDetail(from, e)
		}
	}
	s.AddAlliance(1, 5)
	return s
}

func TestThreeCountryFiveTicks(t *testing.T) {
	s := threeCountries()
	for i := 0; i < 5; i++ {
		if got := len(s.Tick()); got != 3 {
			t.Fatalf("tick %d produced %d logs, want 3", i, got)
		}
	}

	if s.CurrentTick() != 5 {
		t.Errorf("CurrentTick = %d, want 5", s.CurrentTick())
	}
	logs := s.Logs()
	if len(logs) != 15 {
		t.Fatalf("len(Logs) = %d, want 15", len(logs))
	}
	for i, l := range logs {
		if l.Tick != uint64(i/3) || l.CountryID != country.ID(i%3+1) {
			t.Errorf("log %d is tick %d country %d", i, l.Tick, l.CountryID)
		}
		if math.IsNaN(l.Score) || math.IsInf(l.Score, 0) {
			t.Errorf("log %d score %v not finite", i, l.Score)
		}
		if l.Action == "" {
			t.Errorf("log %d has empty action", i)
		}
		if !l.Weights.InBounds() {
			t.Errorf("log %d weights out of bounds: %+v", i, l.Weights)
		}
		if len(l.Rejected) > 2 {
			t.Errorf("log %d has %d rejected", i, len(l.Rejected))
		}
	}
}

func TestDeterminism(t *testing.T) {
	run := func(opts ...Option) []DecisionLog {
		s := richWorld(opts...)
		for i := 0; i < 25; i++ {
			s.Tick()
		}
		return s.Logs()
	}

	a, b := run(), run()
	if !reflect.DeepEqual(a, b) {
		t.Fatal("identical setups produced different logs")
	}
	if Digest(a) != Digest(b) {
		t.Fatal("identical logs produced different digests")
	}

	parallel := run(WithWorkers(4))
	if Digest(parallel) != Digest(a) {
		t.Error("worker pool changed the decision sequence")
	}
}

func TestDigestSensitivity(t *testing.T) {
	s := threeCountries()
	s.Tick()
	logs := s.Logs()
	base := Digest(logs)

	logs[1].Score += 1e-9
	if Digest(logs) == base {
		t.Error("digest ignored a score change")
	}
	if Digest(nil) == base {
		t.Error("empty digest collides with non-empty")
	}
}

func TestExtremeInputsKeepWeightsBounded(t *testing.T) {
	s := threeCountries()
	s.UpdateCountry(1, func(c *country.Country) {
		c.Resources = 0
		c.ThreatIndex = 1000
		c.Growth = 0
		c.RecentLosses = 500
	})
	logs := s.Tick()

	if !logs[0].Weights.InBounds() {
		t.Errorf("weights out of bounds: %+v", logs[0].Weights)
	}
	want := country.AdaptiveWeights{Alpha: 12, Beta: 14, Gamma: 12, Delta: 8, Kappa: 8, Rho: 16}
	if logs[0].Weights != want {
		t.Errorf("weights = %+v, want %+v", logs[0].Weights, want)
	}
	c, _ := s.Country(1)
	if c.Resources < 0 {
		t.Errorf("resources went negative: %v", c.Resources)
	}
}

func TestAllianceReducesThreat(t *testing.T) {
	s := newTestSystem()
	s.AddCountry(1)
	s.AddCountry(2)
	s.AddEdge(1, 2, 1, 0)
	s.UpdateCountry(2, func(c *country.Country) { c.Military = 200 })

	s.Tick()
	before, _ := s.Country(1)

	s.AddAlliance(1, 2)
	s.Tick()
	after, _ := s.Country(1)

	if after.ThreatIndex >= before.ThreatIndex {
		t.Errorf("threat with ally %v not below %v", after.ThreatIndex, before.ThreatIndex)
	}
}

func TestChosenBeatsRejected(t *testing.T) {
	s := richWorld()
	for i := 0; i < 5; i++ {
		for _, l := range s.Tick() {
			for j, r := range l.Rejected {
				if r.Score > l.Score {
					t.Errorf("country %d: rejected %q (%v) beats chosen %q (%v)", l.CountryID, r.Action, r.Score, l.Action, l.Score)
				}
				if j > 0 && r.Score > l.Rejected[j-1].Score {
					t.Errorf("country %d: rejected not sorted: %+v", l.CountryID, l.Rejected)
				}
			}
		}
	}
}

func TestBestIndex(t *testing.T) {
	tests := []struct {
		scores []float64
		want   int
	}{
		{nil, -1},
		{[]float64{1, 3, 3, 2}, 1},
		{[]float64{0, 0, 0}, 0},
		{[]float64{-5, -1, -1}, 1},
		{[]float64{math.NaN(), 2}, 1},
		{[]float64{math.NaN()}, -1},
		{[]float64{math.Inf(-1)}, -1},
	}
	for _, tt := range tests {
		if got := bestIndex(tt.scores); got != tt.want {
			t.Errorf("bestIndex(%v) = %d, want %d", tt.scores, got, tt.want)
		}
	}
}

func TestTopRejectedStableTies(t *testing.T) {
	actions := []action.Action{action.NewPass(), action.NewFortify(1), action.NewMove(1), action.NewFortify(2)}
	got := topRejected(actions, []float64{5, 1, 1, 1}, 0)
	want := []Rejected{{"Fortify tile 1", 1}, {"Move to tile 1", 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("topRejected = %+v, want %+v", got, want)
	}
	if got := topRejected(actions[:1], []float64{0}, 0); len(got) != 0 {
		t.Errorf("single candidate rejected = %+v", got)
	}
}

func TestApplyEffects(t *testing.T) {
	s := newTestSystem()
	s.AddCountry(1)
	s.AddCountry(2)
	c, _ := s.world.Country(1)
	c.AddBorderTile(country.NewBorderTile(7, 0, 0))

	s.apply(decision{country: c, action: action.NewFortify(7)})
	s.apply(decision{country: c, action: action.NewMove(7)})
	tile, _ := c.Tile(7)
	if tile.Fortification != 0.5 || tile.Garrison != 0.5 {
		t.Errorf("tile = %+v, want fortification and garrison 0.5", tile)
	}

	s.apply(decision{country: c, action: action.NewResearch(action.EconomicEfficiency), components: scoring.Components{Cost: 2}})
	if c.TechLevel != 1.1 || c.Resources != 460 {
		t.Errorf("after research tech=%v resources=%v, want 1.1, 460", c.TechLevel, c.Resources)
	}

	s.apply(decision{country: c, action: action.NewInvest(action.Economy), components: scoring.Components{DeltaGrowth: 1, Cost: 1}})
	if math.Abs(c.Growth-5.1) > 1e-12 || c.Resources != 440 {
		t.Errorf("after invest growth=%v resources=%v, want 5.1, 440", c.Growth, c.Resources)
	}

	s.apply(decision{country: c, action: action.NewAttack(2), components: scoring.Components{DeltaRes: -32}})
	if c.Resources != 0 {
		t.Errorf("resources = %v, want floor at 0", c.Resources)
	}

	s.apply(decision{country: c, action: action.NewTrade(2), components: scoring.Components{DeltaRes: 0.5}})
	if c.Resources != 25 {
		t.Errorf("after trade resources = %v, want 25", c.Resources)
	}

	s.apply(decision{country: c, action: action.NewAlly(2)})
	if !s.world.AreAllies(1, 2) || c.AllyCount != 1 {
		t.Error("ally action did not form an alliance")
	}

	before := *c.Clone()
	s.apply(decision{country: c, action: action.NewPass()})
	s.apply(decision{country: c, action: action.NewFortify(99)})
	if !reflect.DeepEqual(before, *c) {
		t.Error("pass or unknown tile changed state")
	}
}

func TestHostSetupGuards(t *testing.T) {
	s := newTestSystem()
	if !s.AddCountry(1) || s.AddCountry(1) {
		t.Error("AddCountry duplicate handling wrong")
	}
	if s.AddEdge(9, 1, 1, 0.5) {
		t.Error("edge from unknown country accepted")
	}
	if s.AddBorderTile(9, country.NewBorderTile(1, 0, 0)) {
		t.Error("tile for unknown country accepted")
	}
	if s.UpdateCountry(9, func(*country.Country) {}) {
		t.Error("UpdateCountry on unknown country returned true")
	}
	if _, ok := s.Country(9); ok {
		t.Error("Country(9) found")
	}
}

func TestEmptySystemTicks(t *testing.T) {
	s := newTestSystem()
	if logs := s.Tick(); len(logs) != 0 {
		t.Errorf("empty world logged %d decisions", len(logs))
	}
	if s.CurrentTick() != 1 {
		t.Errorf("CurrentTick = %d, want 1", s.CurrentTick())
	}
}

func TestLogLimitAndClear(t *testing.T) {
	s := threeCountries(WithLogLimit(4))
	s.Tick()
	s.Tick()

	logs := s.Logs()
	if len(logs) != 4 {
		t.Fatalf("retained %d logs, want 4", len(logs))
	}
	if logs[0].Tick != 0 || logs[0].CountryID != 3 || logs[3].Tick != 1 {
		t.Errorf("retained window starts at tick %d country %d", logs[0].Tick, logs[0].CountryID)
	}

	snap := s.Snapshot()
	s.ClearLogs()
	if len(s.Logs()) != 0 {
		t.Error("ClearLogs left logs behind")
	}
	if s.CurrentTick() != 2 || !reflect.DeepEqual(snap, s.Snapshot()) {
		t.Error("ClearLogs changed world state")
	}
}

func TestSubscribe(t *testing.T) {
	s := threeCountries()
	id, ch := s.Subscribe()

	s.Tick()
	got := <-ch
	if len(got) != 3 || got[0].Tick != 0 {
		t.Errorf("subscriber received %d logs for tick %d", len(got), got[0].Tick)
	}

	s.Unsubscribe(id)
	if _, ok := <-ch; ok {
		t.Error("channel still open after Unsubscribe")
	}
	s.Unsubscribe(id)
	s.Tick()
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	s := threeCountries()
	_, ch := s.Subscribe()
	for i := 0; i < subscriberBuffer+5; i++ {
		s.Tick()
	}
	if len(ch) != subscriberBuffer {
		t.Errorf("buffered ticks = %d, want %d", len(ch), subscriberBuffer)
	}
}

func TestSnapshotLoadRoundTrip(t *testing.T) {
	s := richWorld()
	for i := 0; i < 3; i++ {
		s.Tick()
	}
	snap := s.Snapshot()

	r := newTestSystem()
	r.Load(snap)
	if !reflect.DeepEqual(r.Snapshot(), snap) {
		t.Fatal("Load did not reproduce the snapshot")
	}

	want := s.Tick()
	got := r.Tick()
	if Digest(got) != Digest(want) {
		t.Error("restored world diverged on the next tick")
	}
}

func TestStats(t *testing.T) {
	s := threeCountries()
	s.AddAlliance(1, 2)
	s.Tick()
	st := s.Stats()
	if st.Tick != 1 || st.Countries != 3 || st.Alliances < 1 || st.Logged != 3 {
		t.Errorf("Stats = %+v", st)
	}
	total := 0
	for _, n := range st.ByKind {
		total += n
	}
	if total != 3 {
		t.Errorf("ByKind total = %d, want 3", total)
	}
}

func TestInterventions(t *testing.T) {
	s := threeCountries()

	if _, err := s.Provision(1, 250); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Provision(2, -1e9); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Reinforce(3, 50); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RecordLosses(3, 30); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SetRelations(1, 2, 2, -500); err != nil {
		t.Fatal(err)
	}

	a, _ := s.Country(1)
	b, _ := s.Country(2)
	c, _ := s.Country(3)
	if a.Resources != 750 || b.Resources != 0 || c.Military != 120 || c.RecentLosses != 30 {
		t.Errorf("resources %v/%v military %v losses %v", a.Resources, b.Resources, c.Military, c.RecentLosses)
	}
	if e, _ := a.Edge(2); e.Hostility != 1 || e.Relations != -100 {
		t.Errorf("edge = %+v", e)
	}

	if _, err := s.Provision(9, 1); !errors.Is(err, ErrUnknownCountry) {
		t.Errorf("Provision(9) err = %v", err)
	}
	if _, err := s.SetRelations(1, 9, 0, 0); !errors.Is(err, ErrUnknownEdge) {
		t.Errorf("SetRelations(1, 9) err = %v", err)
	}
	if _, err := s.RecordLosses(1, -1); err == nil {
		t.Error("negative losses accepted")
	}
}
