package scenario

import (
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/talgya/statecraft/internal/country"
	"github.com/talgya/statecraft/internal/engine"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		a, b HexCoord
		want int
	}{
		{HexCoord{0, 0}, HexCoord{0, 0}, 0},
		{HexCoord{0, 0}, HexCoord{1, 0}, 1},
		{HexCoord{0, 0}, HexCoord{2, -1}, 2},
		{HexCoord{-3, 1}, HexCoord{2, -2}, 5},
		{HexCoord{0, 0}, HexCoord{-2, -2}, 4},
	}
	for _, tt := range tests {
		if got := Distance(tt.a, tt.b); got != tt.want {
			t.Errorf("Distance(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
		if got := Distance(tt.b, tt.a); got != tt.want {
			t.Errorf("Distance(%v, %v) = %d, want %d", tt.b, tt.a, got, tt.want)
		}
	}
	for _, n := range (HexCoord{4, -2}).Neighbors() {
		if Distance(n, HexCoord{4, -2}) != 1 {
			t.Errorf("neighbor %v is not adjacent", n)
		}
	}
}

func TestGenerateDeterministic(t *testing.T) {
	a, err := Generate(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	b, err := Generate(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a.Countries, b.Countries) || !reflect.DeepEqual(a.Alliances, b.Alliances) {
		t.Error("same config produced different plans")
	}
	if a.Map.Len() != b.Map.Len() || !reflect.DeepEqual(a.Map.TerrainCounts(), b.Map.TerrainCounts()) {
		t.Error("same config produced different maps")
	}

	cfg := DefaultConfig()
	cfg.Seed = 7
	c, err := Generate(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if reflect.DeepEqual(a.Countries, c.Countries) {
		t.Error("different seeds produced identical countries")
	}
}

func TestGeneratedPlanIsWellFormed(t *testing.T) {
	cfg := DefaultConfig()
	p, err := Generate(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Countries) != cfg.Countries {
		t.Fatalf("len(Countries) = %d, want %d", len(p.Countries), cfg.Countries)
	}

	tiles := make(map[uint32]bool)
	hexes := 0
	for i, cp := range p.Countries {
		c := cp.Country
		if c.ID != country.ID(i+1) {
			t.Errorf("country %d has id %d", i, c.ID)
		}
		if p.Map.Get(cp.Capital).Owner != i {
			t.Errorf("%s does not own its capital", cp.Name)
		}
		if !c.Weights.InBounds() {
			t.Errorf("%s weights out of bounds: %+v", cp.Name, c.Weights)
		}
		if c.Resources <= 0 || c.Military <= 0 {
			t.Errorf("%s has empty stats: %+v", cp.Name, c)
		}
		if len(c.Edges) > cfg.NeighborsPerCountry {
			t.Errorf("%s has %d edges, cap %d", cp.Name, len(c.Edges), cfg.NeighborsPerCountry)
		}
		for _, e := range c.Edges {
			if e.NeighborID == c.ID || int(e.NeighborID) < 1 || int(e.NeighborID) > cfg.Countries {
				t.Errorf("%s has bad edge %+v", cp.Name, e)
			}
			if e.Hostility < 0 || e.Hostility > 1 || e.Relations < -100 || e.Relations > 100 {
				t.Errorf("%s edge out of range: %+v", cp.Name, e)
			}
		}
		if len(c.BorderTiles) > cfg.TilesPerCountry {
			t.Errorf("%s has %d tiles, cap %d", cp.Name, len(c.BorderTiles), cfg.TilesPerCountry)
		}
		for k, tile := range c.BorderTiles {
			if tiles[tile.ID] {
				t.Errorf("tile id %d reused", tile.ID)
			}
			tiles[tile.ID] = true
			if k > 0 && tile.ThreatGradient > c.BorderTiles[k-1].ThreatGradient {
				t.Errorf("%s tiles not ordered by threat", cp.Name)
			}
		}
		hexes += cp.Hexes
	}
	if hexes > p.Map.Len() {
		t.Errorf("countries own %d of %d hexes", hexes, p.Map.Len())
	}
	for _, a := range p.Alliances {
		if a[0] >= a[1] {
			t.Errorf("alliance %v not ordered", a)
		}
	}
}

func TestNeighborsUnlimited(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NeighborsPerCountry = 0
	p, err := Generate(cfg)
	if err != nil {
		t.Fatal(err)
	}
	for _, cp := range p.Countries {
		for _, e := range cp.Country.Edges {
			if e.BorderLength == 0 {
				t.Errorf("%s kept an overseas edge to %d", cp.Name, e.NeighborID)
			}
		}
	}
}

func TestConfigValidate(t *testing.T) {
	tests := map[string]func(*Config){
		"no countries":      func(c *Config) { c.Countries = 0 },
		"no radius":         func(c *Config) { c.Radius = 0 },
		"negative tiles":    func(c *Config) { c.TilesPerCountry = -1 },
		"sea over mountain": func(c *Config) { c.SeaLevel = 0.9 },
	}
	for name, mutate := range tests {
		cfg := DefaultConfig()
		mutate(&cfg)
		if _, err := Generate(cfg); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestGenerateTooManyCountries(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Radius = 2
	cfg.Countries = 500
	if _, err := Generate(cfg); err == nil {
		t.Error("expected error when the map cannot fit every country")
	}
}

func TestApplyRegistersPlan(t *testing.T) {
	p, err := Generate(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	sys := engine.New(engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err := p.Apply(sys); err != nil {
		t.Fatal(err)
	}

	stats := sys.Stats()
	if stats.Countries != len(p.Countries) || stats.Alliances != len(p.Alliances) {
		t.Errorf("stats = %+v, want %d countries and %d alliances", stats, len(p.Countries), len(p.Alliances))
	}
	for _, cp := range p.Countries {
		got, ok := sys.Country(cp.Country.ID)
		if !ok {
			t.Fatalf("country %d not registered", cp.Country.ID)
		}
		if got.Resources != cp.Country.Resources || len(got.Edges) != len(cp.Country.Edges) || len(got.BorderTiles) != len(cp.Country.BorderTiles) {
			t.Errorf("country %d registered as %+v", got.ID, got)
		}
	}
	if logs := sys.Tick(); len(logs) != len(p.Countries) {
		t.Errorf("tick produced %d logs, want %d", len(logs), len(p.Countries))
	}

	if err := p.Apply(sys); err == nil {
		t.Error("applying twice should fail on the duplicate country")
	}
}
