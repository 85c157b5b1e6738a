package scenario

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/statecraft/internal/country"
	"github.com/talgya/statecraft/internal/mathx"
)

// distanceScale is the number of hexes per distance-kernel bucket.
const distanceScale = 3

// Config holds scenario generation parameters.
type Config struct {
	Seed                int64   `yaml:"seed" json:"seed"`
	Countries           int     `yaml:"countries" json:"countries"`
	NeighborsPerCountry int     `yaml:"neighbors_per_country" json:"neighbors_per_country"` // 0 keeps only land neighbors
	TilesPerCountry     int     `yaml:"tiles_per_country" json:"tiles_per_country"`
	Radius              int     `yaml:"radius" json:"radius"`
	SeaLevel            float64 `yaml:"sea_level" json:"sea_level"`
	MountainLevel       float64 `yaml:"mountain_level" json:"mountain_level"`
	AllianceThreshold   float64 `yaml:"alliance_threshold" json:"alliance_threshold"` // relations at or above this start allied
}

// DefaultConfig returns a mid-sized continent with eight countries.
func DefaultConfig() Config {
	return Config{
		Seed:                42,
		Countries:           8,
		NeighborsPerCountry: 4,
		TilesPerCountry:     6,
		Radius:              14,
		SeaLevel:            0.25,
		MountainLevel:       0.72,
		AllianceThreshold:   25,
	}
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	var errs []error
	if c.Countries < 1 {
		errs = append(errs, fmt.Errorf("countries must be positive, got %d", c.Countries))
	}
	if c.Radius < 1 {
		errs = append(errs, fmt.Errorf("radius must be positive, got %d", c.Radius))
	}
	if c.NeighborsPerCountry < 0 || c.TilesPerCountry < 0 {
		errs = append(errs, errors.New("neighbors and tiles per country must not be negative"))
	}
	if c.SeaLevel >= c.MountainLevel {
		errs = append(errs, fmt.Errorf("sea level %v must be below mountain level %v", c.SeaLevel, c.MountainLevel))
	}
	return errors.Join(errs...)
}

// CountryPlan is one generated country and where it sits on the map.
type CountryPlan struct {
	Name    string           `json:"name"`
	Capital HexCoord         `json:"capital"`
	Hexes   int              `json:"hexes"`
	Country *country.Country `json:"country"`
}

// Plan is a fully derived starting world, ready to register with a host.
type Plan struct {
	Seed      int64           `json:"seed"`
	Map       *Map            `json:"-"`
	Countries []CountryPlan   `json:"countries"`
	Alliances [][2]country.ID `json:"alliances"`
}

// Host is the registration surface a plan is applied through.
type Host interface {
	AddCountry(id country.ID) bool
	UpdateCountry(id country.ID, fn func(*country.Country)) bool
	AddEdgeDetail(from country.ID, e country.Edge) bool
	AddBorderTile(id country.ID, t country.BorderTile) bool
	AddAlliance(a, b country.ID)
}

// Generate derives a starting world from cfg. The same config always
// produces the same plan.
func Generate(cfg Config) (*Plan, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scenario config: %w", err)
	}

	m := generateMap(cfg)
	capitals := placeCapitals(m, cfg.Countries)
	if len(capitals) < cfg.Countries {
		return nil, fmt.Errorf("map seed %d has room for %d of %d countries", cfg.Seed, len(capitals), cfg.Countries)
	}
	claimTerritory(m, capitals)

	g := &generator{
		cfg:      cfg,
		m:        m,
		capitals: capitals,
		rng:      rand.New(rand.NewSource(cfg.Seed + 300)),
		relNoise: opensimplex.NewNormalized(cfg.Seed + 3),
	}
	g.survey()

	names := generateNames(rand.New(rand.NewSource(cfg.Seed+200)), len(capitals))
	p := &Plan{Seed: cfg.Seed, Map: m}
	for i := range capitals {
		p.Countries = append(p.Countries, CountryPlan{
			Name:    names[i],
			Capital: capitals[i],
			Hexes:   len(g.owned[i]),
			Country: g.country(i),
		})
	}
	for i := range capitals {
		for _, e := range p.Countries[i].Country.Edges {
			j := int(e.NeighborID) - 1
			if j > i && e.Relations >= cfg.AllianceThreshold {
				p.Alliances = append(p.Alliances, [2]country.ID{idOf(i), idOf(j)})
			}
		}
	}
	return p, nil
}

// Apply registers every country, edge, border tile and alliance with h.
func (p *Plan) Apply(h Host) error {
	for _, cp := range p.Countries {
		src := cp.Country
		if !h.AddCountry(src.ID) {
			return fmt.Errorf("country %d already registered", src.ID)
		}
		h.UpdateCountry(src.ID, func(c *country.Country) {
			c.Military = src.Military
			c.GDP = src.GDP
			c.Growth = src.Growth
			c.Prestige = src.Prestige
			c.Morale = src.Morale
			c.TechLevel = src.TechLevel
			c.Resources = src.Resources
			c.RefreshWeights()
		})
		for _, e := range src.Edges {
			h.AddEdgeDetail(src.ID, e)
		}
		for _, t := range src.BorderTiles {
			h.AddBorderTile(src.ID, t)
		}
	}
	for _, a := range p.Alliances {
		h.AddAlliance(a[0], a[1])
	}
	return nil
}

// Country returns the planned country with the given id.
func (p *Plan) Country(id country.ID) (*CountryPlan, bool) {
	i := int(id) - 1
	if i < 0 || i >= len(p.Countries) {
		return nil, false
	}
	return &p.Countries[i], true
}

func idOf(i int) country.ID { return country.ID(i + 1) }

// contact accumulates what one country sees across its border with another.
type contact struct {
	pairs   int     // adjacent hex pairs
	defense float64 // summed terrain defense on the far side
}

type generator struct {
	cfg      Config
	m        *Map
	capitals []HexCoord
	rng      *rand.Rand
	relNoise opensimplex.Noise

	owned    [][]HexCoord
	contacts []map[int]*contact
	index    map[HexCoord]int // position in m.coords, the basis of tile ids
}

// survey walks the map once, collecting territory and frontier contacts.
func (g *generator) survey() {
	n := len(g.capitals)
	g.owned = make([][]HexCoord, n)
	g.contacts = make([]map[int]*contact, n)
	g.index = make(map[HexCoord]int, g.m.Len())
	for i := range g.contacts {
		g.contacts[i] = make(map[int]*contact)
	}

	for idx, c := range g.m.coords {
		g.index[c] = idx
		h := g.m.hexes[c]
		if h.Owner < 0 {
			continue
		}
		g.owned[h.Owner] = append(g.owned[h.Owner], c)
		for _, nc := range c.Neighbors() {
			nh := g.m.Get(nc)
			if nh == nil || nh.Owner < 0 || nh.Owner == h.Owner {
				continue
			}
			ct := g.contacts[h.Owner][nh.Owner]
			if ct == nil {
				ct = &contact{}
				g.contacts[h.Owner][nh.Owner] = ct
			}
			ct.pairs++
			ct.defense += nh.Terrain.Defense()
		}
	}
}

// hostility samples the relations layer at the midpoint between two
// capitals, raised by the length of any shared frontier. Symmetric in i, j.
func (g *generator) hostility(i, j int) float64 {
	xi, yi := cartesian(g.capitals[i])
	xj, yj := cartesian(g.capitals[j])
	h := g.relNoise.Eval2((xi+xj)*0.075, (yi+yj)*0.075)
	if ct := g.contacts[i][j]; ct != nil {
		h += 0.01 * float64(ct.pairs)
	}
	return mathx.ClampFinite(h, 0, 1)
}

func (g *generator) country(i int) *country.Country {
	c := country.New(idOf(i))

	var yield, rugged, rain, temp float64
	for _, hc := range g.owned[i] {
		h := g.m.Get(hc)
		yield += h.Terrain.Yield(h.Elevation, h.Rainfall)
		rugged += h.Terrain.Defense()
		rain += h.Rainfall
		temp += h.Temperature
	}
	size := float64(len(g.owned[i]))
	c.Resources = yield * 0.5
	c.GDP = 40 + 3*size
	c.Military = 60 + 120*rugged/size + g.rng.Float64()*40
	c.Growth = 2 + 6*rain/size
	c.Prestige = 5 + 2*capitalScore(g.m, g.capitals[i])
	c.TechLevel = 1 + temp/size

	for _, j := range g.neighbors(i) {
		e := country.NewEdge(idOf(j))
		e.DistanceBucket = Distance(g.capitals[i], g.capitals[j]) / distanceScale
		e.BorderLength = 0
		if ct := g.contacts[i][j]; ct != nil {
			e.BorderLength = float64(ct.pairs)
			e.TerrainPenalty = ct.defense / float64(ct.pairs)
		} else {
			e.TerrainPenalty = g.m.Get(g.capitals[j]).Terrain.Defense()
		}
		e.SupplyDiff = (size - float64(len(g.owned[j]))) / 10
		e.Hostility = g.hostility(i, j)
		e.Relations = math.Round((0.5 - e.Hostility) * 200)
		c.AddEdge(e)
	}

	for _, t := range g.frontier(i, c) {
		c.AddBorderTile(t)
	}
	c.RefreshWeights()
	return c
}

// neighbors lists the countries i keeps edges to: land neighbors first, then
// overseas ones, each group nearest capital first, capped by
// NeighborsPerCountry when it is set.
func (g *generator) neighbors(i int) []int {
	var land, sea []int
	for j := range g.capitals {
		switch {
		case j == i:
		case g.contacts[i][j] != nil:
			land = append(land, j)
		default:
			sea = append(sea, j)
		}
	}
	byDistance := func(s []int) {
		sort.SliceStable(s, func(a, b int) bool {
			return Distance(g.capitals[i], g.capitals[s[a]]) < Distance(g.capitals[i], g.capitals[s[b]])
		})
	}
	byDistance(land)
	byDistance(sea)

	limit := g.cfg.NeighborsPerCountry
	if limit == 0 {
		return land
	}
	out := append(land, sea...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// frontier returns the country's most threatened border hexes as tiles.
// A hex's gradient sums the hostility of every foreign hex touching it,
// damped by its own defensive terrain.
func (g *generator) frontier(i int, c *country.Country) []country.BorderTile {
	var tiles []country.BorderTile
	for _, hc := range g.owned[i] {
		h := g.m.Get(hc)
		gradient := 0.0
		for _, nc := range hc.Neighbors() {
			nh := g.m.Get(nc)
			if nh == nil || nh.Owner < 0 || nh.Owner == i {
				continue
			}
			hostility := 0.5
			if e, ok := c.Edge(idOf(nh.Owner)); ok {
				hostility = e.Hostility
			}
			gradient += 10 * hostility
		}
		if gradient == 0 {
			continue
		}
		t := country.NewBorderTile(uint32(g.index[hc]+1), hc.Q, hc.R)
		t.ThreatGradient = gradient * (1 - 0.5*h.Terrain.Defense())
		t.Fortification = 2 * h.Terrain.Defense()
		tiles = append(tiles, t)
	}
	sort.SliceStable(tiles, func(a, b int) bool {
		return tiles[a].ThreatGradient > tiles[b].ThreatGradient
	})
	if len(tiles) > g.cfg.TilesPerCountry {
		tiles = tiles[:g.cfg.TilesPerCountry]
	}
	return tiles
}
