package scenario

import (
	"fmt"
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// Hex is a single tile on the scenario map.
type Hex struct {
	Coord       HexCoord `json:"coord"`
	Terrain     Terrain  `json:"terrain"`
	Elevation   float64  `json:"elevation"`   // 0.0 (sea level) to 1.0 (peak)
	Rainfall    float64  `json:"rainfall"`    // 0.0 (arid) to 1.0 (tropical)
	Temperature float64  `json:"temperature"` // 0.0 (frozen) to 1.0 (hot)
	Owner       int      `json:"owner"`       // index into Plan.Countries, -1 if unowned
}

// Map holds the hex grid. Coords are kept in generation order so every pass
// over the map is reproducible.
type Map struct {
	Radius int `json:"radius"`

	hexes  map[HexCoord]*Hex
	coords []HexCoord
}

func newMap(radius int) *Map {
	return &Map{Radius: radius, hexes: make(map[HexCoord]*Hex)}
}

// Get returns the hex at the given coordinate, or nil if out of bounds.
func (m *Map) Get(c HexCoord) *Hex {
	return m.hexes[c]
}

func (m *Map) set(h *Hex) {
	if _, ok := m.hexes[h.Coord]; !ok {
		m.coords = append(m.coords, h.Coord)
	}
	m.hexes[h.Coord] = h
}

// Coords returns every coordinate in deterministic order.
func (m *Map) Coords() []HexCoord {
	return append([]HexCoord(nil), m.coords...)
}

// Len returns the number of hexes.
func (m *Map) Len() int { return len(m.coords) }

// String returns a summary of the map.
func (m *Map) String() string {
	return fmt.Sprintf("Map(radius=%d, hexes=%d)", m.Radius, m.Len())
}

// TerrainCounts returns the terrain distribution.
func (m *Map) TerrainCounts() map[Terrain]int {
	counts := make(map[Terrain]int)
	for _, c := range m.coords {
		counts[m.hexes[c].Terrain]++
	}
	return counts
}

// generateMap lays down elevation, rainfall and temperature from three
// simplex layers, then derives terrain.
func generateMap(cfg Config) *Map {
	elevNoise := opensimplex.NewNormalized(cfg.Seed)
	rainNoise := opensimplex.NewNormalized(cfg.Seed + 1)
	tempNoise := opensimplex.NewNormalized(cfg.Seed + 2)

	m := newMap(cfg.Radius)
	for q := -cfg.Radius; q <= cfg.Radius; q++ {
		for r := -cfg.Radius; r <= cfg.Radius; r++ {
			if max(abs(q), abs(r), abs(-q-r)) > cfg.Radius {
				continue
			}
			x, y := cartesian(HexCoord{Q: q, R: r})

			elev := octaveNoise(elevNoise, x, y, 4, 0.08, 0.5)
			rain := octaveNoise(rainNoise, x, y, 3, 0.06, 0.5)
			temp := octaveNoise(tempNoise, x, y, 3, 0.05, 0.5)

			// Continental shaping: the rim sinks into ocean.
			falloff := 1.0 - math.Pow(math.Sqrt(x*x+y*y)/float64(cfg.Radius), 3.5)
			elev *= math.Max(falloff, 0)

			temp = temp*0.6 + (1.0-math.Abs(y)/float64(cfg.Radius))*0.3 + (1.0-elev)*0.1

			m.set(&Hex{
				Coord:       HexCoord{Q: q, R: r},
				Terrain:     deriveTerrain(elev, rain, temp, cfg),
				Elevation:   elev,
				Rainfall:    rain,
				Temperature: temp,
				Owner:       -1,
			})
		}
	}

	markCoastalHexes(m)
	placeRivers(m, cfg.Seed)
	return m
}

// cartesian converts axial coordinates to continuous space for sampling.
func cartesian(c HexCoord) (x, y float64) {
	return float64(c.Q) + float64(c.R)*0.5, float64(c.R) * math.Sqrt(3.0) / 2.0
}

func deriveTerrain(elev, rain, temp float64, cfg Config) Terrain {
	if elev < cfg.SeaLevel {
		return TerrainOcean
	}
	if elev > cfg.MountainLevel {
		return TerrainMountain
	}
	if temp < 0.25 {
		return TerrainTundra
	}
	if rain < 0.25 && temp > 0.5 {
		return TerrainDesert
	}
	if rain > 0.7 && elev < 0.45 {
		return TerrainSwamp
	}
	if rain > 0.45 && elev > 0.45 {
		return TerrainForest
	}
	return TerrainPlains
}

// markCoastalHexes converts low plains and forest next to ocean into coast.
func markCoastalHexes(m *Map) {
	var toMark []*Hex
	for _, c := range m.coords {
		h := m.hexes[c]
		if h.Terrain != TerrainPlains && h.Terrain != TerrainForest || h.Elevation >= 0.5 {
			continue
		}
		for _, nc := range c.Neighbors() {
			if nh := m.Get(nc); nh != nil && nh.Terrain == TerrainOcean {
				toMark = append(toMark, h)
				break
			}
		}
	}
	for _, h := range toMark {
		h.Terrain = TerrainCoast
	}
}

// placeRivers traces a handful of rivers downhill from the highlands.
func placeRivers(m *Map, seed int64) {
	rng := rand.New(rand.NewSource(seed + 100))

	var sources []HexCoord
	for _, c := range m.coords {
		if h := m.hexes[c]; h.Elevation > 0.65 && h.Terrain != TerrainOcean {
			sources = append(sources, c)
		}
	}

	numRivers := min(max(len(sources)/8, 2), 10)
	rng.Shuffle(len(sources), func(i, j int) {
		sources[i], sources[j] = sources[j], sources[i]
	})
	if len(sources) > numRivers {
		sources = sources[:numRivers]
	}
	for _, start := range sources {
		traceRiver(m, start)
	}
}

// traceRiver follows the steepest descent until it reaches ocean or runs out
// of downhill path. Ties go to the first neighbor in direction order.
func traceRiver(m *Map, start HexCoord) {
	current := start
	visited := make(map[HexCoord]bool)

	for step := 0; step < 50; step++ {
		visited[current] = true
		h := m.Get(current)
		if h == nil || h.Terrain == TerrainOcean {
			return
		}
		if h.Terrain != TerrainMountain && h.Terrain != TerrainCoast {
			h.Terrain = TerrainRiver
		}

		next, found := current, false
		lowest := h.Elevation
		for _, nc := range current.Neighbors() {
			nh := m.Get(nc)
			if nh == nil || visited[nc] {
				continue
			}
			if nh.Elevation < lowest {
				lowest, next, found = nh.Elevation, nc, true
			}
		}
		if !found {
			return
		}
		current = next
	}
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total, amplitude, maxVal := 0.0, 1.0, 0.0
	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}
	return total / maxVal
}
