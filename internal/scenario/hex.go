// Package scenario seeds a decision-engine world from a procedural hex map.
// Uses axial coordinates (q, r) for the grid; countries grow outward from
// capitals and their shared frontiers become edges and border tiles.
package scenario

// HexCoord represents a position on the hex grid using axial coordinates.
// The third cube coordinate s is derived: s = -q - r.
type HexCoord struct {
	Q int `json:"q"`
	R int `json:"r"`
}

// S returns the implicit third cube coordinate.
func (h HexCoord) S() int {
	return -h.Q - h.R
}

// hexDirections defines the six neighbor offsets in axial coordinates.
var hexDirections = [6]HexCoord{
	{Q: 1, R: 0},
	{Q: 1, R: -1},
	{Q: 0, R: -1},
	{Q: -1, R: 0},
	{Q: -1, R: 1},
	{Q: 0, R: 1},
}

// Neighbors returns the six adjacent hex coordinates.
func (h HexCoord) Neighbors() [6]HexCoord {
	var result [6]HexCoord
	for i, dir := range hexDirections {
		result[i] = HexCoord{Q: h.Q + dir.Q, R: h.R + dir.R}
	}
	return result
}

// Distance returns the hex distance between two coordinates.
func Distance(a, b HexCoord) int {
	return max(abs(a.Q-b.Q), abs(a.R-b.R), abs(a.S()-b.S()))
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Terrain types for hex tiles.
type Terrain uint8

const (
	TerrainPlains    Terrain = iota // Open ground, easy to cross
	TerrainForest                   // Slows an advancing army
	TerrainMountain                 // Strongest natural defense
	TerrainCoast                    // Landing beaches
	TerrainRiver                    // A crossing under fire
	TerrainDesert                   // Long supply lines
	TerrainSwamp                    // Bogs down heavy units
	TerrainTundra                   // Harsh winter campaigns
	TerrainOcean                    // Impassable, never owned
)

var terrainNames = [...]string{"plains", "forest", "mountain", "coast", "river", "desert", "swamp", "tundra", "ocean"}

func (t Terrain) String() string {
	if int(t) < len(terrainNames) {
		return terrainNames[t]
	}
	return "unknown"
}

// Defense returns the attacker's penalty for crossing a border on this
// terrain, in the units of country.Edge.TerrainPenalty.
func (t Terrain) Defense() float64 {
	switch t {
	case TerrainMountain:
		return 1.0
	case TerrainSwamp:
		return 0.6
	case TerrainForest:
		return 0.5
	case TerrainTundra:
		return 0.4
	case TerrainRiver, TerrainDesert:
		return 0.3
	case TerrainCoast:
		return 0.1
	default:
		return 0
	}
}

// Yield returns the stockpile a hex of this terrain contributes to its owner.
func (t Terrain) Yield(elev, rain float64) float64 {
	switch t {
	case TerrainPlains:
		return 80 + rain*40
	case TerrainForest:
		return 150
	case TerrainMountain:
		return 180 + elev*30
	case TerrainCoast:
		return 80
	case TerrainRiver:
		return 90
	case TerrainSwamp:
		return 65
	case TerrainTundra:
		return 40
	case TerrainDesert:
		return 30
	default:
		return 0
	}
}
