// Package country holds the per-agent state the decision engine scores
// against: scalar stats, adaptive weights, marginal values, the directed
// edges to neighbors and the border tiles that fortify/move actions target.
package country

import "github.com/talgya/statecraft/internal/mathx"

// ID identifies a country. Assigned by the host, unique within a world.
type ID uint32

// Baseline stats for a freshly registered country.
const (
	BaseMilitary  = 100.0
	BaseGDP       = 100.0
	BaseGrowth    = 5.0
	BasePrestige  = 10.0
	BaseMorale    = 1.0
	BaseTechLevel = 1.0
	BaseResources = 500.0
)

// Country is the aggregate state of one simulated country.
type Country struct {
	ID ID `json:"id"`

	Military     float64 `json:"military"` // effective military strength
	GDP          float64 `json:"gdp"`
	Growth       float64 `json:"growth"`
	Prestige     float64 `json:"prestige"`
	Morale       float64 `json:"morale"`
	TechLevel    float64 `json:"tech_level"`
	Resources    float64 `json:"resources"`
	ThreatIndex  float64 `json:"threat_index"` // cached, refreshed once per tick
	AllyCount    int     `json:"ally_count"`
	RecentLosses float64 `json:"recent_losses"`

	Weights  AdaptiveWeights `json:"weights"`
	Marginal MarginalValues  `json:"marginal"`

	Edges       []Edge       `json:"edges"`
	BorderTiles []BorderTile `json:"border_tiles"`
}

// New creates a country with baseline values.
func New(id ID) *Country {
	return &Country{
		ID:        id,
		Military:  BaseMilitary,
		GDP:       BaseGDP,
		Growth:    BaseGrowth,
		Prestige:  BasePrestige,
		Morale:    BaseMorale,
		TechLevel: BaseTechLevel,
		Resources: BaseResources,
		Weights:   DefaultWeights(),
		Marginal:  DefaultMarginal(),
	}
}

// Edge is a directed relationship from the owning country to a neighbor.
type Edge struct {
	NeighborID     ID      `json:"neighbor_id"`
	DistanceBucket int     `json:"distance_bucket"` // index into the distance kernel
	TerrainPenalty float64 `json:"terrain_penalty"`
	Fortification  float64 `json:"fortification"`
	BorderLength   float64 `json:"border_length"`
	SupplyDiff     float64 `json:"supply_diff"`
	Hostility      float64 `json:"hostility"` // 0..1
	Relations      float64 `json:"relations"` // -100..100
}

// NewEdge returns an edge to neighbor with default geometry.
func NewEdge(neighbor ID) Edge {
	return Edge{
		NeighborID:     neighbor,
		DistanceBucket: 1,
		BorderLength:   1,
	}
}

// AddEdge records an edge, keeping at most one per neighbor. A repeat for
// the same neighbor replaces the existing edge in place so iteration order
// is unchanged.
func (c *Country) AddEdge(e Edge) {
	e.Hostility = mathx.ClampFinite(e.Hostility, 0, 1)
	e.Relations = mathx.ClampFinite(e.Relations, -100, 100)
	for i := range c.Edges {
		if c.Edges[i].NeighborID == e.NeighborID {
			c.Edges[i] = e
			return
		}
	}
	c.Edges = append(c.Edges, e)
}

// Edge returns the edge to neighbor, if any.
func (c *Country) Edge(neighbor ID) (Edge, bool) {
	for _, e := range c.Edges {
		if e.NeighborID == neighbor {
			return e, true
		}
	}
	return Edge{}, false
}

// BorderTile is a frontier tile owned by a country.
type BorderTile struct {
	ID             uint32  `json:"id"`
	X              int     `json:"x"`
	Y              int     `json:"y"`
	ThreatGradient float64 `json:"threat_gradient"` // drives fortify/move priority
	Fortification  float64 `json:"fortification"`
	Garrison       float64 `json:"garrison"`
}

// NewBorderTile returns an unfortified, ungarrisoned tile.
func NewBorderTile(id uint32, x, y int) BorderTile {
	return BorderTile{ID: id, X: x, Y: y}
}

// AddBorderTile records a tile; a repeat id replaces the existing tile.
func (c *Country) AddBorderTile(t BorderTile) {
	for i := range c.BorderTiles {
		if c.BorderTiles[i].ID == t.ID {
			c.BorderTiles[i] = t
			return
		}
	}
	c.BorderTiles = append(c.BorderTiles, t)
}

// Tile returns a copy of the tile with the given id.
func (c *Country) Tile(id uint32) (BorderTile, bool) {
	if t := c.TileRef(id); t != nil {
		return *t, true
	}
	return BorderTile{}, false
}

// TileRef returns a pointer to the tile for in-place mutation, or nil.
func (c *Country) TileRef(id uint32) *BorderTile {
	for i := range c.BorderTiles {
		if c.BorderTiles[i].ID == id {
			return &c.BorderTiles[i]
		}
	}
	return nil
}

// Clone returns a deep copy.
func (c *Country) Clone() *Country {
	out := *c
	out.Edges = append([]Edge(nil), c.Edges...)
	out.BorderTiles = append([]BorderTile(nil), c.BorderTiles...)
	return &out
}
