package scenario

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// placeCapitals picks up to n well-separated capitals, best locations first.
// The separation requirement relaxes until n capitals fit or it reaches one.
func placeCapitals(m *Map, n int) []HexCoord {
	type scored struct {
		coord HexCoord
		score float64
	}
	var candidates []scored
	for _, c := range m.coords {
		if s := capitalScore(m, c); s > 0 {
			candidates = append(candidates, scored{c, s})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	var capitals []HexCoord
	for minDist := max(m.Radius/2, 1); minDist >= 1; minDist-- {
		capitals = capitals[:0]
		for _, c := range candidates {
			if len(capitals) == n {
				break
			}
			if !tooClose(c.coord, capitals, minDist) {
				capitals = append(capitals, c.coord)
			}
		}
		if len(capitals) == n {
			break
		}
	}
	return capitals
}

// capitalScore evaluates how desirable a hex is for a capital.
// Prefers coast and rivers, fertile plains, and varied surroundings.
func capitalScore(m *Map, c HexCoord) float64 {
	h := m.Get(c)
	score := 0.0
	switch h.Terrain {
	case TerrainPlains:
		score += 3.0
	case TerrainCoast:
		score += 4.0
	case TerrainRiver:
		score += 3.5
	case TerrainForest:
		score += 1.5
	case TerrainDesert, TerrainSwamp, TerrainTundra:
		score += 0.5
	case TerrainMountain:
		score += 0.3
	default:
		return 0
	}

	kinds := make(map[Terrain]bool)
	water := false
	for _, nc := range c.Neighbors() {
		nh := m.Get(nc)
		if nh == nil {
			continue
		}
		if nh.Terrain != TerrainOcean {
			kinds[nh.Terrain] = true
		}
		if nh.Terrain == TerrainRiver || nh.Terrain == TerrainCoast {
			water = true
		}
	}
	score += float64(len(kinds)) * 0.3
	if water {
		score += 0.5
	}
	return score + math.Log1p(h.Terrain.Yield(h.Elevation, h.Rainfall))*0.2
}

func tooClose(c HexCoord, existing []HexCoord, minDist int) bool {
	for _, e := range existing {
		if Distance(c, e) < minDist {
			return true
		}
	}
	return false
}

// claimTerritory grows every country outward from its capital, one ring at a
// time in capital order, over land only. Unreachable land stays unowned.
func claimTerritory(m *Map, capitals []HexCoord) {
	queue := make([]HexCoord, 0, m.Len())
	for i, c := range capitals {
		m.Get(c).Owner = i
		queue = append(queue, c)
	}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		owner := m.Get(c).Owner
		for _, nc := range c.Neighbors() {
			nh := m.Get(nc)
			if nh == nil || nh.Owner >= 0 || nh.Terrain == TerrainOcean {
				continue
			}
			nh.Owner = owner
			queue = append(queue, nc)
		}
	}
}

// generateNames produces procedural country names by combining syllables.
func generateNames(rng *rand.Rand, count int) []string {
	prefixes := []string{
		"Iron", "Green", "Ash", "Stone", "Black", "Silver", "Red", "White",
		"Dark", "Bright", "High", "Low", "Old", "New", "Far", "Deep",
		"Broad", "Gold", "Frost", "Storm", "Thorn", "Oak", "Copper", "Sun",
	}
	suffixes := []string{
		"mark", "land", "reach", "gard", "heim", "moor", "vale", "crown",
		"hold", "march", "fell", "shire", "wold", "haven", "realm", "coast",
	}

	used := make(map[string]bool)
	names := make([]string, 0, count)
	for len(names) < count {
		name := prefixes[rng.Intn(len(prefixes))] + suffixes[rng.Intn(len(suffixes))]
		if len(used) >= len(prefixes)*len(suffixes) {
			name = fmt.Sprintf("%s %d", name, len(names)+1)
		}
		if !used[name] {
			used[name] = true
			names = append(names, name)
		}
	}
	return names
}
