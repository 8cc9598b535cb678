// Package spatial implements the uniform-grid spatial index described in
// spec.md §4.2. It is adapted from the teacher's fixed-array SpatialGrid
// (bormisov1-spaceship-online-game/server/spatial.go): same cell-size/
// cellIdx/Insert/Query shape, but backed by a map instead of a fixed
// [cols*rows]slice because battle space is unbounded 3-D (units have no
// world-box clamp, unlike the teacher's bounded 2-D arena).
package spatial

import "math"

// CellSize is the edge length of one grid cell, C in spec.md §4.2.
// Chosen well below typical weapon ranges so nearby() neighborhoods stay
// small even at the widest max_weapon_range seen in practice.
const CellSize = 50.0

type cellKey struct {
	x, y, z int32
}

// Grid is a uniform grid over 3-D space keyed by integer cell coordinates.
// It holds unit indices into the simulator's dense unit table, not Unit
// values, so rebuild is a cheap append-only scan.
type Grid struct {
	cells map[cellKey][]int
}

// New creates an empty Grid.
func New() *Grid {
	return &Grid{cells: make(map[cellKey][]int)}
}

func cellOf(x, y, z float64) cellKey {
	return cellKey{
		x: int32(math.Floor(x / CellSize)),
		y: int32(math.Floor(y / CellSize)),
		z: int32(math.Floor(z / CellSize)),
	}
}

// Reset clears the grid for a fresh rebuild, reusing the underlying map's
// allocated buckets where possible.
func (g *Grid) Reset() {
	for k := range g.cells {
		delete(g.cells, k)
	}
}

// Insert places unit index idx, located at (x,y,z), into the grid.
func (g *Grid) Insert(x, y, z float64, idx int) {
	k := cellOf(x, y, z)
	g.cells[k] = append(g.cells[k], idx)
}

// Nearby appends to buf the indices of every unit in cells that could
// possibly intersect a sphere of the given radius centered at (x,y,z), and
// returns the extended slice. Per spec.md §4.2 this is a coarse prefilter:
// callers MUST apply exact distance filtering to the candidates returned.
func (g *Grid) Nearby(x, y, z, radius float64, buf []int) []int {
	cellsNeeded := int(math.Ceil(radius/CellSize)) + 1
	center := cellOf(x, y, z)
	for dx := -cellsNeeded; dx <= cellsNeeded; dx++ {
		for dy := -cellsNeeded; dy <= cellsNeeded; dy++ {
			for dz := -cellsNeeded; dz <= cellsNeeded; dz++ {
				k := cellKey{center.x + int32(dx), center.y + int32(dy), center.z + int32(dz)}
				buf = append(buf, g.cells[k]...)
			}
		}
	}
	return buf
}

// MinCandidatesBeforeFallback is the threshold below which a caller must
// fall back to a linear scan over all alive enemy units, per spec.md §4.2
// ("grid-cell starvation at large weapon ranges would otherwise cause
// targeting to fail").
const MinCandidatesBeforeFallback = 5
