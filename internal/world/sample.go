package world

import (
	"math"

	"github.com/talgya/blob-crowd/internal/geom"
)

// SamplePosition snaps p to the nearest walkable cell center within maxRadius
// (inclusive, measured in 3D). The bool is false when no cell qualifies.
func (g *Grid) SamplePosition(p geom.Vec3, maxRadius float64) (geom.Vec3, bool) {
	if maxRadius < 0 || math.IsNaN(maxRadius) {
		return geom.Zero, false
	}

	center := g.cellOf(p)
	reach := int(math.Ceil(maxRadius/g.CellSize)) + 1

	var best geom.Vec3
	bestDist := math.Inf(1)
	found := false

	for z := center.Z - reach; z <= center.Z+reach; z++ {
		for x := center.X - reach; x <= center.X+reach; x++ {
			c := Cell{X: x, Z: z}
			if !g.Walkable(c) {
				continue
			}
			q := g.Center(c)
			d := geom.Dist(p, q)
			if d <= maxRadius && d < bestDist {
				best, bestDist, found = q, d, true
			}
		}
	}

	return best, found
}
