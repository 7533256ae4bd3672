// Spawn placement scatters agents across open cells with a minimum spacing.
package world

import (
	"math/rand"

	"github.com/talgya/blob-crowd/internal/geom"
)

// PlaceSpawns picks count walkable cell centers at least minSpacing apart.
// When the surface cannot fit that many, spacing is halved until it can, and
// finally dropped, so the result always has min(count, walkable cells) entries.
func PlaceSpawns(g *Grid, count int, minSpacing float64, seed int64) []geom.Vec3 {
	rng := rand.New(rand.NewSource(seed + 200))

	cells := g.WalkableCells()
	rng.Shuffle(len(cells), func(i, j int) {
		cells[i], cells[j] = cells[j], cells[i]
	})
	if count > len(cells) {
		count = len(cells)
	}

	spacing := minSpacing
	for {
		spots := placeWithSpacing(g, cells, count, spacing)
		if len(spots) >= count || spacing <= 0 {
			return spots
		}
		spacing /= 2
		if spacing < g.CellSize/4 {
			spacing = 0
		}
	}
}

func placeWithSpacing(g *Grid, cells []Cell, count int, spacing float64) []geom.Vec3 {
	spots := make([]geom.Vec3, 0, count)
	for _, c := range cells {
		if len(spots) >= count {
			break
		}
		p := g.Center(c)
		if tooClose(p, spots, spacing) {
			continue
		}
		spots = append(spots, p)
	}
	return spots
}

func tooClose(p geom.Vec3, existing []geom.Vec3, minDist float64) bool {
	for _, q := range existing {
		if geom.Dist(p, q) < minDist {
			return true
		}
	}
	return false
}
