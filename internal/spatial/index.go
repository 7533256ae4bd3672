// Package spatial provides the neighbor index the crowd blender queries.
// The index is rebuilt from a snapshot once per tick, so every query within a
// tick sees the same positions regardless of who has already moved.
package spatial

import (
	"math"

	"github.com/talgya/blob-crowd/internal/agents"
	"github.com/talgya/blob-crowd/internal/geom"
)

type bucketKey struct {
	x, z int
}

// Index is a uniform bucket hash over agent positions on the ground plane.
type Index struct {
	cellSize float64
	buckets  map[bucketKey][]agents.Neighbor
	count    int
}

// NewIndex creates an index whose bucket edge is cellSize. A cell size near the
// typical query radius keeps queries to a 3×3 bucket scan.
func NewIndex(cellSize float64) *Index {
	if cellSize <= 0 {
		cellSize = 1
	}
	return &Index{
		cellSize: cellSize,
		buckets:  make(map[bucketKey][]agents.Neighbor),
	}
}

// Rebuild replaces the contents of the index with entries.
func (ix *Index) Rebuild(entries []agents.Neighbor) {
	for k, b := range ix.buckets {
		ix.buckets[k] = b[:0]
	}
	for _, e := range entries {
		k := ix.key(e.Position)
		ix.buckets[k] = append(ix.buckets[k], e)
	}
	ix.count = len(entries)
}

// Len returns the number of indexed agents.
func (ix *Index) Len() int {
	return ix.count
}

// Query returns every entry within radius of center (inclusive), excluding exclude.
func (ix *Index) Query(center geom.Vec3, radius float64, exclude agents.AgentID) []agents.Neighbor {
	if radius < 0 {
		return nil
	}
	lo := ix.key(center.Sub(geom.V(radius, 0, radius)))
	hi := ix.key(center.Add(geom.V(radius, 0, radius)))

	var out []agents.Neighbor
	for x := lo.x; x <= hi.x; x++ {
		for z := lo.z; z <= hi.z; z++ {
			for _, e := range ix.buckets[bucketKey{x, z}] {
				if e.ID == exclude {
					continue
				}
				if geom.Dist(center, e.Position) <= radius {
					out = append(out, e)
				}
			}
		}
	}
	return out
}

func (ix *Index) key(p geom.Vec3) bucketKey {
	return bucketKey{
		x: int(math.Floor(p.X / ix.cellSize)),
		z: int(math.Floor(p.Z / ix.cellSize)),
	}
}
