package spatial

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/talgya/blob-crowd/internal/agents"
	"github.com/talgya/blob-crowd/internal/geom"
)

func ids(ns []agents.Neighbor) []agents.AgentID {
	out := make([]agents.AgentID, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.ID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func TestQueryExcludesSelfAndIncludesBoundary(t *testing.T) {
	ix := NewIndex(2.5)
	ix.Rebuild([]agents.Neighbor{
		{ID: 1, Position: geom.V(0, 0, 0)},
		{ID: 2, Position: geom.V(2.5, 0, 0)}, // exactly on the radius
		{ID: 3, Position: geom.V(0, 0, -1)},
		{ID: 4, Position: geom.V(2.6, 0, 0)},
	})

	got := ids(ix.Query(geom.V(0, 0, 0), 2.5, 1))
	want := []agents.AgentID{2, 3}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("Query = %v, want %v", got, want)
	}
}

func TestQueryMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	entries := make([]agents.Neighbor, 300)
	for i := range entries {
		entries[i] = agents.Neighbor{
			ID:       agents.AgentID(i + 1),
			Position: geom.V(rng.Float64()*40-20, 0, rng.Float64()*40-20),
		}
	}
	ix := NewIndex(2.5)
	ix.Rebuild(entries)
	if ix.Len() != len(entries) {
		t.Fatalf("Len = %d, want %d", ix.Len(), len(entries))
	}

	for _, self := range entries[:50] {
		for _, r := range []float64{0.5, 2.5, 6} {
			var want []agents.Neighbor
			for _, e := range entries {
				if e.ID != self.ID && geom.Dist(self.Position, e.Position) <= r {
					want = append(want, e)
				}
			}
			got := ix.Query(self.Position, r, self.ID)
			g, w := ids(got), ids(want)
			if len(g) != len(w) {
				t.Fatalf("agent %d radius %v: got %d neighbors, want %d", self.ID, r, len(g), len(w))
			}
			for i := range g {
				if g[i] != w[i] {
					t.Fatalf("agent %d radius %v: got %v, want %v", self.ID, r, g, w)
				}
			}
		}
	}
}

func TestRebuildReplacesSnapshot(t *testing.T) {
	ix := NewIndex(1)
	ix.Rebuild([]agents.Neighbor{{ID: 1, Position: geom.V(0, 0, 0)}, {ID: 2, Position: geom.V(0.5, 0, 0)}})
	ix.Rebuild([]agents.Neighbor{{ID: 1, Position: geom.V(0, 0, 0)}, {ID: 2, Position: geom.V(9, 0, 0)}})

	if got := ix.Query(geom.Zero, 1, 1); len(got) != 0 {
		t.Fatalf("stale entries after rebuild: %v", got)
	}
}
