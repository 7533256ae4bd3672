package world

import (
	"testing"

	"github.com/talgya/blob-crowd/internal/geom"
)

func TestGridCellMapping(t *testing.T) {
	g := NewGrid(10, 6, 2)
	lo, hi := g.Bounds()
	if lo != geom.V(-10, 0, -6) || hi != geom.V(10, 0, 6) {
		t.Fatalf("bounds = %v..%v", lo, hi)
	}

	c, ok := g.CellAt(geom.V(-9.5, 3, -5.5))
	if !ok || c != (Cell{0, 0}) {
		t.Fatalf("CellAt corner = %v %v", c, ok)
	}
	if got := g.Center(Cell{0, 0}); got != geom.V(-9, 0, -5) {
		t.Fatalf("Center(0,0) = %v", got)
	}
	if _, ok := g.CellAt(geom.V(10.5, 0, 0)); ok {
		t.Fatal("point past the edge mapped onto the grid")
	}
}

func TestSamplePosition(t *testing.T) {
	g := NewGrid(10, 10, 1)
	for x := 0; x < 10; x++ {
		for z := 0; z < 10; z++ {
			if x < 8 {
				g.SetWalkable(Cell{x, z}, false)
			}
		}
	}
	// Open column starts at x = 8, centers at world x = 3.5 and 4.5.

	if _, ok := g.SamplePosition(geom.V(-4, 0, 0), 3); ok {
		t.Fatal("sampled a cell farther than the radius")
	}

	p, ok := g.SamplePosition(geom.V(2, 0, 0.2), 2)
	if !ok {
		t.Fatal("expected a hit within radius")
	}
	if p.X != 3.5 || p.Y != 0 {
		t.Fatalf("snapped to %v, want nearest open center at x=3.5", p)
	}
	if !g.WalkableAt(p) {
		t.Fatalf("sampled point %v is not walkable", p)
	}

	if _, ok := g.SamplePosition(geom.V(3.5, 0, 0.5), -1); ok {
		t.Fatal("negative radius should never hit")
	}
}

func TestSamplePositionIncludesBoundary(t *testing.T) {
	g := NewGrid(3, 1, 1) // centers at x = -1, 0, 1
	g.SetWalkable(Cell{0, 0}, false)
	g.SetWalkable(Cell{1, 0}, false)

	p, ok := g.SamplePosition(geom.V(0, 0, 0), 1)
	if !ok || p != geom.V(1, 0, 0) {
		t.Fatalf("boundary sample = %v %v, want (1,0,0) true", p, ok)
	}
}

func TestFindPath(t *testing.T) {
	g := NewGrid(5, 5, 1)
	// Wall across x = 2 except the top row.
	for z := 0; z < 4; z++ {
		g.SetWalkable(Cell{2, z}, false)
	}

	from := g.Center(Cell{0, 0})
	to := g.Center(Cell{4, 0})
	path, ok := g.FindPath(from, to)
	if !ok {
		t.Fatal("expected a route around the wall")
	}
	if len(path) != 12 {
		t.Fatalf("path length = %d, want 12", len(path))
	}
	if path[len(path)-1] != to {
		t.Fatalf("path ends at %v, want %v", path[len(path)-1], to)
	}
	for _, p := range path {
		if !g.WalkableAt(p) {
			t.Fatalf("waypoint %v is blocked", p)
		}
	}
}

func TestFindPathBlocked(t *testing.T) {
	g := NewGrid(5, 5, 1)
	for z := 0; z < 5; z++ {
		g.SetWalkable(Cell{2, z}, false)
	}
	if _, ok := g.FindPath(g.Center(Cell{0, 0}), g.Center(Cell{4, 4})); ok {
		t.Fatal("found a route through a full wall")
	}
	if _, ok := g.FindPath(g.Center(Cell{0, 0}), g.Center(Cell{2, 2})); ok {
		t.Fatal("found a route into a blocked cell")
	}
}

func TestFindPathSameCell(t *testing.T) {
	g := NewGrid(3, 3, 1)
	to := geom.V(0.2, 0, 0.1)
	path, ok := g.FindPath(geom.V(0, 0, 0), to)
	if !ok || len(path) != 1 || path[0] != to {
		t.Fatalf("same-cell path = %v %v", path, ok)
	}
}

func TestGenerateDeterministicAndConnected(t *testing.T) {
	cfg := SmallTestConfig()
	a := Generate(cfg)
	b := Generate(cfg)
	if a.WalkableCount() == 0 {
		t.Fatal("generated surface has no open cells")
	}
	ca, cb := a.WalkableCells(), b.WalkableCells()
	if len(ca) != len(cb) {
		t.Fatalf("same seed produced %d and %d open cells", len(ca), len(cb))
	}

	// Every open cell reaches the first one.
	first := a.Center(ca[0])
	for _, c := range ca[1:] {
		if _, ok := a.FindPath(first, a.Center(c)); !ok {
			t.Fatalf("cell %v is not connected", c)
		}
	}
}

func TestGenerateWalled(t *testing.T) {
	cfg := SmallTestConfig()
	cfg.Walled = true
	g := Generate(cfg)
	for x := 0; x < cfg.Width; x++ {
		if g.Walkable(Cell{x, 0}) || g.Walkable(Cell{x, cfg.Depth - 1}) {
			t.Fatalf("border cell at x=%d is open", x)
		}
	}
}

func TestPlaceSpawns(t *testing.T) {
	g := NewGrid(20, 20, 1)
	spots := PlaceSpawns(g, 30, 2, 1)
	if len(spots) != 30 {
		t.Fatalf("placed %d spawns, want 30", len(spots))
	}
	for i, p := range spots {
		if !g.WalkableAt(p) {
			t.Fatalf("spawn %v is blocked", p)
		}
		for _, q := range spots[i+1:] {
			if geom.Dist(p, q) < 2 {
				t.Fatalf("spawns %v and %v closer than spacing", p, q)
			}
		}
	}
}

func TestPlaceSpawnsRelaxesSpacing(t *testing.T) {
	g := NewGrid(4, 4, 1)
	spots := PlaceSpawns(g, 16, 10, 1)
	if len(spots) != 16 {
		t.Fatalf("placed %d spawns, want all 16 cells", len(spots))
	}
	if got := PlaceSpawns(g, 100, 0, 1); len(got) != 16 {
		t.Fatalf("placed %d spawns on 16 cells", len(got))
	}
}

func TestGenerateWithoutObstacles(t *testing.T) {
	g := Generate(GenConfig{Width: 8, Depth: 8, CellSize: 1, Seed: 3, ObstacleLevel: 2, Frequency: 0.1, Octaves: 4})
	if g.WalkableCount() != 64 {
		t.Fatalf("obstacle level above 1 still blocked cells: %d open", g.WalkableCount())
	}
}
