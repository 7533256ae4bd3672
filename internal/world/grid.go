// Package world provides the navigable surface: a grid of walkable cells on the
// XZ ground plane, point sampling, path search and spawn placement.
package world

import (
	"fmt"
	"math"

	"github.com/talgya/blob-crowd/internal/geom"
)

// Cell addresses one grid square.
type Cell struct {
	X int `json:"x"`
	Z int `json:"z"`
}

// CellDirections defines the four neighbor offsets.
var CellDirections = [4]Cell{
	{X: 1, Z: 0},
	{X: -1, Z: 0},
	{X: 0, Z: 1},
	{X: 0, Z: -1},
}

// Neighbors returns the four adjacent cells.
func (c Cell) Neighbors() [4]Cell {
	var result [4]Cell
	for i, d := range CellDirections {
		result[i] = Cell{X: c.X + d.X, Z: c.Z + d.Z}
	}
	return result
}

// Manhattan returns the grid distance between two cells.
func Manhattan(a, b Cell) int {
	dx := a.X - b.X
	dz := a.Z - b.Z
	if dx < 0 {
		dx = -dx
	}
	if dz < 0 {
		dz = -dz
	}
	return dx + dz
}

// Grid holds the walkable surface. The grid is centered on the world origin and
// the ground sits at y = 0.
type Grid struct {
	Width    int       `json:"width"`
	Depth    int       `json:"depth"`
	CellSize float64   `json:"cell_size"`
	Origin   geom.Vec3 `json:"origin"` // Corner of cell (0, 0)

	walkable []bool
}

// NewGrid creates a fully walkable grid of width × depth cells.
func NewGrid(width, depth int, cellSize float64) *Grid {
	g := &Grid{
		Width:    width,
		Depth:    depth,
		CellSize: cellSize,
		Origin:   geom.V(-float64(width)*cellSize/2, 0, -float64(depth)*cellSize/2),
		walkable: make([]bool, width*depth),
	}
	for i := range g.walkable {
		g.walkable[i] = true
	}
	return g
}

// InBounds returns true if the cell lies on the grid.
func (g *Grid) InBounds(c Cell) bool {
	return c.X >= 0 && c.Z >= 0 && c.X < g.Width && c.Z < g.Depth
}

// Walkable returns true if c is on the grid and not blocked.
func (g *Grid) Walkable(c Cell) bool {
	return g.InBounds(c) && g.walkable[c.Z*g.Width+c.X]
}

// SetWalkable marks a cell as open or blocked. Out-of-bounds cells are ignored.
func (g *Grid) SetWalkable(c Cell, ok bool) {
	if g.InBounds(c) {
		g.walkable[c.Z*g.Width+c.X] = ok
	}
}

// CellAt returns the cell containing p. The bool is false off the grid.
func (g *Grid) CellAt(p geom.Vec3) (Cell, bool) {
	c := g.cellOf(p)
	return c, g.InBounds(c)
}

func (g *Grid) cellOf(p geom.Vec3) Cell {
	return Cell{
		X: int(math.Floor((p.X - g.Origin.X) / g.CellSize)),
		Z: int(math.Floor((p.Z - g.Origin.Z) / g.CellSize)),
	}
}

// Center returns the ground-level center of a cell.
func (g *Grid) Center(c Cell) geom.Vec3 {
	return geom.V(
		g.Origin.X+(float64(c.X)+0.5)*g.CellSize,
		0,
		g.Origin.Z+(float64(c.Z)+0.5)*g.CellSize,
	)
}

// WalkableAt returns true if p lies over a walkable cell.
func (g *Grid) WalkableAt(p geom.Vec3) bool {
	return g.Walkable(g.cellOf(p))
}

// WalkableCount returns the number of open cells.
func (g *Grid) WalkableCount() int {
	n := 0
	for _, ok := range g.walkable {
		if ok {
			n++
		}
	}
	return n
}

// WalkableCells lists every open cell in row order.
func (g *Grid) WalkableCells() []Cell {
	cells := make([]Cell, 0, len(g.walkable))
	for z := 0; z < g.Depth; z++ {
		for x := 0; x < g.Width; x++ {
			if g.walkable[z*g.Width+x] {
				cells = append(cells, Cell{X: x, Z: z})
			}
		}
	}
	return cells
}

// Bounds returns the minimum and maximum ground corners of the grid.
func (g *Grid) Bounds() (geom.Vec3, geom.Vec3) {
	far := g.Origin.Add(geom.V(float64(g.Width)*g.CellSize, 0, float64(g.Depth)*g.CellSize))
	return g.Origin, far
}

// String returns a summary of the grid.
func (g *Grid) String() string {
	return fmt.Sprintf("Grid(%dx%d, cell=%.2f, walkable=%d)", g.Width, g.Depth, g.CellSize, g.WalkableCount())
}
