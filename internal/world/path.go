// Grid A* path search over 4-connected walkable cells.
package world

import (
	"container/heap"
	"math"

	"github.com/talgya/blob-crowd/internal/geom"
)

// FindPath returns the waypoints from `from` to `to`. The first waypoint is the
// first cell after the start cell; the last is `to` itself, flattened to the ground.
// Returns false if either end is blocked or no route exists.
func (g *Grid) FindPath(from, to geom.Vec3) ([]geom.Vec3, bool) {
	start, ok := g.CellAt(from)
	if !ok || !g.Walkable(start) {
		return nil, false
	}
	goal, ok := g.CellAt(to)
	if !ok || !g.Walkable(goal) {
		return nil, false
	}

	cells := g.astar(start, goal)
	if cells == nil {
		return nil, false
	}

	waypoints := make([]geom.Vec3, 0, len(cells))
	for _, c := range cells[1:] {
		waypoints = append(waypoints, g.Center(c))
	}
	end := to.Flat()
	if len(waypoints) == 0 {
		waypoints = append(waypoints, end)
	} else {
		waypoints[len(waypoints)-1] = end
	}
	return waypoints, true
}

func (g *Grid) astar(start, goal Cell) []Cell {
	n := g.Width * g.Depth
	index := func(c Cell) int { return c.Z*g.Width + c.X }

	cameFrom := make([]int, n)
	for i := range cameFrom {
		cameFrom[i] = -1
	}
	gScore := make([]float64, n)
	for i := range gScore {
		gScore[i] = math.Inf(1)
	}

	startIdx := index(start)
	goalIdx := index(goal)
	gScore[startIdx] = 0

	open := &openSet{}
	heap.Init(open)
	heap.Push(open, &openItem{cell: start, f: float64(Manhattan(start, goal))})

	for open.Len() > 0 {
		cur := heap.Pop(open).(*openItem)
		curIdx := index(cur.cell)
		if curIdx == goalIdx {
			return g.reconstruct(cameFrom, startIdx, goalIdx)
		}
		if cur.g > gScore[curIdx] {
			continue // stale entry
		}

		for _, nb := range cur.cell.Neighbors() {
			if !g.Walkable(nb) {
				continue
			}
			idx := index(nb)
			tentative := gScore[curIdx] + 1
			if tentative < gScore[idx] {
				cameFrom[idx] = curIdx
				gScore[idx] = tentative
				heap.Push(open, &openItem{cell: nb, g: tentative, f: tentative + float64(Manhattan(nb, goal))})
			}
		}
	}
	return nil
}

func (g *Grid) reconstruct(cameFrom []int, startIdx, goalIdx int) []Cell {
	path := make([]Cell, 0, 32)
	cur := goalIdx
	for cur != -1 {
		path = append(path, Cell{X: cur % g.Width, Z: cur / g.Width})
		if cur == startIdx {
			break
		}
		cur = cameFrom[cur]
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

type openItem struct {
	cell Cell
	g    float64
	f    float64
}

type openSet []*openItem

func (o openSet) Len() int           { return len(o) }
func (o openSet) Less(i, j int) bool { return o[i].f < o[j].f }
func (o openSet) Swap(i, j int)      { o[i], o[j] = o[j], o[i] }
func (o *openSet) Push(x any)        { *o = append(*o, x.(*openItem)) }
func (o *openSet) Pop() any {
	old := *o
	n := len(old)
	item := old[n-1]
	*o = old[:n-1]
	return item
}
