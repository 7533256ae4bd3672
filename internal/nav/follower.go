// Package nav provides a path-following agent that walks grid routes and accepts
// direct displacement, constrained to walkable cells.
package nav

import (
	"math"

	"github.com/talgya/blob-crowd/internal/geom"
	"github.com/talgya/blob-crowd/internal/world"
)

// Follower walks an agent toward its destination along A* waypoints.
// Route planning is deferred to the next Update after SetDestination, so callers
// observe a pending path for one tick.
type Follower struct {
	grid     *world.Grid
	speed    float64
	stopping float64

	pos  geom.Vec3
	vel  geom.Vec3
	dest geom.Vec3

	pending   bool
	hasPath   bool
	waypoints []geom.Vec3
}

// Config holds follower tunables.
type Config struct {
	Speed            float64 `yaml:"speed" json:"speed"`
	StoppingDistance float64 `yaml:"stopping_distance" json:"stopping_distance"`
}

// DefaultConfig returns the engine-default walking agent.
func DefaultConfig() Config {
	return Config{Speed: 3.5, StoppingDistance: 0}
}

// NewFollower places a follower at pos on grid.
func NewFollower(grid *world.Grid, cfg Config, pos geom.Vec3) *Follower {
	return &Follower{
		grid:     grid,
		speed:    cfg.Speed,
		stopping: cfg.StoppingDistance,
		pos:      pos,
	}
}

func (f *Follower) Position() geom.Vec3       { return f.pos }
func (f *Follower) Velocity() geom.Vec3       { return f.vel }
func (f *Follower) HasPath() bool             { return f.hasPath }
func (f *Follower) PathPending() bool         { return f.pending }
func (f *Follower) StoppingDistance() float64 { return f.stopping }
func (f *Follower) Destination() geom.Vec3    { return f.dest }
func (f *Follower) Waypoints() []geom.Vec3    { return f.waypoints }

// SetDestination requests a route to p. Returns false if p is not walkable.
func (f *Follower) SetDestination(p geom.Vec3) bool {
	if !f.grid.WalkableAt(p) {
		return false
	}
	f.dest = p.Flat()
	f.pending = true
	return true
}

// RemainingDistance is the route length still to walk: +Inf while pending, 0 without a path.
func (f *Follower) RemainingDistance() float64 {
	if f.pending {
		return math.Inf(1)
	}
	if !f.hasPath {
		return 0
	}
	d := 0.0
	prev := f.pos
	for _, w := range f.waypoints {
		d += geom.Dist(prev, w)
		prev = w
	}
	return d
}

// Move displaces the follower directly. Blocked moves slide along a free axis
// or are dropped.
func (f *Follower) Move(delta geom.Vec3) {
	delta = delta.Flat()
	if delta.IsZero() {
		return
	}
	for _, d := range []geom.Vec3{delta, geom.V(delta.X, 0, 0), geom.V(0, 0, delta.Z)} {
		next := f.pos.Add(d)
		if !d.IsZero() && f.grid.WalkableAt(next) {
			f.pos = next
			return
		}
	}
}

// Warp places the follower at p and drops any route.
func (f *Follower) Warp(p geom.Vec3) {
	f.pos = p
	f.vel = geom.Zero
	f.pending = false
	f.hasPath = false
	f.waypoints = nil
}

// Update resolves a pending route and advances along it by dt.
func (f *Follower) Update(dt float64) {
	if f.pending {
		f.pending = false
		f.waypoints, f.hasPath = f.grid.FindPath(f.pos, f.dest)
	}
	if !f.hasPath {
		f.vel = geom.Zero
		return
	}

	budget := f.speed * dt
	start := f.pos
	for budget > 0 && len(f.waypoints) > 0 {
		if len(f.waypoints) == 1 && geom.Dist(f.pos, f.waypoints[0]) <= f.stopping {
			break
		}
		next := f.waypoints[0]
		d := geom.Dist(f.pos, next)
		if d <= budget {
			f.pos = next
			budget -= d
			if len(f.waypoints) > 1 {
				f.waypoints = f.waypoints[1:]
			} else {
				break
			}
			continue
		}
		step := f.pos.Add(next.Sub(f.pos).Scale(budget / d))
		if !f.grid.WalkableAt(step) {
			// Pushed off the route into a corner; plan again from here.
			f.pending = true
			break
		}
		f.pos = step
		budget = 0
	}

	if dt > 0 {
		f.vel = f.pos.Sub(start).Scale(1 / dt)
	} else {
		f.vel = geom.Zero
	}
}
