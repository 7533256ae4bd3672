package agents

import (
	"math"

	"github.com/talgya/blob-crowd/internal/geom"
)

// Mover is a body that accepts direct displacement.
type Mover interface {
	Position() geom.Vec3
	Move(delta geom.Vec3)
}

// Wanderer walks in a straight line on the ground plane and picks a new heading
// every one to three seconds. It has no planning and no crowd awareness.
type Wanderer struct {
	ID    AgentID
	Speed float64

	mover     Mover
	rng       Rand
	direction geom.Vec3
	timer     float64
}

// NewWanderer creates a wanderer with an initial heading.
func NewWanderer(id AgentID, speed float64, m Mover, rng Rand) *Wanderer {
	w := &Wanderer{ID: id, Speed: speed, mover: m, rng: rng}
	w.changeDirection()
	return w
}

// Step moves the wanderer and re-rolls its heading when the timer runs out.
func (w *Wanderer) Step(dt float64) {
	w.mover.Move(w.direction.Scale(w.Speed * dt))

	w.timer -= dt
	if w.timer <= 0 {
		w.changeDirection()
	}
}

// Position returns the wanderer's current location.
func (w *Wanderer) Position() geom.Vec3 { return w.mover.Position() }

// Direction returns the current unit heading.
func (w *Wanderer) Direction() geom.Vec3 { return w.direction }

// Timer returns the time left before the next heading change.
func (w *Wanderer) Timer() float64 { return w.timer }

func (w *Wanderer) changeDirection() {
	d := geom.V(w.rng.Float64()*2-1, 0, w.rng.Float64()*2-1).Normalized()
	if d.IsZero() {
		a := w.rng.Float64() * 2 * math.Pi
		d = geom.V(math.Cos(a), 0, math.Sin(a))
	}
	w.direction = d
	w.timer = 1 + w.rng.Float64()*2
}
