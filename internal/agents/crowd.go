// Crowd steering: separation, alignment, cohesion, density and flow blended
// into a smoothed velocity that displaces the agent directly.
package agents

import (
	"github.com/talgya/blob-crowd/internal/geom"
)

// Forces is the per-term breakdown of one crowd-force evaluation.
// Terms are unweighted; Total applies the blend weights.
type Forces struct {
	Separation geom.Vec3
	Alignment  geom.Vec3
	Cohesion   geom.Vec3
	Density    geom.Vec3
	Flow       geom.Vec3
	Total      geom.Vec3
	Neighbors  int
}

// CrowdForce evaluates the crowd force on an agent at self given its neighbors.
// An empty neighbor set yields the zero Forces.
func CrowdForce(self geom.Vec3, neighbors []Neighbor, cfg Config) Forces {
	if len(neighbors) == 0 {
		return Forces{}
	}

	var sep, align, center geom.Vec3
	for _, n := range neighbors {
		dir := self.Sub(n.Position)
		d := dir.Len()

		if d < cfg.SeparationRadius {
			sep = sep.Add(dir.Normalized().Scale(1 - d/cfg.SeparationRadius))
		}

		align = align.Add(n.Velocity)
		center = center.Add(n.Position)
	}

	count := float64(len(neighbors))
	cohesion := center.Scale(1 / count).Sub(self).Normalized()
	alignment := align.Normalized()

	var density geom.Vec3
	if cfg.MaxDensity > 0 {
		density = cohesion.Neg().Scale(count / float64(cfg.MaxDensity))
	}

	flow := cfg.FlowDirection.Normalized().Scale(cfg.FlowStrength)

	total := sep.Scale(SeparationWeight).
		Add(alignment.Scale(AlignmentWeight)).
		Add(cohesion.Scale(CohesionWeight)).
		Add(density.Scale(DensityWeight)).
		Add(flow.Scale(FlowWeight))

	return Forces{
		Separation: sep,
		Alignment:  alignment,
		Cohesion:   cohesion,
		Density:    density,
		Flow:       flow,
		Total:      total,
		Neighbors:  len(neighbors),
	}
}

// steer runs the crowd blender for one tick. Returns true if the agent was displaced.
func (a *Agent) steer(dt float64) bool {
	self := a.follower.Position()
	neighbors := a.neighbors.Query(self, a.cfg.NeighborRadius, a.id)
	if len(neighbors) == 0 {
		return false
	}

	f := CrowdForce(self, neighbors, a.cfg)
	a.smoothed = geom.Lerp(a.smoothed, f.Total, geom.Clamp01(dt*a.cfg.Smoothness))
	a.follower.Move(a.smoothed.Scale(dt))
	return true
}
