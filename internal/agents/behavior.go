// Wander/idle state machine and destination sampling.
package agents

import (
	"github.com/talgya/blob-crowd/internal/geom"
)

// updateState advances the state machine by dt.
func (a *Agent) updateState(dt float64, rep *Report) {
	switch a.state {
	case StateIdle:
		a.handleIdle(dt, rep)
	case StateWandering:
		a.handleWander()
	}
}

func (a *Agent) handleIdle(dt float64, rep *Report) {
	a.idleTimer += dt
	if a.idleTimer < a.idleTarget {
		return
	}

	a.idleTimer = 0
	a.state = StateWandering
	a.requestDestination(rep)
}

func (a *Agent) handleWander() {
	f := a.follower
	if f.HasPath() && !f.PathPending() &&
		f.RemainingDistance() <= f.StoppingDistance()+ArrivalTolerance {
		a.enterIdle()
	}
}

// enterIdle switches to Idle with a fresh idle target.
func (a *Agent) enterIdle() {
	a.state = StateIdle
	a.idleTimer = 0
	a.rollIdleTime()
}

func (a *Agent) rollIdleTime() {
	lo := a.cfg.IdleTime - a.cfg.IdleRange
	hi := a.cfg.IdleTime + a.cfg.IdleRange
	t := lo + a.rng.Float64()*(hi-lo)
	if t < MinIdleTarget {
		t = MinIdleTarget
	}
	a.idleTarget = t
}

// requestDestination samples a point inside the wander sphere and hands the first
// navigable hit to the follower. Exhausting every attempt falls back to Idle.
func (a *Agent) requestDestination(rep *Report) bool {
	origin := a.follower.Position()
	for i := 0; i < DestinationTries; i++ {
		p := origin.Add(insideUnitSphere(a.rng).Scale(a.cfg.WanderRadius))
		hit, ok := a.sampler.SamplePosition(p, a.cfg.WanderRadius)
		if !ok {
			continue
		}
		if a.follower.SetDestination(hit) {
			a.requests++
			rep.Requested = true
			return true
		}
	}

	a.failedRequests++
	rep.RequestFailed = true
	if a.state != StateIdle {
		a.enterIdle()
	}
	return false
}

// insideUnitSphere draws a point uniformly from the unit ball.
func insideUnitSphere(rng Rand) geom.Vec3 {
	for i := 0; i < 32; i++ {
		p := geom.V(rng.Float64()*2-1, rng.Float64()*2-1, rng.Float64()*2-1)
		if p.Dot(p) <= 1 {
			return p
		}
	}
	return geom.Zero
}
