package agents

import (
	"log/slog"

	"github.com/talgya/blob-crowd/internal/geom"
)

// checkStall tracks displacement between ticks and forces a new destination when
// the agent has not moved for longer than StallTimeout. It runs regardless of state.
func (a *Agent) checkStall(dt float64, rep *Report) {
	pos := a.follower.Position()
	if geom.Dist(pos, a.lastPos) < StallEpsilon {
		a.stallTimer += dt
	} else {
		a.stallTimer = 0
	}
	a.lastPos = pos

	if a.stallTimer > StallTimeout {
		slog.Debug("stall recovery", "agent", a.id, "state", a.state, "pos", pos)
		if a.state == StateWandering {
			a.stuckWandering++
			rep.Stuck = true
		}
		a.requestDestination(rep)
		a.stallTimer = 0
		a.recoveries++
		rep.Recovered = true
	}
}
