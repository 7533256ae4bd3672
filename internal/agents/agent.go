package agents

import (
	"github.com/talgya/blob-crowd/internal/geom"
)

// Agent is one Blob: a state machine, a crowd blender and a stall monitor composed
// over a path follower.
type Agent struct {
	id  AgentID
	cfg Config

	follower  PathFollower
	sampler   Sampler
	neighbors NeighborQuery
	rng       Rand

	state      State
	idleTimer  float64
	idleTarget float64

	smoothed geom.Vec3 // Crowd blender smoothing state

	lastPos    geom.Vec3
	stallTimer float64

	// Lifetime counters.
	requests       uint64
	failedRequests uint64
	recoveries     uint64
	stuckWandering uint64 // Recoveries that fired while Wandering
}

// New creates an Idle agent with a freshly rolled idle target.
func New(id AgentID, cfg Config, deps Deps) *Agent {
	a := &Agent{
		id:        id,
		cfg:       cfg,
		follower:  deps.Follower,
		sampler:   deps.Sampler,
		neighbors: deps.Neighbors,
		rng:       deps.Rand,
		state:     StateIdle,
		lastPos:   deps.Follower.Position(),
	}
	a.rollIdleTime()
	return a
}

// Restore rebuilds an agent from persisted state.
func Restore(id AgentID, cfg Config, deps Deps, s Saved) *Agent {
	a := New(id, cfg, deps)
	if s.State == StateWandering {
		a.state = StateWandering
	}
	a.idleTimer = s.IdleTimer
	if s.IdleTarget >= MinIdleTarget {
		a.idleTarget = s.IdleTarget
	}
	a.stallTimer = s.StallTimer
	a.smoothed = s.SmoothedVelocity
	return a
}

// Step advances the agent by dt: crowd steering (when enabled), then the state
// machine, then stall recovery.
func (a *Agent) Step(dt float64) Report {
	rep := Report{Prev: a.state}

	if a.cfg.CrowdSteering && a.neighbors != nil {
		rep.Steered = a.steer(dt)
	}

	a.updateState(dt, &rep)
	a.checkStall(dt, &rep)

	rep.State = a.state
	return rep
}

// Save captures the persisted subset of the agent's state.
func (a *Agent) Save() Saved {
	return Saved{
		State:            a.state,
		IdleTimer:        a.idleTimer,
		IdleTarget:       a.idleTarget,
		StallTimer:       a.stallTimer,
		SmoothedVelocity: a.smoothed,
	}
}

func (a *Agent) ID() AgentID                 { return a.id }
func (a *Agent) Config() Config              { return a.cfg }
func (a *Agent) State() State                { return a.state }
func (a *Agent) IdleTimer() float64          { return a.idleTimer }
func (a *Agent) IdleTarget() float64         { return a.idleTarget }
func (a *Agent) StallTimer() float64         { return a.stallTimer }
func (a *Agent) SmoothedVelocity() geom.Vec3 { return a.smoothed }
func (a *Agent) Position() geom.Vec3         { return a.follower.Position() }
func (a *Agent) Follower() PathFollower      { return a.follower }

// Counters returns lifetime destination requests, failed requests and stall recoveries.
func (a *Agent) Counters() (requests, failed, recoveries uint64) {
	return a.requests, a.failedRequests, a.recoveries
}

// WanderingRecoveries counts stall recoveries that fired while the agent was
// Wandering. An Idle agent stands still, so its recoveries are routine.
func (a *Agent) WanderingRecoveries() uint64 {
	return a.stuckWandering
}
