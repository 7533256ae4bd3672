// Package agents provides the Blob steering core: the wander/idle state machine,
// the crowd force blender, stall recovery, and the collaborator contracts they
// consume (path follower, navigable-surface sampler, neighbor query).
package agents

import (
	"github.com/talgya/blob-crowd/internal/geom"
)

// AgentID is a unique identifier for an agent.
type AgentID uint64

// State is the long-horizon behavior mode of an agent.
type State uint8

const (
	StateIdle      State = iota // Waiting out the idle timer
	StateWandering              // Walking toward a sampled destination
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWandering:
		return "wandering"
	}
	return "unknown"
}

// Tuning constants of the steering core.
const (
	ArrivalTolerance = 0.1  // Added to the follower's stopping distance
	MinIdleTarget    = 0.1  // Floor for a rolled idle duration
	DestinationTries = 10   // Sampling attempts per destination request
	StallEpsilon     = 0.01 // Displacement below this counts as not moving
	StallTimeout     = 1.5  // Stalled time before a forced re-target
	SeparationWeight = 2.5
	AlignmentWeight  = 1.2
	CohesionWeight   = 0.6
	DensityWeight    = 1.4
	FlowWeight       = 1.0
)

// Config holds the per-agent tunables. Read-only once an agent is built.
type Config struct {
	IdleTime         float64   `yaml:"idle_time" json:"idle_time"`
	IdleRange        float64   `yaml:"idle_range" json:"idle_range"`
	WanderRadius     float64   `yaml:"wander_radius" json:"wander_radius"`
	NeighborRadius   float64   `yaml:"neighbor_radius" json:"neighbor_radius"`
	SeparationRadius float64   `yaml:"separation_radius" json:"separation_radius"`
	FlowStrength     float64   `yaml:"flow_strength" json:"flow_strength"`
	Smoothness       float64   `yaml:"smoothness" json:"smoothness"`
	MaxDensity       int       `yaml:"max_density" json:"max_density"`
	FlowDirection    geom.Vec3 `yaml:"flow_direction" json:"flow_direction"`
	CrowdSteering    bool      `yaml:"crowd_steering" json:"crowd_steering"`
}

// DefaultConfig returns the prototype's tuned values.
func DefaultConfig() Config {
	return Config{
		IdleTime:         20,
		IdleRange:        5,
		WanderRadius:     6,
		NeighborRadius:   2.5,
		SeparationRadius: 1.2,
		FlowStrength:     0.6,
		Smoothness:       6,
		MaxDensity:       4,
		CrowdSteering:    false,
	}
}

// PathFollower moves an agent along planned routes. It owns the agent's position.
type PathFollower interface {
	Position() geom.Vec3
	Velocity() geom.Vec3
	SetDestination(p geom.Vec3) bool
	HasPath() bool
	PathPending() bool
	RemainingDistance() float64
	StoppingDistance() float64
	// Move displaces the agent directly, bypassing path planning.
	Move(delta geom.Vec3)
}

// Sampler snaps arbitrary points onto the navigable surface.
type Sampler interface {
	SamplePosition(p geom.Vec3, maxRadius float64) (geom.Vec3, bool)
}

// Neighbor is a read-only view of another agent as of tick start.
type Neighbor struct {
	ID       AgentID
	Position geom.Vec3
	Velocity geom.Vec3
}

// NeighborQuery returns the agents within radius of center, never including exclude.
type NeighborQuery interface {
	Query(center geom.Vec3, radius float64, exclude AgentID) []Neighbor
}

// Rand is the random source an agent draws from. *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// Deps bundles an agent's collaborators.
type Deps struct {
	Follower  PathFollower
	Sampler   Sampler
	Neighbors NeighborQuery
	Rand      Rand
}

// Report describes what happened during one Step.
type Report struct {
	Prev          State
	State         State
	Requested     bool // A destination was issued to the follower
	RequestFailed bool // All sampling attempts failed
	Recovered     bool // Stall recovery fired
	Stuck         bool // Recovery fired while Wandering
	Steered       bool // Crowd force displaced the agent
}

// Transitioned reports whether the state changed during the step.
func (r Report) Transitioned() bool {
	return r.Prev != r.State
}

// Saved is the subset of agent state persisted across restarts.
type Saved struct {
	State            State     `json:"state"`
	IdleTimer        float64   `json:"idle_timer"`
	IdleTarget       float64   `json:"idle_target"`
	StallTimer       float64   `json:"stall_timer"`
	SmoothedVelocity geom.Vec3 `json:"smoothed_velocity"`
}
