package engine

import (
	"github.com/talgya/blob-crowd/internal/agents"
	"github.com/talgya/blob-crowd/internal/geom"
)

// AgentFrame is one agent's observable state in a frame.
type AgentFrame struct {
	ID       agents.AgentID `json:"id"`
	Kind     string         `json:"kind"`
	State    string         `json:"state,omitempty"`
	Position geom.Vec3      `json:"position"`
	Velocity geom.Vec3      `json:"velocity"`
	Target   bool           `json:"target,omitempty"`
}

// Frame is a tick-stamped view of every agent, streamed to clients and
// written to snapshots.
type Frame struct {
	Tick   uint64       `json:"tick"`
	Time   float64      `json:"time"` // Simulated seconds
	Agents []AgentFrame `json:"agents"`
}

// AgentDetail is the full inspectable state of one Blob.
type AgentDetail struct {
	AgentFrame
	IdleTimer         float64   `json:"idle_timer"`
	IdleTarget        float64   `json:"idle_target"`
	StallTimer        float64   `json:"stall_timer"`
	SmoothedVelocity  geom.Vec3 `json:"smoothed_velocity"`
	HasPath           bool      `json:"has_path"`
	PathPending       bool      `json:"path_pending"`
	RemainingDistance *float64  `json:"remaining_distance"` // nil while a path is pending
	Neighbors         int       `json:"neighbors"`
	Requests          uint64    `json:"destination_requests"`
	FailedRequests    uint64    `json:"failed_requests"`
	StallRecoveries   uint64    `json:"stall_recoveries"`
	StuckRecoveries   uint64    `json:"wandering_stall_recoveries"`
}

// AgentRecord is the persisted form of an agent.
type AgentRecord struct {
	ID       agents.AgentID
	Kind     string
	Position geom.Vec3
	Speed    float64      // Wanderers only
	Saved    agents.Saved // Blobs only
}

// Frame captures every agent as of the last tick.
func (s *Simulation) Frame() Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Frame{
		Tick:   s.LastTick,
		Time:   float64(s.LastTick) * s.DeltaTime,
		Agents: s.agentFrames(),
	}
}

// Summaries returns the observable state of every agent.
func (s *Simulation) Summaries() []AgentFrame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.agentFrames()
}

func (s *Simulation) agentFrames() []AgentFrame {
	target, hasTarget := s.Session.Target()
	out := make([]AgentFrame, 0, len(s.Blobs)+len(s.Wanderers))
	for _, a := range s.Blobs {
		out = append(out, s.blobFrame(a, target, hasTarget))
	}
	for _, w := range s.Wanderers {
		out = append(out, AgentFrame{
			ID:       w.ID,
			Kind:     KindWanderer,
			Position: w.Position(),
			Velocity: w.Direction().Scale(w.Speed),
		})
	}
	return out
}

func (s *Simulation) blobFrame(a *agents.Agent, target agents.AgentID, hasTarget bool) AgentFrame {
	return AgentFrame{
		ID:       a.ID(),
		Kind:     KindBlob,
		State:    a.State().String(),
		Position: a.Position(),
		Velocity: a.Follower().Velocity(),
		Target:   hasTarget && a.ID() == target,
	}
}

// Detail returns the full state of one Blob.
func (s *Simulation) Detail(id agents.AgentID) (AgentDetail, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.blobIndex[id]
	if !ok {
		return AgentDetail{}, false
	}
	target, hasTarget := s.Session.Target()
	f := a.Follower()
	req, failed, rec := a.Counters()
	d := AgentDetail{
		AgentFrame:       s.blobFrame(a, target, hasTarget),
		IdleTimer:        a.IdleTimer(),
		IdleTarget:       a.IdleTarget(),
		StallTimer:       a.StallTimer(),
		SmoothedVelocity: a.SmoothedVelocity(),
		HasPath:          f.HasPath(),
		PathPending:      f.PathPending(),
		Neighbors:        len(s.Neighbors.Query(a.Position(), a.Config().NeighborRadius, id)),
		Requests:         req,
		FailedRequests:   failed,
		StallRecoveries:  rec,
		StuckRecoveries:  a.WanderingRecoveries(),
	}
	if !f.PathPending() {
		rd := f.RemainingDistance()
		d.RemainingDistance = &rd
	}
	return d, true
}

// Checkpoint is everything a save writes, read under one lock so agents,
// events and tick describe the same moment.
type Checkpoint struct {
	Tick      uint64
	Records   []AgentRecord
	Events    []Event // Pending, oldest first; AckEvents(len(Events)) after they are stored
	Target    agents.AgentID
	HasTarget bool
	Won       bool
	WonTick   uint64
}

// Checkpoint captures the persisted state as of the last tick. Pending events
// are copied, not cleared.
func (s *Simulation) Checkpoint() Checkpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := Checkpoint{
		Tick:    s.LastTick,
		Records: s.records(),
		Events:  append([]Event(nil), s.pending...),
	}
	c.Target, c.HasTarget = s.Session.Target()
	c.Won, c.WonTick = s.Session.Won()
	return c
}

// Records returns every agent in persisted form.
func (s *Simulation) Records() []AgentRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records()
}

func (s *Simulation) records() []AgentRecord {
	out := make([]AgentRecord, 0, len(s.Blobs)+len(s.Wanderers))
	for _, a := range s.Blobs {
		out = append(out, AgentRecord{ID: a.ID(), Kind: KindBlob, Position: a.Position(), Saved: a.Save()})
	}
	for _, w := range s.Wanderers {
		out = append(out, AgentRecord{ID: w.ID, Kind: KindWanderer, Position: w.Position(), Speed: w.Speed})
	}
	return out
}
