// Simulation ties the navigable surface, the Blobs and the wanderers together
// and steps them each tick.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/talgya/blob-crowd/internal/agents"
	"github.com/talgya/blob-crowd/internal/game"
	"github.com/talgya/blob-crowd/internal/geom"
	"github.com/talgya/blob-crowd/internal/nav"
	"github.com/talgya/blob-crowd/internal/spatial"
	"github.com/talgya/blob-crowd/internal/world"
)

// Agent kinds.
const (
	KindBlob     = "blob"
	KindWanderer = "wanderer"
)

// Options configures a Simulation.
type Options struct {
	Seed      int64
	DeltaTime float64 // Simulated seconds per tick
	Workers   int     // Parallel agent steps; <= 1 steps sequentially
	Agent     agents.Config
	Follower  nav.Config
}

// Simulation holds the complete world state and wires systems together.
type Simulation struct {
	mu sync.RWMutex

	Grid      *world.Grid
	Blobs     []*agents.Agent
	Wanderers []*agents.Wanderer
	Session   *game.Session
	Spawner   *agents.Spawner
	Neighbors *spatial.Index

	DeltaTime float64
	Workers   int

	Events   []Event // Recent events (bounded)
	LastTick uint64  // Most recent tick processed
	Stats    SimStats

	blobIndex map[agents.AgentID]*agents.Agent
	followers []*nav.Follower // Every spawned follower, updated after agent steps
	snapshot  []agents.Neighbor
	pending   []Event // Not yet persisted
	events    broker
}

// SimStats tracks aggregate crowd statistics. WanderingRecoveries counts the
// stall recoveries that fired while Wandering; Idle Blobs stand still and
// recover every StallTimeout, so only those point at a blocked crowd.
type SimStats struct {
	Blobs               int     `json:"blobs"`
	Wanderers           int     `json:"wanderers"`
	Idle                int     `json:"idle"`
	Wandering           int     `json:"wandering"`
	Steered             int     `json:"steered"` // Blobs displaced by crowd force last tick
	AvgSpeed            float64 `json:"avg_speed"`
	Requests            uint64  `json:"destination_requests"`
	FailedRequests      uint64  `json:"failed_requests"`
	StallRecoveries     uint64  `json:"stall_recoveries"`
	WanderingRecoveries uint64  `json:"wandering_stall_recoveries"`
}

// NewSimulation creates an empty simulation over grid.
func NewSimulation(grid *world.Grid, session *game.Session, opts Options) *Simulation {
	if opts.DeltaTime <= 0 {
		opts.DeltaTime = 1.0 / DefaultTickRate
	}
	if session == nil {
		session = game.NewSession()
	}

	s := &Simulation{
		Grid:      grid,
		Session:   session,
		Neighbors: spatial.NewIndex(opts.Agent.NeighborRadius),
		DeltaTime: opts.DeltaTime,
		Workers:   opts.Workers,
		blobIndex: make(map[agents.AgentID]*agents.Agent),
	}

	sp := agents.NewSpawner(opts.Seed, opts.Agent)
	sp.Sampler = grid
	sp.Neighbors = s.Neighbors
	sp.NewFollower = func(pos geom.Vec3) agents.PathFollower {
		f := nav.NewFollower(grid, opts.Follower, pos)
		s.followers = append(s.followers, f)
		return f
	}
	s.Spawner = sp
	return s
}

// CurrentTick returns the most recently processed tick number.
func (s *Simulation) CurrentTick() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LastTick
}

// SpawnBlobs adds one Blob per position.
func (s *Simulation) SpawnBlobs(positions []geom.Vec3) []*agents.Agent {
	s.mu.Lock()
	defer s.mu.Unlock()
	blobs := s.Spawner.SpawnBlobs(positions)
	for _, a := range blobs {
		s.addBlob(a)
	}
	s.updateStats(nil)
	return blobs
}

// RestoreBlob adds a persisted Blob.
func (s *Simulation) RestoreBlob(id agents.AgentID, pos geom.Vec3, saved agents.Saved) *agents.Agent {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.Spawner.RestoreBlob(id, pos, saved)
	s.addBlob(a)
	s.updateStats(nil)
	return a
}

// SpawnWanderers adds one wanderer per position.
func (s *Simulation) SpawnWanderers(positions []geom.Vec3, speed float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Wanderers = append(s.Wanderers, s.Spawner.SpawnWanderers(positions, speed)...)
	s.updateStats(nil)
}

// RestoreWanderer adds a persisted wanderer.
func (s *Simulation) RestoreWanderer(id agents.AgentID, pos geom.Vec3, speed float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Wanderers = append(s.Wanderers, s.Spawner.RestoreWanderer(id, pos, speed))
	s.updateStats(nil)
}

func (s *Simulation) addBlob(a *agents.Agent) {
	s.Blobs = append(s.Blobs, a)
	s.blobIndex[a.ID()] = a
}

// Blob returns the Blob with the given ID.
func (s *Simulation) Blob(id agents.AgentID) (*agents.Agent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.blobIndex[id]
	return a, ok
}

// BlobIDs returns the IDs of all Blobs in spawn order.
func (s *Simulation) BlobIDs() []agents.AgentID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]agents.AgentID, len(s.Blobs))
	for i, a := range s.Blobs {
		ids[i] = a.ID()
	}
	return ids
}

// Tick runs one simulation step: neighbor snapshot, Blob steps, wanderers,
// then path advancement for every follower.
func (s *Simulation) Tick(tick uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.LastTick = tick
	dt := s.DeltaTime

	s.rebuildNeighbors()
	reports, err := s.stepBlobs(dt)
	if err != nil {
		slog.Error("blob step failed", "tick", tick, "error", err)
	}
	for _, w := range s.Wanderers {
		w.Step(dt)
	}
	for _, f := range s.followers {
		f.Update(dt)
	}

	for i, rep := range reports {
		s.recordReport(tick, s.Blobs[i].ID(), rep)
	}
	s.updateStats(reports)
}

// rebuildNeighbors snapshots every Blob as of tick start.
func (s *Simulation) rebuildNeighbors() {
	s.snapshot = s.snapshot[:0]
	for _, a := range s.Blobs {
		s.snapshot = append(s.snapshot, agents.Neighbor{
			ID:       a.ID(),
			Position: a.Position(),
			Velocity: a.Follower().Velocity(),
		})
	}
	s.Neighbors.Rebuild(s.snapshot)
}

// stepBlobs steps every Blob. Each Blob mutates only itself and its own
// follower and reads neighbors from the tick-start snapshot, so steps may run
// in parallel. A step that panics is reported as an error; the other Blobs
// still step.
func (s *Simulation) stepBlobs(dt float64) ([]agents.Report, error) {
	reports := make([]agents.Report, len(s.Blobs))
	if s.Workers <= 1 {
		var errs []error
		for i, a := range s.Blobs {
			if err := stepOne(a, dt, &reports[i]); err != nil {
				errs = append(errs, err)
			}
		}
		return reports, errors.Join(errs...)
	}

	var g errgroup.Group
	g.SetLimit(s.Workers)
	for i, a := range s.Blobs {
		g.Go(func() error {
			return stepOne(a, dt, &reports[i])
		})
	}
	return reports, g.Wait()
}

func stepOne(a *agents.Agent, dt float64, rep *agents.Report) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("blob %d: %v", a.ID(), r)
		}
	}()
	*rep = a.Step(dt)
	return nil
}

func (s *Simulation) recordReport(tick uint64, id agents.AgentID, rep agents.Report) {
	if rep.Transitioned() {
		desc := fmt.Sprintf("Blob %d went idle", id)
		if rep.State == agents.StateWandering {
			desc = fmt.Sprintf("Blob %d started wandering", id)
		}
		s.emit(Event{Tick: tick, AgentID: id, Category: CategoryState, Description: desc})
	}
	if rep.Recovered {
		s.emit(Event{Tick: tick, AgentID: id, Category: CategoryStall,
			Description: fmt.Sprintf("Blob %d stalled and picked a new destination", id)})
	}
	if rep.RequestFailed {
		slog.Debug("no destination found", "agent", id, "tick", tick)
		s.emit(Event{Tick: tick, AgentID: id, Category: CategorySampleFailed,
			Description: fmt.Sprintf("Blob %d found no reachable destination", id)})
	}
}

// ChooseTarget picks the Blob players must catch and records it on the session.
func (s *Simulation) ChooseTarget(rng agents.Rand) (agents.AgentID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]agents.AgentID, len(s.Blobs))
	for i, a := range s.Blobs {
		ids[i] = a.ID()
	}
	id, ok := game.PickTarget(ids, rng)
	if !ok {
		return 0, false
	}
	s.Session.SetTarget(id)
	s.emit(Event{Tick: s.LastTick, AgentID: id, Category: CategoryTarget,
		Description: fmt.Sprintf("Blob %d is the target", id)})
	return id, true
}

// Catch reports a catch attempt on a Blob. Returns whether it won the session.
func (s *Simulation) Catch(id agents.AgentID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blobIndex[id]; !ok {
		return false, fmt.Errorf("no blob with id %d", id)
	}
	won := s.Session.Catch(id, s.LastTick)
	s.emit(Event{Tick: s.LastTick, AgentID: id, Category: CategoryCatch,
		Description: fmt.Sprintf("Blob %d was caught", id)})
	if won {
		s.emit(Event{Tick: s.LastTick, AgentID: id, Category: CategoryWin,
			Description: fmt.Sprintf("Caught the target Blob %d", id)})
	}
	return won, nil
}

// Report logs a periodic crowd summary.
func (s *Simulation) Report(tick uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, e := range s.Events {
		counts[e.Category]++
	}

	slog.Info("crowd report",
		"tick", tick,
		"time", SimTime(tick, s.DeltaTime),
		"blobs", s.Stats.Blobs,
		"idle", s.Stats.Idle,
		"wandering", s.Stats.Wandering,
		"steered", s.Stats.Steered,
		"avg_speed", fmt.Sprintf("%.3f", s.Stats.AvgSpeed),
		"stall_recoveries", s.Stats.StallRecoveries,
		"wandering_recoveries", s.Stats.WanderingRecoveries,
		"failed_requests", s.Stats.FailedRequests,
		"events_state", counts[CategoryState],
		"events_stall", counts[CategoryStall],
	)
}

// StatsSnapshot returns a copy of the current statistics.
func (s *Simulation) StatsSnapshot() SimStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Stats
}

func (s *Simulation) updateStats(reports []agents.Report) {
	st := SimStats{
		Blobs:     len(s.Blobs),
		Wanderers: len(s.Wanderers),
	}
	totalSpeed := 0.0
	for _, a := range s.Blobs {
		switch a.State() {
		case agents.StateIdle:
			st.Idle++
		case agents.StateWandering:
			st.Wandering++
		}
		totalSpeed += a.Follower().Velocity().Len()
		req, failed, rec := a.Counters()
		st.Requests += req
		st.FailedRequests += failed
		st.StallRecoveries += rec
		st.WanderingRecoveries += a.WanderingRecoveries()
	}
	for _, rep := range reports {
		if rep.Steered {
			st.Steered++
		}
	}
	if len(s.Blobs) > 0 {
		st.AvgSpeed = totalSpeed / float64(len(s.Blobs))
	}
	s.Stats = st
}
