// Agent spawning: hands out IDs and per-agent random streams, and builds Blobs
// and wanderers at given positions.
package agents

import (
	"math/rand"

	"github.com/talgya/blob-crowd/internal/geom"
)

// FollowerFactory builds a path follower standing at pos.
type FollowerFactory func(pos geom.Vec3) PathFollower

// Spawner creates agents for the simulation.
type Spawner struct {
	seed   int64
	nextID AgentID

	Config      Config
	NewFollower FollowerFactory
	Sampler     Sampler
	Neighbors   NeighborQuery
}

// NewSpawner creates an agent spawner with the given seed.
func NewSpawner(seed int64, cfg Config) *Spawner {
	return &Spawner{
		seed:   seed,
		nextID: 1,
		Config: cfg,
	}
}

// SetNextID sets the next agent ID to be issued (used when restoring from DB).
func (s *Spawner) SetNextID(id AgentID) {
	s.nextID = id
}

// NextID returns the ID the next spawned agent will receive.
func (s *Spawner) NextID() AgentID {
	return s.nextID
}

// RandFor returns the deterministic random stream of an agent.
func (s *Spawner) RandFor(id AgentID) *rand.Rand {
	return rand.New(rand.NewSource(s.seed + 300 + int64(id)*7919))
}

// SpawnBlobs creates one Blob per position.
func (s *Spawner) SpawnBlobs(positions []geom.Vec3) []*Agent {
	out := make([]*Agent, 0, len(positions))
	for _, p := range positions {
		out = append(out, s.spawnOne(p))
	}
	return out
}

func (s *Spawner) spawnOne(pos geom.Vec3) *Agent {
	id := s.nextID
	s.nextID++
	return New(id, s.Config, s.deps(id, pos))
}

// RestoreBlob rebuilds a persisted Blob at pos, keeping its ID.
func (s *Spawner) RestoreBlob(id AgentID, pos geom.Vec3, saved Saved) *Agent {
	if id >= s.nextID {
		s.nextID = id + 1
	}
	return Restore(id, s.Config, s.deps(id, pos), saved)
}

// SpawnWanderers creates simple wanderers moving at speed.
func (s *Spawner) SpawnWanderers(positions []geom.Vec3, speed float64) []*Wanderer {
	out := make([]*Wanderer, 0, len(positions))
	for _, p := range positions {
		id := s.nextID
		s.nextID++
		out = append(out, NewWanderer(id, speed, s.NewFollower(p), s.RandFor(id)))
	}
	return out
}

// RestoreWanderer rebuilds a persisted wanderer at pos, keeping its ID.
func (s *Spawner) RestoreWanderer(id AgentID, pos geom.Vec3, speed float64) *Wanderer {
	if id >= s.nextID {
		s.nextID = id + 1
	}
	return NewWanderer(id, speed, s.NewFollower(pos), s.RandFor(id))
}

func (s *Spawner) deps(id AgentID, pos geom.Vec3) Deps {
	return Deps{
		Follower:  s.NewFollower(pos),
		Sampler:   s.Sampler,
		Neighbors: s.Neighbors,
		Rand:      s.RandFor(id),
	}
}
