package engine

import (
	"sync"

	"github.com/talgya/blob-crowd/internal/agents"
)

// Event categories.
const (
	CategoryState        = "state"         // Idle/Wandering transition
	CategoryStall        = "stall"         // Stall recovery re-targeted an agent
	CategorySampleFailed = "sample_failed" // Destination sampling exhausted
	CategoryTarget       = "target"        // Catch target chosen
	CategoryCatch        = "catch"         // A catch attempt
	CategoryWin          = "win"           // Session won
)

// maxEvents bounds the in-memory event log.
const maxEvents = 1000

// Event is a notable occurrence in the simulation.
type Event struct {
	Tick        uint64         `json:"tick" db:"tick"`
	AgentID     agents.AgentID `json:"agent_id" db:"agent_id"`
	Category    string         `json:"category" db:"category"`
	Description string         `json:"description" db:"description"`
}

// broker fans new events out to stream subscribers.
type broker struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

// Subscribe registers a stream listener. The channel is buffered; a listener
// that falls behind misses events rather than blocking the tick.
func (s *Simulation) Subscribe() (int, <-chan Event) {
	s.events.mu.Lock()
	defer s.events.mu.Unlock()
	if s.events.subs == nil {
		s.events.subs = make(map[int]chan Event)
	}
	s.events.nextID++
	ch := make(chan Event, 64)
	s.events.subs[s.events.nextID] = ch
	return s.events.nextID, ch
}

// Unsubscribe removes a listener and closes its channel.
func (s *Simulation) Unsubscribe(id int) {
	s.events.mu.Lock()
	defer s.events.mu.Unlock()
	if ch, ok := s.events.subs[id]; ok {
		delete(s.events.subs, id)
		close(ch)
	}
}

func (b *broker) publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// emit records an event and publishes it. Callers hold s.mu.
func (s *Simulation) emit(e Event) {
	s.Events = append(s.Events, e)
	if len(s.Events) > maxEvents {
		s.Events = s.Events[len(s.Events)-maxEvents:]
	}
	s.pending = append(s.pending, e)
	s.events.publish(e)
}

// AckEvents marks the oldest n pending events as persisted. Events emitted
// after the checkpoint that listed them stay pending.
func (s *Simulation) AckEvents(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n = min(n, len(s.pending))
	s.pending = append(s.pending[:0:0], s.pending[n:]...)
}

// RecentEvents returns up to limit of the newest events, oldest first.
func (s *Simulation) RecentEvents(limit int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := 0
	if limit > 0 && len(s.Events) > limit {
		start = len(s.Events) - limit
	}
	out := make([]Event, len(s.Events)-start)
	copy(out, s.Events[start:])
	return out
}
