// Package game holds the game-level context around the crowd: the win-condition
// session, the catch target, and camera mouse-look.
package game

import (
	"log/slog"
	"sync"

	"github.com/talgya/blob-crowd/internal/agents"
)

// Session tracks the win condition for one run. It is passed explicitly to the
// simulation and API rather than held globally.
type Session struct {
	mu        sync.Mutex
	won       bool
	wonTick   uint64
	target    agents.AgentID
	hasTarget bool

	// OnWin runs once, after the session is marked won.
	OnWin func(tick uint64)
}

// NewSession creates a session with no target.
func NewSession() *Session {
	return &Session{}
}

// SetTarget sets the agent a player must catch.
func (s *Session) SetTarget(id agents.AgentID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target = id
	s.hasTarget = true
}

// Target returns the current target, if one is set.
func (s *Session) Target() (agents.AgentID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target, s.hasTarget
}

// Won reports whether the session has been won and at which tick.
func (s *Session) Won() (bool, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.won, s.wonTick
}

// Win marks the session won. Returns false if it was already won.
func (s *Session) Win(tick uint64) bool {
	s.mu.Lock()
	if s.won {
		s.mu.Unlock()
		return false
	}
	s.won = true
	s.wonTick = tick
	onWin := s.OnWin
	s.mu.Unlock()

	slog.Info("you win", "tick", tick)
	if onWin != nil {
		onWin(tick)
	}
	return true
}

// Catch reports a catch of id at tick. Catching the target wins the session.
func (s *Session) Catch(id agents.AgentID, tick uint64) bool {
	target, ok := s.Target()
	if !ok || id != target {
		return false
	}
	return s.Win(tick)
}
