// Package engine provides the fixed-step simulation loop and the Simulation
// that steps every agent once per tick.
package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Tick schedule defaults.
const (
	DefaultTickRate = 30   // ticks per simulated second
	TicksPerReport  = 300  // 10 sim-seconds at the default rate
	TicksPerSave    = 1800 // 1 sim-minute at the default rate
)

// Engine drives the simulation forward with a fixed time step.
type Engine struct {
	mu      sync.RWMutex
	tick    uint64  // Current tick counter (monotonic, never resets)
	speed   float64 // Multiplier: 1.0 = real-time, 0 = paused
	running bool

	Interval time.Duration // Wall-clock tick interval at speed 1

	// Callbacks for each tick layer, populated during setup.
	OnTick   func(tick uint64) // Every tick
	OnReport func(tick uint64) // Every ReportEvery ticks
	OnSave   func(tick uint64) // Every SaveEvery ticks

	ReportEvery uint64
	SaveEvery   uint64
}

// NewEngine creates an engine ticking rate times per simulated second.
func NewEngine(rate int) *Engine {
	if rate <= 0 {
		rate = DefaultTickRate
	}
	return &Engine{
		speed:       1.0,
		Interval:    time.Second / time.Duration(rate),
		ReportEvery: TicksPerReport,
		SaveEvery:   TicksPerSave,
	}
}

// Tick returns the last tick run.
func (e *Engine) Tick() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tick
}

// SetTick sets the tick counter (used when resuming from DB).
func (e *Engine) SetTick(t uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tick = t
}

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.speed
}

// SetSpeed changes the speed multiplier. Zero pauses the loop.
func (e *Engine) SetSpeed(s float64) {
	if s < 0 {
		s = 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.speed = s
}

// Running reports whether Run is active.
func (e *Engine) Running() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Run starts the simulation loop. Blocks until Stop() is called.
func (e *Engine) Run() {
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()
	slog.Info("simulation engine started", "tick", e.Tick(), "speed", e.Speed(), "interval", e.Interval)

	for e.Running() {
		speed := e.Speed()
		if speed <= 0 {
			// Paused, sleep briefly and check again.
			time.Sleep(100 * time.Millisecond)
			continue
		}

		start := time.Now()

		e.Step()

		// Sleep for the remainder of the tick interval, adjusted for speed.
		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / speed)
		if elapsed < target {
			time.Sleep(target - elapsed)
		}
	}

	slog.Info("simulation engine stopped", "tick", e.Tick())
}

// Stop halts the simulation loop.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = false
}

// Step advances the simulation by one tick.
func (e *Engine) Step() {
	e.mu.Lock()
	e.tick++
	tick := e.tick
	e.mu.Unlock()

	if e.OnTick != nil {
		e.OnTick(tick)
	}
	if e.ReportEvery > 0 && tick%e.ReportEvery == 0 && e.OnReport != nil {
		e.OnReport(tick)
	}
	if e.SaveEvery > 0 && tick%e.SaveEvery == 0 && e.OnSave != nil {
		e.OnSave(tick)
	}
}

// SimTime returns a human-readable simulated clock for a tick number.
func SimTime(tick uint64, dt float64) string {
	total := time.Duration(float64(tick) * dt * float64(time.Second))
	minutes := int(total / time.Minute)
	seconds := (total % time.Minute).Seconds()
	return fmt.Sprintf("%d:%06.3f", minutes, seconds)
}
