package steward

import (
	"fmt"
	"log/slog"
)

// Steward runs observe → triage → decide → act cycles.
type Steward struct {
	Observer *Observer
	Actor    *Actor
	Memory   *CycleMemory

	prev *Observation
}

// New creates a Steward for the API at baseURL. memoryPath may be empty.
func New(baseURL, adminKey, memoryPath string) *Steward {
	return &Steward{
		Observer: NewObserver(baseURL),
		Actor:    NewActor(baseURL, adminKey),
		Memory:   LoadMemory(memoryPath),
	}
}

// RunCycle executes one cycle and returns the decision taken.
func (s *Steward) RunCycle() (Decision, error) {
	obs, err := s.Observer.Observe()
	if err != nil {
		return Decision{}, fmt.Errorf("observe: %w", err)
	}
	health := Triage(s.prev, obs)
	s.prev = obs

	slog.Info("observation complete",
		"tick", obs.Status.Tick,
		"blobs", obs.Stats.Blobs,
		"wandering", fmt.Sprintf("%.2f", health.WanderingShare),
		"failure_share", fmt.Sprintf("%.2f", health.FailureShare),
		"stuck_per_blob", fmt.Sprintf("%.2f", health.StuckPerBlob),
		"level", health.Level,
	)

	d := Decide(obs, health, s.Memory)
	if d.Action == ActionNone {
		return d, nil
	}

	result, err := s.Actor.Act(d)
	if err != nil {
		return d, fmt.Errorf("act %s: %w", d.Action, err)
	}
	slog.Info("action executed", "action", d.Action, "rationale", d.Rationale, "result", result)

	rec := CycleRecord{
		RunID:     obs.Status.RunID,
		Tick:      obs.Status.Tick,
		Level:     health.Level,
		Action:    d.Action,
		Key:       d.Key,
		Rationale: d.Rationale,
	}
	s.Memory.Record(rec)
	s.Memory.Save()
	return d, nil
}
