package steward

import "fmt"

// Actions.
const (
	ActionNone     = "none"
	ActionSnapshot = "snapshot"
	ActionSlow     = "slow"
)

// SlowSpeed is the speed a WARNING crowd is throttled to.
const SlowSpeed = 0.5

const keyCritical = "critical"

func winKey(tick uint64) string { return fmt.Sprintf("win:%d", tick) }

// Decision is what the steward will do this cycle.
type Decision struct {
	Action    string
	Speed     float64 // For ActionSlow
	Key       string  // Set for actions taken once per run
	Rationale string
}

// Decide picks an action from the observation, its triage and past cycles.
// A won session is archived once; a critical crowd is archived once per
// run so its state can be inspected; a warning crowd is slowed down.
func Decide(obs *Observation, h *CrowdHealth, mem *CycleMemory) Decision {
	run := obs.Status.RunID
	switch {
	case obs.Status.Won && !mem.Done(run, winKey(obs.Status.WonTick)):
		return Decision{Action: ActionSnapshot, Key: winKey(obs.Status.WonTick), Rationale: fmt.Sprintf("session won at tick %d", obs.Status.WonTick)}
	case h.Level == LevelCritical && !mem.Done(run, keyCritical):
		return Decision{Action: ActionSnapshot, Key: keyCritical, Rationale: fmt.Sprintf("%.0f%% of destination requests failed", h.FailureShare*100)}
	case h.Level == LevelWarning && obs.Status.Speed > SlowSpeed:
		return Decision{Action: ActionSlow, Speed: SlowSpeed, Rationale: fmt.Sprintf("%.1f stall recoveries per wandering blob", h.StuckPerBlob)}
	}
	return Decision{Action: ActionNone}
}
