package game

import "github.com/talgya/blob-crowd/internal/agents"

// PickTarget chooses one of ids uniformly. Returns false if ids is empty.
func PickTarget(ids []agents.AgentID, rng agents.Rand) (agents.AgentID, bool) {
	if len(ids) == 0 {
		return 0, false
	}
	i := int(rng.Float64() * float64(len(ids)))
	if i >= len(ids) {
		i = len(ids) - 1
	}
	return ids[i], true
}
