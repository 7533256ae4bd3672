package steward

// Health levels, worst first.
const (
	LevelCritical = "CRITICAL"
	LevelWarning  = "WARNING"
	LevelWatch    = "WATCH"
	LevelHealthy  = "HEALTHY"
)

// CrowdHealth holds diagnostic signals derived from two consecutive observations.
type CrowdHealth struct {
	Ticks          uint64  // Ticks between the observations
	FailureShare   float64 // Failed / issued destination requests over the interval
	StuckPerBlob   float64 // Stall recoveries of Wandering Blobs, per Blob, over the interval
	WanderingShare float64 // Blobs currently wandering
	Level          string
}

// Triage compares cur against the previous observation. With no usable
// previous observation (first cycle or a restart reset the counters) only
// the instantaneous signals are computed.
//
// Recoveries of Idle Blobs are ignored: an Idle Blob stands still and is
// re-targeted every stall timeout, which is how an idle crowd gets moving.
func Triage(prev, cur *Observation) *CrowdHealth {
	h := &CrowdHealth{Level: LevelHealthy}
	if cur.Stats.Blobs > 0 {
		h.WanderingShare = float64(cur.Stats.Wandering) / float64(cur.Stats.Blobs)
	}

	if deltasValid(prev, cur) {
		h.Ticks = cur.Status.Tick - prev.Status.Tick
		issued := cur.Stats.Requests - prev.Stats.Requests
		failed := cur.Stats.FailedRequests - prev.Stats.FailedRequests
		if total := issued + failed; total > 0 {
			h.FailureShare = float64(failed) / float64(total)
		}
		if cur.Stats.Blobs > 0 {
			stuck := cur.Stats.WanderingRecoveries - prev.Stats.WanderingRecoveries
			h.StuckPerBlob = float64(stuck) / float64(cur.Stats.Blobs)
		}
	}

	switch {
	case h.FailureShare > 0.5:
		// Most sampling attempts find no walkable point: the surface is too blocked.
		h.Level = LevelCritical
	case h.StuckPerBlob > 3:
		h.Level = LevelWarning
	case h.StuckPerBlob > 1 || h.FailureShare > 0.1:
		h.Level = LevelWatch
	}
	return h
}

// deltasValid reports whether counter deltas between prev and cur are meaningful.
func deltasValid(prev, cur *Observation) bool {
	if prev == nil || prev.Status.RunID != cur.Status.RunID || cur.Status.Tick <= prev.Status.Tick {
		return false
	}
	p, c := prev.Stats, cur.Stats
	return c.Requests >= p.Requests && c.FailedRequests >= p.FailedRequests &&
		c.WanderingRecoveries >= p.WanderingRecoveries
}
