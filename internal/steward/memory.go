package steward

import (
	"encoding/json"
	"log/slog"
	"os"
)

const maxRecords = 50

// CycleRecord captures what happened in a single steward cycle.
type CycleRecord struct {
	RunID     string `json:"run_id"`
	Tick      uint64 `json:"tick"`
	Level     string `json:"level"`
	Action    string `json:"action"`
	Key       string `json:"key,omitempty"`
	Rationale string `json:"rationale,omitempty"`
}

// CycleMemory keeps recent cycle records on disk so actions taken once per
// run survive a steward restart.
type CycleMemory struct {
	Records []CycleRecord `json:"records"`

	path string
}

// LoadMemory reads the memory file. Returns empty memory if it is missing.
func LoadMemory(path string) *CycleMemory {
	mem := &CycleMemory{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		return mem
	}
	if err := json.Unmarshal(data, mem); err != nil {
		slog.Warn("steward memory corrupted, starting fresh", "error", err)
		return &CycleMemory{path: path}
	}
	return mem
}

// Save writes the memory to disk. In-memory only when loaded with an empty path.
func (m *CycleMemory) Save() {
	if m.path == "" {
		return
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		slog.Error("failed to marshal steward memory", "error", err)
		return
	}
	if err := os.WriteFile(m.path, data, 0o644); err != nil {
		slog.Error("failed to write steward memory", "error", err)
	}
}

// Record adds a cycle record, trimming to maxRecords.
func (m *CycleMemory) Record(r CycleRecord) {
	m.Records = append(m.Records, r)
	if len(m.Records) > maxRecords {
		m.Records = m.Records[len(m.Records)-maxRecords:]
	}
}

// Done reports whether an action with key was already taken in run.
func (m *CycleMemory) Done(run, key string) bool {
	for _, r := range m.Records {
		if r.RunID == run && r.Key == key {
			return true
		}
	}
	return false
}
