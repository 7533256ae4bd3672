// Package steward implements the crowd steward: a separate process that
// observes a running blobsim through its API, triages crowd health, and acts
// through the admin endpoints.
package steward

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Observation holds all data collected during one cycle.
type Observation struct {
	Status Status `json:"status"`
	Stats  Stats  `json:"stats"`
}

// Status mirrors GET /api/v1/status.
type Status struct {
	Name      string  `json:"name"`
	RunID     string  `json:"run_id"`
	Tick      uint64  `json:"tick"`
	SimTime   string  `json:"sim_time"`
	Speed     float64 `json:"speed"`
	Running   bool    `json:"running"`
	Blobs     int     `json:"blobs"`
	Wanderers int     `json:"wanderers"`
	Idle      int     `json:"idle"`
	Wandering int     `json:"wandering"`
	Won       bool    `json:"won"`
	WonTick   uint64  `json:"won_tick"`
	Target    *uint64 `json:"target"`
}

// Stats mirrors GET /api/v1/stats.
type Stats struct {
	Blobs               int     `json:"blobs"`
	Wanderers           int     `json:"wanderers"`
	Idle                int     `json:"idle"`
	Wandering           int     `json:"wandering"`
	Steered             int     `json:"steered"`
	AvgSpeed            float64 `json:"avg_speed"`
	Requests            uint64  `json:"destination_requests"`
	FailedRequests      uint64  `json:"failed_requests"`
	StallRecoveries     uint64  `json:"stall_recoveries"`
	WanderingRecoveries uint64  `json:"wandering_stall_recoveries"`
}

// Observer fetches crowd state from the API.
type Observer struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewObserver creates an Observer targeting the given API base URL.
func NewObserver(baseURL string) *Observer {
	return &Observer{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Observe fetches status and stats.
func (o *Observer) Observe() (*Observation, error) {
	obs := &Observation{}

	if err := o.fetchJSON("/api/v1/status", &obs.Status); err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	if err := o.fetchJSON("/api/v1/stats", &obs.Stats); err != nil {
		return nil, fmt.Errorf("fetch stats: %w", err)
	}

	return obs, nil
}

// Ready reports whether the status endpoint answers 200.
func (o *Observer) Ready() bool {
	resp, err := o.HTTPClient.Get(o.BaseURL + "/api/v1/status")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// fetchJSON GETs a path and decodes the JSON response into target.
func (o *Observer) fetchJSON(path string, target any) error {
	resp, err := o.HTTPClient.Get(o.BaseURL + path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
