// Package config loads the blobsim YAML configuration. The raw document is
// validated against an embedded JSON schema before it is decoded over the
// defaults, so a partial file only overrides what it names.
package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/talgya/blob-crowd/internal/agents"
	"github.com/talgya/blob-crowd/internal/engine"
	"github.com/talgya/blob-crowd/internal/nav"
	"github.com/talgya/blob-crowd/internal/world"
)

//go:embed schema.json
var schemaJSON string

// Config is the full process configuration.
type Config struct {
	Seed        int64             `yaml:"seed"`
	TickRateHz  int               `yaml:"tick_rate_hz"`
	Speed       float64           `yaml:"speed"`
	Workers     int               `yaml:"workers"`
	LogLevel    string            `yaml:"log_level"`
	World       world.GenConfig   `yaml:"world"`
	Blobs       BlobsConfig       `yaml:"blobs"`
	Follower    nav.Config        `yaml:"follower"`
	Wanderers   WanderersConfig   `yaml:"wanderers"`
	Persistence PersistenceConfig `yaml:"persistence"`
	API         APIConfig         `yaml:"api"`
}

// BlobsConfig sizes the crowd and carries the per-agent tunables.
type BlobsConfig struct {
	Count         int     `yaml:"count"`
	MinSpacing    float64 `yaml:"min_spacing"`
	agents.Config `yaml:",inline"`
}

// WanderersConfig configures the simple straight-line wanderers.
type WanderersConfig struct {
	Count int     `yaml:"count"`
	Speed float64 `yaml:"speed"`
}

// PersistenceConfig locates the world database and frame snapshots.
type PersistenceConfig struct {
	Path        string `yaml:"path"`
	SnapshotDir string `yaml:"snapshot_dir"`
	SaveEvery   int    `yaml:"save_every"` // Ticks between auto-saves, 0 disables
}

// APIConfig configures the HTTP API.
type APIConfig struct {
	Port            int `yaml:"port"`
	FrameIntervalMS int `yaml:"frame_interval_ms"` // Websocket frame cadence
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Seed:       0,
		TickRateHz: engine.DefaultTickRate,
		Speed:      1,
		Workers:    4,
		LogLevel:   "info",
		World:      world.DefaultGenConfig(),
		Blobs: BlobsConfig{
			Count:      120,
			MinSpacing: 1.5,
			Config:     agents.DefaultConfig(),
		},
		Follower: nav.DefaultConfig(),
		Wanderers: WanderersConfig{
			Count: 8,
			Speed: 2,
		},
		Persistence: PersistenceConfig{
			Path:        "data/blobsim.db",
			SnapshotDir: "data/snapshots",
			SaveEvery:   engine.TicksPerSave,
		},
		API: APIConfig{
			Port:            8080,
			FrameIntervalMS: 100,
		},
	}
}

var schema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	s, err := jsonschema.CompileString("blobsim.schema.json", schemaJSON)
	if err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}
	return s, nil
})

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse validates and decodes a YAML document over the defaults.
func Parse(b []byte) (Config, error) {
	cfg := Default()
	if err := Validate(b); err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Validate checks a YAML document against the configuration schema.
func Validate(b []byte) error {
	var doc any
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if doc == nil {
		return nil
	}
	// Round-trip through JSON so the validator sees JSON value types.
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("config is not JSON-compatible: %w", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("config is not JSON-compatible: %w", err)
	}
	s, err := schema()
	if err != nil {
		return err
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// SlogLevel maps LogLevel onto a slog level.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// EngineOptions converts the simulation settings for engine.NewSimulation.
func (c Config) EngineOptions(seed int64) engine.Options {
	rate := c.TickRateHz
	if rate <= 0 {
		rate = engine.DefaultTickRate
	}
	return engine.Options{
		Seed:      seed,
		DeltaTime: 1 / float64(rate),
		Workers:   c.Workers,
		Agent:     c.Blobs.Config,
		Follower:  c.Follower,
	}
}
