package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/talgya/blob-crowd/internal/geom"
)

func TestDefaultsValidate(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error: %v", err)
	}
	if cfg.Blobs.IdleTime != 20 || cfg.Blobs.MaxDensity != 4 || cfg.Follower.Speed != 3.5 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if _, err := schema(); err != nil {
		t.Fatalf("schema does not compile: %v", err)
	}
}

func TestParseOverridesDefaults(t *testing.T) {
	doc := `
seed: 7
workers: 2
log_level: debug
blobs:
  count: 30
  crowd_steering: true
  flow_direction: {x: 1, y: 0, z: 0}
world:
  width: 32
`
	cfg, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if cfg.Seed != 7 || cfg.Workers != 2 || cfg.Blobs.Count != 30 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if !cfg.Blobs.CrowdSteering || cfg.Blobs.FlowDirection != geom.V(1, 0, 0) {
		t.Fatalf("inline agent tunables not decoded: %+v", cfg.Blobs)
	}
	// Untouched keys keep their defaults.
	if cfg.Blobs.IdleTime != 20 || cfg.World.Depth != 64 || cfg.API.Port != 8080 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	if cfg.SlogLevel().String() != "DEBUG" {
		t.Fatalf("SlogLevel = %v", cfg.SlogLevel())
	}
}

func TestSchemaRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"zero max density", "blobs:\n  max_density: 0\n", "max_density"},
		{"unknown key", "blobz:\n  count: 3\n", "blobz"},
		{"negative speed", "follower:\n  speed: -1\n", "speed"},
		{"bad log level", "log_level: loud\n", "log_level"},
		{"zero tick rate", "tick_rate_hz: 0\n", "tick_rate_hz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if err == nil {
				t.Fatal("invalid document accepted")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not name %q", err, tt.want)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blobsim.yaml")
	if err := os.WriteFile(path, []byte("tick_rate_hz: 60\nwanderers:\n  count: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	opts := cfg.EngineOptions(5)
	if opts.DeltaTime != 1.0/60 || opts.Seed != 5 || cfg.Wanderers.Count != 0 {
		t.Fatalf("options = %+v, wanderers = %+v", opts, cfg.Wanderers)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("missing file did not fail")
	}
}

func TestEmptyDocumentKeepsDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(nil) error: %v", err)
	}
	if cfg.Blobs.Count != Default().Blobs.Count {
		t.Fatalf("empty document changed defaults")
	}
}

func TestExampleConfigLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "blobsim.yaml"))
	if err != nil {
		t.Fatalf("example config: %v", err)
	}
	if !cfg.Blobs.CrowdSteering || cfg.Blobs.FlowDirection != geom.V(1, 0, 0) {
		t.Fatalf("example config not applied: %+v", cfg.Blobs)
	}
	if cfg.Persistence.SaveEvery != 1800 || cfg.API.FrameIntervalMS != 100 {
		t.Fatalf("persistence/api = %+v / %+v", cfg.Persistence, cfg.API)
	}
}
