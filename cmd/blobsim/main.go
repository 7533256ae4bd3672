// Command blobsim runs the Blob crowd simulation server.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/talgya/blob-crowd/internal/agents"
	"github.com/talgya/blob-crowd/internal/api"
	"github.com/talgya/blob-crowd/internal/config"
	"github.com/talgya/blob-crowd/internal/engine"
	"github.com/talgya/blob-crowd/internal/entropy"
	"github.com/talgya/blob-crowd/internal/game"
	"github.com/talgya/blob-crowd/internal/persistence"
	"github.com/talgya/blob-crowd/internal/world"
)

func main() {
	configPath := flag.String("config", os.Getenv("BLOBSIM_CONFIG"), "path to YAML config (defaults if empty)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	slog.Info("blobsim: crowd of wandering Blobs")

	// ── Database ──────────────────────────────────────────────────────
	db, err := persistence.Open(cfg.Persistence.Path)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.Persistence.Path)

	runID, err := db.RunID()
	if err != nil {
		slog.Error("failed to read run id", "error", err)
		os.Exit(1)
	}

	// A resumed world keeps its seed so the regenerated surface matches.
	seed := cfg.Seed
	if s, err := db.GetMeta(persistence.MetaSeed); err == nil && s != "" {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			seed = v
		}
	}
	seed = entropy.Seed(seed)
	if err := db.SaveMeta(persistence.MetaSeed, strconv.FormatInt(seed, 10)); err != nil {
		slog.Error("failed to save seed", "error", err)
	}

	// ── Surface (always regenerated, deterministic from seed) ────────
	genCfg := cfg.World
	if genCfg.Seed == 0 {
		genCfg.Seed = seed
	}
	grid := world.Generate(genCfg)
	slog.Info("surface generated", "grid", grid.String(), "walkable", grid.WalkableCount())

	// ── Simulation ────────────────────────────────────────────────────
	session := game.NewSession()
	sim := engine.NewSimulation(grid, session, cfg.EngineOptions(seed))

	var startTick uint64
	if db.HasWorldState() {
		slog.Info("found saved world state, loading...")
		records, err := db.LoadAgents()
		if err != nil {
			slog.Error("failed to load agents", "error", err)
			os.Exit(1)
		}
		for _, r := range records {
			switch r.Kind {
			case engine.KindBlob:
				sim.RestoreBlob(r.ID, r.Position, r.Saved)
			case engine.KindWanderer:
				sim.RestoreWanderer(r.ID, r.Position, r.Speed)
			default:
				slog.Warn("skipping agent of unknown kind", "id", r.ID, "kind", r.Kind)
			}
		}
		if t, ok, err := db.GetMetaUint(persistence.MetaLastTick); err == nil && ok {
			startTick = t
		}
		if id, ok, err := db.GetMetaUint(persistence.MetaTarget); err == nil && ok {
			session.SetTarget(agents.AgentID(id))
		}
		if at, ok, err := db.GetMetaUint(persistence.MetaWonTick); err == nil && ok {
			session.Win(at)
		}
		sim.LastTick = startTick

		slog.Info("world state restored",
			"agents", len(records),
			"tick", startTick,
			"sim_time", engine.SimTime(startTick, sim.DeltaTime),
		)
	} else {
		slog.Info("no saved state found, spawning crowd...")
		spawns := world.PlaceSpawns(grid, cfg.Blobs.Count+cfg.Wanderers.Count, cfg.Blobs.MinSpacing, seed)
		nBlobs := min(cfg.Blobs.Count, len(spawns))
		sim.SpawnBlobs(spawns[:nBlobs])
		sim.SpawnWanderers(spawns[nBlobs:], cfg.Wanderers.Speed)
		if len(spawns) < cfg.Blobs.Count+cfg.Wanderers.Count {
			slog.Warn("surface too small for the configured crowd", "requested", cfg.Blobs.Count+cfg.Wanderers.Count, "placed", len(spawns))
		}
	}

	if _, ok := session.Target(); !ok {
		if id, ok := sim.ChooseTarget(entropy.NewSource(seed, entropy.StreamTarget)); ok {
			slog.Info("target chosen", "agent", id)
		}
	}

	stats := sim.StatsSnapshot()
	slog.Info("world ready",
		"run_id", runID,
		"blobs", stats.Blobs,
		"wanderers", stats.Wanderers,
		"crowd_steering", cfg.Blobs.CrowdSteering,
		"workers", cfg.Workers,
	)

	// Save on fresh generation only (loaded worlds are already saved).
	if startTick == 0 {
		if err := db.SaveWorldState(sim); err != nil {
			slog.Error("initial save failed", "error", err)
		}
	}

	eng := engine.NewEngine(cfg.TickRateHz)
	eng.SetTick(startTick)
	eng.SetSpeed(cfg.Speed)
	if won, _ := session.Won(); won {
		eng.SetSpeed(0)
	}

	// Winning freezes the crowd. OnWin runs under the simulation lock, so it
	// only touches the engine.
	session.OnWin = func(uint64) {
		eng.SetSpeed(0)
	}

	// Wire tick callbacks, auto-saving on the configured cadence.
	eng.OnTick = sim.Tick
	eng.OnReport = sim.Report
	eng.SaveEvery = uint64(cfg.Persistence.SaveEvery)
	eng.OnSave = func(tick uint64) {
		if err := db.SaveWorldState(sim); err != nil {
			slog.Error("periodic save failed", "error", err)
		}
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	adminKey := os.Getenv("BLOBSIM_ADMIN_KEY")
	if adminKey == "" {
		slog.Warn("BLOBSIM_ADMIN_KEY not set, admin POST endpoints will be disabled")
	}
	relayKey := os.Getenv("BLOBSIM_RELAY_KEY")

	apiServer := &api.Server{
		Sim:           sim,
		Eng:           eng,
		DB:            db,
		Port:          cfg.API.Port,
		AdminKey:      adminKey,
		RelayKey:      relayKey,
		RunID:         runID,
		SnapshotDir:   cfg.Persistence.SnapshotDir,
		FrameInterval: time.Duration(cfg.API.FrameIntervalMS) * time.Millisecond,
	}
	apiServer.Start()

	// ── Start ─────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		eng.Stop()
	}()

	fmt.Printf("\n%d Blobs and %d wanderers on a %s surface.\n", stats.Blobs, stats.Wanderers, grid.String())
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.API.Port)
	if startTick > 0 {
		fmt.Printf("Resuming from tick %d (%s)\n", startTick, engine.SimTime(startTick, sim.DeltaTime))
	}
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run()

	// Final save on shutdown.
	slog.Info("final save...")
	if err := db.SaveWorldState(sim); err != nil {
		slog.Error("final save failed", "error", err)
	}

	fmt.Println("Simulation stopped. World state saved.")
}
