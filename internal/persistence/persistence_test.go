package persistence

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/talgya/blob-crowd/internal/agents"
	"github.com/talgya/blob-crowd/internal/engine"
	"github.com/talgya/blob-crowd/internal/game"
	"github.com/talgya/blob-crowd/internal/geom"
	"github.com/talgya/blob-crowd/internal/nav"
	"github.com/talgya/blob-crowd/internal/world"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testSim() *engine.Simulation {
	cfg := agents.DefaultConfig()
	cfg.IdleTime = 0.3
	cfg.IdleRange = 0
	g := world.NewGrid(12, 12, 1)
	sim := engine.NewSimulation(g, game.NewSession(), engine.Options{
		Seed:      3,
		DeltaTime: 0.1,
		Agent:     cfg,
		Follower:  nav.DefaultConfig(),
	})
	sim.SpawnBlobs([]geom.Vec3{g.Center(world.Cell{X: 2, Z: 2}), g.Center(world.Cell{X: 6, Z: 6})})
	sim.SpawnWanderers([]geom.Vec3{g.Center(world.Cell{X: 9, Z: 9})}, 2)
	return sim
}

func TestWorldStateRoundTrip(t *testing.T) {
	db := openTest(t)
	if db.HasWorldState() {
		t.Fatal("fresh database reports saved state")
	}

	sim := testSim()
	for tick := uint64(1); tick <= 6; tick++ {
		sim.Tick(tick)
	}
	sim.Session.SetTarget(2)

	if err := db.SaveWorldState(sim); err != nil {
		t.Fatalf("SaveWorldState: %v", err)
	}
	if !db.HasWorldState() {
		t.Fatal("no saved state after save")
	}

	got, err := db.LoadAgents()
	if err != nil {
		t.Fatalf("LoadAgents: %v", err)
	}
	want := sim.Records()
	if len(got) != len(want) {
		t.Fatalf("loaded %d agents, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("agent %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	tick, ok, err := db.GetMetaUint(MetaLastTick)
	if err != nil || !ok || tick != 6 {
		t.Fatalf("last tick = %d, %v, %v", tick, ok, err)
	}
	target, ok, err := db.GetMetaUint(MetaTarget)
	if err != nil || !ok || target != 2 {
		t.Fatalf("target = %d, %v, %v", target, ok, err)
	}
	if _, ok, err := db.GetMetaUint(MetaWonTick); ok || err != nil {
		t.Fatalf("won tick present before a win: %v", err)
	}
}

func TestEventsPersisted(t *testing.T) {
	db := openTest(t)
	sim := testSim()
	for tick := uint64(1); tick <= 5; tick++ {
		sim.Tick(tick)
	}
	if err := db.SaveWorldState(sim); err != nil {
		t.Fatalf("SaveWorldState: %v", err)
	}
	// Saving again must not duplicate already persisted events.
	if err := db.SaveWorldState(sim); err != nil {
		t.Fatalf("second SaveWorldState: %v", err)
	}

	mem := sim.RecentEvents(0)
	stored, err := db.RecentEvents(500)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	if len(stored) != len(mem) || len(stored) == 0 {
		t.Fatalf("stored %d events, memory has %d", len(stored), len(mem))
	}
	newest := mem[len(mem)-1]
	if stored[0] != newest {
		t.Fatalf("newest stored event = %+v, want %+v", stored[0], newest)
	}
}

func TestMetaAndRunID(t *testing.T) {
	db := openTest(t)

	if v, err := db.GetMeta("missing"); err != nil || v != "" {
		t.Fatalf("GetMeta(missing) = %q, %v", v, err)
	}
	if err := db.SaveMeta(MetaSeed, "42"); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveMeta(MetaSeed, "43"); err != nil {
		t.Fatal(err)
	}
	if v, _ := db.GetMeta(MetaSeed); v != "43" {
		t.Fatalf("seed = %q, want 43", v)
	}

	id, err := db.RunID()
	if err != nil || id == "" {
		t.Fatalf("RunID = %q, %v", id, err)
	}
	again, _ := db.RunID()
	if again != id {
		t.Fatalf("run id changed: %q then %q", id, again)
	}

	if err := db.SaveMeta(MetaLastTick, "soon"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := db.GetMetaUint(MetaLastTick); err == nil {
		t.Fatal("non-numeric meta parsed")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	sim := testSim()
	for tick := uint64(1); tick <= 4; tick++ {
		sim.Tick(tick)
	}
	frame := sim.Frame()
	path := SnapshotPath(filepath.Join(t.TempDir(), "snaps"), frame.Tick)

	if err := WriteSnapshot(path, "run-1", frame); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	h, err := ReadSnapshotHeader(path)
	if err != nil {
		t.Fatalf("ReadSnapshotHeader: %v", err)
	}
	if h.Version != SnapshotVersion || h.RunID != "run-1" || h.Tick != 4 || h.Agents != 3 {
		t.Fatalf("header = %+v", h)
	}

	snap, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if snap.Frame.Tick != frame.Tick || snap.Frame.Time != frame.Time || len(snap.Frame.Agents) != len(frame.Agents) {
		t.Fatalf("frame = %+v, want %+v", snap.Frame, frame)
	}
	for i := range frame.Agents {
		if snap.Frame.Agents[i] != frame.Agents[i] {
			t.Fatalf("agent %d = %+v, want %+v", i, snap.Frame.Agents[i], frame.Agents[i])
		}
	}
}

func TestReadSnapshotMissing(t *testing.T) {
	if _, err := ReadSnapshot(filepath.Join(t.TempDir(), "nope.snap.zst")); err == nil {
		t.Fatal("reading a missing snapshot did not fail")
	}
}

func TestFailedSaveKeepsPendingEvents(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "closed.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	sim := testSim()
	if _, ok := sim.ChooseTarget(rand.New(rand.NewSource(1))); !ok {
		t.Fatal("no target chosen")
	}
	db.Close()

	if err := db.SaveWorldState(sim); err == nil {
		t.Fatal("save on a closed database succeeded")
	}
	if n := len(sim.Checkpoint().Events); n != 1 {
		t.Fatalf("pending events after failed save = %d, want 1", n)
	}

	good := openTest(t)
	if err := good.SaveWorldState(sim); err != nil {
		t.Fatalf("SaveWorldState: %v", err)
	}
	if n := len(sim.Checkpoint().Events); n != 0 {
		t.Fatalf("pending events after save = %d, want 0", n)
	}
	events, err := good.RecentEvents(10)
	if err != nil || len(events) != 1 || events[0].Category != engine.CategoryTarget {
		t.Fatalf("stored events = %+v, %v", events, err)
	}
}
