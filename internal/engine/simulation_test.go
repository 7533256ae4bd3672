package engine

import (
	"math/rand"
	"reflect"
	"strings"
	"testing"

	"github.com/talgya/blob-crowd/internal/agents"
	"github.com/talgya/blob-crowd/internal/game"
	"github.com/talgya/blob-crowd/internal/geom"
	"github.com/talgya/blob-crowd/internal/nav"
	"github.com/talgya/blob-crowd/internal/world"
)

func testOptions() Options {
	cfg := agents.DefaultConfig()
	cfg.IdleTime = 0.5
	cfg.IdleRange = 0
	cfg.WanderRadius = 4
	return Options{
		Seed:      9,
		DeltaTime: 0.1,
		Workers:   1,
		Agent:     cfg,
		Follower:  nav.DefaultConfig(),
	}
}

func testSim(opts Options, blobs int) *Simulation {
	g := world.NewGrid(20, 20, 1)
	sim := NewSimulation(g, game.NewSession(), opts)
	var pos []geom.Vec3
	for i := 0; i < blobs; i++ {
		pos = append(pos, g.Center(world.Cell{X: 8 + i%4, Z: 8 + i/4}))
	}
	sim.SpawnBlobs(pos)
	return sim
}

func run(sim *Simulation, ticks int) {
	for i := 0; i < ticks; i++ {
		sim.Tick(sim.CurrentTick() + 1)
	}
}

func TestSimulationBlobsStartWandering(t *testing.T) {
	sim := testSim(testOptions(), 4)
	if st := sim.StatsSnapshot(); st.Blobs != 4 || st.Idle != 4 {
		t.Fatalf("initial stats = %+v", st)
	}

	start := sim.Frame()
	run(sim, 10)

	var started int
	for _, e := range sim.RecentEvents(0) {
		if e.Category == CategoryState {
			started++
		}
	}
	if started < 4 {
		t.Fatalf("%d state events after the idle timer expired, want at least 4", started)
	}

	end := sim.Frame()
	moved := 0
	for i := range end.Agents {
		if geom.Dist(start.Agents[i].Position, end.Agents[i].Position) > 0.5 {
			moved++
		}
	}
	if moved == 0 {
		t.Fatal("no blob moved toward its destination")
	}
	if end.Tick != 10 || end.Time != 1 {
		t.Fatalf("frame tick=%d time=%v, want 10, 1", end.Tick, end.Time)
	}
}

func TestParallelStepsMatchSequential(t *testing.T) {
	opts := testOptions()
	opts.Agent.CrowdSteering = true

	seq := testSim(opts, 12)
	opts.Workers = 4
	par := testSim(opts, 12)

	run(seq, 200)
	run(par, 200)

	if a, b := seq.Frame(), par.Frame(); !reflect.DeepEqual(a, b) {
		t.Fatal("parallel agent steps diverged from sequential steps")
	}
	if a, b := seq.StatsSnapshot(), par.StatsSnapshot(); a != b {
		t.Fatalf("stats diverged: %+v vs %+v", a, b)
	}
}

func TestCrowdSteeringSpreadsBlobs(t *testing.T) {
	opts := testOptions()
	opts.Agent.CrowdSteering = true
	opts.Agent.IdleTime = 1000 // stay idle, only crowd force moves them
	sim := NewSimulation(world.NewGrid(20, 20, 1), nil, opts)
	sim.SpawnBlobs([]geom.Vec3{geom.V(0, 0, 0), geom.V(0.3, 0, 0)})

	run(sim, 5)

	f := sim.Frame()
	if d := geom.Dist(f.Agents[0].Position, f.Agents[1].Position); d <= 0.3 {
		t.Fatalf("separation did not push overlapping blobs apart: distance %v", d)
	}
	if sim.StatsSnapshot().Steered != 2 {
		t.Fatalf("steered = %d, want 2", sim.StatsSnapshot().Steered)
	}
}

func TestTargetAndCatch(t *testing.T) {
	sim := testSim(testOptions(), 3)
	wins := 0
	sim.Session.OnWin = func(uint64) { wins++ }

	target, ok := sim.ChooseTarget(rand.New(rand.NewSource(1)))
	if !ok {
		t.Fatal("no target chosen")
	}

	if _, err := sim.Catch(999); err == nil {
		t.Fatal("catching an unknown blob did not fail")
	}
	for _, id := range sim.BlobIDs() {
		if id == target {
			continue
		}
		if won, err := sim.Catch(id); err != nil || won {
			t.Fatalf("Catch(%d) = %v, %v; want no win", id, won, err)
		}
	}
	if won, err := sim.Catch(target); err != nil || !won {
		t.Fatalf("Catch(target) = %v, %v; want win", won, err)
	}
	if wins != 1 {
		t.Fatalf("OnWin fired %d times", wins)
	}

	d, ok := sim.Detail(target)
	if !ok || !d.Target {
		t.Fatalf("detail of target = %+v, %v", d, ok)
	}
	evs := sim.RecentEvents(1)
	if len(evs) != 1 || evs[0].Category != CategoryWin {
		t.Fatalf("last event = %+v, want win", evs)
	}
}

func TestSubscribeReceivesEvents(t *testing.T) {
	sim := testSim(testOptions(), 1)
	id, ch := sim.Subscribe()

	sim.ChooseTarget(rand.New(rand.NewSource(2)))
	select {
	case e := <-ch:
		if e.Category != CategoryTarget {
			t.Fatalf("event = %+v, want target", e)
		}
	default:
		t.Fatal("subscriber got no event")
	}

	sim.Unsubscribe(id)
	if _, ok := <-ch; ok {
		t.Fatal("channel still open after unsubscribe")
	}
}

func TestCheckpointAndAckEvents(t *testing.T) {
	sim := testSim(testOptions(), 2)
	run(sim, 10)

	first := sim.Checkpoint()
	if len(first.Events) == 0 {
		t.Fatal("no pending events after ticks")
	}
	if first.Tick != 10 || len(first.Records) != 2 {
		t.Fatalf("checkpoint tick=%d records=%d, want 10 and 2", first.Tick, len(first.Records))
	}
	if again := sim.Checkpoint(); len(again.Events) != len(first.Events) {
		t.Fatalf("checkpoint cleared events: %d then %d", len(first.Events), len(again.Events))
	}

	sim.mu.Lock()
	sim.emit(Event{Tick: 11, Category: CategoryState})
	sim.mu.Unlock()

	sim.AckEvents(len(first.Events))
	left := sim.Checkpoint().Events
	if len(left) != 1 || left[0].Tick != 11 {
		t.Fatalf("after ack pending = %+v, want only the newer event", left)
	}
}

func TestEventsBounded(t *testing.T) {
	sim := testSim(testOptions(), 1)
	sim.mu.Lock()
	for i := 0; i < maxEvents+50; i++ {
		sim.emit(Event{Tick: uint64(i), Category: CategoryState})
	}
	sim.mu.Unlock()

	evs := sim.RecentEvents(0)
	if len(evs) != maxEvents {
		t.Fatalf("kept %d events, want %d", len(evs), maxEvents)
	}
	if evs[0].Tick != 50 {
		t.Fatalf("oldest kept tick = %d, want 50", evs[0].Tick)
	}
}

func TestRecordsRestore(t *testing.T) {
	sim := testSim(testOptions(), 3)
	sim.SpawnWanderers([]geom.Vec3{geom.V(2, 0, 2)}, 2)
	run(sim, 8)
	recs := sim.Records()

	restored := NewSimulation(sim.Grid, nil, testOptions())
	for _, r := range recs {
		switch r.Kind {
		case KindBlob:
			restored.RestoreBlob(r.ID, r.Position, r.Saved)
		case KindWanderer:
			restored.RestoreWanderer(r.ID, r.Position, r.Speed)
		}
	}

	got := restored.Records()
	if len(got) != len(recs) {
		t.Fatalf("restored %d records, want %d", len(got), len(recs))
	}
	for i := range recs {
		if got[i].ID != recs[i].ID || got[i].Position != recs[i].Position || got[i].Saved != recs[i].Saved {
			t.Fatalf("record %d = %+v, want %+v", i, got[i], recs[i])
		}
	}
	if next := restored.Spawner.NextID(); next != 5 {
		t.Fatalf("next ID after restore = %d, want 5", next)
	}
}

// brokenFollower panics on Position once armed.
type brokenFollower struct {
	agents.PathFollower
	armed bool
}

func (f *brokenFollower) Position() geom.Vec3 {
	if f.armed {
		panic("follower lost its surface")
	}
	return f.PathFollower.Position()
}

func TestStepErrorReported(t *testing.T) {
	for _, workers := range []int{1, 3} {
		opts := testOptions()
		opts.Workers = workers
		sim := testSim(opts, 2)

		bf := &brokenFollower{PathFollower: nav.NewFollower(sim.Grid, opts.Follower, geom.Zero)}
		bad := agents.New(99, opts.Agent, agents.Deps{Follower: bf, Rand: rand.New(rand.NewSource(1))})
		sim.addBlob(bad)
		bf.armed = true

		reports, err := sim.stepBlobs(0.1)
		if err == nil || !strings.Contains(err.Error(), "blob 99") {
			t.Fatalf("workers=%d: err = %v, want the failing blob named", workers, err)
		}
		if len(reports) != 3 || reports[0].State != agents.StateIdle {
			t.Fatalf("workers=%d: healthy blobs not stepped: %+v", workers, reports)
		}
	}
}
