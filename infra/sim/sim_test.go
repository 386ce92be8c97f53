package sim

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/transitops/darp/core/dispatch"
	"github.com/transitops/darp/infra/logger"
)

var nop = logger.NopLogger{}

const instanceJSON = `{
  "network": {
    "cost_per_hour": 20,
    "durations": {
      "a": {"b": 60, "c": 120},
      "b": {"a": 60, "c": 60},
      "c": {"a": 120, "b": 60}
    }
  },
  "trips": [
    {"id": "t1", "orig": "a", "dest": "b", "tcall": 0, "tmin": 0, "tmax": 300, "fare": 10},
    {"id": "t2", "orig": "b", "dest": "c", "tcall": 200, "tmin": 400, "tmax": 700, "fare": 12}
  ],
  "vehicles": [
    {"id": "v1", "init_pos": "a", "init_time": 0, "capacity": 4}
  ]
}`

func writeInstance(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testCfg(mode dispatch.SolutionMode) dispatch.Config {
	cfg := dispatch.Config{}
	cfg.SetDefaults()
	cfg.SolutionMode = mode
	return cfg
}

func TestLoadInstanceJSON(t *testing.T) {
	inst, err := LoadInstance(writeInstance(t, "inst.json", instanceJSON))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(inst.Trips) != 2 || len(inst.Vehicles) != 1 {
		t.Fatalf("loaded %d trips, %d vehicles", len(inst.Trips), len(inst.Vehicles))
	}
	if inst.Trips[1].TCall != 200 {
		t.Fatalf("t2 tcall = %v", inst.Trips[1].TCall)
	}
}

func TestLoadInstanceYAML(t *testing.T) {
	body := `
network:
  durations:
    a: {b: 60}
    b: {a: 60}
trips:
  - {id: t1, orig: a, dest: b, tcall: 0, tmin: 0, tmax: 300, fare: 10}
vehicles:
  - {id: v1, init_pos: a, capacity: 4}
`
	inst, err := LoadInstance(writeInstance(t, "inst.yaml", body))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(inst.Trips) != 1 || inst.Trips[0].Fare != 10 {
		t.Fatalf("trips = %+v", inst.Trips)
	}
}

func TestLoadInstanceRejectsEmpty(t *testing.T) {
	if _, err := LoadInstance(writeInstance(t, "empty.json", `{"trips": [], "vehicles": []}`)); err == nil {
		t.Fatal("expected error for empty instance")
	}
}

func TestReleaseTimesPerMode(t *testing.T) {
	spec := TripSpec{ID: "t", TCall: 100, TMin: 600, TMax: 900}
	cases := []struct {
		mode   dispatch.SolutionMode
		notice int
		want   float64
	}{
		{dispatch.ModeOffline, 0, 0},
		{dispatch.ModeFullyOnline, 0, 100},
		{dispatch.ModeAdvanceNotice, 0, 600},
		{dispatch.ModeAdvanceNotice, 5, 300},
		{dispatch.ModeAdvanceNotice, 30, 0}, // 600 - 30*60 clamps to 0
	}
	for _, tc := range cases {
		cfg := testCfg(tc.mode)
		cfg.AdvanceNoticeMinutes = tc.notice
		if got := releaseTime(cfg, spec, false); got != tc.want {
			t.Errorf("mode %s notice %d: release %v, want %v", tc.mode, tc.notice, got, tc.want)
		}
	}
}

func TestPartialOnlineKnownPortion(t *testing.T) {
	inst := &Instance{
		Network: NetworkSpec{Durations: map[string]map[string]float64{
			"a": {"b": 60}, "b": {"a": 60},
		}},
	}
	for i := 0; i < 10; i++ {
		inst.Trips = append(inst.Trips, TripSpec{
			ID: string(rune('a'+i)) + "-trip", Orig: "a", Dest: "b",
			TCall: 100, TMin: 200, TMax: 500, Fare: 5,
		})
	}
	cfg := testCfg(dispatch.ModePartialOnline)
	cfg.KnownPortion = 50
	net, err := inst.Network.build()
	if err != nil {
		t.Fatal(err)
	}
	trips, err := buildTrips(cfg, inst, net)
	if err != nil {
		t.Fatal(err)
	}
	early := 0
	for _, trip := range trips {
		if trip.ReleaseTime == 0 {
			early++
		} else if trip.ReleaseTime != 100 {
			t.Fatalf("trip %s released at %v", trip.ID, trip.ReleaseTime)
		}
	}
	if early != 5 {
		t.Fatalf("%d trips known up front, want 5", early)
	}

	again, err := buildTrips(cfg, inst, net)
	if err != nil {
		t.Fatal(err)
	}
	for i := range trips {
		if trips[i].ReleaseTime != again[i].ReleaseTime {
			t.Fatal("known-portion draw not deterministic for a fixed seed")
		}
	}
}

func TestSnapshotRevealsByRelease(t *testing.T) {
	inst, err := LoadInstance(writeInstance(t, "inst.json", instanceJSON))
	if err != nil {
		t.Fatal(err)
	}
	sim, err := NewSimulator(testCfg(dispatch.ModeFullyOnline), inst, nop)
	if err != nil {
		t.Fatal(err)
	}

	snap, err := sim.Snapshot(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Trips) != 1 || snap.Trips[0].ID != "t1" {
		t.Fatalf("epoch 0 trips = %v", len(snap.Trips))
	}

	snap, err = sim.Snapshot(200)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Trips) != 2 {
		t.Fatalf("epoch 200 reveals %d trips, want 2", len(snap.Trips))
	}
}

func TestEpochsFollowReleases(t *testing.T) {
	inst, err := LoadInstance(writeInstance(t, "inst.json", instanceJSON))
	if err != nil {
		t.Fatal(err)
	}
	sim, err := NewSimulator(testCfg(dispatch.ModeFullyOnline), inst, nop)
	if err != nil {
		t.Fatal(err)
	}
	epochs := sim.Epochs()
	if len(epochs) != 2 || epochs[0] != 0 || epochs[1] != 200 {
		t.Fatalf("epochs = %v", epochs)
	}
}

func TestCommitAdvancesVehicles(t *testing.T) {
	inst, err := LoadInstance(writeInstance(t, "inst.json", instanceJSON))
	if err != nil {
		t.Fatal(err)
	}
	sim, err := NewSimulator(testCfg(dispatch.ModeFullyOnline), inst, nop)
	if err != nil {
		t.Fatal(err)
	}
	snap, err := sim.Snapshot(0)
	if err != nil {
		t.Fatal(err)
	}

	strat := dispatch.NewGreedyStrategy(testCfg(dispatch.ModeFullyOnline), nop)
	res, err := strat.ProducePlan(context.Background(), snap)
	if err != nil {
		t.Fatalf("greedy: %v", err)
	}
	if err := snap.Trips[0].AssignTo("v1"); err != nil {
		t.Fatal(err)
	}
	if err := sim.Commit(res.Plan); err != nil {
		t.Fatal(err)
	}

	// t1 is a->b, 60s; by epoch 200 it is done and v1 sits at b.
	snap, err = sim.Snapshot(200)
	if err != nil {
		t.Fatal(err)
	}
	v1 := snap.VehicleMap()["v1"]
	if v1.Location.Label != "b" {
		t.Fatalf("v1 at %q, want b", v1.Location.Label)
	}
	if v1.AvailableAt != 60 {
		t.Fatalf("v1 available at %v, want 60", v1.AvailableAt)
	}
	for _, trip := range snap.Trips {
		if trip.ID == "t1" {
			t.Fatal("completed trip still visible in snapshot")
		}
	}
	if sim.Served() != 1 {
		t.Fatalf("served = %d, want 1", sim.Served())
	}
}
