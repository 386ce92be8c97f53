package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/transitops/darp/core/metrics"
	"github.com/transitops/darp/core/model"
)

// repairRecorder is a NopSink that also captures repair events.
type repairRecorder struct {
	metrics.NopSink
	events []metrics.RepairEvent
}

func (r *repairRecorder) RecordRepair(ev metrics.RepairEvent) error {
	r.events = append(r.events, ev)
	return nil
}

func TestReoptimizerDefaultFullResolve(t *testing.T) {
	net := lineNet()
	snap := Snapshot{
		Epoch:   0,
		Network: net,
		Trips: []*model.Trip{
			mustTrip(t, net, "t1", "a", "b", 0, 180, 1, 5),
			mustTrip(t, net, "t2", "c", "d", 0, 180, 1, 5),
		},
		Vehicles: []*model.Vehicle{
			mustVehicle(t, "v1", 4, "a", 0),
			mustVehicle(t, "v2", 4, "c", 0),
		},
	}

	rec := &repairRecorder{}
	r := NewReOptimizer(testCfg(AlgorithmReOptimize), nop)
	r.SetSink(rec)
	res, err := r.ProducePlan(context.Background(), snap)
	if err != nil {
		t.Fatalf("produce plan: %v", err)
	}
	mustValidate(t, snap, res.Plan)
	if r.State() != StateCommitted {
		t.Fatalf("state = %v, want committed", r.State())
	}
	if len(res.Plan.Assignments()) != 2 {
		t.Fatalf("assignments %v, want both trips served", res.Plan.Assignments())
	}
	if len(rec.events) != 1 || rec.events[0].Outcome != "committed" {
		t.Fatalf("repair events = %+v, want one committed cycle", rec.events)
	}
}

// fix_variables must not move an already-assigned trip that does not
// conflict with the newly released one: the previous assignment set is a
// subset of the repaired one.
func TestFixVariablesPreservesAssignments(t *testing.T) {
	net := lineNet()
	v1 := mustVehicle(t, "v1", 4, "a", 0)
	v2 := mustVehicle(t, "v2", 4, "c", 0)
	t1 := mustTrip(t, net, "t1", "a", "b", 0, 180, 1, 5)
	t2 := mustTrip(t, net, "t2", "c", "d", 0, 180, 1, 5)

	prev := model.NewRoutePlan(0)
	route, err := model.InsertTrip(net, v1, prev.Route("v1"), t1, 0, 0)
	if err != nil {
		t.Fatalf("insert t1: %v", err)
	}
	prev.Routes["v1"] = route
	if err := t1.AssignTo("v1"); err != nil {
		t.Fatalf("assign t1: %v", err)
	}

	snap := Snapshot{
		Epoch:    60,
		Network:  net,
		Trips:    []*model.Trip{t1, t2},
		Vehicles: []*model.Vehicle{v1, v2},
		Plan:     prev,
	}
	cfg := testCfg(AlgorithmReOptimize)
	cfg.DestroyMethod = DestroyFixVariables

	r := NewReOptimizer(cfg, nop)
	res, err := r.ProducePlan(context.Background(), snap)
	if err != nil {
		t.Fatalf("produce plan: %v", err)
	}
	mustValidate(t, snap, res.Plan)
	after := res.Plan.Assignments()
	for tid, vid := range prev.Assignments() {
		if after[tid] != vid {
			t.Fatalf("trip %s moved from %s to %s during repair", tid, vid, after[tid])
		}
	}
	if after["t2"] == "" {
		t.Fatal("newly released trip left unserved")
	}
}

// fix_arrivals keeps the pickup promise: the repaired schedule never
// serves a kept trip later than the time committed to the customer.
func TestFixArrivalsKeepsPickupPromise(t *testing.T) {
	net := lineNet()
	v1 := mustVehicle(t, "v1", 4, "a", 0)
	v2 := mustVehicle(t, "v2", 4, "a", 0)
	t1 := mustTrip(t, net, "t1", "b", "c", 100, 180, 1, 5)
	t2 := mustTrip(t, net, "t2", "a", "b", 0, 180, 1, 5)

	prev := model.NewRoutePlan(0)
	route, err := model.InsertTrip(net, v1, prev.Route("v1"), t1, 0, 0)
	if err != nil {
		t.Fatalf("insert t1: %v", err)
	}
	prev.Routes["v1"] = route
	if err := t1.AssignTo("v1"); err != nil {
		t.Fatalf("assign t1: %v", err)
	}
	promised, ok := route.PickupTime("t1")
	if !ok {
		t.Fatal("no pickup time for t1")
	}

	snap := Snapshot{
		Epoch:    30,
		Network:  net,
		Trips:    []*model.Trip{t1, t2},
		Vehicles: []*model.Vehicle{v1, v2},
		Plan:     prev,
	}
	cfg := testCfg(AlgorithmReOptimize)
	cfg.DestroyMethod = DestroyFixArrivals

	r := NewReOptimizer(cfg, nop)
	res, err := r.ProducePlan(context.Background(), snap)
	if err != nil {
		t.Fatalf("produce plan: %v", err)
	}
	mustValidate(t, snap, res.Plan)
	after := res.Plan.Assignments()
	vid := after["t1"]
	if vid == "" {
		t.Fatal("kept trip dropped by repair")
	}
	got, _ := res.Plan.Routes[vid].PickupTime("t1")
	if got > promised {
		t.Fatalf("t1 picked up at %.0f, later than the promised %.0f", got, promised)
	}
}

func TestReoptimizerRevertsOnRepairFailure(t *testing.T) {
	net := lineNet()
	snap := Snapshot{
		Epoch:   0,
		Network: net,
		// Vehicle needs 180s to reach d but the window closes at 30s.
		Trips:    []*model.Trip{mustTrip(t, net, "t1", "d", "c", 0, 30, 1, 5)},
		Vehicles: []*model.Vehicle{mustVehicle(t, "v1", 4, "a", 0)},
	}

	rec := &repairRecorder{}
	r := NewReOptimizer(testCfg(AlgorithmReOptimize), nop)
	r.SetSink(rec)
	_, err := r.ProducePlan(context.Background(), snap)
	if !errors.Is(err, ErrRepairFailed) {
		t.Fatalf("err = %v, want ErrRepairFailed", err)
	}
	if r.State() != StateStable {
		t.Fatalf("state = %v, want stable after revert", r.State())
	}
	if len(rec.events) != 1 || rec.events[0].Outcome != "stable" {
		t.Fatalf("repair events = %+v, want one reverted cycle", rec.events)
	}
}
