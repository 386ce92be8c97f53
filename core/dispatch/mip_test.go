package dispatch

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/transitops/darp/core/model"
)

func chainableSnapshot(t *testing.T) Snapshot {
	net := lineNet()
	return Snapshot{
		Epoch:   0,
		Network: net,
		Trips: []*model.Trip{
			mustTrip(t, net, "t1", "a", "b", 0, 180, 2, 5),
			mustTrip(t, net, "t2", "b", "c", 100, 180, 2, 5),
		},
		Vehicles: []*model.Vehicle{mustVehicle(t, "v1", 4, "a", 0)},
	}
}

func TestMIPChainsBothTrips(t *testing.T) {
	snap := chainableSnapshot(t)
	res, err := NewMIPStrategy(testCfg(AlgorithmMIPSolver), nop).ProducePlan(context.Background(), snap)
	if err != nil {
		t.Fatalf("produce plan: %v", err)
	}
	mustValidate(t, snap, res.Plan)
	if len(res.Rejected) != 0 {
		t.Fatalf("rejected %v, want none", res.Rejected)
	}
	if got := res.Plan.Routes["v1"].TripIDs(); !reflect.DeepEqual(got, []string{"t1", "t2"}) {
		t.Fatalf("route order %v, want [t1 t2]", got)
	}
	if res.Objective != 2 {
		t.Fatalf("objective %v, want 2 served", res.Objective)
	}
}

// A single-seat vehicle in the fleet must not veto chains on a larger
// one: v2 has seats for both trips and chains them, while v1 can
// neither reach t1 in time nor carry t2's party.
func TestMIPChainsOnHeterogeneousFleet(t *testing.T) {
	net := lineNet()
	snap := Snapshot{
		Epoch:   0,
		Network: net,
		Trips: []*model.Trip{
			mustTrip(t, net, "t1", "a", "b", 0, 100, 1, 5),
			mustTrip(t, net, "t2", "b", "c", 0, 180, 3, 5),
		},
		Vehicles: []*model.Vehicle{
			mustVehicle(t, "v1", 1, "d", 0),
			mustVehicle(t, "v2", 4, "a", 0),
		},
	}

	res, err := NewMIPStrategy(testCfg(AlgorithmMIPSolver), nop).ProducePlan(context.Background(), snap)
	if err != nil {
		t.Fatalf("produce plan: %v", err)
	}
	mustValidate(t, snap, res.Plan)
	if len(res.Rejected) != 0 {
		t.Fatalf("rejected %v, want none", res.Rejected)
	}
	if got := res.Plan.Routes["v2"].TripIDs(); !reflect.DeepEqual(got, []string{"t1", "t2"}) {
		t.Fatalf("v2 route %v, want [t1 t2]", got)
	}
}

// Value-level determinism: the exact solver must reproduce the same
// objective on repeated runs over the same instance.
func TestMIPObjectiveIdempotent(t *testing.T) {
	s := NewMIPStrategy(testCfg(AlgorithmMIPSolver), nop)
	first, err := s.ProducePlan(context.Background(), chainableSnapshot(t))
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := s.ProducePlan(context.Background(), chainableSnapshot(t))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if first.Objective != second.Objective {
		t.Fatalf("objective drifted: %v vs %v", first.Objective, second.Objective)
	}
}

func TestMIPProfitLeavesLossMakingTripUnserved(t *testing.T) {
	net := lineNet()
	snap := Snapshot{
		Epoch:   0,
		Network: net,
		Trips: []*model.Trip{
			mustTrip(t, net, "loss", "a", "d", 0, 600, 1, 1),   // fare 1, ride cost 180
			mustTrip(t, net, "gain", "a", "b", 0, 600, 1, 100), // fare 100, ride cost 60
		},
		Vehicles: []*model.Vehicle{mustVehicle(t, "v1", 4, "a", 0)},
	}
	cfg := testCfg(AlgorithmMIPSolver)
	cfg.Objective = ObjectiveTotalProfit

	res, err := NewMIPStrategy(cfg, nop).ProducePlan(context.Background(), snap)
	if err != nil {
		t.Fatalf("produce plan: %v", err)
	}
	mustValidate(t, snap, res.Plan)
	if got := assignedVehicle(res, "gain"); got != "v1" {
		t.Fatalf("gain assigned to %q, want v1", got)
	}
	if !reflect.DeepEqual(res.Rejected, []string{"loss"}) {
		t.Fatalf("rejected %v, want [loss]", res.Rejected)
	}
}

func TestMIPInfeasibleSnapshot(t *testing.T) {
	net := lineNet()
	snap := Snapshot{
		Epoch:    0,
		Network:  net,
		Trips:    []*model.Trip{mustTrip(t, net, "big", "a", "b", 0, 180, 5, 5)},
		Vehicles: []*model.Vehicle{mustVehicle(t, "v1", 4, "a", 0)},
	}
	_, err := NewMIPStrategy(testCfg(AlgorithmMIPSolver), nop).ProducePlan(context.Background(), snap)
	if !errors.Is(err, ErrInfeasibleSnapshot) {
		t.Fatalf("err = %v, want ErrInfeasibleSnapshot", err)
	}
}

func TestMIPTimeoutSurfacesSoftFailure(t *testing.T) {
	cfg := testCfg(AlgorithmMIPSolver)
	cfg.SolveTimeLimitSeconds = 1e-9
	_, err := NewMIPStrategy(cfg, nop).ProducePlan(context.Background(), chainableSnapshot(t))
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestMIPNoPendingCarriesPreviousPlan(t *testing.T) {
	net := lineNet()
	prev := model.NewRoutePlan(0)
	snap := Snapshot{Epoch: 60, Network: net, Plan: prev,
		Vehicles: []*model.Vehicle{mustVehicle(t, "v1", 4, "a", 0)}}

	res, err := NewMIPStrategy(testCfg(AlgorithmMIPSolver), nop).ProducePlan(context.Background(), snap)
	if err != nil {
		t.Fatalf("produce plan: %v", err)
	}
	if res.Plan == prev {
		t.Fatal("returned the previous plan instance instead of a copy")
	}
	if len(res.Plan.Assignments()) != 0 {
		t.Fatalf("unexpected assignments %v", res.Plan.Assignments())
	}
}

func TestMIPWaitingObjectivePicksEarliestPickups(t *testing.T) {
	net := lineNet()
	snap := Snapshot{
		Epoch:   0,
		Network: net,
		Trips: []*model.Trip{
			mustTrip(t, net, "t1", "b", "c", 0, 600, 1, 5),
		},
		Vehicles: []*model.Vehicle{
			mustVehicle(t, "near", 4, "b", 0),
			mustVehicle(t, "far", 4, "d", 0),
		},
	}
	cfg := testCfg(AlgorithmMIPSolver)
	cfg.Objective = ObjectiveWaitingTime

	res, err := NewMIPStrategy(cfg, nop).ProducePlan(context.Background(), snap)
	if err != nil {
		t.Fatalf("produce plan: %v", err)
	}
	mustValidate(t, snap, res.Plan)
	if got := assignedVehicle(res, "t1"); got != "near" {
		t.Fatalf("t1 assigned to %q, want the zero-wait vehicle", got)
	}
}
