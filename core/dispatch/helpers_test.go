package dispatch

import (
	"context"
	"math"
	"testing"

	"github.com/transitops/darp/core/model"
	"github.com/transitops/darp/infra/logger"
)

var nop = logger.NopLogger{}

// lineNet builds a line a-b-c-d with 60s per hop; costs fall back to
// durations.
func lineNet() *model.Network {
	labels := []string{"a", "b", "c", "d"}
	dur := make(map[string]map[string]float64, len(labels))
	for i, from := range labels {
		dur[from] = make(map[string]float64, len(labels))
		for j, to := range labels {
			dur[from][to] = math.Abs(float64(i-j)) * 60
		}
	}
	return &model.Network{Durations: dur}
}

func mustTrip(t *testing.T, net *model.Network, id, orig, dest string, ready, window float64, passengers int, fare float64) *model.Trip {
	t.Helper()
	direct := net.Duration(orig, dest)
	trip, err := model.NewTrip(id,
		model.Location{Label: orig}, model.Location{Label: dest},
		passengers, ready, ready, ready+window, ready+direct+window, fare, direct)
	if err != nil {
		t.Fatalf("trip %s: %v", id, err)
	}
	return trip
}

func mustVehicle(t *testing.T, id string, capacity int, at string, availableAt float64) *model.Vehicle {
	t.Helper()
	veh, err := model.NewVehicle(id, capacity, model.Location{Label: at}, availableAt)
	if err != nil {
		t.Fatalf("vehicle %s: %v", id, err)
	}
	return veh
}

func testCfg(alg Algorithm) Config {
	cfg := Config{Algorithm: alg}
	cfg.SetDefaults()
	return cfg
}

// mustValidate asserts the produced plan respects every window and
// capacity constraint, the post-condition of every strategy.
func mustValidate(t *testing.T, snap Snapshot, plan *model.RoutePlan) {
	t.Helper()
	if plan == nil {
		t.Fatal("nil plan")
	}
	if err := plan.Validate(snap.Network, snap.VehicleMap()); err != nil {
		t.Fatalf("plan violates constraints: %v", err)
	}
}

func assignedVehicle(res Result, tripID string) string {
	return res.Plan.Assignments()[tripID]
}

// stubStrategy returns a canned result, for driving the manager and
// consensus error paths.
type stubStrategy struct {
	name string
	res  Result
	err  error
}

func (s stubStrategy) Name() string { return s.name }

func (s stubStrategy) ProducePlan(context.Context, Snapshot) (Result, error) {
	return s.res, s.err
}
