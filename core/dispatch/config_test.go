package dispatch

import (
	"testing"

	"github.com/transitops/darp/core/model"
)

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if cfg.Algorithm != AlgorithmGreedy || cfg.SolutionMode != ModeOffline {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestConfigValidateRejectsBadEnums(t *testing.T) {
	cases := []func(*Config){
		func(c *Config) { c.Objective = "revenue" },
		func(c *Config) { c.Algorithm = "simulated_annealing" },
		func(c *Config) { c.SolutionMode = "sometimes" },
		func(c *Config) { c.ConsensusParams = "loudest" },
		func(c *Config) { c.DestroyMethod = "explode" },
		func(c *Config) { c.KnownPortion = 120 },
		func(c *Config) { c.NbScenario = -1; c.SetDefaults() }, // negative survives defaults
	}
	for i, mutate := range cases {
		cfg := Config{}
		cfg.SetDefaults()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("case %d: invalid config accepted: %+v", i, cfg)
		}
	}
}

func TestPlanValueOrientation(t *testing.T) {
	net := lineNet()
	veh := mustVehicle(t, "v1", 4, "a", 0)
	trip := mustTrip(t, net, "t1", "a", "b", 100, 180, 1, 10)
	snap := Snapshot{Network: net, Trips: []*model.Trip{trip}, Vehicles: []*model.Vehicle{veh}}

	plan := model.NewRoutePlan(0)
	route, err := model.InsertTrip(net, veh, plan.Route("v1"), trip, 0, 0)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	plan.Routes["v1"] = route

	if got := PlanValue(ObjectiveTotalCustomers, snap, plan); got != 1 {
		t.Fatalf("customers value = %v, want 1", got)
	}
	// fare 10 minus 60s of travel cost at cost==duration fallback
	if got := PlanValue(ObjectiveTotalProfit, snap, plan); got != 10-60 {
		t.Fatalf("profit value = %v, want %v", got, 10-60)
	}
	// vehicle arrives at 0 and waits for the 100s ready time: no waiting
	if got := PlanValue(ObjectiveWaitingTime, snap, plan); got != 0 {
		t.Fatalf("waiting value = %v, want 0", got)
	}
}
