package dispatch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/transitops/darp/core/logger"
	"github.com/transitops/darp/core/metrics"
	"github.com/transitops/darp/core/model"
)

// Sampler draws hypothetical future trips for one scenario. Sampled
// trips must use locations the snapshot network knows about.
type Sampler interface {
	Sample(seed int64, snap Snapshot) ([]*model.Trip, error)
}

// ConsensusStrategy hedges against demand uncertainty: it solves
// NbScenario copies of the snapshot, each enriched with sampled future
// trips, and lets the scenarios vote trip by trip on the serving
// vehicle. Each trip then goes to its most-voted vehicle, falling back
// to the next-voted one when the winner has no feasible slot left. With
// the qualitative rule every scenario has one vote; with the
// quantitative rule a scenario's vote is weighted by its plan value.
// When every scenario agrees on the real-trip assignment, that
// assignment is committed untouched.
type ConsensusStrategy struct {
	cfg     Config
	base    Strategy
	sampler Sampler // nil disables sampling; scenarios then only differ by base randomness
	sink    metrics.MetricsSink
	log     logger.Logger
}

func NewConsensusStrategy(cfg Config, base Strategy, sampler Sampler, log logger.Logger) *ConsensusStrategy {
	if base == nil {
		base = NewMIPStrategy(cfg, log)
	}
	return &ConsensusStrategy{cfg: cfg, base: base, sampler: sampler, log: log}
}

func (s *ConsensusStrategy) Name() string { return string(AlgorithmConsensus) }

// SetSink attaches a metrics sink; voting rounds are recorded when it
// implements metrics.ConsensusRecorder.
func (s *ConsensusStrategy) SetSink(sink metrics.MetricsSink) { s.sink = sink }

func (s *ConsensusStrategy) recordRound(epoch float64, failures int) {
	rec, ok := s.sink.(metrics.ConsensusRecorder)
	if !ok {
		return
	}
	if err := rec.RecordConsensus(metrics.ConsensusEvent{
		Epoch:     epoch,
		Rule:      string(s.cfg.ConsensusParams),
		Scenarios: s.cfg.NbScenario,
		Failures:  failures,
		Time:      time.Now(),
	}); err != nil {
		s.log.Errorf("metrics: record consensus: %v", err)
	}
}

type scenarioOutcome struct {
	assigned map[string]string // serving vehicle per real trip, absent when unserved
	value    float64
	err      error
}

func (s *ConsensusStrategy) ProducePlan(ctx context.Context, snap Snapshot) (Result, error) {
	start := time.Now()
	if len(snap.Pending()) == 0 {
		return Result{Plan: carryPlan(snap)}, nil
	}

	real := make(map[string]bool, len(snap.Trips))
	for _, t := range snap.Trips {
		real[t.ID] = true
	}

	outcomes := make([]scenarioOutcome, s.cfg.NbScenario)
	var wg sync.WaitGroup
	for i := 0; i < s.cfg.NbScenario; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = s.solveScenario(ctx, snap, real, s.cfg.Seed+int64(i))
		}(i)
	}
	wg.Wait()

	// Tally one vote per trip per scenario: the vehicle serving it, or
	// "" for leaving it unserved.
	votes := make(map[string]map[string]float64)
	failures := 0
	var lastErr error
	for _, o := range outcomes {
		if o.err != nil {
			failures++
			lastErr = o.err
			continue
		}
		weight := 1.0
		if s.cfg.ConsensusParams == ConsensusQuantitative {
			weight = o.value
		}
		for _, t := range snap.Assignable() {
			tally := votes[t.ID]
			if tally == nil {
				tally = make(map[string]float64)
				votes[t.ID] = tally
			}
			tally[o.assigned[t.ID]] += weight
		}
	}
	s.recordRound(snap.Epoch, failures)
	if failures == s.cfg.NbScenario {
		return Result{}, fmt.Errorf("dispatch: all %d consensus scenarios failed: %w", s.cfg.NbScenario, lastErr)
	}
	if failures > 0 {
		s.log.Warnf("consensus: %d of %d scenarios failed", failures, s.cfg.NbScenario)
	}

	plan, err := electPlan(snap, votes)
	if err != nil {
		return Result{}, err
	}
	assigned := plan.Assignments()
	var rejected []string
	for _, t := range tripsByReadyTime(snap.Pending()) {
		if assigned[t.ID] == "" {
			rejected = append(rejected, t.ID)
		}
	}
	return Result{
		Plan:      plan,
		Rejected:  rejected,
		Objective: PlanValue(s.cfg.Objective, snap, plan),
		SolveTime: time.Since(start),
	}, nil
}

// electPlan rebuilds a committed plan from the per-trip vote. Trips are
// placed in ready order on their most-voted vehicle, cascading down the
// vote order, and beyond it, when a winner has no feasible slot left.
// Leaving a trip out needs a strict majority over every vehicle.
func electPlan(snap Snapshot, votes map[string]map[string]float64) (*model.RoutePlan, error) {
	plan := model.NewRoutePlan(snap.Epoch)
	for _, trip := range tripsByReadyTime(snap.Assignable()) {
		tally := votes[trip.ID]
		if unservedWins(tally) {
			continue
		}
		ins, ok := electInsertion(snap, plan, trip, tally)
		if !ok {
			ins, ok = bestInsertion(snap, plan, trip)
		}
		if !ok {
			continue
		}
		if err := applyInsertion(snap, plan, trip, ins); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

// unservedWins reports whether leaving the trip out strictly outvotes
// every vehicle.
func unservedWins(tally map[string]float64) bool {
	skip, voted := tally[""]
	if !voted {
		return false
	}
	for vid, w := range tally {
		if vid != "" && w >= skip {
			return false
		}
	}
	return true
}

// electInsertion picks the cheapest feasible slot on the most-voted
// vehicle, walking down the vote order until one vehicle fits. Vehicles
// tied on votes compete on insertion cost, then on id.
func electInsertion(snap Snapshot, plan *model.RoutePlan, trip *model.Trip, tally map[string]float64) (model.Insertion, bool) {
	vids := make([]string, 0, len(tally))
	for vid := range tally {
		if vid != "" {
			vids = append(vids, vid)
		}
	}
	sort.Slice(vids, func(i, j int) bool {
		if tally[vids[i]] != tally[vids[j]] {
			return tally[vids[i]] > tally[vids[j]]
		}
		return vids[i] < vids[j]
	})
	vehicles := snap.VehicleMap()
	for i := 0; i < len(vids); {
		j := i
		for j < len(vids) && tally[vids[j]] == tally[vids[i]] {
			j++
		}
		var best model.Insertion
		found := false
		for _, vid := range vids[i:j] {
			veh, ok := vehicles[vid]
			if !ok {
				continue
			}
			for _, ins := range model.FeasibleInsertions(snap.Network, veh, plan.Route(veh.ID), trip) {
				if !found || ins.Cost < best.Cost {
					best = ins
					found = true
				}
			}
		}
		if found {
			return best, true
		}
		i = j
	}
	return model.Insertion{}, false
}

// solveScenario enriches the snapshot with sampled demand, solves it
// under a per-scenario time budget and strips the hypothetical trips
// from the answer.
func (s *ConsensusStrategy) solveScenario(ctx context.Context, snap Snapshot, real map[string]bool, seed int64) scenarioOutcome {
	scen := snap
	if s.sampler != nil {
		future, err := s.sampler.Sample(seed, snap)
		if err != nil {
			return scenarioOutcome{err: err}
		}
		scen.Trips = append(append([]*model.Trip(nil), snap.Trips...), future...)
	}

	budget := time.Duration(s.cfg.SolveTimeLimitSeconds * float64(time.Second))
	sctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()
	res, err := s.base.ProducePlan(sctx, scen)
	if err != nil {
		return scenarioOutcome{err: err}
	}

	plan, err := stripToReal(res.Plan, real, snap)
	if err != nil {
		return scenarioOutcome{err: err}
	}
	return scenarioOutcome{
		assigned: plan.Assignments(),
		value:    PlanValue(s.cfg.Objective, snap, plan),
	}
}

// stripToReal removes sampled trips from the candidate plan and
// re-schedules each route. Removing stops only ever shifts arrivals
// earlier, so the stripped routes stay feasible.
func stripToReal(plan *model.RoutePlan, real map[string]bool, snap Snapshot) (*model.RoutePlan, error) {
	vehicles := snap.VehicleMap()
	out := model.NewRoutePlan(snap.Epoch)
	for vid, route := range plan.Routes {
		veh, ok := vehicles[vid]
		if !ok {
			continue
		}
		kept := model.NewRoute(vid)
		for _, stop := range route.Stops {
			if real[stop.Trip.ID] {
				kept.Stops = append(kept.Stops, stop)
			}
		}
		if err := kept.Schedule(snap.Network, veh); err != nil {
			return nil, fmt.Errorf("dispatch: stripped scenario route infeasible: %w", err)
		}
		out.Routes[vid] = kept
	}
	return out, nil
}
