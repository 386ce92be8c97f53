package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/transitops/darp/core/logger"
	"github.com/transitops/darp/core/metrics"
	"github.com/transitops/darp/core/model"
)

// ReoptState is the phase of one destroy-and-repair cycle.
type ReoptState int

const (
	StateStable ReoptState = iota
	StateDestroyed
	StateRepairing
	StateCommitted
)

func (s ReoptState) String() string {
	switch s {
	case StateStable:
		return "stable"
	case StateDestroyed:
		return "destroyed"
	case StateRepairing:
		return "repairing"
	case StateCommitted:
		return "committed"
	}
	return "invalid"
}

// ReOptimizer revises the committed plan each epoch by destroying part
// of it and repairing with the exact solver. The destroy policy decides
// what survives destruction:
//
//	default        everything is torn down, full re-solve
//	fix_variables  kept trips stay on their vehicle in their order
//	fix_arrivals   kept trips keep their promised pickup times
//
// Kept trips are those already assigned but not picked up. When repair
// finds no feasible completion the cycle aborts with ErrRepairFailed and
// the previously committed plan remains the active one; the optimizer
// never commits a partial repair.
//
// Not safe for concurrent use; consensus gives each scenario its own
// instance.
type ReOptimizer struct {
	cfg   Config
	log   logger.Logger
	sink  metrics.MetricsSink
	state ReoptState
}

func NewReOptimizer(cfg Config, log logger.Logger) *ReOptimizer {
	return &ReOptimizer{cfg: cfg, log: log, state: StateStable}
}

func (r *ReOptimizer) Name() string { return string(AlgorithmReOptimize) }

// SetSink attaches a metrics sink; repair cycles are recorded when it
// implements metrics.RepairRecorder.
func (r *ReOptimizer) SetSink(sink metrics.MetricsSink) { r.sink = sink }

// State reports the phase reached by the last ProducePlan call.
func (r *ReOptimizer) State() ReoptState { return r.state }

func (r *ReOptimizer) ProducePlan(ctx context.Context, snap Snapshot) (Result, error) {
	r.state = StateStable
	if len(snap.Assignable()) == 0 {
		return Result{Plan: carryPlan(snap)}, nil
	}

	keep := r.destroy(snap)
	r.state = StateDestroyed

	f, err := NewFormulation(r.cfg, snap)
	if err != nil {
		r.state = StateStable
		r.recordRepair(snap.Epoch, len(keep))
		return Result{}, fmt.Errorf("%w: %v", ErrRepairFailed, err)
	}
	switch r.cfg.DestroyMethod {
	case DestroyFixVariables:
		f.FixSequence(snap.Plan, keep)
	case DestroyFixArrivals:
		f.FixPickupTimes(snap.Plan, keep)
	}

	r.state = StateRepairing
	res, err := solveFormulation(ctx, r.cfg, snap, f, r.log)
	if err != nil {
		r.state = StateStable
		r.log.Warnf("repair aborted, keeping the stable plan: %v", err)
		r.recordRepair(snap.Epoch, len(keep))
		return Result{}, fmt.Errorf("%w: %v", ErrRepairFailed, err)
	}
	r.state = StateCommitted
	r.recordRepair(snap.Epoch, len(keep))
	return res, nil
}

func (r *ReOptimizer) recordRepair(epoch float64, kept int) {
	rec, ok := r.sink.(metrics.RepairRecorder)
	if !ok {
		return
	}
	if err := rec.RecordRepair(metrics.RepairEvent{
		Epoch:    epoch,
		Method:   string(r.cfg.DestroyMethod),
		Outcome:  r.state.String(),
		KeptTrip: kept,
		Time:     time.Now(),
	}); err != nil {
		r.log.Errorf("metrics: record repair: %v", err)
	}
}

// destroy picks the trips that survive destruction under the configured
// policy. The default policy spares nothing.
func (r *ReOptimizer) destroy(snap Snapshot) map[string]bool {
	keep := make(map[string]bool)
	if r.cfg.DestroyMethod == DestroyDefault || snap.Plan == nil {
		return keep
	}
	assigned := snap.Plan.Assignments()
	for _, t := range snap.Trips {
		if t.Status() == model.TripAssigned && assigned[t.ID] != "" {
			keep[t.ID] = true
		}
	}
	return keep
}
