package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/transitops/darp/core/logger"
	"github.com/transitops/darp/core/metrics"
	"github.com/transitops/darp/core/model"
	"github.com/transitops/darp/internal/eventbus"
)

// PlanEvent announces a committed plan on the event bus.
type PlanEvent struct {
	DispatchID  string
	Epoch       float64
	PlanVersion string
	Algorithm   string
	Served      int
	Rejected    []string
	Fallback    bool
}

// Manager drives the decision-epoch protocol: snapshot, solve, commit.
// Soft failures never lose an epoch: a solver timeout diverts to the
// fallback strategy, and an infeasible snapshot or failed repair
// re-commits the previous plan so rejected trips stay pending.
type Manager struct {
	cfg       Config
	strategy  Strategy
	fallback  Strategy
	source    Snapshotter
	committer Committer
	sink      metrics.MetricsSink
	bus       *eventbus.Bus[PlanEvent]
	log       logger.Logger
}

// sinkAware strategies receive the manager's sink so they can record
// algorithm-internal events.
type sinkAware interface {
	SetSink(metrics.MetricsSink)
}

// NewManager wires the epoch loop. fallback, sink and bus are optional:
// a nil fallback turns timeouts into carried plans, a nil sink records
// nothing and a nil bus publishes nothing.
func NewManager(cfg Config, strategy, fallback Strategy, source Snapshotter, committer Committer, sink metrics.MetricsSink, bus *eventbus.Bus[PlanEvent], log logger.Logger) *Manager {
	if sink == nil {
		sink = metrics.NopSink{}
	}
	if sa, ok := strategy.(sinkAware); ok {
		sa.SetSink(sink)
	}
	if sa, ok := fallback.(sinkAware); ok {
		sa.SetSink(sink)
	}
	return &Manager{
		cfg:       cfg,
		strategy:  strategy,
		fallback:  fallback,
		source:    source,
		committer: committer,
		sink:      sink,
		bus:       bus,
		log:       log,
	}
}

// RunEpoch executes one full decision epoch and returns the committed
// result.
func (m *Manager) RunEpoch(ctx context.Context, epoch float64) (Result, error) {
	snap, err := m.source.Snapshot(epoch)
	if err != nil {
		return Result{}, err
	}

	res, err := m.strategy.ProducePlan(ctx, snap)
	switch {
	case errors.Is(err, ErrTimeout) && m.fallback != nil:
		m.log.Warnf("epoch %.0f: %s timed out, falling back to %s", epoch, m.strategy.Name(), m.fallback.Name())
		res, err = m.fallback.ProducePlan(ctx, snap)
		if err == nil {
			res.Fallback = true
		}
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrInfeasibleSnapshot), errors.Is(err, ErrRepairFailed):
		m.log.Warnf("epoch %.0f: %v, keeping the previous plan", epoch, err)
		for _, t := range snap.Pending() {
			res.Rejected = append(res.Rejected, t.ID)
		}
		res.Plan = carryPlan(snap)
		res.Fallback = true
		err = nil
	}
	if err != nil {
		return Result{}, err
	}

	// post-solve audit: a violating plan is a strategy bug, not an epoch
	// failure, so it is logged and still committed
	if err := res.Plan.Validate(snap.Network, snap.VehicleMap()); err != nil {
		m.log.Errorf("epoch %.0f: committed plan failed audit: %v", epoch, err)
	}

	if err := m.applyStatuses(snap, res); err != nil {
		return Result{}, err
	}
	if err := m.committer.Commit(res.Plan); err != nil {
		return Result{}, err
	}
	m.record(snap, res)
	return res, nil
}

// Run executes the given epochs in order, stopping at the first hard
// failure.
func (m *Manager) Run(ctx context.Context, epochs []float64) ([]Result, error) {
	out := make([]Result, 0, len(epochs))
	for _, epoch := range epochs {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res, err := m.RunEpoch(ctx, epoch)
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}

// applyStatuses synchronizes trip lifecycles with the committed plan:
// newly placed trips become assigned, destroyed assignments fall back to
// released.
func (m *Manager) applyStatuses(snap Snapshot, res Result) error {
	assigned := res.Plan.Assignments()
	for _, t := range snap.Trips {
		switch t.Status() {
		case model.TripReleased:
			if vid := assigned[t.ID]; vid != "" {
				if err := t.AssignTo(vid); err != nil {
					return err
				}
			}
		case model.TripAssigned:
			vid := assigned[t.ID]
			if vid == "" {
				if err := t.Unassign(); err != nil {
					return err
				}
			} else if vid != t.VehicleID() {
				if err := t.AssignTo(vid); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (m *Manager) record(snap Snapshot, res Result) {
	now := time.Now()
	served := len(res.Plan.Assignments())
	if err := m.sink.RecordEpoch(metrics.EpochResult{
		Epoch:       snap.Epoch,
		Algorithm:   m.strategy.Name(),
		PlanVersion: res.Plan.Version,
		Served:      served,
		Rejected:    len(res.Rejected),
		Objective:   res.Objective,
		SolveTime:   res.SolveTime,
		Fallback:    res.Fallback,
		Time:        now,
	}); err != nil {
		m.log.Errorf("metrics: record epoch: %v", err)
	}
	if rec, ok := m.sink.(metrics.AssignmentRecorder); ok {
		var evs []metrics.AssignmentEvent
		trips := make(map[string]*model.Trip, len(snap.Trips))
		for _, t := range snap.Trips {
			trips[t.ID] = t
		}
		for tid, vid := range res.Plan.Assignments() {
			t := trips[tid]
			if t == nil {
				continue
			}
			pickup, _ := res.Plan.Routes[vid].PickupTime(tid)
			evs = append(evs, metrics.AssignmentEvent{
				TripID:    tid,
				VehicleID: vid,
				Epoch:     snap.Epoch,
				PickupAt:  pickup,
				Waiting:   t.WaitingTime(pickup),
				Time:      now,
			})
		}
		if err := rec.RecordAssignments(evs); err != nil {
			m.log.Errorf("metrics: record assignments: %v", err)
		}
	}
	if rec, ok := m.sink.(metrics.FleetSizeRecorder); ok {
		if err := rec.RecordFleetSize(len(snap.Vehicles)); err != nil {
			m.log.Errorf("metrics: record fleet size: %v", err)
		}
	}
	if m.bus != nil {
		m.bus.Publish(PlanEvent{
			DispatchID:  uuid.NewString(),
			Epoch:       snap.Epoch,
			PlanVersion: res.Plan.Version,
			Algorithm:   m.strategy.Name(),
			Served:      served,
			Rejected:    res.Rejected,
			Fallback:    res.Fallback,
		})
	}
}
