package dispatch

import (
	"context"
	"time"

	"github.com/transitops/darp/core/logger"
)

// GreedyStrategy inserts pending trips in ascending ready-time order,
// each at its cheapest feasible position across the fleet. Trips with no
// feasible position are rejected for the epoch, never force-placed. The
// procedure is deterministic and serves as the fallback when the exact
// solver times out.
type GreedyStrategy struct {
	cfg Config
	log logger.Logger
}

func NewGreedyStrategy(cfg Config, log logger.Logger) *GreedyStrategy {
	return &GreedyStrategy{cfg: cfg, log: log}
}

func (s *GreedyStrategy) Name() string { return string(AlgorithmGreedy) }

func (s *GreedyStrategy) ProducePlan(ctx context.Context, snap Snapshot) (Result, error) {
	start := time.Now()
	plan := basePlan(snap)
	var rejected []string
	for _, trip := range tripsByReadyTime(snap.Pending()) {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		ins, ok := bestInsertion(snap, plan, trip)
		if !ok {
			rejected = append(rejected, trip.ID)
			continue
		}
		if err := applyInsertion(snap, plan, trip, ins); err != nil {
			return Result{}, err
		}
	}
	if len(rejected) > 0 {
		s.log.Debugf("greedy left %d trips unplaced", len(rejected))
	}
	return Result{
		Plan:      plan,
		Rejected:  rejected,
		Objective: PlanValue(s.cfg.Objective, snap, plan),
		SolveTime: time.Since(start),
	}, nil
}
