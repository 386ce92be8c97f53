package dispatch

import (
	"context"
	"math/rand"
	"time"

	"github.com/transitops/darp/core/logger"
	"github.com/transitops/darp/core/model"
)

// RandomStrategy inserts pending trips in ready-time order, choosing
// uniformly among all feasible placements instead of the cheapest one.
// The generator is seeded, so runs with the same seed and snapshot pick
// the same placements. Mainly a baseline and a diversifier for
// consensus scenarios.
type RandomStrategy struct {
	cfg  Config
	seed int64
	log  logger.Logger
}

func NewRandomStrategy(cfg Config, log logger.Logger) *RandomStrategy {
	return &RandomStrategy{cfg: cfg, seed: cfg.Seed, log: log}
}

// WithSeed returns a copy drawing from a different stream. Consensus
// uses it to derive one strategy per scenario.
func (s *RandomStrategy) WithSeed(seed int64) *RandomStrategy {
	cp := *s
	cp.seed = seed
	return &cp
}

func (s *RandomStrategy) Name() string { return string(AlgorithmRandom) }

func (s *RandomStrategy) ProducePlan(ctx context.Context, snap Snapshot) (Result, error) {
	start := time.Now()
	rng := rand.New(rand.NewSource(s.seed))
	plan := basePlan(snap)
	var rejected []string
	for _, trip := range tripsByReadyTime(snap.Pending()) {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		var candidates []model.Insertion
		for _, veh := range vehiclesByID(snap) {
			candidates = append(candidates, model.FeasibleInsertions(snap.Network, veh, plan.Route(veh.ID), trip)...)
		}
		if len(candidates) == 0 {
			rejected = append(rejected, trip.ID)
			continue
		}
		ins := candidates[rng.Intn(len(candidates))]
		if err := applyInsertion(snap, plan, trip, ins); err != nil {
			return Result{}, err
		}
	}
	return Result{
		Plan:      plan,
		Rejected:  rejected,
		Objective: PlanValue(s.cfg.Objective, snap, plan),
		SolveTime: time.Since(start),
	}, nil
}
