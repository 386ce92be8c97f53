package dispatch

import (
	"context"
	"sort"
	"time"

	"github.com/transitops/darp/core/logger"
	"github.com/transitops/darp/core/model"
)

// RankWeights parameterize the trip score of the ranking heuristic.
// Higher scores are served first: fare and party size raise priority,
// window slack lowers it.
type RankWeights struct {
	Fare  float64
	Load  float64
	Slack float64
}

// DefaultRankWeights reproduce the benchmark configuration.
func DefaultRankWeights() RankWeights {
	return RankWeights{Fare: 1, Load: 1, Slack: 0.01}
}

// Score rates a trip for insertion priority.
func (w RankWeights) Score(t *model.Trip) float64 {
	return w.Fare*t.Fare + w.Load*float64(t.Passengers) - w.Slack*(t.LatestPickup-t.ReadyTime)
}

// RankingStrategy serves trips in descending score order. Best
// insertions are precomputed against the base plan and only revalidated
// lazily when a trip's turn comes: if an earlier insertion invalidated
// the cached position, the search reruns against the current plan.
type RankingStrategy struct {
	cfg     Config
	weights RankWeights
	log     logger.Logger
}

func NewRankingStrategy(cfg Config, weights RankWeights, log logger.Logger) *RankingStrategy {
	return &RankingStrategy{cfg: cfg, weights: weights, log: log}
}

func (s *RankingStrategy) Name() string { return string(AlgorithmRanking) }

func (s *RankingStrategy) ProducePlan(ctx context.Context, snap Snapshot) (Result, error) {
	start := time.Now()
	plan := basePlan(snap)

	pending := append([]*model.Trip(nil), snap.Pending()...)
	sort.Slice(pending, func(i, j int) bool {
		si, sj := s.weights.Score(pending[i]), s.weights.Score(pending[j])
		if si != sj {
			return si > sj
		}
		return pending[i].ID < pending[j].ID
	})

	cached := make(map[string]model.Insertion, len(pending))
	for _, trip := range pending {
		if ins, ok := bestInsertion(snap, plan, trip); ok {
			cached[trip.ID] = ins
		}
	}

	vehicles := snap.VehicleMap()
	var rejected []string
	for _, trip := range pending {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		ins, ok := cached[trip.ID]
		if ok {
			veh := vehicles[ins.VehicleID]
			if !model.IsInsertable(snap.Network, veh, plan.Route(ins.VehicleID), trip, ins.PickupPos, ins.DropoffPos) {
				ins, ok = bestInsertion(snap, plan, trip)
			}
		} else {
			ins, ok = bestInsertion(snap, plan, trip)
		}
		if !ok {
			rejected = append(rejected, trip.ID)
			continue
		}
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
