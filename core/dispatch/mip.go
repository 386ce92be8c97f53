package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/transitops/darp/core/logger"
	"github.com/transitops/darp/core/model"
	"github.com/transitops/darp/core/solver"
)

// MIPStrategy re-solves the full assignment problem from scratch every
// epoch with the exact solver. It treats the solver as a black box: a
// time-limit overrun surfaces as ErrTimeout so the caller can divert to
// a heuristic instead of blocking the epoch.
type MIPStrategy struct {
	cfg Config
	log logger.Logger
}

func NewMIPStrategy(cfg Config, log logger.Logger) *MIPStrategy {
	return &MIPStrategy{cfg: cfg, log: log}
}

func (s *MIPStrategy) Name() string { return string(AlgorithmMIPSolver) }

func (s *MIPStrategy) ProducePlan(ctx context.Context, snap Snapshot) (Result, error) {
	if len(snap.Assignable()) == 0 {
		return Result{Plan: carryPlan(snap)}, nil
	}
	f, err := NewFormulation(s.cfg, snap)
	if err != nil {
		return Result{}, err
	}
	return solveFormulation(ctx, s.cfg, snap, f, s.log)
}

// solveFormulation runs the solver on a built formulation and extracts
// the plan. Shared with the re-optimizer, which solves fixed variants of
// the same model.
func solveFormulation(ctx context.Context, cfg Config, snap Snapshot, f *Formulation, log logger.Logger) (Result, error) {
	limit := time.Duration(cfg.SolveTimeLimitSeconds * float64(time.Second))
	sol, err := solver.Solve(ctx, f.Model(), limit)
	switch {
	case errors.Is(err, solver.ErrTimeout):
		log.Warnf("exact solve hit the %.0fs limit with no incumbent", cfg.SolveTimeLimitSeconds)
		return Result{}, ErrTimeout
	case errors.Is(err, solver.ErrNoSolution):
		return Result{}, ErrInfeasibleSnapshot
	case err != nil:
		return Result{}, err
	}
	plan, rejected, err := f.ExtractPlan(sol)
	if err != nil {
		return Result{}, err
	}
	log.Debugf("exact solve: %d nodes in %s, %d trips rejected", sol.Nodes, sol.SolveTime, len(rejected))
	return Result{
		Plan:      plan,
		Rejected:  rejected,
		Objective: PlanValue(cfg.Objective, snap, plan),
		SolveTime: sol.SolveTime,
	}, nil
}

// carryPlan keeps the previously committed plan when there is nothing to
// decide this epoch.
func carryPlan(snap Snapshot) *model.RoutePlan {
	if snap.Plan != nil {
		return snap.Plan.Clone()
	}
	return model.NewRoutePlan(snap.Epoch)
}
