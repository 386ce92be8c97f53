package dispatch

import (
	"fmt"

	"github.com/transitops/darp/core/logger"
)

// NewStrategy builds the strategy selected by the configuration. The
// sampler is only used by consensus and may be nil otherwise.
func NewStrategy(cfg Config, sampler Sampler, log logger.Logger) (Strategy, error) {
	switch cfg.Algorithm {
	case AlgorithmMIPSolver:
		return NewMIPStrategy(cfg, log), nil
	case AlgorithmGreedy:
		return NewGreedyStrategy(cfg, log), nil
	case AlgorithmRandom:
		return NewRandomStrategy(cfg, log), nil
	case AlgorithmRanking:
		return NewRankingStrategy(cfg, DefaultRankWeights(), log), nil
	case AlgorithmReOptimize:
		return NewReOptimizer(cfg, log), nil
	case AlgorithmConsensus:
		return NewConsensusStrategy(cfg, nil, sampler, log), nil
	}
	return nil, fmt.Errorf("dispatch: unknown algorithm %q", cfg.Algorithm)
}
