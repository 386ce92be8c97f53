// Package scenario samples hypothetical future demand. Consensus
// strategies enrich each scenario snapshot with these trips to hedge
// today's assignment against tomorrow's requests.
package scenario

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/transitops/darp/core/dispatch"
	"github.com/transitops/darp/core/logger"
	"github.com/transitops/darp/core/model"
)

const (
	baseFare      = 2.0
	farePerMinute = 1.0
	maxParty      = 3
)

// Generator draws future trips from a Poisson process over the network
// nodes: interarrival times are exponential with rate
// cust_node_hour times the node count, origins and destinations are
// uniform distinct node pairs and party sizes are uniform on
// [1, maxParty]. The same seed always reproduces the same scenario.
type Generator struct {
	cfg     dispatch.Config
	horizon float64 // seconds of look-ahead past the epoch
	log     logger.Logger
}

// NewGenerator builds a sampler with the given look-ahead horizon; zero
// or negative defaults to one hour.
func NewGenerator(cfg dispatch.Config, horizonSeconds float64, log logger.Logger) *Generator {
	if horizonSeconds <= 0 {
		horizonSeconds = 3600
	}
	return &Generator{cfg: cfg, horizon: horizonSeconds, log: log}
}

// Sample implements dispatch.Sampler.
func (g *Generator) Sample(seed int64, snap dispatch.Snapshot) ([]*model.Trip, error) {
	if g.cfg.CustomersPerNodeHour <= 0 {
		return nil, nil
	}
	labels := snap.Network.Labels()
	if len(labels) < 2 {
		return nil, fmt.Errorf("scenario: need at least 2 network nodes, have %d", len(labels))
	}

	src := rand.NewPCG(uint64(seed), uint64(seed)+1)
	rng := rand.New(src)
	inter := distuv.Exponential{
		Rate: g.cfg.CustomersPerNodeHour * float64(len(labels)) / 3600,
		Src:  src,
	}
	tw := float64(g.cfg.TimeWindowMinutes) * 60

	var out []*model.Trip
	t := snap.Epoch
	for i := 0; ; i++ {
		t += inter.Rand()
		if t > snap.Epoch+g.horizon {
			break
		}
		oi := rng.IntN(len(labels))
		di := rng.IntN(len(labels) - 1)
		if di >= oi {
			di++
		}
		origin := model.Location{Label: labels[oi]}
		dest := model.Location{Label: labels[di]}
		direct := snap.Network.Duration(origin.Label, dest.Label)
		if math.IsInf(direct, 1) {
			continue // disconnected pair
		}
		trip, err := model.NewTrip(
			fmt.Sprintf("scen-%d-%d", seed, i),
			origin, dest,
			1+rng.IntN(maxParty),
			t, t, t+tw, t+direct+tw,
			baseFare+farePerMinute*direct/60,
			direct,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, trip)
	}
	return out, nil
}
