package dispatch

import (
	"context"
	"time"

	"github.com/transitops/darp/core/model"
)

// Snapshot is the information set handed to the dispatcher at one
// decision epoch: the known trips that are not yet completed or
// rejected, the vehicle states, the travel-time network and the plan
// committed at the previous epoch. The dispatcher owns the snapshot for
// the duration of the call; it does not outlive it.
type Snapshot struct {
	Epoch    float64
	Trips    []*model.Trip
	Vehicles []*model.Vehicle
	Network  *model.Network
	Plan     *model.RoutePlan // previous committed plan, nil on the first epoch
}

// Pending returns the trips awaiting assignment.
func (s Snapshot) Pending() []*model.Trip {
	var out []*model.Trip
	for _, t := range s.Trips {
		if t.Status() == model.TripReleased {
			out = append(out, t)
		}
	}
	return out
}

// Assignable returns the trips that may still be (re)assigned at this
// epoch: released trips plus trips assigned but not yet picked up.
func (s Snapshot) Assignable() []*model.Trip {
	var out []*model.Trip
	for _, t := range s.Trips {
		switch t.Status() {
		case model.TripReleased, model.TripAssigned:
			out = append(out, t)
		}
	}
	return out
}

// VehicleMap indexes the snapshot vehicles by id.
func (s Snapshot) VehicleMap() map[string]*model.Vehicle {
	m := make(map[string]*model.Vehicle, len(s.Vehicles))
	for _, v := range s.Vehicles {
		m[v.ID] = v
	}
	return m
}

// Result is the outcome of one strategy invocation.
type Result struct {
	Plan      *model.RoutePlan
	Rejected  []string // trip ids left unserved this epoch
	Objective float64
	SolveTime time.Duration
	Fallback  bool // true when a soft failure diverted to a fallback path
}

// Strategy produces a route plan for one decision epoch. Implementations
// must never return a plan violating time-window or capacity
// constraints; trips they cannot place go into Result.Rejected instead.
type Strategy interface {
	Name() string
	ProducePlan(ctx context.Context, snap Snapshot) (Result, error)
}

// Snapshotter pulls the current information set from the external
// simulation.
type Snapshotter interface {
	Snapshot(epoch float64) (Snapshot, error)
}

// Committer pushes a computed plan back for execution. The simulation
// owns vehicle movement from commit until the next epoch.
type Committer interface {
	Commit(plan *model.RoutePlan) error
}
