package model

import (
	"fmt"

	"github.com/google/uuid"
)

// RoutePlan maps every vehicle to its ordered stop sequence for one
// decision epoch. Plans are value-passed between epochs: the dispatcher
// owns a plan exclusively while it computes, then hands it to the
// simulation. Version changes on every mutation batch so downstream
// consumers can detect stale plans.
type RoutePlan struct {
	Version string
	Epoch   float64
	Routes  map[string]*Route
}

// NewRoutePlan returns an empty plan for the given epoch time.
func NewRoutePlan(epoch float64) *RoutePlan {
	return &RoutePlan{Version: uuid.NewString(), Epoch: epoch, Routes: make(map[string]*Route)}
}

// Clone deep-copies the plan with a fresh version.
func (p *RoutePlan) Clone() *RoutePlan {
	cp := NewRoutePlan(p.Epoch)
	for id, r := range p.Routes {
		cp.Routes[id] = r.Clone()
	}
	return cp
}

// Route returns the route of the vehicle, creating an empty one on first
// access.
func (p *RoutePlan) Route(vehicleID string) *Route {
	r, ok := p.Routes[vehicleID]
	if !ok {
		r = NewRoute(vehicleID)
		p.Routes[vehicleID] = r
	}
	return r
}

// ReplaceRoute validates the candidate route and atomically swaps it in.
// On error the plan is unchanged.
func (p *RoutePlan) ReplaceRoute(net *Network, veh *Vehicle, route *Route) error {
	if route.VehicleID != veh.ID {
		return fmt.Errorf("model: route for %s offered to vehicle %s", route.VehicleID, veh.ID)
	}
	if err := route.Feasible(net, veh); err != nil {
		return err
	}
	p.Routes[veh.ID] = route
	p.Version = uuid.NewString()
	return nil
}

// Assignments returns trip id to vehicle id for every trip picked up on
// some route of the plan.
func (p *RoutePlan) Assignments() map[string]string {
	out := make(map[string]string)
	for vid, r := range p.Routes {
		for _, id := range r.TripIDs() {
			out[id] = vid
		}
	}
	return out
}

// Validate checks every route against its vehicle. Vehicles absent from
// the map fail validation rather than being skipped.
func (p *RoutePlan) Validate(net *Network, vehicles map[string]*Vehicle) error {
	for vid, r := range p.Routes {
		veh, ok := vehicles[vid]
		if !ok {
			return fmt.Errorf("model: plan references unknown vehicle %s", vid)
		}
		if err := r.Feasible(net, veh); err != nil {
			return err
		}
	}
	return nil
}
