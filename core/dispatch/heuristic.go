package dispatch

import (
	"sort"

	"github.com/transitops/darp/core/model"
)

// Heuristic strategies share one feasibility notion with the exact
// path: a placement counts as feasible exactly when the expanded route
// schedules without violating a window or the capacity. All of them
// start from the previously committed plan and only add stops, so
// already-assigned trips keep their routes.

// vehiclesByID returns the snapshot vehicles in id order, which is the
// tie-break order everywhere a choice between vehicles is made.
func vehiclesByID(snap Snapshot) []*model.Vehicle {
	out := append([]*model.Vehicle(nil), snap.Vehicles...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// tripsByReadyTime orders trips by ready time, breaking ties by id.
func tripsByReadyTime(trips []*model.Trip) []*model.Trip {
	out := append([]*model.Trip(nil), trips...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].ReadyTime != out[j].ReadyTime {
			return out[i].ReadyTime < out[j].ReadyTime
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// bestInsertion scans every vehicle and position pair and returns the
// cheapest feasible placement. Vehicles are visited in id order and only
// a strictly cheaper candidate displaces the incumbent, so cost ties go
// to the lowest vehicle id.
func bestInsertion(snap Snapshot, plan *model.RoutePlan, trip *model.Trip) (model.Insertion, bool) {
	var best model.Insertion
	found := false
	for _, veh := range vehiclesByID(snap) {
		for _, ins := range model.FeasibleInsertions(snap.Network, veh, plan.Route(veh.ID), trip) {
			if !found || ins.Cost < best.Cost {
				best = ins
				found = true
			}
		}
	}
	return best, found
}

// applyInsertion swaps the expanded route into the plan. The route is
// re-validated during the swap, so a stale insertion surfaces as an
// error instead of a corrupt plan.
func applyInsertion(snap Snapshot, plan *model.RoutePlan, trip *model.Trip, ins model.Insertion) error {
	veh := snap.VehicleMap()[ins.VehicleID]
	route, err := model.InsertTrip(snap.Network, veh, plan.Route(ins.VehicleID), trip, ins.PickupPos, ins.DropoffPos)
	if err != nil {
		return err
	}
	return plan.ReplaceRoute(snap.Network, veh, route)
}

// basePlan clones the committed plan onto the current epoch, or starts
// an empty one.
func basePlan(snap Snapshot) *model.RoutePlan {
	plan := carryPlan(snap)
	plan.Epoch = snap.Epoch
	return plan
}
