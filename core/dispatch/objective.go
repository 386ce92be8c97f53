package dispatch

import "github.com/transitops/darp/core/model"

// PlanValue scores a plan under the given objective. Values are oriented
// so that higher is always better: waiting time contributes negatively.
// The ranking heuristic and quantitative consensus build on these values.
func PlanValue(obj Objective, snap Snapshot, plan *model.RoutePlan) float64 {
	if plan == nil {
		return 0
	}
	trips := make(map[string]bool, len(snap.Trips))
	for _, t := range snap.Trips {
		trips[t.ID] = true
	}
	vehicles := snap.VehicleMap()

	served := 0
	profit := 0.0
	wait := 0.0
	for vid, route := range plan.Routes {
		veh, ok := vehicles[vid]
		if !ok {
			continue
		}
		for _, s := range route.Stops {
			if s.Kind != model.StopPickup || !trips[s.Trip.ID] {
				continue
			}
			served++
			profit += s.Trip.Fare
			wait += s.Trip.WaitingTime(s.Departure)
		}
		profit -= route.TravelCost(snap.Network, veh)
	}

	switch obj {
	case ObjectiveTotalProfit:
		return profit
	case ObjectiveWaitingTime:
		return -wait
	default:
		return float64(served)
	}
}
