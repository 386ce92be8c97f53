package model

import "fmt"

// Insertion describes a feasible placement of a trip on a vehicle route:
// the pickup goes before stop index PickupPos of the current route, the
// drop-off before index DropoffPos (DropoffPos >= PickupPos; both may
// equal len(stops) to append). Cost is the marginal travel cost of the
// detour.
type Insertion struct {
	VehicleID  string
	PickupPos  int
	DropoffPos int
	Cost       float64
}

// candidate builds the expanded stop sequence without validating it.
func candidateRoute(route *Route, trip *Trip, pickupPos, dropoffPos int) *Route {
	stops := make([]Stop, 0, len(route.Stops)+2)
	stops = append(stops, route.Stops[:pickupPos]...)
	stops = append(stops, Stop{Kind: StopPickup, Trip: trip, Location: trip.Origin})
	stops = append(stops, route.Stops[pickupPos:dropoffPos]...)
	stops = append(stops, Stop{Kind: StopDropoff, Trip: trip, Location: trip.Destination})
	stops = append(stops, route.Stops[dropoffPos:]...)
	return &Route{VehicleID: route.VehicleID, Stops: stops}
}

// IsInsertable reports whether inserting the trip at the given positions
// keeps the route time- and capacity-feasible. It is a pure query: the
// route is never mutated.
func IsInsertable(net *Network, veh *Vehicle, route *Route, trip *Trip, pickupPos, dropoffPos int) bool {
	if trip == nil || !veh.CanCarry(trip) {
		return false
	}
	if pickupPos < 0 || dropoffPos < pickupPos || dropoffPos > len(route.Stops) {
		return false
	}
	return candidateRoute(route, trip, pickupPos, dropoffPos).Schedule(net, veh) == nil
}

// InsertionCost returns the marginal travel cost of inserting the trip
// at the given positions, computed as the cost delta between the
// expanded and the current route. Feasibility is not checked here.
func InsertionCost(net *Network, veh *Vehicle, route *Route, trip *Trip, pickupPos, dropoffPos int) float64 {
	return candidateRoute(route, trip, pickupPos, dropoffPos).TravelCost(net, veh) - route.TravelCost(net, veh)
}

// InsertTrip returns a new scheduled route with the trip inserted, or an
// error leaving the original route untouched.
func InsertTrip(net *Network, veh *Vehicle, route *Route, trip *Trip, pickupPos, dropoffPos int) (*Route, error) {
	if !veh.CanCarry(trip) {
		return nil, fmt.Errorf("model: trip %s party of %d exceeds capacity %d of vehicle %s", trip.ID, trip.Passengers, veh.Capacity, veh.ID)
	}
	cand := candidateRoute(route, trip, pickupPos, dropoffPos)
	if err := cand.Schedule(net, veh); err != nil {
		return nil, err
	}
	return cand, nil
}

// FeasibleInsertions enumerates every feasible (pickup, drop-off)
// position pair for the trip on the route, with marginal costs.
func FeasibleInsertions(net *Network, veh *Vehicle, route *Route, trip *Trip) []Insertion {
	var out []Insertion
	if !veh.CanCarry(trip) {
		return out
	}
	base := route.TravelCost(net, veh)
	for p := 0; p <= len(route.Stops); p++ {
		for q := p; q <= len(route.Stops); q++ {
			cand := candidateRoute(route, trip, p, q)
			if cand.Schedule(net, veh) != nil {
				continue
			}
			out = append(out, Insertion{
				VehicleID:  veh.ID,
				PickupPos:  p,
				DropoffPos: q,
				Cost:       cand.TravelCost(net, veh) - base,
			})
		}
	}
	return out
}
