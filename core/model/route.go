package model

import "fmt"

// StopKind distinguishes pickup from drop-off events on a route.
type StopKind int

const (
	StopPickup StopKind = iota
	StopDropoff
)

func (k StopKind) String() string {
	if k == StopPickup {
		return "pickup"
	}
	return "dropoff"
}

// Stop is a scheduled service event on a vehicle route. Arrival,
// Departure and Load are derived by Schedule and must not be set by
// callers.
type Stop struct {
	Kind      StopKind
	Trip      *Trip
	Location  Location
	Arrival   float64
	Departure float64
	Load      int // passengers on board when leaving this stop
}

// Route is the ordered stop sequence of one vehicle.
type Route struct {
	VehicleID string
	Stops     []Stop
}

// NewRoute returns an empty route for the vehicle.
func NewRoute(vehicleID string) *Route {
	return &Route{VehicleID: vehicleID}
}

// Clone returns a deep copy of the route. Trip pointers are shared; the
// stop sequence is not.
func (r *Route) Clone() *Route {
	cp := &Route{VehicleID: r.VehicleID, Stops: make([]Stop, len(r.Stops))}
	copy(cp.Stops, r.Stops)
	return cp
}

// Schedule propagates arrival and departure times and onboard load along
// the route, starting from the vehicle's current location and
// availability time. It returns an error on the first violated time
// window or capacity constraint, leaving the already-written prefix
// values unspecified.
func (r *Route) Schedule(net *Network, veh *Vehicle) error {
	t := veh.AvailableAt
	loc := veh.Location
	load := 0
	onboard := make(map[string]bool)
	for i := range r.Stops {
		s := &r.Stops[i]
		if s.Trip == nil {
			return fmt.Errorf("model: route %s: stop %d has no trip", r.VehicleID, i)
		}
		arrival := t + net.Duration(loc.Label, s.Location.Label)
		departure := arrival
		switch s.Kind {
		case StopPickup:
			if onboard[s.Trip.ID] {
				return fmt.Errorf("model: route %s: trip %s picked up twice", r.VehicleID, s.Trip.ID)
			}
			if arrival < s.Trip.ReadyTime {
				departure = s.Trip.ReadyTime // wait for the customer
			}
			if arrival > s.Trip.LatestPickup {
				return fmt.Errorf("model: route %s: trip %s pickup at %.3f after latest %.3f", r.VehicleID, s.Trip.ID, arrival, s.Trip.LatestPickup)
			}
			load += s.Trip.Passengers
			if load > veh.Capacity {
				return fmt.Errorf("model: route %s: load %d exceeds capacity %d at trip %s", r.VehicleID, load, veh.Capacity, s.Trip.ID)
			}
			onboard[s.Trip.ID] = true
		case StopDropoff:
			if !onboard[s.Trip.ID] {
				return fmt.Errorf("model: route %s: drop-off of trip %s before pickup", r.VehicleID, s.Trip.ID)
			}
			if arrival > s.Trip.LatestDropoff {
				return fmt.Errorf("model: route %s: trip %s drop-off at %.3f after latest %.3f", r.VehicleID, s.Trip.ID, arrival, s.Trip.LatestDropoff)
			}
			load -= s.Trip.Passengers
			delete(onboard, s.Trip.ID)
		}
		s.Arrival = arrival
		s.Departure = departure
		s.Load = load
		t = departure
		loc = s.Location
	}
	if len(onboard) > 0 {
		return fmt.Errorf("model: route %s: %d trips never dropped off", r.VehicleID, len(onboard))
	}
	return nil
}

// Feasible reports whether the route satisfies all time-window and
// capacity constraints without mutating the receiver.
func (r *Route) Feasible(net *Network, veh *Vehicle) error {
	return r.Clone().Schedule(net, veh)
}

// TravelCost returns the total driving cost of the route legs, including
// the leg from the vehicle's current position to the first stop.
func (r *Route) TravelCost(net *Network, veh *Vehicle) float64 {
	total := 0.0
	from := veh.Location.Label
	for _, s := range r.Stops {
		total += net.Cost(from, s.Location.Label)
		from = s.Location.Label
	}
	return total
}

// TripIDs lists the trips picked up on this route, in service order.
func (r *Route) TripIDs() []string {
	var ids []string
	for _, s := range r.Stops {
		if s.Kind == StopPickup {
			ids = append(ids, s.Trip.ID)
		}
	}
	return ids
}

// PickupTime returns the scheduled departure of the trip's pickup stop,
// or false if the trip is not on the route. Schedule must have run.
func (r *Route) PickupTime(tripID string) (float64, bool) {
	for _, s := range r.Stops {
		if s.Kind == StopPickup && s.Trip.ID == tripID {
			return s.Departure, true
		}
	}
	return 0, false
}
