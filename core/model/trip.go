package model

import "fmt"

// TripStatus tracks the lifecycle of a trip request. Transitions are
// monotonic: a trip never moves back to an earlier status.
type TripStatus int

const (
	TripUnknown TripStatus = iota
	TripReleased
	TripAssigned
	TripPickedUp
	TripCompleted
	TripRejected
)

func (s TripStatus) String() string {
	switch s {
	case TripUnknown:
		return "unknown"
	case TripReleased:
		return "released"
	case TripAssigned:
		return "assigned"
	case TripPickedUp:
		return "picked_up"
	case TripCompleted:
		return "completed"
	case TripRejected:
		return "rejected"
	}
	return "invalid"
}

// Location identifies a stop point on the network. Coordinates are
// optional; the travel-time matrix is keyed by label.
type Location struct {
	Label string  `json:"label"`
	Lat   float64 `json:"lat,omitempty"`
	Lon   float64 `json:"lon,omitempty"`
}

// Trip is a ride request. All times are in seconds from the start of the
// simulation. ReleaseTime is the moment the request becomes known to the
// dispatcher; ReadyTime/LatestPickup bound the pickup and
// EarliestDropoff/LatestDropoff bound the drop-off.
type Trip struct {
	ID              string
	Origin          Location
	Destination     Location
	Passengers      int
	ReleaseTime     float64
	ReadyTime       float64
	LatestPickup    float64
	EarliestDropoff float64
	LatestDropoff   float64
	Fare            float64
	DirectTime      float64 // shortest travel time origin to destination

	status    TripStatus
	vehicleID string
}

// NewTrip validates the request and returns it in the Released state.
// Malformed input (inverted windows, non-positive passenger count) is
// rejected here, before the trip can reach any algorithm.
func NewTrip(id string, origin, destination Location, passengers int, releaseTime, readyTime, latestPickup, latestDropoff, fare, directTime float64) (*Trip, error) {
	if id == "" {
		return nil, fmt.Errorf("model: trip id is required")
	}
	if passengers <= 0 {
		return nil, fmt.Errorf("model: trip %s: passengers must be positive, got %d", id, passengers)
	}
	if readyTime > latestPickup {
		return nil, fmt.Errorf("model: trip %s: ready time %.3f after latest pickup %.3f", id, readyTime, latestPickup)
	}
	earliestDrop := readyTime + directTime
	if earliestDrop > latestDropoff {
		return nil, fmt.Errorf("model: trip %s: earliest drop-off %.3f after latest drop-off %.3f", id, earliestDrop, latestDropoff)
	}
	if releaseTime > readyTime {
		return nil, fmt.Errorf("model: trip %s: release time %.3f after ready time %.3f", id, releaseTime, readyTime)
	}
	return &Trip{
		ID:              id,
		Origin:          origin,
		Destination:     destination,
		Passengers:      passengers,
		ReleaseTime:     releaseTime,
		ReadyTime:       readyTime,
		LatestPickup:    latestPickup,
		EarliestDropoff: earliestDrop,
		LatestDropoff:   latestDropoff,
		Fare:            fare,
		DirectTime:      directTime,
		status:          TripReleased,
	}, nil
}

// Status returns the current lifecycle status.
func (t *Trip) Status() TripStatus { return t.status }

// VehicleID returns the assigned vehicle, or "" when unassigned.
func (t *Trip) VehicleID() string { return t.vehicleID }

// SetStatus advances the trip status. Regressions are rejected, except
// Assigned back to Released which models an assignment being undone by a
// destroy policy before pickup.
func (t *Trip) SetStatus(to TripStatus) error {
	if to == t.status {
		return nil
	}
	if t.status == TripAssigned && to == TripReleased {
		t.status = TripReleased
		t.vehicleID = ""
		return nil
	}
	if to < t.status {
		return fmt.Errorf("model: trip %s: illegal status transition %s -> %s", t.ID, t.status, to)
	}
	if to == TripAssigned && t.vehicleID == "" {
		return fmt.Errorf("model: trip %s: cannot mark assigned without a vehicle", t.ID)
	}
	t.status = to
	return nil
}

// AssignTo binds the trip to a vehicle and marks it Assigned.
func (t *Trip) AssignTo(vehicleID string) error {
	if vehicleID == "" {
		return fmt.Errorf("model: trip %s: empty vehicle id", t.ID)
	}
	if t.status >= TripPickedUp {
		return fmt.Errorf("model: trip %s: cannot reassign in status %s", t.ID, t.status)
	}
	t.vehicleID = vehicleID
	t.status = TripAssigned
	return nil
}

// Unassign releases a not-yet-picked-up trip back to the pending pool.
func (t *Trip) Unassign() error {
	if t.status == TripReleased {
		return nil
	}
	return t.SetStatus(TripReleased)
}

// WaitingTime returns the wait between ready time and the given pickup
// time, never negative.
func (t *Trip) WaitingTime(pickupAt float64) float64 {
	if pickupAt <= t.ReadyTime {
		return 0
	}
	return pickupAt - t.ReadyTime
}
