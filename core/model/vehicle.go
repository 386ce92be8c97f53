package model

import "fmt"

// Vehicle represents a fleet vehicle available for dial-a-ride service.
type Vehicle struct {
	ID          string
	Capacity    int      // maximum passengers on board at any time
	Location    Location // position at the start of the current epoch
	AvailableAt float64  // seconds; earliest departure from Location
}

// NewVehicle validates the vehicle parameters.
func NewVehicle(id string, capacity int, location Location, availableAt float64) (*Vehicle, error) {
	if id == "" {
		return nil, fmt.Errorf("model: vehicle id is required")
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("model: vehicle %s: capacity must be positive, got %d", id, capacity)
	}
	if availableAt < 0 {
		return nil, fmt.Errorf("model: vehicle %s: negative availability time %.3f", id, availableAt)
	}
	return &Vehicle{ID: id, Capacity: capacity, Location: location, AvailableAt: availableAt}, nil
}

// CanCarry reports whether the vehicle can ever hold the trip's party.
func (v Vehicle) CanCarry(t *Trip) bool {
	return t != nil && t.Passengers <= v.Capacity
}
