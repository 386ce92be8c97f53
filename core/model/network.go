package model

import (
	"math"
	"sort"
)

// Network holds the travel-time and operating-cost matrices between stop
// points, keyed by location label. Shortest-path computation is external;
// the dispatcher only consumes the resulting matrices.
type Network struct {
	Durations map[string]map[string]float64 // seconds
	Costs     map[string]map[string]float64 // currency units
}

// Duration returns the travel time in seconds between two labels. Unknown
// pairs report +Inf so that any insertion relying on them is infeasible.
func (n *Network) Duration(from, to string) float64 {
	if from == to {
		return 0
	}
	if row, ok := n.Durations[from]; ok {
		if d, ok := row[to]; ok {
			return d
		}
	}
	return math.Inf(1)
}

// Cost returns the driving cost between two labels. Falls back to a
// time-proportional cost when no cost matrix is configured.
func (n *Network) Cost(from, to string) float64 {
	if row, ok := n.Costs[from]; ok {
		if c, ok := row[to]; ok {
			return c
		}
	}
	return n.Duration(from, to)
}

// Labels lists the known stop points in sorted order.
func (n *Network) Labels() []string {
	out := make([]string, 0, len(n.Durations))
	for label := range n.Durations {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// NewNetworkFromCoords derives both matrices from haversine distances at
// a constant speed. speedKph must be positive; costPerHour scales the
// operating cost.
func NewNetworkFromCoords(locations []Location, speedKph, costPerHour float64) *Network {
	if speedKph <= 0 {
		speedKph = 50
	}
	durations := make(map[string]map[string]float64, len(locations))
	costs := make(map[string]map[string]float64, len(locations))
	for _, a := range locations {
		durations[a.Label] = make(map[string]float64, len(locations))
		costs[a.Label] = make(map[string]float64, len(locations))
		for _, b := range locations {
			sec := haversineMeters(a.Lat, a.Lon, b.Lat, b.Lon) / (speedKph / 3.6)
			durations[a.Label][b.Label] = sec
			costs[a.Label][b.Label] = costPerHour * sec / 3600
		}
	}
	return &Network{Durations: durations, Costs: costs}
}

func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadius = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadius * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
