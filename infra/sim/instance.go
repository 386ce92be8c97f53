// Package sim provides the simulation boundary of the dispatcher: a
// benchmark instance loader and a replay engine that implements the
// snapshot/commit protocol over a loaded instance.
package sim

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/transitops/darp/core/dispatch"
	"github.com/transitops/darp/core/model"
)

// Instance is a benchmark scenario on disk. Times are in seconds from
// the start of the simulation: tcall is the moment the customer calls,
// tmin the earliest pickup and tmax the latest pickup.
type Instance struct {
	Network  NetworkSpec   `json:"network" yaml:"network"`
	Trips    []TripSpec    `json:"trips" yaml:"trips"`
	Vehicles []VehicleSpec `json:"vehicles" yaml:"vehicles"`
}

// NetworkSpec describes the travel network, either as node coordinates
// (durations derived from haversine distance at constant speed) or as an
// explicit duration matrix.
type NetworkSpec struct {
	SpeedKph    float64                       `json:"speed_kph" yaml:"speed_kph"`
	CostPerHour float64                       `json:"cost_per_hour" yaml:"cost_per_hour"`
	Nodes       []model.Location              `json:"nodes" yaml:"nodes"`
	Durations   map[string]map[string]float64 `json:"durations" yaml:"durations"`
}

type TripSpec struct {
	ID         string  `json:"id" yaml:"id"`
	Orig       string  `json:"orig" yaml:"orig"`
	Dest       string  `json:"dest" yaml:"dest"`
	Passengers int     `json:"passengers" yaml:"passengers"`
	TCall      float64 `json:"tcall" yaml:"tcall"`
	TMin       float64 `json:"tmin" yaml:"tmin"`
	TMax       float64 `json:"tmax" yaml:"tmax"`
	Fare       float64 `json:"fare" yaml:"fare"`
}

type VehicleSpec struct {
	ID       string  `json:"id" yaml:"id"`
	InitPos  string  `json:"init_pos" yaml:"init_pos"`
	InitTime float64 `json:"init_time" yaml:"init_time"`
	Capacity int     `json:"capacity" yaml:"capacity"`
}

// LoadInstance reads a JSON or YAML instance file, detected by
// extension.
func LoadInstance(path string) (*Instance, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sim: read instance: %w", err)
	}
	var inst Instance
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &inst)
	default:
		err = json.Unmarshal(raw, &inst)
	}
	if err != nil {
		return nil, fmt.Errorf("sim: parse %s: %w", path, err)
	}
	if len(inst.Trips) == 0 || len(inst.Vehicles) == 0 {
		return nil, fmt.Errorf("sim: instance %s has %d trips and %d vehicles", path, len(inst.Trips), len(inst.Vehicles))
	}
	return &inst, nil
}

func (n NetworkSpec) build() (*model.Network, error) {
	if len(n.Durations) > 0 {
		net := &model.Network{Durations: n.Durations}
		if n.CostPerHour > 0 {
			net.Costs = make(map[string]map[string]float64, len(n.Durations))
			for from, row := range n.Durations {
				net.Costs[from] = make(map[string]float64, len(row))
				for to, sec := range row {
					net.Costs[from][to] = n.CostPerHour * sec / 3600
				}
			}
		}
		return net, nil
	}
	if len(n.Nodes) < 2 {
		return nil, fmt.Errorf("sim: network needs coordinates or a duration matrix")
	}
	return model.NewNetworkFromCoords(n.Nodes, n.SpeedKph, n.CostPerHour), nil
}

// releaseTime derives when a trip becomes known to the dispatcher under
// the configured solution mode. known marks trips revealed before the
// simulation starts (partial_online only).
func releaseTime(cfg dispatch.Config, spec TripSpec, known bool) float64 {
	switch cfg.SolutionMode {
	case dispatch.ModeOffline:
		return 0
	case dispatch.ModePartialOnline:
		if known {
			return 0
		}
		return spec.TCall
	case dispatch.ModeAdvanceNotice:
		// synthetic mode: every trip is known exactly the configured
		// notice before its earliest pickup, regardless of tcall
		r := spec.TMin - float64(cfg.AdvanceNoticeMinutes)*60
		if r < 0 {
			r = 0
		}
		return r
	default: // fully online
		return spec.TCall
	}
}

// buildTrips materializes the instance trips with release times per the
// solution mode. Under partial_online a seeded draw reveals
// known_portion percent of the trips up front.
func buildTrips(cfg dispatch.Config, inst *Instance, net *model.Network) ([]*model.Trip, error) {
	known := make(map[string]bool, len(inst.Trips))
	if cfg.SolutionMode == dispatch.ModePartialOnline {
		ids := make([]string, 0, len(inst.Trips))
		for _, spec := range inst.Trips {
			ids = append(ids, spec.ID)
		}
		sort.Strings(ids)
		rng := rand.New(rand.NewPCG(uint64(cfg.Seed), uint64(cfg.Seed)+1))
		rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
		n := int(float64(len(ids)) * cfg.KnownPortion / 100)
		for _, id := range ids[:n] {
			known[id] = true
		}
	}

	trips := make([]*model.Trip, 0, len(inst.Trips))
	for _, spec := range inst.Trips {
		passengers := spec.Passengers
		if passengers == 0 {
			passengers = 1
		}
		direct := net.Duration(spec.Orig, spec.Dest)
		latestDrop := spec.TMin + direct + (spec.TMax - spec.TMin)
		trip, err := model.NewTrip(spec.ID,
			model.Location{Label: spec.Orig}, model.Location{Label: spec.Dest},
			passengers,
			releaseTime(cfg, spec, known[spec.ID]),
			spec.TMin, spec.TMax, latestDrop, spec.Fare, direct)
		if err != nil {
			return nil, err
		}
		trips = append(trips, trip)
	}
	return trips, nil
}

func buildVehicles(inst *Instance) ([]*model.Vehicle, error) {
	vehicles := make([]*model.Vehicle, 0, len(inst.Vehicles))
	for _, spec := range inst.Vehicles {
		capacity := spec.Capacity
		if capacity == 0 {
			capacity = 3
		}
		veh, err := model.NewVehicle(spec.ID, capacity, model.Location{Label: spec.InitPos}, spec.InitTime)
		if err != nil {
			return nil, err
		}
		vehicles = append(vehicles, veh)
	}
	return vehicles, nil
}
