package sim

import (
	"fmt"
	"sort"

	"github.com/transitops/darp/core/dispatch"
	"github.com/transitops/darp/core/model"
	"github.com/transitops/darp/infra/logger"
)

// Simulator replays a benchmark instance against the dispatcher. It
// implements both halves of the decision-epoch protocol: Snapshot
// reveals trips whose release time has passed and advances vehicles
// along the last committed plan, Commit stores the new plan for the
// next advancement.
//
// Vehicle movement is advanced at segment granularity: a segment is a
// maximal stop run ending where the vehicle is empty. Once the first
// stop of a segment has departed, the whole segment is in motion and
// its trips can no longer be reassigned.
type Simulator struct {
	net      *model.Network
	trips    []*model.Trip
	vehicles []*model.Vehicle
	plan     *model.RoutePlan
	// drop-off times of trips currently on board, keyed by trip id
	onboard map[string]float64
	log     logger.Logger
}

// NewSimulator builds the replay state from a loaded instance.
func NewSimulator(cfg dispatch.Config, inst *Instance, log logger.Logger) (*Simulator, error) {
	net, err := inst.Network.build()
	if err != nil {
		return nil, err
	}
	trips, err := buildTrips(cfg, inst, net)
	if err != nil {
		return nil, err
	}
	vehicles, err := buildVehicles(inst)
	if err != nil {
		return nil, err
	}
	sort.Slice(trips, func(i, j int) bool { return trips[i].ReleaseTime < trips[j].ReleaseTime })
	return &Simulator{
		net:      net,
		trips:    trips,
		vehicles: vehicles,
		onboard:  make(map[string]float64),
		log:      log,
	}, nil
}

// Epochs returns the decision instants for the instance: epoch zero plus
// every distinct release time, so each trip is considered as soon as it
// becomes known.
func (s *Simulator) Epochs() []float64 {
	seen := map[float64]bool{0: true}
	out := []float64{0}
	for _, t := range s.trips {
		if !seen[t.ReleaseTime] {
			seen[t.ReleaseTime] = true
			out = append(out, t.ReleaseTime)
		}
	}
	sort.Float64s(out)
	return out
}

// Snapshot advances the world to the epoch and returns the dispatcher's
// information set.
func (s *Simulator) Snapshot(epoch float64) (dispatch.Snapshot, error) {
	if err := s.advance(epoch); err != nil {
		return dispatch.Snapshot{}, err
	}

	var visible []*model.Trip
	for _, t := range s.trips {
		if t.ReleaseTime > epoch {
			continue
		}
		switch t.Status() {
		case model.TripCompleted:
			continue
		}
		visible = append(visible, t)
	}
	var plan *model.RoutePlan
	if s.plan != nil {
		plan = s.plan.Clone()
	}
	return dispatch.Snapshot{
		Epoch:    epoch,
		Trips:    visible,
		Vehicles: s.vehicles,
		Network:  s.net,
		Plan:     plan,
	}, nil
}

// Commit stores the plan; vehicles follow it until the next snapshot.
func (s *Simulator) Commit(plan *model.RoutePlan) error {
	if plan == nil {
		return fmt.Errorf("sim: nil plan committed")
	}
	s.plan = plan.Clone()
	return nil
}

// advance drops trips whose committed drop-off has passed and moves
// vehicles along the committed plan up to the epoch, trimming served
// segments from the stored plan.
func (s *Simulator) advance(epoch float64) error {
	for id, dropAt := range s.onboard {
		if dropAt <= epoch {
			if err := s.tripByID(id).SetStatus(model.TripCompleted); err != nil {
				return err
			}
			delete(s.onboard, id)
		}
	}
	if s.plan == nil {
		return nil
	}
	byID := make(map[string]*model.Vehicle, len(s.vehicles))
	for _, v := range s.vehicles {
		byID[v.ID] = v
	}
	for vid, route := range s.plan.Routes {
		veh := byID[vid]
		if veh == nil {
			return fmt.Errorf("sim: committed plan references unknown vehicle %s", vid)
		}
		rest, err := s.advanceRoute(epoch, veh, route)
		if err != nil {
			return err
		}
		if len(rest.Stops) == 0 {
			delete(s.plan.Routes, vid)
		} else {
			s.plan.Routes[vid] = rest
		}
	}
	return nil
}

// advanceRoute consumes the committed segments of one route. It returns
// the untouched remainder of the route.
func (s *Simulator) advanceRoute(epoch float64, veh *model.Vehicle, route *model.Route) (*model.Route, error) {
	stops := route.Stops
	i := 0
	for i < len(stops) {
		// segment [i..j] ends at the first empty-vehicle stop
		j := i
		for j < len(stops) && stops[j].Load != 0 {
			j++
		}
		if j == len(stops) {
			return nil, fmt.Errorf("sim: route %s never empties", veh.ID)
		}
		if stops[i].Departure > epoch {
			break
		}
		for k := i; k <= j; k++ {
			st := stops[k]
			switch st.Kind {
			case model.StopPickup:
				if err := st.Trip.SetStatus(model.TripPickedUp); err != nil {
					return nil, err
				}
			case model.StopDropoff:
				if st.Departure <= epoch {
					if err := st.Trip.SetStatus(model.TripCompleted); err != nil {
						return nil, err
					}
					delete(s.onboard, st.Trip.ID)
				} else {
					s.onboard[st.Trip.ID] = st.Departure
				}
			}
		}
		veh.Location = stops[j].Location
		if stops[j].Departure > veh.AvailableAt {
			veh.AvailableAt = stops[j].Departure
		}
		i = j + 1
	}
	rest := model.NewRoute(veh.ID)
	rest.Stops = append(rest.Stops, stops[i:]...)
	return rest, nil
}

func (s *Simulator) tripByID(id string) *model.Trip {
	for _, t := range s.trips {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// Served counts trips completed or on board, for end-of-run reporting.
func (s *Simulator) Served() int {
	n := 0
	for _, t := range s.trips {
		switch t.Status() {
		case model.TripPickedUp, model.TripCompleted:
			n++
		}
	}
	return n
}
