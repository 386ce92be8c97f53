package dispatch

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/transitops/darp/core/model"
	"github.com/transitops/darp/core/solver"
)

// Formulation is the sequencing model of one snapshot. Decision
// variables, for n pending trips and K vehicles:
//
//	X_ij  trip j is served immediately after trip i by the same vehicle
//	Y_ki  trip i is the first trip of vehicle k
//	Z_i   trip i is served
//	U_i   pickup time of trip i, within [ready, latest pickup]
//	V_ki  trip i rides on vehicle k (continuous, pinned by X, Y and Z)
//
// A trip is served when it is a chain start or has a predecessor, each
// vehicle starts at most one chain, each trip has at most one successor,
// and big-M rows link pickup times along chains. The V rows tie every
// trip of a chain to the chain's vehicle, so a chain can only form on a
// vehicle with seats for each of its trips. Service is sequential: a
// vehicle drops a trip off before heading to the next pickup.
type Formulation struct {
	cfg      Config
	epoch    float64
	trips    []*model.Trip
	vehicles []*model.Vehicle
	net      *model.Network
	m        *solver.Model

	n, k       int
	bigM       float64
	startT     [][]float64 // startT[k][i]: earliest pickup of i as chain start of k, +Inf if forbidden
	chainT     [][]float64 // chainT[i][j]: serve i then reach j, +Inf if forbidden
	tripPos    map[string]int
	vehiclePos map[string]int
}

// NewFormulation builds the assignment model over the snapshot's
// assignable trips. Trips and vehicles are ordered by id so the variable
// layout, and therefore the search, is deterministic. Returns
// ErrInfeasibleSnapshot when no vehicle can reach any pending trip
// within its window.
func NewFormulation(cfg Config, snap Snapshot) (*Formulation, error) {
	trips := append([]*model.Trip(nil), snap.Assignable()...)
	sort.Slice(trips, func(i, j int) bool { return trips[i].ID < trips[j].ID })
	vehicles := append([]*model.Vehicle(nil), snap.Vehicles...)
	sort.Slice(vehicles, func(i, j int) bool { return vehicles[i].ID < vehicles[j].ID })

	f := &Formulation{
		cfg:        cfg,
		epoch:      snap.Epoch,
		trips:      trips,
		vehicles:   vehicles,
		net:        snap.Network,
		n:          len(trips),
		k:          len(vehicles),
		tripPos:    make(map[string]int, len(trips)),
		vehiclePos: make(map[string]int, len(vehicles)),
	}
	for i, t := range trips {
		f.tripPos[t.ID] = i
	}
	for k, v := range vehicles {
		f.vehiclePos[v.ID] = k
	}
	if f.n == 0 || f.k == 0 {
		return nil, ErrInfeasibleSnapshot
	}

	f.buildArcs()
	anyStart := false
	for k := range f.startT {
		for i := range f.startT[k] {
			if !math.IsInf(f.startT[k][i], 1) {
				anyStart = true
			}
		}
	}
	if !anyStart {
		return nil, ErrInfeasibleSnapshot
	}
	f.buildModel()
	return f, nil
}

// buildArcs precomputes chain-start and successor times and prunes arcs
// that can never satisfy the successor's pickup window.
func (f *Formulation) buildArcs() {
	f.startT = make([][]float64, f.k)
	maxT := 0.0
	for k, veh := range f.vehicles {
		f.startT[k] = make([]float64, f.n)
		for i, t := range f.trips {
			f.startT[k][i] = math.Inf(1)
			if !veh.CanCarry(t) {
				continue
			}
			reach := veh.AvailableAt + f.net.Duration(veh.Location.Label, t.Origin.Label)
			if reach > t.LatestPickup {
				continue
			}
			f.startT[k][i] = reach
		}
	}
	f.chainT = make([][]float64, f.n)
	for i, ti := range f.trips {
		f.chainT[i] = make([]float64, f.n)
		if ti.LatestPickup > maxT {
			maxT = ti.LatestPickup
		}
		for j, tj := range f.trips {
			f.chainT[i][j] = math.Inf(1)
			if i == j {
				continue
			}
			// The successor rides the chain's vehicle, so the arc is only
			// useful when some vehicle has seats for both trips. Which
			// vehicle that is stays the V rows' business.
			if !someVehicleCanCarryBoth(f.vehicles, ti, tj) {
				continue
			}
			d := ti.DirectTime + f.net.Duration(ti.Destination.Label, tj.Origin.Label)
			if ti.ReadyTime+d > tj.LatestPickup {
				continue
			}
			f.chainT[i][j] = d
		}
	}

	f.bigM = maxT + 1
	for k := range f.startT {
		for _, v := range f.startT[k] {
			if !math.IsInf(v, 1) && v > f.bigM {
				f.bigM = v + 1
			}
		}
	}
	for i := range f.chainT {
		for _, v := range f.chainT[i] {
			if !math.IsInf(v, 1) && maxT+v+1 > f.bigM {
				f.bigM = maxT + v + 1
			}
		}
	}
}

func someVehicleCanCarryBoth(vehicles []*model.Vehicle, a, b *model.Trip) bool {
	for _, v := range vehicles {
		if v.CanCarry(a) && v.CanCarry(b) {
			return true
		}
	}
	return false
}

// Variable layout: X block, then Y, then Z, then U, then V.
func (f *Formulation) xIdx(i, j int) int { return i*f.n + j }
func (f *Formulation) yIdx(k, i int) int { return f.n*f.n + k*f.n + i }
func (f *Formulation) zIdx(i int) int    { return f.n*f.n + f.k*f.n + i }
func (f *Formulation) uIdx(i int) int    { return f.n*f.n + f.k*f.n + f.n + i }
func (f *Formulation) vIdx(k, i int) int { return f.n*f.n + f.k*f.n + 2*f.n + k*f.n + i }

func (f *Formulation) numVars() int { return f.n*f.n + 2*f.k*f.n + 2*f.n }

func (f *Formulation) buildModel() {
	n, k := f.n, f.k
	nv := f.numVars()

	lb := make([]float64, nv)
	ub := make([]float64, nv)
	integer := make([]bool, nv)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			idx := f.xIdx(i, j)
			integer[idx] = true
			if !math.IsInf(f.chainT[i][j], 1) {
				ub[idx] = 1
			}
		}
	}
	for kk := 0; kk < k; kk++ {
		for i := 0; i < n; i++ {
			idx := f.yIdx(kk, i)
			integer[idx] = true
			if !math.IsInf(f.startT[kk][i], 1) {
				ub[idx] = 1
			}
		}
	}
	for i, t := range f.trips {
		integer[f.zIdx(i)] = true
		ub[f.zIdx(i)] = 1
		lb[f.uIdx(i)] = t.ReadyTime
		ub[f.uIdx(i)] = t.LatestPickup
	}
	// V stays continuous: with X, Y and Z integral the chain rows pin
	// each V_ki to 0 or 1. A vehicle without seats for the trip keeps
	// the upper bound at zero.
	for kk, veh := range f.vehicles {
		for i, t := range f.trips {
			if veh.CanCarry(t) {
				ub[f.vIdx(kk, i)] = 1
			}
		}
	}

	// Equalities: Z_i - sum_k Y_ki - sum_{j != i} X_ji = 0, and
	// Z_i - sum_k V_ki = 0 so a served trip rides exactly one vehicle.
	a := mat.NewDense(2*n, nv, nil)
	b := make([]float64, 2*n)
	for i := 0; i < n; i++ {
		a.Set(i, f.zIdx(i), 1)
		for kk := 0; kk < k; kk++ {
			a.Set(i, f.yIdx(kk, i), -1)
		}
		for j := 0; j < n; j++ {
			if j != i {
				a.Set(i, f.xIdx(j, i), -1)
			}
		}
		a.Set(n+i, f.zIdx(i), 1)
		for kk := 0; kk < k; kk++ {
			a.Set(n+i, f.vIdx(kk, i), -1)
		}
	}

	// Inequalities: one chain per vehicle, one successor per served trip,
	// the big-M time links, and the vehicle-incidence links on V.
	allowedY, allowedX := 0, 0
	for kk := 0; kk < k; kk++ {
		for i := 0; i < n; i++ {
			if !math.IsInf(f.startT[kk][i], 1) {
				allowedY++
			}
		}
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if !math.IsInf(f.chainT[i][j], 1) {
				allowedX++
			}
		}
	}
	rows := k + n + 2*allowedY + allowedX*(1+k)
	g := mat.NewDense(rows, nv, nil)
	h := make([]float64, rows)
	r := 0
	for kk := 0; kk < k; kk++ {
		for i := 0; i < n; i++ {
			g.Set(r, f.yIdx(kk, i), 1)
		}
		h[r] = 1
		r++
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if j != i {
				g.Set(r, f.xIdx(i, j), 1)
			}
		}
		g.Set(r, f.zIdx(i), -1)
		h[r] = 0
		r++
	}
	// U_i >= start_ki - M(1 - Y_ki)  =>  M*Y_ki - U_i <= M - start_ki
	for kk := 0; kk < k; kk++ {
		for i := 0; i < n; i++ {
			if math.IsInf(f.startT[kk][i], 1) {
				continue
			}
			g.Set(r, f.yIdx(kk, i), f.bigM)
			g.Set(r, f.uIdx(i), -1)
			h[r] = f.bigM - f.startT[kk][i]
			r++
		}
	}
	// U_j >= U_i + d_ij - M(1 - X_ij)  =>  U_i - U_j + M*X_ij <= M - d_ij
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if math.IsInf(f.chainT[i][j], 1) {
				continue
			}
			g.Set(r, f.uIdx(i), 1)
			g.Set(r, f.uIdx(j), -1)
			g.Set(r, f.xIdx(i, j), f.bigM)
			h[r] = f.bigM - f.chainT[i][j]
			r++
		}
	}
	// Y_ki <= V_ki: a chain start rides its vehicle.
	for kk := 0; kk < k; kk++ {
		for i := 0; i < n; i++ {
			if math.IsInf(f.startT[kk][i], 1) {
				continue
			}
			g.Set(r, f.yIdx(kk, i), 1)
			g.Set(r, f.vIdx(kk, i), -1)
			h[r] = 0
			r++
		}
	}
	// V_ki + X_ij - V_kj <= 1: the successor rides the same vehicle,
	// which its V upper bound must allow.
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if math.IsInf(f.chainT[i][j], 1) {
				continue
			}
			for kk := 0; kk < k; kk++ {
				g.Set(r, f.vIdx(kk, i), 1)
				g.Set(r, f.xIdx(i, j), 1)
				g.Set(r, f.vIdx(kk, j), -1)
				h[r] = 1
				r++
			}
		}
	}

	f.m = &solver.Model{
		C:       f.objective(),
		G:       g,
		H:       h,
		A:       a,
		B:       b,
		LB:      lb,
		UB:      ub,
		Integer: integer,
	}
}

func (f *Formulation) objective() []float64 {
	c := make([]float64, f.numVars())
	switch f.cfg.Objective {
	case ObjectiveTotalProfit:
		for i, t := range f.trips {
			c[f.zIdx(i)] = t.Fare - f.net.Cost(t.Origin.Label, t.Destination.Label)
		}
		for kk, veh := range f.vehicles {
			for i, t := range f.trips {
				if !math.IsInf(f.startT[kk][i], 1) {
					c[f.yIdx(kk, i)] = -f.net.Cost(veh.Location.Label, t.Origin.Label)
				}
			}
		}
		for i, ti := range f.trips {
			for j, tj := range f.trips {
				if !math.IsInf(f.chainT[i][j], 1) {
					c[f.xIdx(i, j)] = -f.net.Cost(ti.Destination.Label, tj.Origin.Label)
				}
			}
		}
	case ObjectiveWaitingTime:
		// Serving dominates; among full-service plans the earliest
		// pickups win. Unserved trips relax U to its lower bound, so
		// they add no waiting.
		for i := 0; i < f.n; i++ {
			c[f.zIdx(i)] = f.bigM
			c[f.uIdx(i)] = -1
		}
	default: // total customers
		for i := 0; i < f.n; i++ {
			c[f.zIdx(i)] = 1
		}
	}
	return c
}

// Model exposes the built program for the solver.
func (f *Formulation) Model() *solver.Model { return f.m }

// FixSequence pins the chain structure of the kept trips to the previous
// plan: their vehicle starts and consecutive successor arcs stay as they
// were, and the kept trips must remain served. Used by the fix_variables
// destroy policy.
func (f *Formulation) FixSequence(prev *model.RoutePlan, keep map[string]bool) {
	if prev == nil {
		return
	}
	for vid, route := range prev.Routes {
		kk, ok := f.vehiclePos[vid]
		if !ok {
			continue
		}
		chain := route.TripIDs()
		for pos, id := range chain {
			i, ok := f.tripPos[id]
			if !ok || !keep[id] {
				continue
			}
			f.m.LB[f.zIdx(i)] = 1
			if pos == 0 {
				f.m.LB[f.yIdx(kk, i)] = 1
			}
			if pos+1 < len(chain) && keep[chain[pos+1]] {
				if j, ok := f.tripPos[chain[pos+1]]; ok {
					f.m.LB[f.xIdx(i, j)] = 1
				}
			}
		}
	}
}

// FixPickupTimes pins the pickup times of the kept trips to the values
// scheduled in the previous plan, while leaving the assignment free.
// Used by the fix_arrivals destroy policy.
func (f *Formulation) FixPickupTimes(prev *model.RoutePlan, keep map[string]bool) {
	if prev == nil {
		return
	}
	for _, route := range prev.Routes {
		for _, id := range route.TripIDs() {
			i, ok := f.tripPos[id]
			if !ok || !keep[id] {
				continue
			}
			p, ok := route.PickupTime(id)
			if !ok {
				continue
			}
			t := f.trips[i]
			if p < t.ReadyTime {
				p = t.ReadyTime
			}
			if p > t.LatestPickup {
				p = t.LatestPickup
			}
			f.m.LB[f.uIdx(i)] = p
			f.m.UB[f.uIdx(i)] = p
			f.m.LB[f.zIdx(i)] = 1
		}
	}
}

// ExtractPlan turns a solver solution into a scheduled route plan plus
// the ids of the trips the solution leaves unserved.
func (f *Formulation) ExtractPlan(sol solver.Solution) (*model.RoutePlan, []string, error) {
	plan := model.NewRoutePlan(f.epoch)
	for kk, veh := range f.vehicles {
		route := model.NewRoute(veh.ID)
		cur := -1
		for i := 0; i < f.n; i++ {
			if sol.X[f.yIdx(kk, i)] > 0.5 {
				cur = i
				break
			}
		}
		visited := make(map[int]bool)
		for cur >= 0 && !visited[cur] {
			visited[cur] = true
			t := f.trips[cur]
			route.Stops = append(route.Stops,
				model.Stop{Kind: model.StopPickup, Trip: t, Location: t.Origin},
				model.Stop{Kind: model.StopDropoff, Trip: t, Location: t.Destination},
			)
			next := -1
			for j := 0; j < f.n; j++ {
				if j != cur && sol.X[f.xIdx(cur, j)] > 0.5 {
					next = j
					break
				}
			}
			cur = next
		}
		if err := route.Schedule(f.net, veh); err != nil {
			return nil, nil, fmt.Errorf("dispatch: extracted route is infeasible: %w", err)
		}
		plan.Routes[veh.ID] = route
	}
	var rejected []string
	for i, t := range f.trips {
		if sol.X[f.zIdx(i)] < 0.5 {
			rejected = append(rejected, t.ID)
		}
	}
	return plan, rejected, nil
}
