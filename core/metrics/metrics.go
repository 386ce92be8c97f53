package metrics

import "time"

// EpochResult is the outcome of one decision epoch.
type EpochResult struct {
	Epoch       float64
	Algorithm   string
	PlanVersion string
	Served      int
	Rejected    int
	Objective   float64
	SolveTime   time.Duration
	Fallback    bool
	Time        time.Time
}

// MetricsSink records epoch outcomes for observability purposes.
type MetricsSink interface {
	RecordEpoch(ev EpochResult) error
}

// AssignmentEvent captures one trip placed on a vehicle.
type AssignmentEvent struct {
	TripID    string
	VehicleID string
	Epoch     float64
	PickupAt  float64
	Waiting   float64
	Time      time.Time
}

// AssignmentRecorder records trip assignments.
type AssignmentRecorder interface {
	RecordAssignments(evs []AssignmentEvent) error
}

// RepairEvent captures one destroy-and-repair cycle.
type RepairEvent struct {
	Epoch    float64
	Method   string
	Outcome  string // final re-optimizer state
	KeptTrip int
	Time     time.Time
}

// RepairRecorder records re-optimization cycles.
type RepairRecorder interface {
	RecordRepair(ev RepairEvent) error
}

// ConsensusEvent captures one scenario vote.
type ConsensusEvent struct {
	Epoch     float64
	Rule      string
	Scenarios int
	Failures  int
	Time      time.Time
}

// ConsensusRecorder records consensus rounds.
type ConsensusRecorder interface {
	RecordConsensus(ev ConsensusEvent) error
}

// FleetSizeRecorder records the number of vehicles in the active fleet.
type FleetSizeRecorder interface {
	RecordFleetSize(size int) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordEpoch(EpochResult) error             { return nil }
func (NopSink) RecordAssignments([]AssignmentEvent) error { return nil }
func (NopSink) RecordRepair(RepairEvent) error            { return nil }
func (NopSink) RecordConsensus(ConsensusEvent) error      { return nil }
func (NopSink) RecordFleetSize(int) error                 { return nil }
