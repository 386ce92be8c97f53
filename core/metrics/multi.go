package metrics

// MultiSink fans events out to several sinks. Optional recorder
// interfaces are forwarded only to the sinks that implement them.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordEpoch forwards the epoch result to all sinks, returning the
// first error encountered.
func (m *MultiSink) RecordEpoch(ev EpochResult) error {
	for _, s := range m.Sinks {
		if err := s.RecordEpoch(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordAssignments forwards assignment events.
func (m *MultiSink) RecordAssignments(evs []AssignmentEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(AssignmentRecorder); ok {
			if err := rec.RecordAssignments(evs); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordRepair forwards repair cycles.
func (m *MultiSink) RecordRepair(ev RepairEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(RepairRecorder); ok {
			if err := rec.RecordRepair(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordConsensus forwards consensus rounds.
func (m *MultiSink) RecordConsensus(ev ConsensusEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(ConsensusRecorder); ok {
			if err := rec.RecordConsensus(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordFleetSize forwards fleet size metrics when supported by the sink.
func (m *MultiSink) RecordFleetSize(size int) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(FleetSizeRecorder); ok {
			if err := rec.RecordFleetSize(size); err != nil {
				return err
			}
		}
	}
	return nil
}
