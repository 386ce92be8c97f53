package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	coremetrics "github.com/transitops/darp/core/metrics"
)

func TestPromSinkRecordsEpoch(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	ps := sink.(*PromSink)

	err = ps.RecordEpoch(coremetrics.EpochResult{
		Algorithm: "greedy",
		Served:    3,
		Rejected:  2,
		Objective: 5,
		SolveTime: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("record epoch: %v", err)
	}
	if got := testutil.ToFloat64(ps.epochs.WithLabelValues("greedy", "false")); got != 1 {
		t.Fatalf("epochs = %v, want 1", got)
	}
	if got := testutil.ToFloat64(ps.rejected); got != 2 {
		t.Fatalf("rejected = %v, want 2", got)
	}
	if got := testutil.ToFloat64(ps.objective.WithLabelValues("greedy")); got != 5 {
		t.Fatalf("objective = %v, want 5", got)
	}
}

func TestPromSinkRecordsRepairAndFleet(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	ps := sink.(*PromSink)

	if err := ps.RecordRepair(coremetrics.RepairEvent{Method: "fix_variables", Outcome: "committed"}); err != nil {
		t.Fatalf("record repair: %v", err)
	}
	if got := testutil.ToFloat64(ps.repairs.WithLabelValues("fix_variables", "committed")); got != 1 {
		t.Fatalf("repairs = %v, want 1", got)
	}
	if err := ps.RecordFleetSize(7); err != nil {
		t.Fatalf("record fleet: %v", err)
	}
	if got := testutil.ToFloat64(ps.fleet); got != 7 {
		t.Fatalf("fleet = %v, want 7", got)
	}
}

func TestPromSinkDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPromSinkWithRegistry(reg); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := NewPromSinkWithRegistry(reg); err != nil {
		t.Fatalf("second registration should reuse collectors: %v", err)
	}
}
