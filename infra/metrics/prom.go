package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/transitops/darp/core/metrics"
)

// PromSink records dispatch outcomes in Prometheus metrics.
type PromSink struct {
	epochs    *prometheus.CounterVec
	rejected  prometheus.Counter
	objective *prometheus.GaugeVec
	solveTime *prometheus.HistogramVec
	repairs   *prometheus.CounterVec
	fleet     prometheus.Gauge
}

// NewPromSink registers dispatch metrics on the default Prometheus
// registerer. The HTTP exporter is started separately.
func NewPromSink() (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	epochs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_epochs_total",
		Help: "Decision epochs committed",
	}, []string{"algorithm", "fallback"})
	rejected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_rejected_trips_total",
		Help: "Trips left unassigned at their epoch",
	})
	objective := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dispatch_plan_objective",
		Help: "Objective value of the last committed plan",
	}, []string{"algorithm"})
	solveTime := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_solve_seconds",
		Help:    "Wall-clock time spent producing a plan",
		Buckets: prometheus.DefBuckets,
	}, []string{"algorithm"})
	repairs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_repairs_total",
		Help: "Destroy-and-repair cycles by destroy method and outcome",
	}, []string{"method", "outcome"})
	fleet := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dispatch_fleet_vehicles",
		Help: "Vehicles in the active fleet",
	})

	s := &PromSink{epochs: epochs, rejected: rejected, objective: objective, solveTime: solveTime, repairs: repairs, fleet: fleet}
	for _, c := range []prometheus.Collector{epochs, rejected, objective, solveTime, repairs, fleet} {
		if err := register(reg, c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func register(reg prometheus.Registerer, c prometheus.Collector) error {
	if err := reg.Register(c); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}

// RecordEpoch updates the epoch counters and gauges.
func (s *PromSink) RecordEpoch(ev coremetrics.EpochResult) error {
	s.epochs.WithLabelValues(ev.Algorithm, strconv.FormatBool(ev.Fallback)).Inc()
	s.rejected.Add(float64(ev.Rejected))
	s.objective.WithLabelValues(ev.Algorithm).Set(ev.Objective)
	s.solveTime.WithLabelValues(ev.Algorithm).Observe(ev.SolveTime.Seconds())
	return nil
}

// RecordRepair counts one destroy-and-repair cycle.
func (s *PromSink) RecordRepair(ev coremetrics.RepairEvent) error {
	s.repairs.WithLabelValues(ev.Method, ev.Outcome).Inc()
	return nil
}

// RecordFleetSize sets the fleet gauge.
func (s *PromSink) RecordFleetSize(size int) error {
	s.fleet.Set(float64(size))
	return nil
}
