// Package metrics defines the recorder interfaces through which the
// dispatcher reports epoch outcomes, assignments, repair cycles and
// consensus rounds. Concrete sinks (Prometheus, InfluxDB) live under
// infra/metrics and register themselves in the sink factory.
package metrics
