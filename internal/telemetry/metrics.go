/*

This file contains the Prometheus instrumentation for the optimization
engine. One Metrics value is created at startup, handed to the engine, and
exposed through the web server's /metrics endpoint.

*/

package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meridian-protocol/aco/internal/types"
)

// Metrics holds every Prometheus metric the engine publishes.
type Metrics struct {
	registry *prometheus.Registry

	CyclesTotal        prometheus.Counter
	CycleErrors        prometheus.Counter
	CycleDuration      prometheus.Histogram
	LastCycleUnix      prometheus.Gauge
	PositionsProcessed prometheus.Counter
	ActivePositions    prometheus.Gauge
	Outcomes           *prometheus.CounterVec
	SwapsExecuted      prometheus.Counter
}

// NewMetrics builds the metric set on the given registry. Production passes
// a fresh registry that also carries the Go runtime collectors; tests pass
// their own throwaway registries.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		CyclesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "aco_cycles_total",
			Help: "Total number of completed optimization cycles",
		}),
		CycleErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "aco_cycle_errors_total",
			Help: "Total number of cycles that aborted with an error",
		}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "aco_cycle_duration_seconds",
			Help:    "Duration of each optimization cycle in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 120.0},
		}),
		LastCycleUnix: factory.NewGauge(prometheus.GaugeOpts{
			Name: "aco_last_cycle_timestamp_seconds",
			Help: "Unix timestamp of the most recently completed cycle",
		}),
		PositionsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "aco_positions_processed_total",
			Help: "Total number of positions evaluated across all cycles",
		}),
		ActivePositions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "aco_active_positions",
			Help: "Number of positions processed in the latest cycle",
		}),
		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aco_position_outcomes_total",
			Help: "Total position outcomes by action",
		}, []string{"action"}),
		SwapsExecuted: factory.NewCounter(prometheus.CounterOpts{
			Name: "aco_swaps_executed_total",
			Help: "Total number of swap intents the executor confirmed executing",
		}),
	}
}

// NewProductionMetrics builds the metric set on a registry that also exposes
// the Go runtime and process collectors.
func NewProductionMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewMetrics(registry)
}

// Handler returns the HTTP handler serving this metric set.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCycle records everything a finished cycle contributes to the
// metric set.
func (m *Metrics) ObserveCycle(report types.CycleReport, duration time.Duration) {
	m.CyclesTotal.Inc()
	m.CycleDuration.Observe(duration.Seconds())
	m.LastCycleUnix.Set(float64(report.Timestamp.Unix()))
	m.PositionsProcessed.Add(float64(report.PositionsProcessed))
	m.ActivePositions.Set(float64(report.PositionsProcessed))

	for _, outcome := range report.Outcomes {
		m.Outcomes.WithLabelValues(string(outcome.Action)).Inc()
		if outcome.Receipt != nil && outcome.Receipt.Executed {
			m.SwapsExecuted.Inc()
		}
	}
}

// RecordCycleError counts a cycle that aborted before producing a report.
func (m *Metrics) RecordCycleError() {
	m.CycleErrors.Inc()
}
