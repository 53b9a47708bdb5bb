// Package metrics provides operation metrics collection for MimirKB.
//
// The engine records every mutation and traversal through the Collector
// interface. The default collector is a no-op; wire in the Prometheus
// implementation when the surrounding process exposes a metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector receives operation outcomes from the engine.
type Collector interface {
	// RecordOperation counts one engine operation with its outcome status
	// ("ok", "error", or "partial" when side-effect warnings were reported).
	RecordOperation(operation, status string)

	// RecordDuration observes how long an operation took.
	RecordDuration(operation string, seconds float64)

	// RecordSideEffectWarnings counts best-effort side-effect failures
	// (mirror sync, reference rewrite) that did not fail the operation.
	RecordSideEffectWarnings(operation string, count int)

	// SetEntryCount tracks the current number of stored entries.
	SetEntryCount(count int64)
}

// Noop discards all metrics. The engine's default.
type Noop struct{}

func (Noop) RecordOperation(string, string)       {}
func (Noop) RecordDuration(string, float64)       {}
func (Noop) RecordSideEffectWarnings(string, int) {}
func (Noop) SetEntryCount(int64)                  {}

// PromCollector is a Prometheus-backed Collector.
type PromCollector struct {
	operationsTotal  *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	sideEffectsTotal *prometheus.CounterVec
	entryCount       prometheus.Gauge
	registry         *prometheus.Registry
}

// NewPromCollector creates a Prometheus collector with its own registry.
func NewPromCollector() *PromCollector {
	registry := prometheus.NewRegistry()

	operationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mimirkb_operations_total",
			Help: "Total engine operations by type and status",
		},
		[]string{"operation", "status"},
	)

	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mimirkb_operation_duration_seconds",
			Help:    "Engine operation duration by type",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
		[]string{"operation"},
	)

	sideEffectsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mimirkb_side_effect_warnings_total",
			Help: "Best-effort side-effect failures reported as warnings",
		},
		[]string{"operation"},
	)

	entryCount := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mimirkb_entries",
			Help: "Current number of stored entries",
		},
	)

	registry.MustRegister(operationsTotal, duration, sideEffectsTotal, entryCount)

	return &PromCollector{
		operationsTotal:  operationsTotal,
		duration:         duration,
		sideEffectsTotal: sideEffectsTotal,
		entryCount:       entryCount,
		registry:         registry,
	}
}

// Registry exposes the collector's Prometheus registry for HTTP handlers.
func (c *PromCollector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *PromCollector) RecordOperation(operation, status string) {
	c.operationsTotal.WithLabelValues(operation, status).Inc()
}

func (c *PromCollector) RecordDuration(operation string, seconds float64) {
	c.duration.WithLabelValues(operation).Observe(seconds)
}

func (c *PromCollector) RecordSideEffectWarnings(operation string, count int) {
	if count > 0 {
		c.sideEffectsTotal.WithLabelValues(operation).Add(float64(count))
	}
}

func (c *PromCollector) SetEntryCount(count int64) {
	c.entryCount.Set(float64(count))
}
