package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/supac/supac/pkg/engine"
)

// Metrics provides Prometheus metrics for supac on a private registry.
// It implements engine.Observer.
type Metrics struct {
	config MetricsConfig

	runs        *prometheus.CounterVec
	runDuration *prometheus.HistogramVec

	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec

	hooks *prometheus.CounterVec

	errorsByKind *prometheus.CounterVec

	plannedItems *prometheus.GaugeVec

	lastRun prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) *Metrics {
	namespace := cfg.Namespace
	buckets := []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600}

	m := &Metrics{
		config:   cfg,
		registry: prometheus.NewRegistry(),

		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of runs by command and status",
			},
			[]string{"command", "status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of runs in seconds",
				Buckets:   buckets,
			},
			[]string{"command"},
		),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of backend operations by outcome",
			},
			[]string{"backend", "action", "status"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of backend operations in seconds",
				Buckets:   buckets,
			},
			[]string{"backend", "action"},
		),
		hooks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "hooks_total",
				Help:      "Total number of post-install hooks by outcome",
			},
			[]string{"backend", "status"},
		),
		errorsByKind: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of reported errors by kind",
			},
			[]string{"kind"},
		),
		plannedItems: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "planned_items",
				Help:      "Items planned in the last run by backend and action",
			},
			[]string{"backend", "action"},
		),
		lastRun: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the last run finished",
			},
		),
	}

	m.registry.MustRegister(
		m.runs,
		m.runDuration,
		m.operations,
		m.operationDuration,
		m.hooks,
		m.errorsByKind,
		m.plannedItems,
		m.lastRun,
	)

	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRun records a finished run.
func (m *Metrics) RecordRun(command string, err error, duration time.Duration) {
	status := string(engine.RunStatusSucceeded)
	if err != nil {
		status = string(engine.RunStatusFailed)
	}
	m.runs.WithLabelValues(command, status).Inc()
	m.runDuration.WithLabelValues(command).Observe(duration.Seconds())
	m.lastRun.SetToCurrentTime()
	m.RecordErrors(err)
}

// RecordErrors counts every classified error in err, including each error
// of an aggregate report.
func (m *Metrics) RecordErrors(err error) {
	if err == nil {
		return
	}
	var multi interface{ WrappedErrors() []error }
	if errors.As(err, &multi) {
		for _, e := range multi.WrappedErrors() {
			m.recordError(e)
		}
		return
	}
	m.recordError(err)
}

func (m *Metrics) recordError(err error) {
	kind := string(engine.KindOf(err))
	if kind == "" {
		kind = "unclassified"
	}
	m.errorsByKind.WithLabelValues(kind).Inc()
}

// RecordPlan records the item counts of a backend plan.
func (m *Metrics) RecordPlan(plan *engine.Plan) {
	if plan == nil {
		return
	}
	counts := make(map[engine.Action]int)
	for _, op := range plan.Operations {
		counts[op.Action] += len(op.Items)
	}
	for action, n := range counts {
		m.plannedItems.WithLabelValues(plan.Backend, string(action)).Set(float64(n))
	}
}

// OperationFinished implements engine.Observer.
func (m *Metrics) OperationFinished(_ context.Context, result engine.OperationResult) {
	op := result.Operation
	m.operations.WithLabelValues(op.Backend, string(op.Action), string(result.Status)).Inc()
	if result.Status == engine.RunStatusSucceeded || result.Status == engine.RunStatusFailed {
		m.operationDuration.WithLabelValues(op.Backend, string(op.Action)).Observe(result.Duration.Seconds())
	}
}

// HookFinished implements engine.Observer.
func (m *Metrics) HookFinished(_ context.Context, result engine.HookResult) {
	m.hooks.WithLabelValues(result.Backend, string(result.Status)).Inc()
}

// WriteTextfile writes the registry to the configured file. It does nothing
// when no file is configured.
func (m *Metrics) WriteTextfile() error {
	if m.config.File == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(m.config.File), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(m.config.File, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
