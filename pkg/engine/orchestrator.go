package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Mode is the top-level command being carried out.
type Mode string

const (
	// ModeSync installs configured items that are missing.
	ModeSync Mode = "sync"

	// ModeClean removes installed items that are not configured.
	ModeClean Mode = "clean"

	// ModeCleanCache cleans the caches of configured backends.
	ModeCleanCache Mode = "clean-cache"
)

// Registry is the ordered set of known backends.
type Registry struct {
	backends []Backend
	byName   map[string]Backend
}

// NewRegistry creates a registry. Backends are visited in the given order.
func NewRegistry(backends ...Backend) (*Registry, error) {
	r := &Registry{byName: make(map[string]Backend, len(backends))}
	for _, b := range backends {
		if _, dup := r.byName[b.Name()]; dup {
			return nil, fmt.Errorf("backend %q registered twice", b.Name())
		}
		r.byName[b.Name()] = b
		r.backends = append(r.backends, b)
	}
	return r, nil
}

// Backends returns the backends in registration order.
func (r *Registry) Backends() []Backend {
	return append([]Backend(nil), r.backends...)
}

// Lookup returns the backend registered under name.
func (r *Registry) Lookup(name string) (Backend, bool) {
	b, ok := r.byName[name]
	return b, ok
}

// Names returns the backend names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.backends))
	for i, b := range r.backends {
		names[i] = b.Name()
	}
	return names
}

// BackendOutcome is the result of one backend within a run.
type BackendOutcome struct {
	Backend    string `json:"backend"`
	Operations int    `json:"operations"`
	Hooks      int    `json:"hooks"`
	Err        error  `json:"-"`
}

// RunSummary describes a completed run.
type RunSummary struct {
	Mode     Mode             `json:"mode"`
	Outcomes []BackendOutcome `json:"outcomes"`
}

// Orchestrator runs each configured backend through plan and execution,
// one backend at a time.
type Orchestrator struct {
	registry *Registry
	executor *Executor
	logger   zerolog.Logger
	planned  []func(*Plan)
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(registry *Registry, executor *Executor, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{registry: registry, executor: executor, logger: logger}
}

// OnPlan registers fn to be called with every plan before it is executed.
func (o *Orchestrator) OnPlan(fn func(*Plan)) {
	o.planned = append(o.planned, fn)
}

// Run carries out mode for every backend present in config.
//
// Backends absent from config are skipped. A failing backend does not stop
// the following ones; all failures are returned together.
func (o *Orchestrator) Run(ctx context.Context, mode Mode, config map[string]any) (*RunSummary, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, string(mode))
	defer span.End()

	summary := &RunSummary{Mode: mode}
	var report Report

	for _, b := range o.registry.Backends() {
		value, ok := config[b.Name()]
		if !ok {
			o.logger.Debug().Str("backend", b.Name()).Msg("not configured")
			continue
		}
		outcome := o.runBackend(ctx, mode, b, value)
		report.Add(outcome.Err)
		summary.Outcomes = append(summary.Outcomes, outcome)
	}

	if err := report.ErrorOrNil(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, fmt.Sprintf("%d backend errors", report.Len()))
		return summary, err
	}
	span.SetStatus(codes.Ok, "")
	return summary, nil
}

func (o *Orchestrator) runBackend(ctx context.Context, mode Mode, b Backend, value any) BackendOutcome {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "backend "+b.Name())
	defer span.End()
	span.SetAttributes(attribute.String("backend", b.Name()), attribute.String("mode", string(mode)))

	logger := o.logger.With().Str("backend", b.Name()).Logger()
	outcome := BackendOutcome{Backend: b.Name()}

	plan, err := o.plan(ctx, mode, b, value)
	if err != nil {
		outcome.Err = withBackend(err, b.Name())
		logger.Error().Err(outcome.Err).Msg("planning failed")
		span.RecordError(outcome.Err)
		span.SetStatus(codes.Error, "planning failed")
		return outcome
	}

	outcome.Operations = len(plan.Operations)
	outcome.Hooks = plan.HookCount()
	logger.Info().Int("operations", outcome.Operations).Int("hooks", outcome.Hooks).Msg("planned")
	for _, fn := range o.planned {
		fn(plan)
	}

	if err := o.executor.Execute(ctx, plan); err != nil {
		outcome.Err = withBackend(err, b.Name())
		span.RecordError(outcome.Err)
		span.SetStatus(codes.Error, "execution failed")
	}
	return outcome
}

func (o *Orchestrator) plan(ctx context.Context, mode Mode, b Backend, value any) (*Plan, error) {
	switch mode {
	case ModeSync:
		return b.PlanSync(ctx, value)
	case ModeClean:
		return b.PlanClean(ctx, value)
	case ModeCleanCache:
		return b.PlanCleanCache(ctx, value)
	}
	return nil, fmt.Errorf("unknown mode %q", mode)
}

// Unmanaged lists, per configured backend, installed items the configuration does not cover.
func (o *Orchestrator) Unmanaged(ctx context.Context, config map[string]any) (map[string][]string, error) {
	out := make(map[string][]string)
	var report Report
	for _, b := range o.registry.Backends() {
		value, ok := config[b.Name()]
		if !ok {
			continue
		}
		items, err := b.Unmanaged(ctx, value)
		if err != nil {
			report.Add(withBackend(err, b.Name()))
			continue
		}
		out[b.Name()] = items
	}
	return out, report.ErrorOrNil()
}

// Validate parses every configured backend without probing.
// Keys in config that name no registered backend are logged and ignored.
func (o *Orchestrator) Validate(config map[string]any) ([]Summary, error) {
	var summaries []Summary
	var report Report
	keys := make([]string, 0, len(config))
	for key := range config {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if _, ok := o.registry.Lookup(key); !ok {
			o.logger.Warn().Str("key", key).Msg("ignoring unknown backend")
		}
	}
	for _, b := range o.registry.Backends() {
		value, ok := config[b.Name()]
		if !ok {
			continue
		}
		s, err := b.Validate(value)
		if err != nil {
			report.Add(withBackend(err, b.Name()))
			continue
		}
		summaries = append(summaries, s)
	}
	return summaries, report.ErrorOrNil()
}

func withBackend(err error, backend string) error {
	var e *EngineError
	if errors.As(err, &e) && e.Backend == "" {
		e.Backend = backend
	}
	return err
}
