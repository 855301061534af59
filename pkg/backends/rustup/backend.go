// Package rustup reconciles Rust toolchains and their targets and
// components.
package rustup

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/supac/supac/pkg/config"
	"github.com/supac/supac/pkg/engine"
)

// BackendName is the configuration key of the rustup backend.
const BackendName = "rustup"

// Backend implements engine.Backend for rustup.
type Backend struct {
	runner   engine.Runner
	defaults *engine.Set
	logger   zerolog.Logger
}

// New creates the rustup backend. rustup_default_components lists the
// components that are never pruned.
func New(runner engine.Runner, settings *config.Settings, _ engine.ExecuteOptions, logger zerolog.Logger) *Backend {
	return &Backend{
		runner:   runner,
		defaults: engine.NewSet(settings.RustupDefaultComponents...),
		logger:   logger.With().Str("backend", BackendName).Logger(),
	}
}

// Name implements engine.Backend.
func (b *Backend) Name() string { return BackendName }

func rustup(args ...string) engine.Command {
	return engine.Command{Args: append([]string{"rustup"}, args...)}
}

// match pairs a configured toolchain with the installed one it matches.
type match struct {
	spec      ToolchainSpec
	installed string
}

// matchAll pairs every configured toolchain with the first installed
// toolchain that starts with its id. It also returns the installed
// toolchains no configured id matches.
func matchAll(s *Spec, installed []string) ([]match, []string) {
	claimed := make(map[string]bool)
	matches := make([]match, 0, len(s.Toolchains))
	for _, tc := range s.Toolchains {
		m := match{spec: tc}
		for _, name := range installed {
			if MatchToolchain(name, tc.ID) {
				m.installed = name
				break
			}
		}
		matches = append(matches, m)
	}
	var extra []string
	for _, name := range installed {
		for _, tc := range s.Toolchains {
			if MatchToolchain(name, tc.ID) {
				claimed[name] = true
				break
			}
		}
		if !claimed[name] {
			extra = append(extra, name)
		}
	}
	return matches, extra
}

func (b *Backend) reconcile(ctx context.Context, value any) ([]match, []string, error) {
	s, err := Parse(value, b.logger)
	if err != nil {
		return nil, nil, err
	}
	installed, err := b.toolchains(ctx)
	if err != nil {
		return nil, nil, err
	}
	matches, extra := matchAll(s, installed)
	return matches, extra, nil
}

// PlanSync implements engine.Backend. Missing toolchains are installed with
// their targets and components; matched toolchains get what they lack.
func (b *Backend) PlanSync(ctx context.Context, value any) (*engine.Plan, error) {
	matches, _, err := b.reconcile(ctx, value)
	if err != nil {
		return nil, err
	}
	plan := engine.NewPlan(BackendName)
	for _, m := range matches {
		toolchain := m.installed
		targets := engine.NewSet(m.spec.Targets...)
		components := engine.NewSet(m.spec.Components...)

		if toolchain == "" {
			toolchain = m.spec.ID
			plan.Add(engine.Operation{
				Action:  engine.ActionInstall,
				Items:   []string{m.spec.ID},
				Command: rustup("toolchain", "install", m.spec.ID),
				Prompt:  true,
			})
			components = components.Difference(b.defaults)
		} else {
			state, err := b.state(ctx, toolchain)
			if err != nil {
				return nil, err
			}
			targets = targets.Difference(state.targets)
			components = components.Difference(state.components)
		}

		plan.Add(engine.Operation{
			Action:  engine.ActionAddTarget,
			Items:   targets.Items(),
			Command: rustup(append([]string{"target", "add", "--toolchain", toolchain}, targets.Items()...)...),
			Prompt:  true,
		})
		plan.Add(engine.Operation{
			Action:  engine.ActionAddComponent,
			Items:   components.Items(),
			Command: rustup(append([]string{"component", "add", "--toolchain", toolchain}, components.Items()...)...),
			Prompt:  true,
		})
	}
	return plan, nil
}

// pruning is what clean would remove from one matched toolchain.
type pruning struct {
	toolchain  string
	targets    []string
	components []string
}

func (b *Backend) prune(ctx context.Context, matches []match) ([]pruning, error) {
	var out []pruning
	for _, m := range matches {
		if m.installed == "" {
			continue
		}
		state, err := b.state(ctx, m.installed)
		if err != nil {
			return nil, err
		}
		keepTargets := engine.NewSet(m.spec.Targets...)
		keepTargets.Add(state.host)
		keepComponents := engine.NewSet(m.spec.Components...)
		keepComponents.Union(b.defaults)
		out = append(out, pruning{
			toolchain:  m.installed,
			targets:    state.targets.Difference(keepTargets).Items(),
			components: state.components.Difference(keepComponents).Items(),
		})
	}
	return out, nil
}

// PlanClean implements engine.Backend. The host target and the default
// components are never removed.
func (b *Backend) PlanClean(ctx context.Context, value any) (*engine.Plan, error) {
	matches, extra, err := b.reconcile(ctx, value)
	if err != nil {
		return nil, err
	}
	plan := engine.NewPlan(BackendName)
	for _, name := range extra {
		plan.Add(engine.Operation{
			Action:  engine.ActionRemove,
			Items:   []string{name},
			Command: rustup("toolchain", "uninstall", name),
			Prompt:  true,
		})
	}
	prunings, err := b.prune(ctx, matches)
	if err != nil {
		return nil, err
	}
	for _, p := range prunings {
		plan.Add(engine.Operation{
			Action:  engine.ActionRemoveTarget,
			Items:   p.targets,
			Command: rustup(append([]string{"target", "remove", "--toolchain", p.toolchain}, p.targets...)...),
			Prompt:  true,
		})
		plan.Add(engine.Operation{
			Action:  engine.ActionRemoveComp,
			Items:   p.components,
			Command: rustup(append([]string{"component", "remove", "--toolchain", p.toolchain}, p.components...)...),
			Prompt:  true,
		})
	}
	return plan, nil
}

// PlanCleanCache implements engine.Backend. rustup keeps no cache of its
// own, so the plan is always empty.
func (b *Backend) PlanCleanCache(_ context.Context, value any) (*engine.Plan, error) {
	if _, err := Parse(value, b.logger); err != nil {
		return nil, err
	}
	b.logger.Debug().Msg("nothing to clean")
	return engine.NewPlan(BackendName), nil
}

// Unmanaged implements engine.Backend.
func (b *Backend) Unmanaged(ctx context.Context, value any) ([]string, error) {
	matches, extra, err := b.reconcile(ctx, value)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, name := range extra {
		out = append(out, "toolchain "+name)
	}
	prunings, err := b.prune(ctx, matches)
	if err != nil {
		return nil, err
	}
	for _, p := range prunings {
		for _, t := range p.targets {
			out = append(out, fmt.Sprintf("%s: target %s", p.toolchain, t))
		}
		for _, c := range p.components {
			out = append(out, fmt.Sprintf("%s: component %s", p.toolchain, c))
		}
	}
	return out, nil
}

// Validate implements engine.Backend.
func (b *Backend) Validate(value any) (engine.Summary, error) {
	s, err := Parse(value, b.logger)
	if err != nil {
		return engine.Summary{}, err
	}
	summary := engine.Summary{
		Backend: BackendName,
		Counts:  map[string]int{"toolchains": len(s.Toolchains)},
	}
	for _, tc := range s.Toolchains {
		summary.Counts["targets"] += len(tc.Targets)
		summary.Counts["components"] += len(tc.Components)
	}
	return summary, nil
}
