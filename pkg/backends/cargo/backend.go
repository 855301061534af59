// Package cargo reconciles crates installed with cargo install or
// cargo-binstall.
package cargo

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/supac/supac/pkg/config"
	"github.com/supac/supac/pkg/engine"
)

// BackendName is the configuration key of the cargo backend.
const BackendName = "cargo"

// Backend implements engine.Backend for cargo.
type Backend struct {
	runner   engine.Runner
	binstall bool
	logger   zerolog.Logger
}

// New creates the cargo backend. cargo_use_binstall selects the installer.
func New(runner engine.Runner, settings *config.Settings, _ engine.ExecuteOptions, logger zerolog.Logger) *Backend {
	return &Backend{
		runner:   runner,
		binstall: settings.CargoUseBinstall,
		logger:   logger.With().Str("backend", BackendName).Logger(),
	}
}

// Name implements engine.Backend.
func (b *Backend) Name() string { return BackendName }

func (b *Backend) installer() string {
	if b.binstall {
		return "binstall"
	}
	return "install"
}

// InstallCommand builds the install invocation for one crate.
func (b *Backend) InstallCommand(pkg PackageSpec) engine.Command {
	args := []string{"cargo", b.installer()}
	if pkg.GitRemote != "" {
		args = append(args, "--git", pkg.GitRemote)
	}
	if pkg.AllFeatures {
		args = append(args, "--all-features")
	}
	if pkg.NoDefaultFeatures {
		args = append(args, "--no-default-features")
	}
	if len(pkg.Features) > 0 {
		args = append(args, "--features", strings.Join(pkg.Features, ","))
	}
	if b.binstall {
		args = append(args, "--no-confirm")
	}
	return engine.Command{Args: append(args, pkg.Name)}
}

func (b *Backend) reconcile(value any) (*Spec, engine.Result, error) {
	s, err := Parse(value, b.logger)
	if err != nil {
		return nil, engine.Result{}, err
	}
	installed, err := b.installed()
	if err != nil {
		return nil, engine.Result{}, err
	}
	desired := make([]engine.Desired, len(s.Packages))
	for i, p := range s.Packages {
		desired[i] = engine.Desired{Name: p.Name, Hook: p.Hook}
	}
	return s, engine.Reconcile(desired, installed), nil
}

// PlanSync implements engine.Backend. Each missing crate is installed by its
// own command, after which its hook becomes eligible. The user confirms the
// whole missing set once.
func (b *Backend) PlanSync(_ context.Context, value any) (*engine.Plan, error) {
	s, res, err := b.reconcile(value)
	if err != nil {
		return nil, err
	}
	plan := engine.NewPlan(BackendName)
	for _, pkg := range s.Packages {
		if !res.ToInstall.Has(pkg.Name) {
			continue
		}
		op := engine.Operation{
			Action:  engine.ActionInstall,
			Items:   []string{pkg.Name},
			Command: b.InstallCommand(pkg),
			Prompt:  true,
			Batch:   string(engine.ActionInstall),
		}
		if pkg.Hook != nil {
			op.Hooks = []engine.HookRef{pkg.Hook}
		}
		plan.Add(op)
	}
	return plan, nil
}

// PlanClean implements engine.Backend.
func (b *Backend) PlanClean(_ context.Context, value any) (*engine.Plan, error) {
	_, res, err := b.reconcile(value)
	if err != nil {
		return nil, err
	}
	plan := engine.NewPlan(BackendName)
	for _, name := range res.ToRemove.Items() {
		plan.Add(engine.Operation{
			Action:  engine.ActionRemove,
			Items:   []string{name},
			Command: engine.Command{Args: []string{"cargo", "uninstall", name}},
			Prompt:  true,
			Batch:   string(engine.ActionRemove),
		})
	}
	return plan, nil
}

// PlanCleanCache implements engine.Backend. Cleaning needs the cargo-cache
// subcommand; without it there is nothing to run.
func (b *Backend) PlanCleanCache(ctx context.Context, value any) (*engine.Plan, error) {
	if _, err := Parse(value, b.logger); err != nil {
		return nil, err
	}
	plan := engine.NewPlan(BackendName)
	probe := engine.Command{Args: []string{"cargo", "cache", "--help"}, HideStderr: true}
	if _, err := b.runner.Output(ctx, probe); err != nil {
		b.logger.Warn().Msg("cargo-cache not found, skipping cache cleanup")
		return plan, nil
	}
	plan.Add(engine.Operation{
		Action:  engine.ActionCleanCache,
		Command: engine.Command{Args: []string{"cargo", "cache", "--autoclean"}},
		Prompt:  true,
	})
	return plan, nil
}

// Unmanaged implements engine.Backend.
func (b *Backend) Unmanaged(_ context.Context, value any) ([]string, error) {
	_, res, err := b.reconcile(value)
	if err != nil {
		return nil, err
	}
	return res.ToRemove.Items(), nil
}

// Validate implements engine.Backend.
func (b *Backend) Validate(value any) (engine.Summary, error) {
	s, err := Parse(value, b.logger)
	if err != nil {
		return engine.Summary{}, err
	}
	summary := engine.Summary{
		Backend: BackendName,
		Counts:  map[string]int{"packages": len(s.Packages)},
	}
	for _, p := range s.Packages {
		if p.GitRemote != "" {
			summary.Counts["git"]++
		}
		if p.Hook != nil {
			summary.Hooks++
		}
	}
	return summary, nil
}
