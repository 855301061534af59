// Package arch reconciles packages and package groups through pacman or a
// pacman-compatible AUR helper such as paru or yay.
package arch

import (
	"context"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/supac/supac/pkg/config"
	"github.com/supac/supac/pkg/engine"
)

// BackendName is the configuration key of the arch backend.
const BackendName = "arch"

// Backend implements engine.Backend for Arch Linux.
type Backend struct {
	runner    engine.Runner
	pm        string
	noConfirm bool
	logger    zerolog.Logger
}

// New creates the arch backend. The package manager comes from the
// arch_package_manager setting.
func New(runner engine.Runner, settings *config.Settings, opts engine.ExecuteOptions, logger zerolog.Logger) *Backend {
	return &Backend{
		runner:    runner,
		pm:        settings.ArchPackageManager,
		noConfirm: opts.NoConfirm,
		logger:    logger.With().Str("backend", BackendName).Logger(),
	}
}

// Name implements engine.Backend.
func (b *Backend) Name() string { return BackendName }

// perms returns the permission level of state-changing commands. AUR helpers
// call sudo themselves; plain pacman needs it from us.
func (b *Backend) perms() engine.Perms {
	if filepath.Base(b.pm) == "pacman" {
		return engine.PermsRoot
	}
	return engine.PermsUser
}

func (b *Backend) command(args ...string) engine.Command {
	return engine.Command{Args: append([]string{b.pm}, args...), Perms: b.perms()}
}

func (b *Backend) withNoConfirm(args []string) []string {
	if b.noConfirm {
		return append(args, "--noconfirm")
	}
	return args
}

// reconcile parses value, probes the system and diffs the two.
func (b *Backend) reconcile(ctx context.Context, value any) (*Spec, engine.Result, error) {
	s, err := Parse(value, b.logger)
	if err != nil {
		return nil, engine.Result{}, err
	}
	installed, err := b.installed(ctx)
	if err != nil {
		return nil, engine.Result{}, err
	}
	desired, err := b.expand(ctx, s)
	if err != nil {
		return nil, engine.Result{}, err
	}
	return s, engine.Reconcile(desired, installed), nil
}

// PlanSync implements engine.Backend.
func (b *Backend) PlanSync(ctx context.Context, value any) (*engine.Plan, error) {
	_, res, err := b.reconcile(ctx, value)
	if err != nil {
		return nil, err
	}
	plan := engine.NewPlan(BackendName)
	if res.Idle() {
		b.logger.Debug().Msg("all packages installed")
		return plan, nil
	}

	install := b.withNoConfirm([]string{"--sync"})
	plan.Add(engine.Operation{
		Action:  engine.ActionInstall,
		Items:   res.ToInstall.Items(),
		Command: b.command(append(install, res.ToInstall.Items()...)...),
		Hooks:   res.Hooks,
	})
	plan.Add(engine.Operation{
		Action:  engine.ActionPromote,
		Items:   res.Promote.Items(),
		Command: b.command(append([]string{"--database", "--asexplicit"}, res.Promote.Items()...)...),
	})
	return plan, nil
}

// PlanClean implements engine.Backend.
func (b *Backend) PlanClean(ctx context.Context, value any) (*engine.Plan, error) {
	_, res, err := b.reconcile(ctx, value)
	if err != nil {
		return nil, err
	}
	plan := engine.NewPlan(BackendName)
	remove := b.withNoConfirm([]string{"--remove", "--recursive"})
	plan.Add(engine.Operation{
		Action:  engine.ActionRemove,
		Items:   res.ToRemove.Items(),
		Command: b.command(append(remove, res.ToRemove.Items()...)...),
	})
	return plan, nil
}

// PlanCleanCache implements engine.Backend.
func (b *Backend) PlanCleanCache(_ context.Context, value any) (*engine.Plan, error) {
	if _, err := Parse(value, b.logger); err != nil {
		return nil, err
	}
	plan := engine.NewPlan(BackendName)
	plan.Add(engine.Operation{
		Action:  engine.ActionCleanCache,
		Command: b.command(b.withNoConfirm([]string{"--sync", "--clean"})...),
	})
	return plan, nil
}

// Unmanaged implements engine.Backend.
func (b *Backend) Unmanaged(ctx context.Context, value any) ([]string, error) {
	_, res, err := b.reconcile(ctx, value)
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
	hooks := 0
	for _, p := range s.Packages {
		if p.Hook != nil {
			hooks++
		}
	}
	return engine.Summary{
		Backend: BackendName,
		Counts:  map[string]int{"packages": len(s.Packages)},
		Hooks:   hooks,
	}, nil
}
