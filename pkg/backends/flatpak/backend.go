// Package flatpak reconciles flatpak remotes, runtime pins and applications
// in the user and system installations.
package flatpak

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/supac/supac/pkg/config"
	"github.com/supac/supac/pkg/engine"
)

// BackendName is the configuration key of the flatpak backend.
const BackendName = "flatpak"

// Backend implements engine.Backend for flatpak.
type Backend struct {
	runner            engine.Runner
	defaultSystemwide bool
	noConfirm         bool
	logger            zerolog.Logger
}

// New creates the flatpak backend. flatpak_default_systemwide sets the scope
// of entries that do not choose one.
func New(runner engine.Runner, settings *config.Settings, opts engine.ExecuteOptions, logger zerolog.Logger) *Backend {
	return &Backend{
		runner:            runner,
		defaultSystemwide: settings.FlatpakDefaultSystemwide,
		noConfirm:         opts.NoConfirm,
		logger:            logger.With().Str("backend", BackendName).Logger(),
	}
}

// Name implements engine.Backend.
func (b *Backend) Name() string { return BackendName }

func (b *Backend) parse(value any) (*Spec, error) {
	return Parse(value, b.defaultSystemwide, b.logger)
}

func (b *Backend) assumeYes(args []string) []string {
	if b.noConfirm {
		return append(args, "--assumeyes")
	}
	return args
}

func command(args ...string) engine.Command {
	return engine.Command{Args: append([]string{"flatpak"}, args...)}
}

// PlanSync implements engine.Backend. Per scope, user first: missing remotes
// are added, missing pins are pinned and their runtimes installed, then
// missing packages are installed.
func (b *Backend) PlanSync(ctx context.Context, value any) (*engine.Plan, error) {
	s, err := b.parse(value)
	if err != nil {
		return nil, err
	}
	plan := engine.NewPlan(BackendName)
	for _, scope := range Scopes {
		if err := b.planRemotes(ctx, plan, s, scope); err != nil {
			return nil, err
		}
		pins, packages := s.PinsIn(scope), s.PackagesIn(scope)
		if len(pins) == 0 && len(packages) == 0 {
			continue
		}
		installed, err := b.installed(ctx, scope)
		if err != nil {
			return nil, err
		}
		if err := b.planPins(ctx, plan, pins, installed, scope); err != nil {
			return nil, err
		}
		b.planPackages(plan, packages, installed, scope)
	}
	return plan, nil
}

func (b *Backend) planRemotes(ctx context.Context, plan *engine.Plan, s *Spec, scope engine.Scope) error {
	remotes := s.RemotesIn(scope)
	if len(remotes) == 0 {
		return nil
	}
	existing, err := b.remotes(ctx, scope)
	if err != nil {
		return err
	}
	for _, r := range remotes {
		if existing.Has(r.Name) {
			continue
		}
		plan.Add(engine.Operation{
			Action:  engine.ActionAddRemote,
			Scope:   scope,
			Items:   []string{r.Name},
			Command: command("remote-add", "--if-not-exists", scope.Flag(), r.Name, r.URL),
		})
	}
	return nil
}

func (b *Backend) planPins(ctx context.Context, plan *engine.Plan, pins []PinSpec, installed *engine.Set, scope engine.Scope) error {
	if len(pins) == 0 {
		return nil
	}
	existing, err := b.pins(ctx, scope)
	if err != nil {
		return err
	}

	var runtimes []string
	var hooks []engine.HookRef
	for _, pin := range pins {
		if pinned(pin, existing) {
			continue
		}
		plan.Add(engine.Operation{
			Action:  engine.ActionPin,
			Scope:   scope,
			Items:   []string{pin.Pattern()},
			Command: command("pin", scope.Flag(), pin.Pattern()),
		})
		if installed.Has(pin.ID) {
			continue
		}
		runtimes = append(runtimes, pin.ID)
		if pin.Hook != nil {
			hooks = append(hooks, pin.Hook)
		}
	}

	install := b.assumeYes([]string{"install", scope.Flag()})
	plan.Add(engine.Operation{
		Action:  engine.ActionInstall,
		Scope:   scope,
		Items:   runtimes,
		Command: command(append(install, runtimes...)...),
		Hooks:   hooks,
	})
	return nil
}

func pinned(want PinSpec, existing []InstalledPin) bool {
	for _, have := range existing {
		if MatchPin(want, have) {
			return true
		}
	}
	return false
}

func (b *Backend) planPackages(plan *engine.Plan, packages []PackageSpec, installed *engine.Set, scope engine.Scope) {
	var free []string
	var freeHooks []engine.HookRef
	var fromRemote []PackageSpec
	for _, p := range packages {
		if installed.Has(p.Name) {
			continue
		}
		if p.Remote != "" {
			fromRemote = append(fromRemote, p)
			continue
		}
		free = append(free, p.Name)
		if p.Hook != nil {
			freeHooks = append(freeHooks, p.Hook)
		}
	}

	install := b.assumeYes([]string{"install", scope.Flag()})
	plan.Add(engine.Operation{
		Action:  engine.ActionInstall,
		Scope:   scope,
		Items:   free,
		Command: command(append(install, free...)...),
		Hooks:   freeHooks,
	})
	for _, p := range fromRemote {
		op := engine.Operation{
			Action:  engine.ActionInstall,
			Scope:   scope,
			Items:   []string{p.Name},
			Command: command(append(append([]string(nil), install...), p.Remote, p.Name)...),
		}
		if p.Hook != nil {
			op.Hooks = []engine.HookRef{p.Hook}
		}
		plan.Add(op)
	}
}

// extras holds what is installed in one scope but not configured.
type extras struct {
	scope engine.Scope
	pins  []InstalledPin
	apps  []string
}

func (b *Backend) extras(ctx context.Context, s *Spec) ([]extras, error) {
	var out []extras
	for _, scope := range Scopes {
		ex := extras{scope: scope}

		existing, err := b.pins(ctx, scope)
		if err != nil {
			return nil, err
		}
		configured := s.PinsIn(scope)
		for _, have := range existing {
			keep := false
			for _, want := range configured {
				if MatchPin(want, have) {
					keep = true
					break
				}
			}
			if !keep {
				ex.pins = append(ex.pins, have)
			}
		}

		apps, err := b.installedApps(ctx, scope)
		if err != nil {
			return nil, err
		}
		names := engine.NewSet()
		for _, p := range s.PackagesIn(scope) {
			names.Add(p.Name)
		}
		ex.apps = apps.Difference(names).Items()
		out = append(out, ex)
	}
	return out, nil
}

// PlanClean implements engine.Backend.
func (b *Backend) PlanClean(ctx context.Context, value any) (*engine.Plan, error) {
	s, err := b.parse(value)
	if err != nil {
		return nil, err
	}
	all, err := b.extras(ctx, s)
	if err != nil {
		return nil, err
	}
	plan := engine.NewPlan(BackendName)
	for _, ex := range all {
		for _, pin := range ex.pins {
			plan.Add(engine.Operation{
				Action:  engine.ActionUnpin,
				Scope:   ex.scope,
				Items:   []string{pin.Raw},
				Command: command("pin", "--remove", ex.scope.Flag(), pin.Raw),
			})
		}
		remove := b.assumeYes([]string{"remove", ex.scope.Flag(), "--delete-data"})
		plan.Add(engine.Operation{
			Action:  engine.ActionRemove,
			Scope:   ex.scope,
			Items:   ex.apps,
			Command: command(append(remove, ex.apps...)...),
		})
	}
	return plan, nil
}

// PlanCleanCache implements engine.Backend. Unused runtimes are removed from
// both installations.
func (b *Backend) PlanCleanCache(_ context.Context, value any) (*engine.Plan, error) {
	if _, err := b.parse(value); err != nil {
		return nil, err
	}
	plan := engine.NewPlan(BackendName)
	for _, scope := range Scopes {
		args := b.assumeYes([]string{"remove", "--delete-data", "--unused"})
		plan.Add(engine.Operation{
			Action:  engine.ActionCleanCache,
			Scope:   scope,
			Command: command(append(args, scope.Flag())...),
		})
	}
	return plan, nil
}

// Unmanaged implements engine.Backend.
func (b *Backend) Unmanaged(ctx context.Context, value any) ([]string, error) {
	s, err := b.parse(value)
	if err != nil {
		return nil, err
	}
	all, err := b.extras(ctx, s)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, ex := range all {
		for _, pin := range ex.pins {
			out = append(out, fmt.Sprintf("pin %s (%s)", pin.Raw, ex.scope))
		}
		for _, app := range ex.apps {
			out = append(out, fmt.Sprintf("%s (%s)", app, ex.scope))
		}
	}
	return out, nil
}

// Validate implements engine.Backend.
func (b *Backend) Validate(value any) (engine.Summary, error) {
	s, err := b.parse(value)
	if err != nil {
		return engine.Summary{}, err
	}
	summary := engine.Summary{
		Backend: BackendName,
		Counts: map[string]int{
			"remotes":  len(s.Remotes),
			"pins":     len(s.Pins),
			"packages": len(s.Packages),
		},
	}
	for _, p := range s.Pins {
		if p.Hook != nil {
			summary.Hooks++
		}
	}
	for _, p := range s.Packages {
		if p.Hook != nil {
			summary.Hooks++
		}
	}
	return summary, nil
}
