package engine_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"github.com/supac/supac/pkg/engine"
	"github.com/supac/supac/pkg/engine/enginetest"
)

type fakeBackend struct {
	name    string
	planErr error
	items   []string
	seen    []any
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) PlanSync(_ context.Context, value any) (*engine.Plan, error) {
	f.seen = append(f.seen, value)
	if f.planErr != nil {
		return nil, f.planErr
	}
	plan := engine.NewPlan(f.name)
	plan.Add(engine.Operation{
		Action:  engine.ActionInstall,
		Items:   f.items,
		Command: engine.Command{Args: append([]string{f.name, "install"}, f.items...)},
	})
	return plan, nil
}

func (f *fakeBackend) PlanClean(ctx context.Context, value any) (*engine.Plan, error) {
	return engine.NewPlan(f.name), nil
}

func (f *fakeBackend) PlanCleanCache(ctx context.Context, value any) (*engine.Plan, error) {
	return engine.NewPlan(f.name), nil
}

func (f *fakeBackend) Unmanaged(ctx context.Context, value any) ([]string, error) {
	return []string{"extra-" + f.name}, nil
}

func (f *fakeBackend) Validate(value any) (engine.Summary, error) {
	return engine.Summary{Backend: f.name}, nil
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	if _, err := engine.NewRegistry(&fakeBackend{name: "arch"}, &fakeBackend{name: "arch"}); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestOrchestratorContinuesAfterBackendFailure(t *testing.T) {
	arch := &fakeBackend{name: "arch", planErr: engine.NewConfigError("packages must be a list", nil)}
	flatpak := &fakeBackend{name: "flatpak", items: []string{"org.gnome.Calculator"}}
	cargo := &fakeBackend{name: "cargo", items: []string{"ripgrep"}}

	registry, err := engine.NewRegistry(arch, flatpak, cargo)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	runner := enginetest.NewFakeRunner().Fail("flatpak install org.gnome.Calculator")
	orch := engine.NewOrchestrator(registry, engine.NewExecutor(runner, engine.ExecuteOptions{}), zerolog.Nop())

	summary, err := orch.Run(context.Background(), engine.ModeSync, map[string]any{
		"arch":    map[string]any{},
		"flatpak": map[string]any{},
		"cargo":   map[string]any{},
	})
	if err == nil {
		t.Fatal("expected aggregate error")
	}
	if len(summary.Outcomes) != 3 {
		t.Fatalf("every configured backend should run, got %d outcomes", len(summary.Outcomes))
	}

	want := []string{"flatpak install org.gnome.Calculator", "cargo install ripgrep"}
	if got := runner.Executed(); !reflect.DeepEqual(got, want) {
		t.Errorf("Executed = %v, want %v", got, want)
	}

	if !engine.IsConfig(summary.Outcomes[0].Err) {
		t.Errorf("arch outcome should be a config error, got %v", summary.Outcomes[0].Err)
	}
	if !engine.IsOperationFailed(summary.Outcomes[1].Err) {
		t.Errorf("flatpak outcome should be an operation failure, got %v", summary.Outcomes[1].Err)
	}
	if summary.Outcomes[2].Err != nil {
		t.Errorf("cargo should succeed, got %v", summary.Outcomes[2].Err)
	}
}

func TestOrchestratorSkipsUnconfiguredBackends(t *testing.T) {
	arch := &fakeBackend{name: "arch"}
	rustup := &fakeBackend{name: "rustup"}
	registry, _ := engine.NewRegistry(arch, rustup)
	orch := engine.NewOrchestrator(registry, engine.NewExecutor(enginetest.NewFakeRunner(), engine.ExecuteOptions{}), zerolog.Nop())

	if _, err := orch.Run(context.Background(), engine.ModeSync, map[string]any{"rustup": map[string]any{}}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(arch.seen) != 0 {
		t.Error("unconfigured backend must not be planned")
	}
	if len(rustup.seen) != 1 {
		t.Error("configured backend should be planned once")
	}
}

func TestOrchestratorUnmanagedAndValidate(t *testing.T) {
	registry, _ := engine.NewRegistry(&fakeBackend{name: "arch"}, &fakeBackend{name: "cargo"})
	orch := engine.NewOrchestrator(registry, engine.NewExecutor(enginetest.NewFakeRunner(), engine.ExecuteOptions{}), zerolog.Nop())
	config := map[string]any{"cargo": map[string]any{}, "helpers": map[string]any{}}

	extras, err := orch.Unmanaged(context.Background(), config)
	if err != nil {
		t.Fatalf("Unmanaged: %v", err)
	}
	if !reflect.DeepEqual(extras, map[string][]string{"cargo": {"extra-cargo"}}) {
		t.Errorf("Unmanaged = %v", extras)
	}

	summaries, err := orch.Validate(config)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(summaries) != 1 || summaries[0].Backend != "cargo" {
		t.Errorf("Validate = %+v", summaries)
	}
}

func TestOrchestratorOnPlan(t *testing.T) {
	registry, _ := engine.NewRegistry(&fakeBackend{name: "cargo", items: []string{"ripgrep", "fd-find"}})
	orch := engine.NewOrchestrator(registry, engine.NewExecutor(enginetest.NewFakeRunner(), engine.ExecuteOptions{DryRun: true}), zerolog.Nop())

	var plans []*engine.Plan
	orch.OnPlan(func(p *engine.Plan) { plans = append(plans, p) })

	if _, err := orch.Run(context.Background(), engine.ModeSync, map[string]any{"cargo": map[string]any{}}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(plans) != 1 || plans[0].Backend != "cargo" || len(plans[0].Operations) != 1 {
		t.Errorf("OnPlan saw %+v", plans)
	}
}
