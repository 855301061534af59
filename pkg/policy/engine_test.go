package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/supac/supac/pkg/engine"
)

func newTestEngine(t *testing.T, protected ...string) *Engine {
	t.Helper()
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger, protected)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return eng
}

func removeOp(backend string, items ...string) engine.Operation {
	return engine.Operation{
		Backend: backend,
		Action:  engine.ActionRemove,
		Items:   items,
		Command: engine.Command{Args: append([]string{"paru", "--remove", "--recursive"}, items...)},
	}
}

func TestNewEngine(t *testing.T) {
	eng := newTestEngine(t)

	policies := eng.ListPolicies()
	expected := []string{"protected-items", "package-manager"}
	if len(policies) != len(expected) {
		t.Fatalf("expected %d built-in policies, got %d", len(expected), len(policies))
	}
	for i, name := range expected {
		if policies[i].Name != name {
			t.Errorf("policy %d = %s, want %s", i, policies[i].Name, name)
		}
	}
}

func TestEvaluateProtectedItems(t *testing.T) {
	eng := newTestEngine(t, "linux", "base")
	ctx := context.Background()

	tests := []struct {
		name    string
		op      engine.Operation
		allowed bool
	}{
		{"remove protected", removeOp("arch", "htop", "linux"), false},
		{"remove unprotected", removeOp("arch", "htop"), true},
		{"install protected", engine.Operation{Backend: "arch", Action: engine.ActionInstall, Items: []string{"linux"}}, true},
		{"remove package manager", removeOp("arch", "paru"), false},
		{"unpin protected", engine.Operation{Backend: "flatpak", Action: engine.ActionUnpin, Items: []string{"base"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := eng.Evaluate(ctx, tt.op)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if decision.Allowed != tt.allowed {
				t.Errorf("Allowed = %v, want %v (reasons %v)", decision.Allowed, tt.allowed, decision.Reasons)
			}
			if !decision.Allowed && len(decision.Reasons) == 0 {
				t.Error("denied decision should carry reasons")
			}
		})
	}
}

func TestLoadCustomPolicies(t *testing.T) {
	dir := t.TempDir()
	rego := `# Kernels are managed by hand.
package local.kernels

import rego.v1

deny contains msg if {
	input.removes
	some item in input.items
	startswith(item, "linux-")
	msg := sprintf("kernel %s is managed by hand", [item])
}
`
	if err := os.WriteFile(filepath.Join(dir, "kernels.rego"), []byte(rego), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600); err != nil {
		t.Fatal(err)
	}

	eng := newTestEngine(t)
	if err := eng.LoadPolicies(context.Background(), []string{dir, filepath.Join(dir, "missing")}); err != nil {
		t.Fatalf("LoadPolicies: %v", err)
	}

	policies := eng.ListPolicies()
	last := policies[len(policies)-1]
	if last.Name != "kernels" || last.Description != "Kernels are managed by hand." {
		t.Errorf("unexpected custom policy: %+v", last)
	}

	decision, err := eng.Evaluate(context.Background(), removeOp("arch", "linux-lts"))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if decision.Allowed {
		t.Error("custom policy should deny kernel removal")
	}
}

func TestSetPoliciesRejectsInvalidRego(t *testing.T) {
	eng := newTestEngine(t)
	err := eng.SetPolicies(context.Background(), []Policy{{Name: "broken", Rego: "package x\n deny contains if {"}})
	if err == nil {
		t.Fatal("expected compile error")
	}
	if len(eng.ListPolicies()) != 2 {
		t.Error("failed load must keep the previous policy set")
	}
}

func TestWarningSeverityDoesNotBlock(t *testing.T) {
	eng := newTestEngine(t)
	err := eng.SetPolicies(context.Background(), []Policy{{
		Name:     "notice",
		Severity: SeverityWarning,
		Rego: `package local.notice

import rego.v1

deny contains "system scope changes are logged" if input.scope == "system"
`,
	}})
	if err != nil {
		t.Fatalf("SetPolicies: %v", err)
	}

	op := engine.Operation{Backend: "flatpak", Action: engine.ActionInstall, Scope: engine.ScopeSystem, Items: []string{"org.x"}}
	decision, err := eng.Evaluate(context.Background(), op)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !decision.Allowed {
		t.Errorf("warning violations must not deny: %v", decision.Reasons)
	}
	if got := eng.Check(context.Background(), NewInput(op, nil)); len(got) != 1 {
		t.Errorf("expected one violation, got %d", len(got))
	}
}
