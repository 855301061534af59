package policy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/rs/zerolog"

	"github.com/supac/supac/pkg/engine"
)

// Engine evaluates Rego policies against planned operations.
// It implements engine.Guard.
type Engine struct {
	mu        sync.RWMutex
	builtins  []*compiledPolicy
	custom    []*compiledPolicy
	protected []string
	logger    zerolog.Logger
}

// compiledPolicy represents a prepared Rego policy.
type compiledPolicy struct {
	policy   *Policy
	query    rego.PreparedEvalQuery
	compiled time.Time
}

var _ engine.Guard = (*Engine)(nil)

// NewEngine creates a policy engine holding the built-in policies.
// protected is the list of items no removal may touch.
func NewEngine(logger zerolog.Logger, protected []string) (*Engine, error) {
	e := &Engine{
		protected: append([]string(nil), protected...),
		logger:    logger.With().Str("component", "policy-engine").Logger(),
	}

	builtins := GetBuiltinPolicies()
	for i := range builtins {
		cp, err := compile(context.Background(), &builtins[i])
		if err != nil {
			return nil, fmt.Errorf("failed to compile built-in policy %s: %w", builtins[i].Name, err)
		}
		e.builtins = append(e.builtins, cp)
	}

	e.logger.Debug().Int("count", len(e.builtins)).Msg("Built-in policies loaded")
	return e, nil
}

// LoadPolicies replaces the user policies with those found under paths.
func (e *Engine) LoadPolicies(ctx context.Context, paths []string) error {
	policies, err := NewLoader(e.logger).LoadFromPaths(ctx, paths)
	if err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}
	return e.SetPolicies(ctx, policies)
}

// SetPolicies compiles and installs user policies, replacing the previous set.
// On error the previous set stays in place.
func (e *Engine) SetPolicies(ctx context.Context, policies []Policy) error {
	compiled := make([]*compiledPolicy, 0, len(policies))
	for i := range policies {
		cp, err := compile(ctx, &policies[i])
		if err != nil {
			return fmt.Errorf("failed to compile policy %s: %w", policies[i].Name, err)
		}
		compiled = append(compiled, cp)
	}

	e.mu.Lock()
	e.custom = compiled
	e.mu.Unlock()

	e.logger.Info().Int("count", len(compiled)).Msg("Policies loaded successfully")
	return nil
}

// ListPolicies returns all loaded policies, built-ins first.
func (e *Engine) ListPolicies() []Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Policy, 0, len(e.builtins)+len(e.custom))
	for _, cp := range e.builtins {
		out = append(out, *cp.policy)
	}
	for _, cp := range e.custom {
		out = append(out, *cp.policy)
	}
	return out
}

// Evaluate implements engine.Guard. Blocking violations deny the operation;
// other violations are logged.
func (e *Engine) Evaluate(ctx context.Context, op engine.Operation) (engine.Decision, error) {
	violations := e.Check(ctx, NewInput(op, e.protected))

	decision := engine.Decision{Allowed: true}
	for _, v := range violations {
		if v.Severity.Blocks() {
			decision.Allowed = false
			decision.Reasons = append(decision.Reasons, fmt.Sprintf("%s: %s", v.Policy, v.Message))
			continue
		}
		e.logger.Warn().Str("policy", v.Policy).Str("item", v.Item).Msg(v.Message)
	}
	return decision, nil
}

// Check evaluates every policy against input and returns all violations.
// A policy that fails to evaluate is logged and skipped.
func (e *Engine) Check(ctx context.Context, input Input) []Violation {
	e.mu.RLock()
	policies := make([]*compiledPolicy, 0, len(e.builtins)+len(e.custom))
	policies = append(policies, e.builtins...)
	policies = append(policies, e.custom...)
	e.mu.RUnlock()

	start := time.Now()
	var violations []Violation
	for _, cp := range policies {
		vs, err := evaluatePolicy(ctx, cp, input)
		if err != nil {
			e.logger.Error().Err(err).Str("policy", cp.policy.Name).Msg("Policy evaluation failed")
			continue
		}
		violations = append(violations, vs...)
	}

	e.logger.Debug().
		Str("backend", input.Backend).
		Str("action", input.Action).
		Int("violations", len(violations)).
		Dur("duration", time.Since(start)).
		Msg("Operation policy evaluation completed")
	return violations
}

// compile parses a policy and prepares its deny query.
func compile(ctx context.Context, policy *Policy) (*compiledPolicy, error) {
	module, err := ast.ParseModule(policy.Name, policy.Rego)
	if err != nil {
		return nil, fmt.Errorf("failed to parse policy: %w", err)
	}

	query, err := rego.New(
		rego.Module(policy.Name, policy.Rego),
		rego.Query(module.Package.Path.String()+".deny"),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare query: %w", err)
	}

	return &compiledPolicy{policy: policy, query: query, compiled: time.Now()}, nil
}

// evaluatePolicy evaluates a single compiled policy.
func evaluatePolicy(ctx context.Context, cp *compiledPolicy, input Input) ([]Violation, error) {
	results, err := cp.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("policy evaluation error: %w", err)
	}

	var violations []Violation
	for _, result := range results {
		if len(result.Expressions) == 0 {
			continue
		}
		denySet, ok := result.Expressions[0].Value.([]interface{})
		if !ok {
			continue
		}
		for _, d := range denySet {
			violations = append(violations, createViolation(cp.policy, d))
		}
	}
	return violations, nil
}

// createViolation creates a Violation from a deny result.
// A result is either a message string or an object with message, severity and item.
func createViolation(policy *Policy, result interface{}) Violation {
	violation := Violation{
		Policy:   policy.Name,
		Severity: policy.Severity,
	}

	switch v := result.(type) {
	case string:
		violation.Message = v
	case map[string]interface{}:
		if msg, ok := v["message"].(string); ok {
			violation.Message = msg
		}
		if sev, ok := v["severity"].(string); ok {
			violation.Severity = Severity(sev)
		}
		if item, ok := v["item"].(string); ok {
			violation.Item = item
		}
	default:
		violation.Message = fmt.Sprintf("%v", result)
	}

	return violation
}
