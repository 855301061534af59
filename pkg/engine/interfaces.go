package engine

import (
	"context"
)

// HookRef is user-authored code attached to an item, run after the item
// transitions into the installed state.
type HookRef interface {
	// Execute runs the hook.
	Execute(ctx context.Context) error

	// Describe returns the hook's source text for dry-run display.
	Describe() string
}

// Runner executes external commands.
type Runner interface {
	// Output runs the command and returns its captured stdout.
	// A non-zero exit status is returned as an error.
	Output(ctx context.Context, cmd Command) (string, error)

	// Run runs the command with stdio passed through to the terminal.
	Run(ctx context.Context, cmd Command) error
}

// Confirmer asks the user whether an operation may proceed.
type Confirmer interface {
	Confirm(ctx context.Context, op Operation) (bool, error)
}

// Decision is the verdict of a guard on one operation.
type Decision struct {
	Allowed bool     `json:"allowed"`
	Reasons []string `json:"reasons,omitempty"`
}

// Guard evaluates planned operations before they run.
type Guard interface {
	Evaluate(ctx context.Context, op Operation) (Decision, error)
}

// Observer is notified of execution outcomes. Implementations record
// history, metrics and similar side channels and must not fail the run.
type Observer interface {
	OperationFinished(ctx context.Context, result OperationResult)
	HookFinished(ctx context.Context, result HookResult)
}

// Backend reconciles declarative configuration against one package manager.
//
// Every method receives the backend's raw configuration value as produced by
// the script layer. Parsing, probing and reconciliation happen inside the
// planning methods; execution is left to the Executor.
type Backend interface {
	// Name returns the backend's configuration key (e.g. "arch").
	Name() string

	// PlanSync computes the operations that install missing items.
	PlanSync(ctx context.Context, value any) (*Plan, error)

	// PlanClean computes the operations that remove unmanaged items.
	PlanClean(ctx context.Context, value any) (*Plan, error)

	// PlanCleanCache computes the operations that clean the backend's caches.
	PlanCleanCache(ctx context.Context, value any) (*Plan, error)

	// Unmanaged lists installed items the configuration does not cover.
	Unmanaged(ctx context.Context, value any) ([]string, error)

	// Validate parses the configuration without probing and summarizes it.
	Validate(value any) (Summary, error)
}

// Summary describes a parsed backend configuration.
type Summary struct {
	Backend string         `json:"backend" yaml:"backend"`
	Counts  map[string]int `json:"counts" yaml:"counts"`
	Hooks   int            `json:"hooks" yaml:"hooks"`
}
