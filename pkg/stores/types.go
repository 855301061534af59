package stores

import (
	"time"

	"github.com/supac/supac/pkg/engine"
)

// Run is one invocation of a state-changing command.
type Run struct {
	ID          string           `json:"id" yaml:"id"`
	Command     string           `json:"command" yaml:"command"`
	DryRun      bool             `json:"dry_run" yaml:"dry_run"`
	Status      engine.RunStatus `json:"status" yaml:"status"`
	StartedAt   time.Time        `json:"started_at" yaml:"started_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	Error       *string          `json:"error,omitempty" yaml:"error,omitempty"`
}

// Duration returns how long the run took, or zero while it is still running.
func (r *Run) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// OperationRecord is one executed (or skipped) operation of a run.
type OperationRecord struct {
	ID         int64            `json:"id" yaml:"id"`
	RunID      string           `json:"run_id" yaml:"run_id"`
	Backend    string           `json:"backend" yaml:"backend"`
	Action     engine.Action    `json:"action" yaml:"action"`
	Scope      engine.Scope     `json:"scope,omitempty" yaml:"scope,omitempty"`
	Items      []string         `json:"items" yaml:"items"`
	Argv       []string         `json:"argv" yaml:"argv"`
	Status     engine.RunStatus `json:"status" yaml:"status"`
	Error      *string          `json:"error,omitempty" yaml:"error,omitempty"`
	DurationMS int64            `json:"duration_ms" yaml:"duration_ms"`
	CreatedAt  time.Time        `json:"created_at" yaml:"created_at"`
}

// HookRecord is one hook execution of a run.
type HookRecord struct {
	ID         int64            `json:"id" yaml:"id"`
	RunID      string           `json:"run_id" yaml:"run_id"`
	Backend    string           `json:"backend" yaml:"backend"`
	Hook       string           `json:"hook" yaml:"hook"`
	Status     engine.RunStatus `json:"status" yaml:"status"`
	Error      *string          `json:"error,omitempty" yaml:"error,omitempty"`
	DurationMS int64            `json:"duration_ms" yaml:"duration_ms"`
	CreatedAt  time.Time        `json:"created_at" yaml:"created_at"`
}

func errString(err error) *string {
	if err == nil {
		return nil
	}
	s := err.Error()
	return &s
}
