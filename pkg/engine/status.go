package engine

import (
	"encoding/json"
	"fmt"
)

// RunStatus is the outcome of a whole invocation, an operation or a hook.
type RunStatus string

const (
	// RunStatusRunning indicates the run is still executing.
	RunStatusRunning RunStatus = "running"

	// RunStatusSucceeded indicates the run or operation completed successfully.
	RunStatusSucceeded RunStatus = "succeeded"

	// RunStatusFailed indicates at least one backend reported an error.
	RunStatusFailed RunStatus = "failed"

	// RunStatusCancelled indicates the run was interrupted.
	RunStatusCancelled RunStatus = "cancelled"

	// RunStatusSkipped indicates an operation was declined or denied by policy.
	RunStatusSkipped RunStatus = "skipped"

	// RunStatusDryRun indicates the work was only printed.
	RunStatusDryRun RunStatus = "dry_run"
)

// IsTerminal returns true if the status represents a final state.
func (s RunStatus) IsTerminal() bool {
	return s != RunStatusRunning
}

// Validate checks if the run status is valid.
func (s RunStatus) Validate() error {
	switch s {
	case RunStatusRunning, RunStatusSucceeded, RunStatusFailed,
		RunStatusCancelled, RunStatusSkipped, RunStatusDryRun:
		return nil
	default:
		return fmt.Errorf("invalid run status: %s", s)
	}
}

// MarshalJSON implements custom JSON marshaling for type-safe enum serialization.
func (s RunStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (s *RunStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = RunStatus(str)
	return s.Validate()
}
