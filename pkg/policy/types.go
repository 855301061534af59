package policy

import (
	"github.com/supac/supac/pkg/engine"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is logged but does not block the operation.
	SeverityWarning Severity = "warning"

	// SeverityError blocks the operation.
	SeverityError Severity = "error"

	// SeverityCritical blocks the operation.
	SeverityCritical Severity = "critical"
)

// Blocks reports whether violations of this severity deny the operation.
func (s Severity) Blocks() bool {
	return s == SeverityError || s == SeverityCritical
}

// Policy is a Rego module whose deny rule is evaluated against every planned operation.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code. It must define a deny set.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Source is the file the policy was loaded from, empty for built-ins.
	Source string `json:"source,omitempty"`
}

// Violation is a single deny result.
type Violation struct {
	Policy   string   `json:"policy"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Item     string   `json:"item,omitempty"`
}

// Input is the document policies see as `input`.
type Input struct {
	// Backend is the backend that planned the operation (e.g. "arch").
	Backend string `json:"backend"`

	// Action is the kind of state change (e.g. "remove").
	Action string `json:"action"`

	// Removes is true for actions that delete installed state.
	Removes bool `json:"removes"`

	// Scope is "user", "system" or empty.
	Scope string `json:"scope,omitempty"`

	// Items are the packages, pins, targets or components affected.
	Items []string `json:"items"`

	// Argv is the full command line, including any sudo prefix.
	Argv []string `json:"argv"`

	// Root is true when the command runs through sudo.
	Root bool `json:"root"`

	// Protected is the configured list of items that must never be removed.
	Protected []string `json:"protected"`
}

// NewInput builds the policy input for an operation.
func NewInput(op engine.Operation, protected []string) Input {
	items := op.Items
	if items == nil {
		items = []string{}
	}
	if protected == nil {
		protected = []string{}
	}
	return Input{
		Backend:   op.Backend,
		Action:    string(op.Action),
		Removes:   op.Action.Removes(),
		Scope:     string(op.Scope),
		Items:     items,
		Argv:      op.Command.Argv(),
		Root:      op.Command.Perms == engine.PermsRoot,
		Protected: protected,
	}
}
