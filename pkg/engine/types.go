package engine

import (
	"strings"
	"time"
)

// Scope selects the installation root an operation applies to.
type Scope string

const (
	// ScopeUser targets the per-user installation root.
	ScopeUser Scope = "user"

	// ScopeSystem targets the machine-wide installation root.
	ScopeSystem Scope = "system"
)

// Flag returns the scope as a command-line flag (e.g. "--user").
func (s Scope) Flag() string {
	return "--" + string(s)
}

// Perms is the permission level a command runs with.
type Perms int

const (
	// PermsUser runs the command as the invoking user.
	PermsUser Perms = iota

	// PermsRoot runs the command through sudo.
	PermsRoot
)

// String returns a human-readable permission level.
func (p Perms) String() string {
	if p == PermsRoot {
		return "root"
	}
	return "user"
}

// Command is a single external program invocation.
type Command struct {
	// Args is the program followed by its arguments.
	Args []string `json:"args"`

	// Perms is the permission level. PermsRoot prefixes the argv with sudo.
	Perms Perms `json:"perms"`

	// HideStderr discards the program's stderr instead of passing it through.
	HideStderr bool `json:"hide_stderr,omitempty"`
}

// Argv returns the full command line, including the sudo prefix for root commands.
func (c Command) Argv() []string {
	if c.Perms == PermsRoot {
		return append([]string{"sudo"}, c.Args...)
	}
	return append([]string(nil), c.Args...)
}

// String renders the command line for display.
func (c Command) String() string {
	return strings.Join(c.Argv(), " ")
}

// Action is the kind of state change an operation performs.
type Action string

// Actions issued by the backends.
const (
	ActionInstall      Action = "install"
	ActionPromote      Action = "promote"
	ActionRemove       Action = "remove"
	ActionPin          Action = "pin"
	ActionUnpin        Action = "unpin"
	ActionAddRemote    Action = "add-remote"
	ActionAddTarget    Action = "add-target"
	ActionRemoveTarget Action = "remove-target"
	ActionAddComponent Action = "add-component"
	ActionRemoveComp   Action = "remove-component"
	ActionCleanCache   Action = "clean-cache"
)

// Removes reports whether the action deletes installed state.
func (a Action) Removes() bool {
	switch a {
	case ActionRemove, ActionUnpin, ActionRemoveTarget, ActionRemoveComp:
		return true
	}
	return false
}

// Operation is one planned command together with the hooks that become
// eligible once it succeeds.
type Operation struct {
	// Backend is the name of the backend that planned this operation.
	Backend string `json:"backend"`

	// Action is the kind of state change.
	Action Action `json:"action"`

	// Scope is the installation root, empty when the backend has none.
	Scope Scope `json:"scope,omitempty"`

	// Items are the packages, pins, targets or components affected.
	Items []string `json:"items,omitempty"`

	// Command is the invocation that performs the change.
	Command Command `json:"command"`

	// Hooks run after Command returns success, in order.
	Hooks []HookRef `json:"-"`

	// Prompt asks the user before running the command unless confirmation is disabled.
	// Backends whose tools prompt on their own leave this unset.
	Prompt bool `json:"prompt,omitempty"`

	// Batch groups prompted operations that are confirmed together. The
	// first operation of a batch asks once for the items of all of them.
	Batch string `json:"batch,omitempty"`
}

// Plan is the ordered list of operations one backend needs for one invocation.
type Plan struct {
	// Backend is the backend name.
	Backend string `json:"backend"`

	// Operations run sequentially in this order.
	Operations []Operation `json:"operations"`
}

// NewPlan creates an empty plan for a backend.
func NewPlan(backend string) *Plan {
	return &Plan{Backend: backend}
}

// Add appends an operation. Operations without items are dropped unless
// the action is a cache cleanup, which carries no items.
func (p *Plan) Add(op Operation) {
	if len(op.Items) == 0 && op.Action != ActionCleanCache {
		return
	}
	op.Backend = p.Backend
	p.Operations = append(p.Operations, op)
}

// Empty reports whether the plan has nothing to do.
func (p *Plan) Empty() bool {
	return p == nil || len(p.Operations) == 0
}

// batch merges the operations of one batch into the operation shown when
// asking for confirmation. It has no command of its own.
func (p *Plan) batch(name string) Operation {
	merged := Operation{Backend: p.Backend, Prompt: true, Batch: name}
	for _, op := range p.Operations {
		if op.Batch != name {
			continue
		}
		if merged.Action == "" {
			merged.Action = op.Action
			merged.Scope = op.Scope
		}
		merged.Items = append(merged.Items, op.Items...)
	}
	return merged
}

// HookCount returns the number of hooks attached to the plan.
func (p *Plan) HookCount() int {
	n := 0
	for _, op := range p.Operations {
		n += len(op.Hooks)
	}
	return n
}

// OperationResult records the outcome of one executed operation.
type OperationResult struct {
	Operation Operation     `json:"operation"`
	Status    RunStatus     `json:"status"`
	Err       error         `json:"-"`
	Duration  time.Duration `json:"duration"`
}

// HookResult records the outcome of one hook execution.
type HookResult struct {
	Backend  string        `json:"backend"`
	Hook     string        `json:"hook"`
	Status   RunStatus     `json:"status"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
}
