// Package enginetest provides test doubles for the engine interfaces.
package enginetest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/supac/supac/pkg/engine"
)

// ErrExit is returned by FakeRunner for commands scripted to fail.
var ErrExit = errors.New("exit status 1")

// Call is one recorded invocation.
type Call struct {
	Argv     []string
	Captured bool
}

// String joins the argv with spaces.
func (c Call) String() string {
	return strings.Join(c.Argv, " ")
}

// FakeRunner records commands and answers them from a script keyed by the
// space-joined argv (including any sudo prefix).
type FakeRunner struct {
	mu      sync.Mutex
	outputs map[string]string
	fails   map[string]bool
	calls   []Call

	// OnRun, when set, is called for every passthrough command before it is recorded.
	OnRun func(argv []string)
}

// NewFakeRunner creates an empty runner. Unscripted commands succeed with no output.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		outputs: make(map[string]string),
		fails:   make(map[string]bool),
	}
}

// Respond scripts the stdout of a command.
func (f *FakeRunner) Respond(argv string, stdout string) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outputs[argv] = stdout
	return f
}

// Fail scripts a command to exit non-zero.
func (f *FakeRunner) Fail(argv string) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fails[argv] = true
	return f
}

// Output implements engine.Runner.
func (f *FakeRunner) Output(_ context.Context, cmd engine.Command) (string, error) {
	argv := cmd.Argv()
	key := strings.Join(argv, " ")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Argv: argv, Captured: true})
	if f.fails[key] {
		return "", fmt.Errorf("%s: %w", key, ErrExit)
	}
	return f.outputs[key], nil
}

// Run implements engine.Runner.
func (f *FakeRunner) Run(_ context.Context, cmd engine.Command) error {
	argv := cmd.Argv()
	key := strings.Join(argv, " ")
	if f.OnRun != nil {
		f.OnRun(argv)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Argv: argv})
	if f.fails[key] {
		return fmt.Errorf("%s: %w", key, ErrExit)
	}
	return nil
}

// Calls returns every recorded invocation.
func (f *FakeRunner) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Executed returns the space-joined argv of every passthrough invocation.
func (f *FakeRunner) Executed() []string {
	var out []string
	for _, c := range f.Calls() {
		if !c.Captured {
			out = append(out, c.String())
		}
	}
	return out
}

// Hook is a HookRef that records its executions.
type Hook struct {
	Source string
	Err    error

	mu    sync.Mutex
	runs  int
	onRun func()
}

// NewHook creates a hook with the given source text.
func NewHook(source string) *Hook {
	return &Hook{Source: source}
}

// OnRun registers a callback invoked at every execution.
func (h *Hook) OnRun(fn func()) *Hook {
	h.onRun = fn
	return h
}

// Execute implements engine.HookRef.
func (h *Hook) Execute(context.Context) error {
	h.mu.Lock()
	h.runs++
	fn := h.onRun
	h.mu.Unlock()
	if fn != nil {
		fn()
	}
	return h.Err
}

// Describe implements engine.HookRef.
func (h *Hook) Describe() string {
	return h.Source
}

// Runs returns how many times the hook executed.
func (h *Hook) Runs() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.runs
}

// Confirmer answers every prompt with a fixed value and records the prompts.
type Confirmer struct {
	Answer  bool
	Prompts []engine.Operation
}

// Confirm implements engine.Confirmer.
func (c *Confirmer) Confirm(_ context.Context, op engine.Operation) (bool, error) {
	c.Prompts = append(c.Prompts, op)
	return c.Answer, nil
}
