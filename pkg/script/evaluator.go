// Package script evaluates package declaration files written in Starlark.
//
// A declaration file defines one top-level dict per backend:
//
//	arch = {
//	    "packages": ["git", ["neovim", lambda: run("nvim", "--headless", "+Lazy! sync", "+qa")]],
//	}
//
// Top-level values are converted into plain Go values (see Evaluate). Starlark
// functions become *Hook values that backends schedule as post-install hooks.
package script

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/supac/supac/pkg/engine"
)

const defaultTimeout = 30 * time.Second

// Evaluator executes declaration scripts.
type Evaluator struct {
	timeout time.Duration
	runner  engine.Runner
	out     io.Writer
	logger  zerolog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithTimeout bounds script evaluation. Hooks are bounded by their context instead.
func WithTimeout(d time.Duration) Option {
	return func(e *Evaluator) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithOutput sets where print() writes.
func WithOutput(w io.Writer) Option {
	return func(e *Evaluator) { e.out = w }
}

// NewEvaluator creates an evaluator. runner serves the run(), sudo() and
// output() builtins available inside hooks.
func NewEvaluator(runner engine.Runner, logger zerolog.Logger, opts ...Option) *Evaluator {
	e := &Evaluator{
		timeout: defaultTimeout,
		runner:  runner,
		out:     os.Stdout,
		logger:  logger.With().Str("component", "script").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// LoadFile evaluates the script at path.
func (e *Evaluator) LoadFile(ctx context.Context, path string) (map[string]any, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read package spec: %w", err)
	}
	return e.Evaluate(ctx, path, src)
}

// Evaluate executes src and returns its public globals as Go values.
//
// Globals whose names start with an underscore are skipped, as are values
// with no Go counterpart (builtins, modules). Functions become *Hook values.
func (e *Evaluator) Evaluate(ctx context.Context, filename string, src []byte) (map[string]any, error) {
	evalCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type outcome struct {
		globals map[string]any
		err     error
	}
	done := make(chan outcome, 1)
	thread := e.newThread("load")

	go func() {
		globals, err := e.evaluateSync(thread, filename, src)
		done <- outcome{globals, err}
	}()

	select {
	case <-evalCtx.Done():
		thread.Cancel(evalCtx.Err().Error())
		<-done
		return nil, fmt.Errorf("package spec evaluation aborted: %w", evalCtx.Err())
	case res := <-done:
		return res.globals, res.err
	}
}

func (e *Evaluator) evaluateSync(thread *starlark.Thread, filename string, src []byte) (map[string]any, error) {
	predeclared := e.predeclared()

	file, prog, err := starlark.SourceProgram(filename, src, predeclared.Has)
	if err != nil {
		return nil, fmt.Errorf("failed to parse package spec: %w", err)
	}
	functions := inspectFunctions(file, src)

	globals, err := prog.Init(thread, predeclared)
	if err != nil {
		return nil, fmt.Errorf("package spec execution failed: %w", err)
	}
	globals.Freeze()

	conv := converter{eval: e, functions: functions}
	output := make(map[string]any, len(globals))
	for _, name := range globals.Keys() {
		if name[0] == '_' {
			continue
		}
		value, err := conv.fromStarlark(globals[name])
		if err != nil {
			if _, unsupported := err.(unsupportedError); unsupported {
				e.logger.Debug().Str("global", name).Msg("skipping global with no record form")
				continue
			}
			return nil, fmt.Errorf("failed to convert %s: %w", name, err)
		}
		output[name] = value
	}
	return output, nil
}

func (e *Evaluator) newThread(name string) *starlark.Thread {
	return &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			fmt.Fprintln(e.out, msg)
		},
	}
}

func (e *Evaluator) predeclared() starlark.StringDict {
	return starlark.StringDict{
		"struct": starlarkstruct.Default,
		"run":    starlark.NewBuiltin("run", builtinRun),
		"sudo":   starlark.NewBuiltin("sudo", builtinSudo),
		"output": starlark.NewBuiltin("output", builtinOutput),
		"env":    starlark.NewBuiltin("env", builtinEnv),
	}
}
