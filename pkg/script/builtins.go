package script

import (
	"context"
	"fmt"
	"os"

	"go.starlark.net/starlark"

	"github.com/supac/supac/pkg/engine"
)

const (
	localContext = "supac.context"
	localRunner  = "supac.runner"
)

// hookEnv returns the context and runner bound to a hook thread.
func hookEnv(thread *starlark.Thread, name string) (context.Context, engine.Runner, error) {
	runner, _ := thread.Local(localRunner).(engine.Runner)
	ctx, _ := thread.Local(localContext).(context.Context)
	if runner == nil || ctx == nil {
		return nil, nil, fmt.Errorf("%s: only available inside hooks", name)
	}
	return ctx, runner, nil
}

func argv(b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) ([]string, error) {
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("%s: unexpected keyword arguments", b.Name())
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%s: missing command", b.Name())
	}
	out := make([]string, len(args))
	for i, a := range args {
		s, ok := starlark.AsString(a)
		if !ok {
			return nil, fmt.Errorf("%s: argument %d must be a string, got %s", b.Name(), i+1, a.Type())
		}
		out[i] = s
	}
	return out, nil
}

func execute(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple, perms engine.Perms) (starlark.Value, error) {
	ctx, runner, err := hookEnv(thread, b.Name())
	if err != nil {
		return nil, err
	}
	cmd, err := argv(b, args, kwargs)
	if err != nil {
		return nil, err
	}
	if err := runner.Run(ctx, engine.Command{Args: cmd, Perms: perms}); err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return starlark.None, nil
}

// builtinRun implements run(*argv): runs a command as the invoking user.
func builtinRun(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	return execute(thread, b, args, kwargs, engine.PermsUser)
}

// builtinSudo implements sudo(*argv): runs a command through sudo.
func builtinSudo(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	return execute(thread, b, args, kwargs, engine.PermsRoot)
}

// builtinOutput implements output(*argv): runs a command and returns its stdout.
func builtinOutput(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	ctx, runner, err := hookEnv(thread, b.Name())
	if err != nil {
		return nil, err
	}
	cmd, err := argv(b, args, kwargs)
	if err != nil {
		return nil, err
	}
	out, err := runner.Output(ctx, engine.Command{Args: cmd})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return starlark.String(out), nil
}

// builtinEnv implements env(name, default=""): reads an environment variable.
func builtinEnv(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name, def string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "default?", &def); err != nil {
		return nil, err
	}
	if v, ok := os.LookupEnv(name); ok {
		return starlark.String(v), nil
	}
	return starlark.String(def), nil
}
