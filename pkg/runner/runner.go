// Package runner executes external commands on the local machine.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/supac/supac/pkg/engine"
)

// ExitError reports a command that ran and exited non-zero.
type ExitError struct {
	Argv     []string
	ExitCode int
	Stderr   string
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s: exit status %d", strings.Join(e.Argv, " "), e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + strings.TrimSpace(e.Stderr)
	}
	return msg
}

// Config configures a Runner.
type Config struct {
	// Timeout bounds every command. Zero means no timeout.
	Timeout time.Duration

	// Stdout and Stderr receive passthrough output. They default to the
	// process's own streams.
	Stdout io.Writer
	Stderr io.Writer

	// Stdin is inherited by passthrough commands. Defaults to os.Stdin.
	Stdin io.Reader
}

// Runner runs commands with os/exec.
type Runner struct {
	cfg    Config
	logger zerolog.Logger
}

// New creates a runner.
func New(cfg Config, logger zerolog.Logger) *Runner {
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	if cfg.Stdin == nil {
		cfg.Stdin = os.Stdin
	}
	return &Runner{cfg: cfg, logger: logger}
}

// Output runs cmd and returns its stdout. stderr is passed through unless the
// command hides it; it is always captured into the returned error.
func (r *Runner) Output(ctx context.Context, cmd engine.Command) (string, error) {
	var stdout, stderr bytes.Buffer
	err := r.exec(ctx, cmd, nil, &stdout, &stderr)
	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			exitErr.Stderr = stderr.String()
		}
		return stdout.String(), err
	}
	if !cmd.HideStderr && stderr.Len() > 0 {
		_, _ = r.cfg.Stderr.Write(stderr.Bytes())
	}
	return stdout.String(), nil
}

// Run runs cmd with stdin, stdout and stderr attached to the terminal.
func (r *Runner) Run(ctx context.Context, cmd engine.Command) error {
	var stderr io.Writer = r.cfg.Stderr
	if cmd.HideStderr {
		stderr = io.Discard
	}
	return r.exec(ctx, cmd, r.cfg.Stdin, r.cfg.Stdout, stderr)
}

func (r *Runner) exec(ctx context.Context, cmd engine.Command, stdin io.Reader, stdout, stderr io.Writer) error {
	argv := cmd.Argv()
	if len(cmd.Args) == 0 {
		return fmt.Errorf("empty command")
	}

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	c := exec.CommandContext(ctx, argv[0], argv[1:]...)
	c.Stdin = stdin
	c.Stdout = stdout
	c.Stderr = stderr

	start := time.Now()
	err := c.Run()
	r.logger.Debug().Strs("argv", argv).Dur("duration", time.Since(start)).Err(err).Msg("command finished")

	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		code := engine.ErrCodeCanceled
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			code = engine.ErrCodeTimeout
		}
		return engine.NewOperationFailed(argv, ctxErr).WithCode(code)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Argv: argv, ExitCode: exitErr.ExitCode()}
	}
	return fmt.Errorf("failed to execute %s: %w", argv[0], err)
}
