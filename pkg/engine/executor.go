package engine

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "github.com/supac/supac/pkg/engine"

// ExecuteOptions controls how plans are carried out.
type ExecuteOptions struct {
	// DryRun prints commands and hooks instead of running them.
	DryRun bool

	// NoConfirm skips confirmation prompts and passes the backends' own
	// non-interactive flags.
	NoConfirm bool
}

// Executor runs the operations of a plan and then the hooks of the
// operations that succeeded.
type Executor struct {
	runner    Runner
	opts      ExecuteOptions
	confirmer Confirmer
	guard     Guard
	printer   Printer
	observers []Observer
	logger    zerolog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithConfirmer sets the prompt used for operations that ask before running.
func WithConfirmer(c Confirmer) ExecutorOption {
	return func(e *Executor) { e.confirmer = c }
}

// WithGuard sets the policy guard consulted before every operation.
func WithGuard(g Guard) ExecutorOption {
	return func(e *Executor) { e.guard = g }
}

// WithPrinter sets the dry-run printer.
func WithPrinter(p Printer) ExecutorOption {
	return func(e *Executor) { e.printer = p }
}

// WithObserver registers an observer of operation and hook outcomes.
func WithObserver(o Observer) ExecutorOption {
	return func(e *Executor) { e.observers = append(e.observers, o) }
}

// WithLogger sets the executor's logger.
func WithLogger(l zerolog.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = l }
}

// NewExecutor creates an executor around a command runner.
func NewExecutor(runner Runner, opts ExecuteOptions, options ...ExecutorOption) *Executor {
	e := &Executor{
		runner:  runner,
		opts:    opts,
		printer: TextPrinter{Out: os.Stdout},
		logger:  zerolog.Nop(),
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// Options returns the execution options.
func (e *Executor) Options() ExecuteOptions {
	return e.opts
}

// Execute runs a plan. An empty plan runs nothing.
//
// A failed command aborts the remaining operations of the plan. Hooks of the
// operations that completed before the failure still run. Operations denied
// by the guard are skipped and reported; operations the user declines are
// skipped silently. Operations of one batch are confirmed by a single prompt.
func (e *Executor) Execute(ctx context.Context, plan *Plan) error {
	if plan.Empty() {
		e.logger.Debug().Msg("nothing to do")
		return nil
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "execute "+plan.Backend)
	defer span.End()

	var report Report
	var hooks []HookRef
	answers := make(map[string]bool)

	for _, op := range plan.Operations {
		if err := ctx.Err(); err != nil {
			report.Add(NewOperationFailed(op.Command.Argv(), err).WithBackend(plan.Backend).WithCode(ErrCodeCanceled))
			break
		}

		if e.guard != nil {
			decision, err := e.guard.Evaluate(ctx, op)
			if err != nil {
				report.Add(err)
				e.notify(ctx, OperationResult{Operation: op, Status: RunStatusSkipped, Err: err})
				continue
			}
			if !decision.Allowed {
				denied := NewPolicyDenied(strings.Join(decision.Reasons, "; ")).
					WithBackend(plan.Backend).
					WithDetail("action", string(op.Action)).
					WithDetail("items", op.Items)
				e.logger.Warn().Str("action", string(op.Action)).Strs("items", op.Items).
					Strs("reasons", decision.Reasons).Msg("operation denied by policy")
				report.Add(denied)
				e.notify(ctx, OperationResult{Operation: op, Status: RunStatusSkipped, Err: denied})
				continue
			}
		}

		if e.opts.DryRun {
			e.printer.PrintCommand(plan.Backend, op.Command)
			hooks = append(hooks, op.Hooks...)
			e.notify(ctx, OperationResult{Operation: op, Status: RunStatusDryRun})
			continue
		}

		if op.Prompt && !e.opts.NoConfirm && e.confirmer != nil {
			ok, err := e.confirm(ctx, plan, op, answers)
			if err != nil {
				report.Add(err)
				break
			}
			if !ok {
				e.logger.Info().Str("action", string(op.Action)).Strs("items", op.Items).Msg("skipped by user")
				e.notify(ctx, OperationResult{Operation: op, Status: RunStatusSkipped})
				continue
			}
		}

		if err := e.run(ctx, op); err != nil {
			report.Add(err)
			break
		}
		hooks = append(hooks, op.Hooks...)
	}

	scheduler := NewHookScheduler(e.opts.DryRun, e.printer, e.logger, e.observers...)
	report.Add(scheduler.Run(ctx, plan.Backend, hooks))

	if err := report.ErrorOrNil(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// confirm asks whether op may run. Operations of a batch share the answer
// given for the first of them.
func (e *Executor) confirm(ctx context.Context, plan *Plan, op Operation, answers map[string]bool) (bool, error) {
	if op.Batch == "" {
		return e.confirmer.Confirm(ctx, op)
	}
	if ok, asked := answers[op.Batch]; asked {
		return ok, nil
	}
	ok, err := e.confirmer.Confirm(ctx, plan.batch(op.Batch))
	if err != nil {
		return false, err
	}
	answers[op.Batch] = ok
	return ok, nil
}

func (e *Executor) run(ctx context.Context, op Operation) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, string(op.Action))
	defer span.End()
	span.SetAttributes(
		attribute.String("backend", op.Backend),
		attribute.String("scope", string(op.Scope)),
		attribute.StringSlice("argv", op.Command.Argv()),
	)

	e.logger.Info().Str("action", string(op.Action)).Strs("argv", op.Command.Argv()).Msg("running")
	start := time.Now()
	err := e.runner.Run(ctx, op.Command)
	result := OperationResult{
		Operation: op,
		Status:    RunStatusSucceeded,
		Duration:  time.Since(start),
	}
	if err != nil {
		var failed *EngineError
		if !errors.As(err, &failed) || failed.Kind != KindOperationFailed {
			failed = NewOperationFailed(op.Command.Argv(), err)
		}
		failed.WithBackend(op.Backend)
		if len(op.Items) == 1 {
			failed.WithItem(op.Items[0])
		}
		result.Status = RunStatusFailed
		result.Err = failed
		e.notify(ctx, result)
		span.RecordError(failed)
		span.SetStatus(codes.Error, failed.Error())
		return failed
	}
	e.notify(ctx, result)
	return nil
}

func (e *Executor) notify(ctx context.Context, result OperationResult) {
	for _, o := range e.observers {
		o.OperationFinished(ctx, result)
	}
}
