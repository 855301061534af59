package engine

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Printer renders what dry-run mode would have done.
type Printer interface {
	PrintCommand(backend string, cmd Command)
	PrintHook(backend string, hook HookRef)
}

// TextPrinter writes plain dry-run output.
type TextPrinter struct {
	Out io.Writer
}

// PrintCommand writes the command line.
func (p TextPrinter) PrintCommand(backend string, cmd Command) {
	fmt.Fprintf(p.Out, "[%s] %s\n", backend, cmd)
}

// PrintHook writes the hook's source text.
func (p TextPrinter) PrintHook(backend string, hook HookRef) {
	fmt.Fprintf(p.Out, "[%s] hook:\n%s\n", backend, hook.Describe())
}

// HookScheduler runs post-install hooks in discovery order.
type HookScheduler struct {
	dryRun    bool
	printer   Printer
	observers []Observer
	logger    zerolog.Logger
}

// NewHookScheduler creates a hook scheduler. In dry-run mode hooks are printed, not executed.
func NewHookScheduler(dryRun bool, printer Printer, logger zerolog.Logger, observers ...Observer) *HookScheduler {
	return &HookScheduler{
		dryRun:    dryRun,
		printer:   printer,
		observers: observers,
		logger:    logger,
	}
}

// Run executes hooks in order. The first failing hook aborts the rest and is
// returned as a HookFailed error; installs that preceded it stay in place.
func (s *HookScheduler) Run(ctx context.Context, backend string, hooks []HookRef) error {
	for i, hook := range hooks {
		if s.dryRun {
			s.printer.PrintHook(backend, hook)
			s.notify(ctx, HookResult{Backend: backend, Hook: summarize(hook), Status: RunStatusDryRun})
			continue
		}

		if err := ctx.Err(); err != nil {
			return NewHookFailed(summarize(hook), err).WithBackend(backend).WithCode(ErrCodeCanceled)
		}

		s.logger.Debug().Str("backend", backend).Int("index", i).Msg("running hook")
		start := time.Now()
		err := hook.Execute(ctx)
		result := HookResult{
			Backend:  backend,
			Hook:     summarize(hook),
			Status:   RunStatusSucceeded,
			Err:      err,
			Duration: time.Since(start),
		}
		if err != nil {
			result.Status = RunStatusFailed
			s.notify(ctx, result)
			skipped := len(hooks) - i - 1
			if skipped > 0 {
				s.logger.Warn().Str("backend", backend).Int("skipped", skipped).Msg("aborting remaining hooks")
			}
			return NewHookFailed(result.Hook, err).WithBackend(backend).WithDetail("skipped", skipped)
		}
		s.notify(ctx, result)
	}
	return nil
}

func (s *HookScheduler) notify(ctx context.Context, result HookResult) {
	for _, o := range s.observers {
		o.HookFinished(ctx, result)
	}
}

// summarize returns the first line of a hook's source.
func summarize(hook HookRef) string {
	desc := strings.TrimSpace(hook.Describe())
	if i := strings.IndexByte(desc, '\n'); i >= 0 {
		desc = desc[:i]
	}
	return desc
}
