package stores

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/supac/supac/pkg/engine"
)

// Recorder writes one run and its outcomes to the history. It implements
// engine.Observer. Storage failures are logged, never returned to the engine.
type Recorder struct {
	store  *SQLiteStore
	run    *Run
	logger zerolog.Logger
}

// StartRun creates a run record for command and returns its recorder.
func StartRun(ctx context.Context, store *SQLiteStore, command string, dryRun bool, logger zerolog.Logger) (*Recorder, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Command:   command,
		DryRun:    dryRun,
		Status:    engine.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := store.CreateRun(ctx, run); err != nil {
		return nil, err
	}
	return &Recorder{
		store:  store,
		run:    run,
		logger: logger.With().Str("component", "history").Str("run_id", run.ID).Logger(),
	}, nil
}

// RunID returns the identifier of the recorded run.
func (r *Recorder) RunID() string {
	return r.run.ID
}

// OperationFinished implements engine.Observer.
func (r *Recorder) OperationFinished(ctx context.Context, result engine.OperationResult) {
	op := result.Operation
	record := &OperationRecord{
		RunID:      r.run.ID,
		Backend:    op.Backend,
		Action:     op.Action,
		Scope:      op.Scope,
		Items:      op.Items,
		Argv:       op.Command.Argv(),
		Status:     result.Status,
		Error:      errString(result.Err),
		DurationMS: result.Duration.Milliseconds(),
	}
	if err := r.store.CreateOperation(context.WithoutCancel(ctx), record); err != nil {
		r.logger.Warn().Err(err).Str("backend", op.Backend).Msg("Failed to record operation")
	}
}

// HookFinished implements engine.Observer.
func (r *Recorder) HookFinished(ctx context.Context, result engine.HookResult) {
	record := &HookRecord{
		RunID:      r.run.ID,
		Backend:    result.Backend,
		Hook:       result.Hook,
		Status:     result.Status,
		Error:      errString(result.Err),
		DurationMS: result.Duration.Milliseconds(),
	}
	if err := r.store.CreateHookRun(context.WithoutCancel(ctx), record); err != nil {
		r.logger.Warn().Err(err).Str("backend", result.Backend).Msg("Failed to record hook")
	}
}

// Finish records the final status of the run.
func (r *Recorder) Finish(ctx context.Context, runErr error) {
	status := engine.RunStatusSucceeded
	switch {
	case errors.Is(runErr, context.Canceled):
		status = engine.RunStatusCancelled
	case runErr != nil:
		status = engine.RunStatusFailed
	case r.run.DryRun:
		status = engine.RunStatusDryRun
	}
	if err := r.store.FinishRun(context.WithoutCancel(ctx), r.run.ID, status, runErr); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to finish run")
	}
}
