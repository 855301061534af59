package commands

import (
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/supac/supac/pkg/engine"
	"github.com/supac/supac/pkg/stores"
	"github.com/supac/supac/pkg/telemetry"
	"github.com/supac/supac/pkg/ui"
)

// runOptions are the flags of the state-changing commands.
type runOptions struct {
	dryRun    bool
	noConfirm bool
}

func (o *runOptions) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&o.dryRun, "dry-run", "n", false, "print the commands and hooks instead of running them")
	cmd.Flags().BoolVarP(&o.noConfirm, "no-confirm", "y", false, "do not ask before changing anything")
}

func (o *runOptions) execute() engine.ExecuteOptions {
	return engine.ExecuteOptions{DryRun: o.dryRun, NoConfirm: o.noConfirm}
}

// runMode carries out sync, clean or clean-cache for every configured backend.
func runMode(cmd *cobra.Command, g *globalOptions, o *runOptions, mode engine.Mode) (err error) {
	a, err := newApp(cmd, g)
	if err != nil {
		return err
	}
	defer a.close()

	started := time.Now()
	ctx := cmd.Context()
	runID := uuid.NewString()

	var observers []engine.Observer
	if store := a.history(ctx); store != nil {
		defer store.Close()
		recorder, rerr := stores.StartRun(ctx, store, string(mode), o.dryRun, a.logger)
		if rerr != nil {
			a.logger.Warn().Err(rerr).Msg("Failed to record run")
		} else {
			runID = recorder.RunID()
			observers = append(observers, recorder)
			defer func() { recorder.Finish(ctx, err) }()
		}
	}

	ctx, span := a.telemetry.Tracer.StartRunSpan(ctx, runID, string(mode), o.dryRun)
	defer span.End()
	a.logger = a.logger.With().Str("run_id", runID).Logger()

	defer func() {
		telemetry.RecordError(span, err)
		a.telemetry.Metrics.RecordRun(string(mode), err, time.Since(started))
	}()

	spec, err := a.loadSpec(ctx)
	if err != nil {
		return err
	}
	orch, err := a.orchestrator(ctx, o.execute(), observers...)
	if err != nil {
		return err
	}

	summary, err := orch.Run(ctx, mode, spec)
	if summary != nil && !o.dryRun {
		ui.RenderRun(cmd.ErrOrStderr(), summary)
	}
	return err
}

func newSyncCommand(g *globalOptions) *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:     "sync",
		Aliases: []string{"s"},
		Short:   "Install everything the package spec lists",
		Long: `Install the packages, pins, remotes, toolchains, targets and components that
package.star lists but this machine lacks. Post-install hooks run after their
item is installed, in the order the spec lists them.

Packages the arch backend finds installed as dependencies are marked as
explicitly installed instead of being reinstalled.`,
		Example: `  # Show what would be installed
  supac sync --dry-run

  # Install without confirmation prompts
  supac sync -y`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMode(cmd, g, o, engine.ModeSync)
		},
	}
	o.bind(cmd)
	return cmd
}

func newCleanCommand(g *globalOptions) *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:     "clean",
		Aliases: []string{"c"},
		Short:   "Remove everything the package spec does not list",
		Long: `Remove explicitly installed items that package.star does not cover. Items
matched by a protected-items policy are never removed.`,
		Example: `  # Show what would be removed
  supac clean -n`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMode(cmd, g, o, engine.ModeClean)
		},
	}
	o.bind(cmd)
	return cmd
}

func newCleanCacheCommand(g *globalOptions) *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:     "clean-cache",
		Aliases: []string{"e"},
		Short:   "Clean the caches of the configured backends",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMode(cmd, g, o, engine.ModeCleanCache)
		},
	}
	o.bind(cmd)
	return cmd
}
