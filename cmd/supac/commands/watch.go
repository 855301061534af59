package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/supac/supac/pkg/config"
	"github.com/supac/supac/pkg/engine"
	"github.com/supac/supac/pkg/ui"
)

func newWatchCommand(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-validate and preview a sync whenever the configuration changes",
		Long: `Watch package.star, config.toml and the policy directory. After every change
the configuration is validated and the commands a sync would run are printed.
Nothing is installed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			defer a.close()

			preview := func(ctx context.Context) {
				fmt.Fprintf(a.stdout, "\n--- %s changed\n", a.paths.Dir)
				if err := previewSync(ctx, cmd, a); err != nil {
					ui.RenderError(cmd.ErrOrStderr(), err)
				}
			}
			preview(cmd.Context())

			err = config.NewWatcher(a.paths, a.logger, a.settings.Policy.Dir).Run(cmd.Context(), preview)
			if cmd.Context().Err() != nil {
				return nil
			}
			return err
		},
	}
	return cmd
}

// previewSync reloads the settings, validates the configuration and
// dry-runs a sync. Logging and telemetry keep the settings they started with.
func previewSync(ctx context.Context, cmd *cobra.Command, a *app) error {
	settings, err := config.Load(a.paths)
	if err != nil {
		return err
	}
	a.settings = settings

	if err := validateSpec(ctx, cmd, a, ui.FormatText); err != nil {
		return err
	}
	spec, err := a.loadSpec(ctx)
	if err != nil {
		return err
	}
	orch, err := a.orchestrator(ctx, engine.ExecuteOptions{DryRun: true})
	if err != nil {
		return err
	}
	_, err = orch.Run(ctx, engine.ModeSync, spec)
	return err
}
