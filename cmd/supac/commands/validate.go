package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/supac/supac/pkg/engine"
	"github.com/supac/supac/pkg/ui"
)

func newValidateCommand(g *globalOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:     "validate",
		Aliases: []string{"b"},
		Short:   "Validate the settings, policies and package spec",
		Long: `Validate the configuration without probing the machine.

This command checks:
  - config.toml against the settings schema
  - user policies compile
  - package.star evaluates
  - every backend entry parses, reporting per-backend counts`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := ui.ParseFormat(output)
			if err != nil {
				return err
			}
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			defer a.close()

			return validateSpec(cmd.Context(), cmd, a, format)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format (text, json, yaml)")
	return cmd
}

// validateSpec evaluates package.star and reports the parsed backends. It is
// shared with watch.
func validateSpec(ctx context.Context, cmd *cobra.Command, a *app, format ui.Format) error {
	if _, err := a.guard(ctx); err != nil {
		return err
	}
	spec, err := a.loadSpec(ctx)
	if err != nil {
		return err
	}
	registry, err := a.registry(engine.ExecuteOptions{DryRun: true})
	if err != nil {
		return err
	}
	summaries, runErr := engine.NewOrchestrator(registry, nil, a.logger).Validate(spec)
	if err := ui.RenderValidation(cmd.OutOrStdout(), format, summaries); err != nil {
		return err
	}
	return runErr
}
