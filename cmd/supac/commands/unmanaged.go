package commands

import (
	"github.com/spf13/cobra"

	"github.com/supac/supac/pkg/engine"
	"github.com/supac/supac/pkg/ui"
)

func newUnmanagedCommand(g *globalOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:     "unmanaged",
		Aliases: []string{"u"},
		Short:   "List installed items the package spec does not cover",
		Long: `List, per configured backend, what clean would remove. Nothing is changed.`,
		Example: `  # List unmanaged items as YAML
  supac unmanaged -o yaml`,
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

			ctx := cmd.Context()
			spec, err := a.loadSpec(ctx)
			if err != nil {
				return err
			}
			registry, err := a.registry(engine.ExecuteOptions{DryRun: true})
			if err != nil {
				return err
			}
			orch := engine.NewOrchestrator(registry, nil, a.logger)

			extras, runErr := orch.Unmanaged(ctx, spec)
			if err := ui.RenderUnmanaged(cmd.OutOrStdout(), format, ui.UnmanagedReport(registry.Names(), extras)); err != nil {
				return err
			}
			return runErr
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format (text, json, yaml)")
	return cmd
}
