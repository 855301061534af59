package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/supac/supac/pkg/stores"
	"github.com/supac/supac/pkg/ui"
)

func newHistoryCommand(g *globalOptions) *cobra.Command {
	var (
		output string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past sync, clean and clean-cache runs",
		Example: `  # Show the last 5 runs
  supac history --limit 5

  # Show what one run did
  supac history show 0b6f2c9e-...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := ui.ParseFormat(output)
			if err != nil {
				return err
			}
			store, done, err := openHistory(cmd, g)
			if err != nil {
				return err
			}
			defer done()

			runs, err := store.ListRuns(cmd.Context(), limit, 0)
			if err != nil {
				return err
			}
			return ui.RenderRuns(cmd.OutOrStdout(), format, runs)
		},
	}

	cmd.PersistentFlags().StringVarP(&output, "output", "o", "text", "output format (text, json, yaml)")
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "number of runs to list")

	cmd.AddCommand(newHistoryShowCommand(g, &output))
	cmd.AddCommand(newHistoryPruneCommand(g))
	return cmd
}

func newHistoryShowCommand(g *globalOptions, output *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the operations and hooks of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := ui.ParseFormat(*output)
			if err != nil {
				return err
			}
			store, done, err := openHistory(cmd, g)
			if err != nil {
				return err
			}
			defer done()

			ctx := cmd.Context()
			run, err := store.GetRun(ctx, args[0])
			if errors.Is(err, stores.ErrNotFound) {
				return fmt.Errorf("no run with id %s", args[0])
			}
			if err != nil {
				return err
			}
			ops, err := store.ListOperationsByRun(ctx, run.ID)
			if err != nil {
				return err
			}
			hooks, err := store.ListHookRunsByRun(ctx, run.ID)
			if err != nil {
				return err
			}
			return ui.RenderRunDetail(cmd.OutOrStdout(), format, ui.RunDetail{Run: run, Operations: ops, Hooks: hooks})
		},
	}
}

func newHistoryPruneCommand(g *globalOptions) *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if keep < 0 {
				return fmt.Errorf("--keep must not be negative")
			}
			store, done, err := openHistory(cmd, g)
			if err != nil {
				return err
			}
			defer done()

			deleted, err := store.PruneRuns(cmd.Context(), keep)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d runs\n", deleted)
			return nil
		},
	}

	cmd.Flags().IntVar(&keep, "keep", 50, "number of runs to keep")
	return cmd
}

// openHistory opens the run history database. The returned func closes the
// store and flushes telemetry.
func openHistory(cmd *cobra.Command, g *globalOptions) (*stores.SQLiteStore, func(), error) {
	a, err := newApp(cmd, g)
	if err != nil {
		return nil, nil, err
	}
	if !a.settings.History.Enabled {
		a.close()
		return nil, nil, fmt.Errorf("run history is disabled (history.enabled = false)")
	}
	store, err := stores.Open(cmd.Context(), a.settings.History.Path)
	if err != nil {
		a.close()
		return nil, nil, err
	}
	return store, func() {
		_ = store.Close()
		a.close()
	}, nil
}
