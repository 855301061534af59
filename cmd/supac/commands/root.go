// Package commands implements the supac command line.
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/supac/supac/pkg/ui"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configDir string
	verbose   int
	logLevel  string
	version   string
}

// Execute runs the root command. Errors are reported on stderr before being
// returned.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		ui.RenderError(os.Stderr, err)
	}
	return err
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	opts := &globalOptions{version: version}

	rootCmd := &cobra.Command{
		Use:   "supac",
		Short: "supac - declarative package management across package managers",
		Long: `supac reconciles a declarative package list against the
package managers installed on this machine.

The declaration lives in package.star inside the config directory and
defines one dict per backend:
  - arch     pacman-compatible package managers (paru, yay, pacman)
  - flatpak  remotes, runtime pins and applications
  - cargo    crates installed with cargo install or cargo-binstall
  - rustup   toolchains with their targets and components`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configDir, "config-dir", "c", "", "config directory (default $SUPAC_HOME, $XDG_CONFIG or ~/.config, joined with supac)")
	rootCmd.PersistentFlags().CountVarP(&opts.verbose, "verbose", "v", "increase log verbosity (-v info, -vv debug, -vvv trace)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(newSyncCommand(opts))
	rootCmd.AddCommand(newCleanCommand(opts))
	rootCmd.AddCommand(newCleanCacheCommand(opts))
	rootCmd.AddCommand(newUnmanagedCommand(opts))
	rootCmd.AddCommand(newValidateCommand(opts))
	rootCmd.AddCommand(newInitCommand(opts))
	rootCmd.AddCommand(newHistoryCommand(opts))
	rootCmd.AddCommand(newWatchCommand(opts))

	return rootCmd
}
