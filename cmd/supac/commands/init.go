package commands

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/supac/supac/pkg/config"
)

//go:embed templates/package.star
var packageTemplate []byte

func newInitCommand(g *globalOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the config directory with default settings and a package spec",
		Long: `Initialize the supac config directory.

This command writes:
  - config.toml with the built-in defaults
  - package.star, a commented example declaration
  - an empty policies directory for user Rego policies

Existing files are kept unless --force is given.`,
		Example: `  # Initialize the default config directory
  supac init

  # Initialize a custom directory, overwriting existing files
  supac init -c ./dotfiles/supac --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := config.ResolvePaths(g.configDir)
			if err != nil {
				return err
			}
			log.Debug().Str("dir", paths.Dir).Bool("force", force).Msg("Initializing config directory")

			out := cmd.OutOrStdout()
			if err := os.MkdirAll(paths.PoliciesDir(), 0o755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", paths.PoliciesDir(), err)
			}

			wrote, err := writeIfMissing(paths.SettingsFile(), force, config.WriteDefaultSettings)
			if err != nil {
				return err
			}
			report(out, paths.SettingsFile(), wrote)

			wrote, err = writeIfMissing(paths.SpecFile(), force, func(path string) error {
				return os.WriteFile(path, packageTemplate, 0o644)
			})
			if err != nil {
				return err
			}
			report(out, paths.SpecFile(), wrote)

			fmt.Fprintf(out, "\nEdit %s, then run `supac sync --dry-run`.\n", paths.SpecFile())
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite existing files")
	return cmd
}

// writeIfMissing calls write unless path exists and force is false.
func writeIfMissing(path string, force bool, write func(string) error) (bool, error) {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return false, fmt.Errorf("failed to stat %s: %w", path, err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := write(path); err != nil {
		return false, err
	}
	return true, nil
}

func report(out io.Writer, path string, wrote bool) {
	if wrote {
		fmt.Fprintf(out, "✓ Created %s\n", path)
		return
	}
	fmt.Fprintf(out, "- Kept existing %s\n", path)
}
