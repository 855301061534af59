// Package backends assembles the package-manager backends supac knows about.
package backends

import (
	"github.com/rs/zerolog"

	"github.com/supac/supac/pkg/backends/arch"
	"github.com/supac/supac/pkg/backends/cargo"
	"github.com/supac/supac/pkg/backends/flatpak"
	"github.com/supac/supac/pkg/backends/rustup"
	"github.com/supac/supac/pkg/config"
	"github.com/supac/supac/pkg/engine"
)

// NewRegistry registers every backend in the fixed run order: arch, flatpak,
// cargo, rustup.
func NewRegistry(runner engine.Runner, settings *config.Settings, opts engine.ExecuteOptions, logger zerolog.Logger) (*engine.Registry, error) {
	return engine.NewRegistry(
		arch.New(runner, settings, opts, logger),
		flatpak.New(runner, settings, opts, logger),
		cargo.New(runner, settings, opts, logger),
		rustup.New(runner, settings, opts, logger),
	)
}
