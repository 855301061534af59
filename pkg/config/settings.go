package config

import (
	"time"
)

// Settings holds the global defaults threaded into backend parsing and probing,
// plus the tool's own logging, history, metrics, tracing and policy settings.
type Settings struct {
	// ArchPackageManager is the pacman-compatible front end used by the arch backend.
	ArchPackageManager string `koanf:"arch_package_manager" validate:"required"`

	// CargoUseBinstall installs crates with cargo-binstall instead of cargo install.
	CargoUseBinstall bool `koanf:"cargo_use_binstall"`

	// FlatpakDefaultSystemwide makes flatpak entries system-wide unless they say otherwise.
	FlatpakDefaultSystemwide bool `koanf:"flatpak_default_systemwide"`

	// RustupDefaultComponents are installed with every toolchain and never pruned.
	RustupDefaultComponents []string `koanf:"rustup_default_components" validate:"dive,required"`

	// CommandTimeout bounds every external command. Zero means no timeout.
	CommandTimeout time.Duration `koanf:"command_timeout" validate:"gte=0"`

	Log     LogSettings     `koanf:"log"`
	History HistorySettings `koanf:"history"`
	Metrics MetricsSettings `koanf:"metrics"`
	Tracing TracingSettings `koanf:"tracing"`
	Policy  PolicySettings  `koanf:"policy"`
}

// LogSettings configures zerolog output.
type LogSettings struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=console json"`
	File   string `koanf:"file"`
}

// HistorySettings configures the run history database.
type HistorySettings struct {
	Enabled bool `koanf:"enabled"`

	// Path is the sqlite database. Empty means $XDG_STATE_HOME/supac/history.db.
	Path string `koanf:"path"`
}

// MetricsSettings configures the Prometheus textfile export.
type MetricsSettings struct {
	// File receives the metrics at the end of every run. Empty disables the export.
	File string `koanf:"file"`
}

// TracingSettings configures OpenTelemetry.
type TracingSettings struct {
	Exporter string `koanf:"exporter" validate:"oneof=none stdout otlp"`
	Endpoint string `koanf:"endpoint" validate:"required_if=Exporter otlp"`
	Insecure bool   `koanf:"insecure"`
}

// PolicySettings configures the operation guard.
type PolicySettings struct {
	// Dir holds user *.rego policies. Empty means <config dir>/policies.
	Dir string `koanf:"dir"`

	// Protected items can never be removed.
	Protected []string `koanf:"protected"`
}

// DefaultComponents is the rustup component set every toolchain ships with.
var DefaultComponents = []string{"cargo", "clippy", "rust-docs", "rust-std", "rustc", "rustfmt"}

// defaults returns the built-in configuration as a koanf-ready map.
// It is also the content of a freshly written config.toml.
func defaults() map[string]any {
	return map[string]any{
		"arch_package_manager":       "paru",
		"cargo_use_binstall":         false,
		"flatpak_default_systemwide": false,
		"rustup_default_components":  append([]string(nil), DefaultComponents...),
		"command_timeout":            "0s",
		"log": map[string]any{
			"level":  "warn",
			"format": "console",
			"file":   "",
		},
		"history": map[string]any{
			"enabled": true,
			"path":    "",
		},
		"metrics": map[string]any{
			"file": "",
		},
		"tracing": map[string]any{
			"exporter": "none",
			"endpoint": "",
			"insecure": false,
		},
		"policy": map[string]any{
			"dir":       "",
			"protected": []string{},
		},
	}
}

// Default returns the built-in settings.
func Default() *Settings {
	return &Settings{
		ArchPackageManager:      "paru",
		RustupDefaultComponents: append([]string(nil), DefaultComponents...),
		Log:                     LogSettings{Level: "warn", Format: "console"},
		History:                 HistorySettings{Enabled: true},
		Tracing:                 TracingSettings{Exporter: "none"},
	}
}
