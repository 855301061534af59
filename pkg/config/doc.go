// Package config locates and loads supac's configuration directory.
//
// # Overview
//
// A configuration directory holds two files:
//
//   - config.toml: global settings (the arch package manager, cargo-binstall,
//     flatpak default scope, rustup default components, command timeout,
//     logging, history, metrics, tracing and policies)
//   - package.star: the Starlark package declaration, evaluated by package script
//
// # Directory Resolution
//
// ResolvePaths uses an explicit directory when one is given. Otherwise the
// first of $SUPAC_HOME, $XDG_CONFIG, the XDG config home and
// /home/$USER/.config is joined with "supac".
//
// # Settings
//
// Load layers three sources with koanf, each overriding the previous one:
//
//  1. Built-in defaults
//  2. config.toml, if present
//  3. SUPAC_* environment variables (SUPAC_ARCH_PACKAGE_MANAGER=yay,
//     SUPAC_LOG__LEVEL=debug; a double underscore separates nested keys)
//
// The result is validated with go-playground/validator. EnsureSettingsFile
// writes the defaults on first run.
//
// # Watching
//
// Watcher reports changes to package.star, config.toml and *.rego files with
// a 500ms debounce.
package config
