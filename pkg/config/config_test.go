package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supac/supac/pkg/engine"
)

func TestResolvePaths(t *testing.T) {
	t.Run("explicit directory wins", func(t *testing.T) {
		t.Setenv("SUPAC_HOME", "/ignored")
		p, err := ResolvePaths("/etc/supac")
		require.NoError(t, err)
		assert.Equal(t, "/etc/supac", p.Dir)
		assert.Equal(t, "/etc/supac/config.toml", p.SettingsFile())
		assert.Equal(t, "/etc/supac/package.star", p.SpecFile())
		assert.Equal(t, "/etc/supac/policies", p.PoliciesDir())
	})

	t.Run("SUPAC_HOME before XDG_CONFIG", func(t *testing.T) {
		t.Setenv("SUPAC_HOME", "/opt/home")
		t.Setenv("XDG_CONFIG", "/opt/xdg")
		p, err := ResolvePaths("")
		require.NoError(t, err)
		assert.Equal(t, "/opt/home/supac", p.Dir)
	})

	t.Run("XDG_CONFIG", func(t *testing.T) {
		t.Setenv("SUPAC_HOME", "")
		t.Setenv("XDG_CONFIG", "/opt/xdg")
		p, err := ResolvePaths("")
		require.NoError(t, err)
		assert.Equal(t, "/opt/xdg/supac", p.Dir)
	})
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	cfg, err := Load(Paths{Dir: dir})
	require.NoError(t, err)

	assert.Equal(t, "paru", cfg.ArchPackageManager)
	assert.False(t, cfg.CargoUseBinstall)
	assert.False(t, cfg.FlatpakDefaultSystemwide)
	assert.Equal(t, DefaultComponents, cfg.RustupDefaultComponents)
	assert.Zero(t, cfg.CommandTimeout)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, DefaultHistoryFile(), cfg.History.Path)
	assert.Equal(t, filepath.Join(dir, "policies"), cfg.Policy.Dir)
	assert.Equal(t, "none", cfg.Tracing.Exporter)
}

func TestLoadFileAndEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.toml"), `
arch_package_manager = "yay"
cargo_use_binstall = true
command_timeout = "90s"
rustup_default_components = ["rustc", "cargo"]

[metrics]
file = "metrics.prom"

[policy]
protected = ["linux", "base"]
`)
	t.Setenv("SUPAC_FLATPAK_DEFAULT_SYSTEMWIDE", "true")
	t.Setenv("SUPAC_LOG__LEVEL", "debug")
	t.Setenv("SUPAC_ARCH_PACKAGE_MANAGER", "pacman")

	cfg, err := Load(Paths{Dir: dir})
	require.NoError(t, err)

	assert.Equal(t, "pacman", cfg.ArchPackageManager, "environment overrides the file")
	assert.True(t, cfg.CargoUseBinstall)
	assert.True(t, cfg.FlatpakDefaultSystemwide)
	assert.Equal(t, 90*time.Second, cfg.CommandTimeout)
	assert.Equal(t, []string{"rustc", "cargo"}, cfg.RustupDefaultComponents)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, filepath.Join(dir, "metrics.prom"), cfg.Metrics.File)
	assert.Equal(t, []string{"linux", "base"}, cfg.Policy.Protected)
}

func TestLoadInvalid(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name    string
		content string
	}{
		{"bad toml", "arch_package_manager = "},
		{"empty package manager", `arch_package_manager = ""`},
		{"unknown log format", "[log]\nformat = \"xml\""},
		{"otlp without endpoint", "[tracing]\nexporter = \"otlp\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, "config.toml"), tt.content)
			_, err := Load(Paths{Dir: dir})
			require.Error(t, err)
			assert.True(t, engine.IsConfig(err), "got %v", err)
		})
	}
}

func TestEnsureSettingsFile(t *testing.T) {
	clearEnv(t)
	dir := filepath.Join(t.TempDir(), "nested", "supac")
	paths := Paths{Dir: dir}

	created, err := EnsureSettingsFile(paths)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = EnsureSettingsFile(paths)
	require.NoError(t, err)
	assert.False(t, created, "an existing file is left alone")

	cfg, err := Load(paths)
	require.NoError(t, err)
	assert.Equal(t, "paru", cfg.ArchPackageManager)
	assert.Equal(t, DefaultComponents, cfg.RustupDefaultComponents)
}

func TestWatcherDebounces(t *testing.T) {
	dir := t.TempDir()
	paths := Paths{Dir: dir}
	writeFile(t, paths.SpecFile(), "arch = {}\n")

	w := NewWatcher(paths, zerolog.Nop())
	w.SetDebounce(100 * time.Millisecond)

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(context.Context) { calls.Add(1) })
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	for i := 0; i < 5; i++ {
		writeFile(t, paths.SpecFile(), "arch = {'packages': []}\n")
	}
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 20*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	cancel()
	require.NoError(t, <-done)
}

func TestWatcherWaitsForRunningCallback(t *testing.T) {
	dir := t.TempDir()
	paths := Paths{Dir: dir}
	writeFile(t, paths.SpecFile(), "arch = {}\n")

	w := NewWatcher(paths, zerolog.Nop())
	w.SetDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(context.Context) {
			close(started)
			<-release
			finished.Store(true)
		})
	}()

	time.Sleep(100 * time.Millisecond)
	writeFile(t, paths.SpecFile(), "arch = {'packages': []}\n")

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("callback did not start")
	}

	cancel()
	select {
	case <-done:
		t.Fatal("Run returned while the callback was running")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-done)
	assert.True(t, finished.Load())
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"SUPAC_ARCH_PACKAGE_MANAGER", "SUPAC_CARGO_USE_BINSTALL", "SUPAC_FLATPAK_DEFAULT_SYSTEMWIDE",
		"SUPAC_LOG__LEVEL", "SUPAC_COMMAND_TIMEOUT",
	} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}
