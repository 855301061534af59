package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/supac/supac/pkg/backends"
	"github.com/supac/supac/pkg/config"
	"github.com/supac/supac/pkg/engine"
	"github.com/supac/supac/pkg/policy"
	"github.com/supac/supac/pkg/runner"
	"github.com/supac/supac/pkg/script"
	"github.com/supac/supac/pkg/stores"
	"github.com/supac/supac/pkg/telemetry"
	"github.com/supac/supac/pkg/ui"
)

const shutdownTimeout = 5 * time.Second

// app holds everything one command invocation needs.
type app struct {
	paths     config.Paths
	settings  *config.Settings
	telemetry *telemetry.Telemetry
	logger    zerolog.Logger
	runner    *runner.Runner
	evaluator *script.Evaluator
	stdout    io.Writer
}

// baseLevel picks the log level before -v is applied: --log-level, then
// $LOG_LEVEL, then the settings file.
func (g *globalOptions) baseLevel(settings *config.Settings) string {
	if g.logLevel != "" {
		return g.logLevel
	}
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		return env
	}
	return settings.Log.Level
}

// newApp resolves the config directory, writes the default settings file on
// first use and loads the settings and telemetry.
func newApp(cmd *cobra.Command, g *globalOptions) (*app, error) {
	paths, err := config.ResolvePaths(g.configDir)
	if err != nil {
		return nil, err
	}
	created, err := config.EnsureSettingsFile(paths)
	if err != nil {
		return nil, err
	}
	settings, err := config.Load(paths)
	if err != nil {
		return nil, err
	}

	tcfg := telemetry.DefaultConfig()
	tcfg.ServiceVersion = g.version
	tcfg.Logging = telemetry.LoggingConfig{
		Level:  telemetry.LevelForVerbosity(g.verbose, g.baseLevel(settings)),
		Format: settings.Log.Format,
		Output: settings.Log.File,
		Writer: cmd.ErrOrStderr(),
	}
	if settings.Log.File != "" {
		tcfg.Logging.Writer = nil
	}
	tcfg.Tracing = telemetry.TracingConfig{
		Exporter: settings.Tracing.Exporter,
		Endpoint: settings.Tracing.Endpoint,
		Insecure: settings.Tracing.Insecure,
		Writer:   cmd.ErrOrStderr(),
	}
	tcfg.Metrics.File = settings.Metrics.File

	tel, err := telemetry.NewTelemetry(tcfg)
	if err != nil {
		return nil, engine.NewConfigError("invalid telemetry settings", err)
	}
	logger := tel.Logger.With().Str("command", cmd.Name()).Logger()
	if created {
		logger.Info().Str("path", paths.SettingsFile()).Msg("Wrote default settings")
	}

	r := runner.New(runner.Config{
		Timeout: settings.CommandTimeout,
		Stdout:  cmd.OutOrStdout(),
		Stderr:  cmd.ErrOrStderr(),
		Stdin:   cmd.InOrStdin(),
	}, logger)

	return &app{
		paths:     paths,
		settings:  settings,
		telemetry: tel,
		logger:    logger,
		runner:    r,
		evaluator: script.NewEvaluator(r, logger, script.WithOutput(cmd.OutOrStdout())),
		stdout:    cmd.OutOrStdout(),
	}, nil
}

// close flushes telemetry. Shutdown problems are logged, never returned.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to shut down telemetry")
	}
}

// loadSpec evaluates package.star.
func (a *app) loadSpec(ctx context.Context) (map[string]any, error) {
	path := a.paths.SpecFile()
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, engine.NewConfigError(
			fmt.Sprintf("package spec %s does not exist, run `supac init` to create one", path), err)
	}
	spec, err := a.evaluator.LoadFile(ctx, path)
	if err != nil {
		return nil, engine.NewConfigError("failed to evaluate package spec", err)
	}
	return spec, nil
}

// registry builds the backends for one set of execution options.
func (a *app) registry(opts engine.ExecuteOptions) (*engine.Registry, error) {
	return backends.NewRegistry(a.runner, a.settings, opts, a.logger)
}

// guard loads the built-in and user policies.
func (a *app) guard(ctx context.Context) (*policy.Engine, error) {
	guard, err := policy.NewEngine(a.logger, a.settings.Policy.Protected)
	if err != nil {
		return nil, err
	}
	if err := guard.LoadPolicies(ctx, []string{a.settings.Policy.Dir}); err != nil {
		return nil, engine.NewConfigError("failed to load policies", err)
	}
	return guard, nil
}

// history opens the run history, or returns nil when it is disabled or
// cannot be opened.
func (a *app) history(ctx context.Context) *stores.SQLiteStore {
	if !a.settings.History.Enabled {
		return nil
	}
	store, err := stores.Open(ctx, a.settings.History.Path)
	if err != nil {
		a.logger.Warn().Err(err).Str("path", a.settings.History.Path).Msg("Run history unavailable")
		return nil
	}
	return store
}

// orchestrator wires an executor with prompts, policies, dry-run output and
// the given observers.
func (a *app) orchestrator(ctx context.Context, opts engine.ExecuteOptions, observers ...engine.Observer) (*engine.Orchestrator, error) {
	registry, err := a.registry(opts)
	if err != nil {
		return nil, err
	}
	guard, err := a.guard(ctx)
	if err != nil {
		return nil, err
	}
	options := []engine.ExecutorOption{
		engine.WithConfirmer(ui.Confirmer{}),
		engine.WithGuard(guard),
		engine.WithPrinter(ui.NewPrinter(a.stdout)),
		engine.WithObserver(a.telemetry.Metrics),
		engine.WithLogger(a.logger),
	}
	for _, o := range observers {
		options = append(options, engine.WithObserver(o))
	}
	orch := engine.NewOrchestrator(registry, engine.NewExecutor(a.runner, opts, options...), a.logger)
	orch.OnPlan(a.telemetry.Metrics.RecordPlan)
	return orch, nil
}
