package telemetry

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supac/supac/pkg/engine"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, true},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, true},
		{"otlp without endpoint", func(c *Config) { c.Tracing.Exporter = "otlp" }, true},
		{"otlp with endpoint", func(c *Config) {
			c.Tracing.Exporter = "otlp"
			c.Tracing.Endpoint = "localhost:4317"
		}, false},
		{"unknown exporter", func(c *Config) { c.Tracing.Exporter = "jaeger" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := NewLogger(LoggingConfig{Level: "info", Format: "json", Writer: &buf})
	require.NoError(t, err)
	defer closer.Close()

	logger.Debug().Msg("hidden")
	logger.Info().Str("backend", "arch").Msg("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"backend":"arch"`)
	assert.Contains(t, out, `"message":"visible"`)
}

func TestLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "supac.log")
	logger, closer, err := NewLogger(LoggingConfig{Level: "warn", Format: "json", Output: path})
	require.NoError(t, err)

	logger.Warn().Msg("written")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written")
}

func TestLevelForVerbosity(t *testing.T) {
	assert.Equal(t, "warn", LevelForVerbosity(0, "warn"))
	assert.Equal(t, "info", LevelForVerbosity(1, "warn"))
	assert.Equal(t, "debug", LevelForVerbosity(2, "warn"))
	assert.Equal(t, "trace", LevelForVerbosity(5, "warn"))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("bogus"))
}

func TestMetricsObserver(t *testing.T) {
	m := NewMetrics(MetricsConfig{Namespace: "supac"})
	ctx := context.Background()

	install := engine.Operation{Backend: "cargo", Action: engine.ActionInstall, Items: []string{"ripgrep"}}
	m.OperationFinished(ctx, engine.OperationResult{Operation: install, Status: engine.RunStatusSucceeded, Duration: time.Second})
	m.OperationFinished(ctx, engine.OperationResult{Operation: install, Status: engine.RunStatusFailed})
	m.HookFinished(ctx, engine.HookResult{Backend: "cargo", Status: engine.RunStatusSucceeded})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("cargo", "install", "succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("cargo", "install", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.hooks.WithLabelValues("cargo", "succeeded")))
}

func TestMetricsRecordRunCountsErrorKinds(t *testing.T) {
	m := NewMetrics(MetricsConfig{Namespace: "supac"})

	report := &engine.Report{}
	report.Add(engine.NewConfigError("bad", nil))
	report.Add(engine.NewOperationFailed([]string{"cargo", "install", "x"}, errors.New("exit 1")))
	report.Add(errors.New("plain"))

	m.RecordRun("sync", report.ErrorOrNil(), 2*time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("sync", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errorsByKind.WithLabelValues(string(engine.KindConfig))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errorsByKind.WithLabelValues(string(engine.KindOperationFailed))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errorsByKind.WithLabelValues("unclassified")))
}

func TestMetricsRecordPlan(t *testing.T) {
	m := NewMetrics(MetricsConfig{Namespace: "supac"})
	plan := engine.NewPlan("arch")
	plan.Add(engine.Operation{Action: engine.ActionInstall, Items: []string{"a", "b"}})
	plan.Add(engine.Operation{Action: engine.ActionPromote, Items: []string{"c"}})

	m.RecordPlan(plan)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.plannedItems.WithLabelValues("arch", "install")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.plannedItems.WithLabelValues("arch", "promote")))
}

func TestMetricsWriteTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "textfile", "supac.prom")
	m := NewMetrics(MetricsConfig{Namespace: "supac", File: path})
	m.RecordRun("clean", nil, time.Second)

	require.NoError(t, m.WriteTextfile())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `supac_runs_total{command="clean",status="succeeded"} 1`))

	assert.NoError(t, NewMetrics(MetricsConfig{}).WriteTextfile(), "no file configured")
}

func TestTracerStdout(t *testing.T) {
	var buf bytes.Buffer
	tracer, err := NewTracer(TracingConfig{Exporter: "stdout", Writer: &buf}, "supac", "test")
	require.NoError(t, err)

	ctx, span := tracer.StartRunSpan(context.Background(), "run-1", "sync", true)
	assert.NotEmpty(t, TraceID(ctx))
	RecordError(span, nil)
	span.End()

	require.NoError(t, tracer.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "supac.sync")
	assert.Contains(t, buf.String(), "run-1")
}

func TestTracerNone(t *testing.T) {
	tracer, err := NewTracer(TracingConfig{Exporter: "none"}, "supac", "test")
	require.NoError(t, err)

	ctx, span := tracer.StartRunSpan(context.Background(), "run-1", "sync", false)
	span.End()
	assert.Empty(t, TraceID(ctx))
	assert.NoError(t, tracer.Shutdown(context.Background()))

	_, err = NewTracer(TracingConfig{Exporter: "zipkin"}, "supac", "test")
	assert.Error(t, err)
}

func TestTelemetryShutdown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Writer = &bytes.Buffer{}
	cfg.Metrics.File = filepath.Join(t.TempDir(), "supac.prom")

	tel, err := NewTelemetry(cfg)
	require.NoError(t, err)
	tel.Metrics.RecordRun("sync", nil, time.Millisecond)
	require.NoError(t, tel.Shutdown(context.Background()))

	_, err = os.Stat(cfg.Metrics.File)
	assert.NoError(t, err)
}
