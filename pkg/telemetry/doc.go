// Package telemetry provides the observability plumbing of one supac run.
//
// The telemetry package integrates structured logging (zerolog), tracing
// (OpenTelemetry) and metrics (Prometheus):
//
//  1. Structured Logging - a console or JSON zerolog logger on stderr or a file
//  2. Tracing - one span per run, backend and operation, exported to stdout or OTLP
//  3. Metrics - run, operation, hook and error counters on a private registry
//
// # Usage
//
//	cfg := telemetry.DefaultConfig()
//	cfg.Metrics.File = "/var/lib/node_exporter/supac.prom"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
// Metrics implements engine.Observer and is registered with the executor.
// A one-shot CLI has no scrape endpoint, so the registry is written in the
// node-exporter textfile format on Shutdown.
//
// # Tracing
//
// NewTracer installs the provider globally. The engine opens its spans via
// otel.Tracer, so they join the run span started with StartRunSpan.
//
// Exporters:
//
//   - none: no-op spans (default)
//   - stdout: pretty-printed spans for debugging
//   - otlp: OTLP over gRPC
package telemetry
