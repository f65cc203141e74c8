// Package observability provides logging, metrics, and tracing
// functionality for the rebound gateway.
//
// # Logging
//
// The Logger interface provides structured logging backed by zap. When a
// log directory is configured, entries at info level and above are also
// written to a size-rotated rebound.log file:
//
//	logger, err := observability.NewLogger(observability.LogConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Dir:    "/var/log/rebound",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
// # Metrics
//
// Prometheus metrics for the ingress queue, workers, dispatch decisions
// and upstream failures are kept on a dedicated registry:
//
//	metrics := observability.NewMetrics("rebound")
//	http.Handle("/metrics", metrics.Handler())
//
// # Events
//
// EventSink turns the diagnostic events emitted by the engine and the
// workers into log lines and metric updates.
//
// # Tracing
//
// Tracer wraps an OpenTelemetry tracer provider exporting over OTLP/gRPC.
package observability
