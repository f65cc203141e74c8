package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/vyrodovalexey/rebound/internal/health"
	"github.com/vyrodovalexey/rebound/internal/observability"
)

// createMetricsServer creates the metrics and health HTTP server.
func createMetricsServer(
	addr string,
	path string,
	metrics *observability.Metrics,
	healthChecker *health.Checker,
) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, metrics.Handler())
	mux.HandleFunc("/healthz", healthChecker.HealthHandler())
	mux.HandleFunc("/readyz", healthChecker.ReadinessHandler())

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// runMetricsServer runs the metrics HTTP server.
func runMetricsServer(server *http.Server, logger observability.Logger) {
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server error", observability.Error(err))
	}
}

// startMetricsServerIfEnabled starts the metrics server if enabled.
func startMetricsServerIfEnabled(app *application) {
	mc := app.config.Metrics
	if !mc.Enabled {
		return
	}

	app.logger.Info("starting metrics server",
		observability.String("address", mc.Address),
		observability.String("metrics_path", mc.Path),
	)

	app.metricsServer = createMetricsServer(mc.Address, mc.Path, app.metrics, app.healthChecker)
	go runMetricsServer(app.metricsServer, app.logger)
}
