package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vyrodovalexey/rebound/internal/config"
	"github.com/vyrodovalexey/rebound/internal/observability"
)

const shutdownTimeout = 30 * time.Second

// runGateway starts every component and blocks until a shutdown signal.
func runGateway(app *application, configPath string) {
	ctx := context.Background()

	app.master.Start()

	if err := app.listener.Start(ctx); err != nil {
		app.master.Shutdown()
		app.logger.Fatal("failed to start listener", observability.Error(err))
		return
	}

	startMetricsServerIfEnabled(app)
	watcher := startConfigWatcher(ctx, app, configPath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	app.logger.Info("received shutdown signal", observability.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	app.shutdown(shutdownCtx, watcher)
}

// startConfigWatcher starts watching the configuration file. A watcher
// that cannot start only disables hot reload.
func startConfigWatcher(ctx context.Context, app *application, configPath string) *config.Watcher {
	watcher, err := config.NewWatcher(configPath, app.reload,
		config.WithLogger(app.logger),
		config.WithErrorCallback(func(err error) {
			app.metrics.RecordCircuitBuild(0, err)
		}),
	)
	if err != nil {
		app.logger.Warn("failed to create config watcher", observability.Error(err))
		return nil
	}

	if err := watcher.Start(ctx); err != nil {
		app.logger.Warn("failed to start config watcher", observability.Error(err))
		return nil
	}

	return watcher
}

// shutdown stops components in dependency order: no new connections,
// then the queue drains, then outbound and telemetry close.
func (app *application) shutdown(ctx context.Context, watcher *config.Watcher) {
	if watcher != nil {
		_ = watcher.Stop()
	}

	// Requests blocked in Submit must complete before the queue closes.
	listenerDone := make(chan error, 1)
	go func() {
		listenerDone <- app.listener.Stop(ctx)
	}()

	select {
	case err := <-listenerDone:
		if err != nil {
			app.logger.Error("failed to stop listener gracefully", observability.Error(err))
		}
	case <-ctx.Done():
		app.logger.Error("timed out stopping listener")
	}

	app.master.Shutdown()
	select {
	case <-app.master.Done():
	case <-ctx.Done():
		app.logger.Error("timed out waiting for workers to drain",
			observability.Int("queued", app.master.QueueLen()),
		)
	}

	app.client.CloseIdleConnections()

	if app.rateLimiter != nil {
		app.rateLimiter.Stop()
	}

	if app.metricsServer != nil {
		app.logger.Info("stopping metrics server")
		if err := app.metricsServer.Shutdown(ctx); err != nil {
			app.logger.Error("failed to stop metrics server gracefully", observability.Error(err))
		}
	}

	if err := app.tracer.Shutdown(ctx); err != nil {
		app.logger.Error("failed to shutdown tracer", observability.Error(err))
	}

	app.logger.Info("rebound stopped")
}
