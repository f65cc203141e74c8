package main

import (
	"github.com/vyrodovalexey/rebound/internal/config"
	"github.com/vyrodovalexey/rebound/internal/observability"
)

// reload swaps in the circuit built from newCfg and the outbound
// timeouts and schemes it configures. A circuit that fails to build
// leaves the running configuration in place. Settings bound at startup
// are reported and ignored.
func (app *application) reload(newCfg *config.ReboundConfig) {
	app.logger.Info("configuration changed, reloading")

	c, err := buildCircuit(newCfg, app.logger, app.metrics)
	if err != nil {
		app.logger.Error("failed to reload circuit, keeping previous", observability.Error(err))
		return
	}

	warnStatic(app.logger, app.config, newCfg)

	app.client.UpdateConfig(newCfg.Outbound)
	app.master.Reload(c)
}

// warnStatic logs a warning for every changed setting that only takes
// effect on restart.
func warnStatic(logger observability.Logger, oldCfg, newCfg *config.ReboundConfig) {
	if oldCfg.Workers.Count != newCfg.Workers.Count {
		logger.Warn("workers.count changed; restart required to apply",
			observability.Int("current", oldCfg.Workers.Count),
			observability.Int("configured", newCfg.Workers.Count),
		)
	}
	if oldCfg.Workers.QueueSize != newCfg.Workers.QueueSize {
		logger.Warn("workers.queueSize changed; restart required to apply",
			observability.Int("current", oldCfg.Workers.QueueSize),
			observability.Int("configured", newCfg.Workers.QueueSize),
		)
	}
	if oldCfg.Outbound.Pool != newCfg.Outbound.Pool {
		logger.Warn("outbound.pool changed; restart required to apply")
	}
	if breakerChanged(oldCfg.Outbound.CircuitBreaker, newCfg.Outbound.CircuitBreaker) {
		logger.Warn("outbound.circuitBreaker changed; restart required to apply")
	}
	if oldCfg.Listener.Address != newCfg.Listener.Address {
		logger.Warn("listener.address changed; restart required to apply",
			observability.String("current", oldCfg.Listener.Address),
			observability.String("configured", newCfg.Listener.Address),
		)
	}
}

func breakerChanged(a, b *config.CircuitBreakerConfig) bool {
	if a == nil || b == nil {
		return a != b
	}
	return *a != *b
}
