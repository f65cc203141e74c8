package outbound

import (
	"sync"

	"github.com/sony/gobreaker"

	"github.com/vyrodovalexey/rebound/internal/config"
	"github.com/vyrodovalexey/rebound/internal/observability"
)

// breakers holds one circuit breaker per upstream authority, created on
// first use.
type breakers struct {
	cfg     config.CircuitBreakerConfig
	logger  observability.Logger
	metrics *observability.Metrics

	mu     sync.Mutex
	byName map[string]*gobreaker.CircuitBreaker
}

func newBreakers(cfg config.CircuitBreakerConfig, logger observability.Logger, metrics *observability.Metrics) *breakers {
	return &breakers{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		byName:  make(map[string]*gobreaker.CircuitBreaker),
	}
}

// get returns the breaker for an upstream.
func (b *breakers) get(upstream string) *gobreaker.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cb, ok := b.byName[upstream]; ok {
		return cb
	}

	maxFailures := safeIntToUint32(b.cfg.MaxFailures)
	if maxFailures == 0 {
		maxFailures = config.DefaultBreakerFailures
	}
	settings := gobreaker.Settings{
		Name:        upstream,
		MaxRequests: safeIntToUint32(b.cfg.HalfOpenMax),
		Timeout:     b.cfg.Timeout.OrDefault(config.DefaultBreakerTimeout),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			b.logger.Warn("upstream circuit breaker state change",
				observability.String("upstream", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)
			b.metrics.SetCircuitBreakerState(name, int(to))
		},
	}

	cb := gobreaker.NewCircuitBreaker(settings)
	b.byName[upstream] = cb
	b.metrics.SetCircuitBreakerState(upstream, int(gobreaker.StateClosed))
	return cb
}

// safeIntToUint32 safely converts int to uint32.
func safeIntToUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	if n > int(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(n) //nolint:gosec // bounds checked above
}
