package main

import (
	"fmt"
	"net/http"

	"github.com/vyrodovalexey/rebound/internal/circuit"
	"github.com/vyrodovalexey/rebound/internal/config"
	"github.com/vyrodovalexey/rebound/internal/engine"
	"github.com/vyrodovalexey/rebound/internal/gateway"
	"github.com/vyrodovalexey/rebound/internal/health"
	"github.com/vyrodovalexey/rebound/internal/node"
	"github.com/vyrodovalexey/rebound/internal/observability"
	"github.com/vyrodovalexey/rebound/internal/outbound"
)

// application holds all application components.
type application struct {
	config        *config.ReboundConfig
	logger        observability.Logger
	metrics       *observability.Metrics
	tracer        *observability.Tracer
	client        *outbound.Client
	master        *node.Master
	listener      *gateway.Listener
	rateLimiter   *gateway.RateLimiter
	healthChecker *health.Checker
	metricsServer *http.Server
}

// initApplication wires every component from cfg. Nothing is started.
func initApplication(cfg *config.ReboundConfig, logger observability.Logger) (*application, error) {
	metrics := observability.NewMetrics("rebound")

	tracer, err := observability.NewTracer(observability.TracerConfig{
		ServiceName:  cfg.Tracing.ServiceName,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SamplingRate: cfg.Tracing.SamplingRate,
		Enabled:      cfg.Tracing.Enabled,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	c, err := buildCircuit(cfg, logger, metrics)
	if err != nil {
		return nil, err
	}

	client := outbound.NewClient(cfg.Outbound,
		outbound.WithLogger(logger),
		outbound.WithMetrics(metrics),
		outbound.WithTracer(tracer),
	)

	sink := observability.NewEventSink(logger, metrics)
	eng := engine.New(c, client,
		engine.WithLogger(logger),
		engine.WithSink(sink),
		engine.WithTracer(tracer),
	)

	master := node.New(cfg.Workers, eng,
		node.WithLogger(logger),
		node.WithSink(sink),
		node.WithMetrics(metrics),
	)

	rateLimiter := gateway.RateLimiterFromConfig(cfg.RateLimit, logger)
	handler, err := gateway.NewHandler(master, cfg.Workers, cfg.Listener,
		gateway.WithHandlerLogger(logger),
		gateway.WithHandlerMetrics(metrics),
		gateway.WithRateLimiter(rateLimiter),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create handler: %w", err)
	}

	listener := gateway.NewListener(cfg.Listener, handler, gateway.WithListenerLogger(logger))

	healthChecker := health.NewChecker(version)
	healthChecker.RegisterCheck("master", func() health.Check {
		if !master.Running() {
			return health.Unhealthy("master node is not running")
		}
		return health.Healthy()
	})
	healthChecker.RegisterCheck("circuit", func() health.Check {
		if e := master.Engine(); e == nil || e.Circuit() == nil {
			return health.Unhealthy("no circuit loaded")
		}
		return health.Healthy()
	})

	return &application{
		config:        cfg,
		logger:        logger,
		metrics:       metrics,
		tracer:        tracer,
		client:        client,
		master:        master,
		listener:      listener,
		rateLimiter:   rateLimiter,
		healthChecker: healthChecker,
	}, nil
}

// buildCircuit compiles the configured rules.
func buildCircuit(
	cfg *config.ReboundConfig,
	logger observability.Logger,
	metrics *observability.Metrics,
) (*circuit.Circuit, error) {
	c, err := circuit.Build(cfg.Rules,
		circuit.WithLogger(logger),
		circuit.WithMetrics(metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build circuit: %w", err)
	}
	return c, nil
}
