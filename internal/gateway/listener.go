package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/rebound/internal/config"
	"github.com/vyrodovalexey/rebound/internal/observability"
)

const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 120 * time.Second
	maxHeaderBytes    = 1 << 20 // 1MB
)

var ginModeOnce sync.Once

// NewRouter returns a gin engine routing every request, whatever its
// method or path, to handler.
func NewRouter(handler http.Handler) *gin.Engine {
	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	engine := gin.New()
	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false
	engine.HandleMethodNotAllowed = false
	// gin presets 404 for unmatched routes; a handler that writes without
	// an explicit status must still answer 200.
	engine.NoRoute(func(c *gin.Context) {
		c.Status(http.StatusOK)
		handler.ServeHTTP(c.Writer, c.Request)
	})
	return engine
}

// Listener is the inbound HTTP listener.
type Listener struct {
	config  config.ListenerConfig
	handler http.Handler
	server  *http.Server
	addr    atomic.Value
	running atomic.Bool
	done    chan struct{}
	logger  observability.Logger
}

// ListenerOption is a functional option for configuring a listener.
type ListenerOption func(*Listener)

// WithListenerLogger sets the logger for the listener.
func WithListenerLogger(logger observability.Logger) ListenerOption {
	return func(l *Listener) {
		l.logger = logger
	}
}

// NewListener creates a listener serving handler through a gin engine.
func NewListener(cfg config.ListenerConfig, handler http.Handler, opts ...ListenerOption) *Listener {
	if cfg.Address == "" {
		cfg.Address = config.DefaultListenAddress
	}

	l := &Listener{
		config:  cfg,
		handler: NewRouter(handler),
		logger:  observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Start binds the listener address and serves in the background.
func (l *Listener) Start(ctx context.Context) error {
	if l.running.Load() {
		return ErrListenerRunning
	}

	l.server = &http.Server{
		Addr:              l.config.Address,
		Handler:           l.handler,
		ReadTimeout:       l.config.ReadTimeout.Duration(),
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      l.config.WriteTimeout.Duration(),
		IdleTimeout:       idleTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", l.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", l.config.Address, err)
	}

	l.addr.Store(ln.Addr().String())
	l.done = make(chan struct{})
	l.running.Store(true)

	l.logger.Info("listener started", observability.String("address", l.Addr()))

	go l.serve(ln)

	return nil
}

func (l *Listener) serve(ln net.Listener) {
	defer close(l.done)

	if err := l.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.logger.Error("listener error",
			observability.String("address", l.Addr()),
			observability.Error(err),
		)
	}
	l.running.Store(false)
}

// Stop stops accepting connections and waits for in-flight requests
// until ctx is done.
func (l *Listener) Stop(ctx context.Context) error {
	if !l.running.Load() {
		return nil
	}

	l.logger.Info("stopping listener", observability.String("address", l.Addr()))

	if err := l.server.Shutdown(ctx); err != nil {
		if closeErr := l.server.Close(); closeErr != nil {
			return fmt.Errorf("failed to close listener: %w", closeErr)
		}
		return fmt.Errorf("failed to shutdown listener gracefully: %w", err)
	}
	<-l.done

	l.logger.Info("listener stopped", observability.String("address", l.Addr()))

	return nil
}

// Addr returns the bound address once started, the configured one before.
func (l *Listener) Addr() string {
	if v, ok := l.addr.Load().(string); ok {
		return v
	}
	return l.config.Address
}

// IsRunning returns true if the listener is serving.
func (l *Listener) IsRunning() bool {
	return l.running.Load()
}
