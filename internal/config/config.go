package config

import "time"

// Default values applied by ApplyDefaults.
const (
	DefaultListenAddress    = ":8080"
	DefaultMaxBodyBytes     = 10 << 20
	DefaultWorkerCount      = 4
	DefaultQueueSize        = 256
	DefaultSubmitTimeout    = 5 * time.Second
	DefaultOutboundScheme   = "http"
	DefaultOutboundTimeout  = 30 * time.Second
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultLogMaxSizeMB     = 5
	DefaultLogMaxBackups    = 3
	DefaultMetricsAddress   = ":9090"
	DefaultMetricsPath      = "/metrics"
	DefaultTracingService   = "rebound"
	DefaultBreakerFailures  = 5
	DefaultBreakerTimeout   = 30 * time.Second
	DefaultBreakerHalfOpen  = 1
	DefaultRateLimitRPS     = 100
	DefaultRateLimitBurst   = 200
	DefaultListenerReadTime = 30 * time.Second
)

// Admission policies for a full ingress queue.
const (
	AdmissionBlock  = "block"
	AdmissionReject = "reject"
)

// ReboundConfig is the root configuration document.
type ReboundConfig struct {
	Listener  ListenerConfig   `yaml:"listener"`
	Workers   WorkersConfig    `yaml:"workers"`
	Outbound  OutboundConfig   `yaml:"outbound"`
	RateLimit *RateLimitConfig `yaml:"rateLimit,omitempty"`
	Logging   LoggingConfig    `yaml:"logging"`
	Metrics   MetricsConfig    `yaml:"metrics"`
	Tracing   TracingConfig    `yaml:"tracing"`
	Rules     []Rule           `yaml:"rules"`
}

// ListenerConfig configures the inbound HTTP listener.
type ListenerConfig struct {
	Address      string   `yaml:"address"`
	ReadTimeout  Duration `yaml:"readTimeout,omitempty"`
	WriteTimeout Duration `yaml:"writeTimeout,omitempty"`
	MaxBodyBytes int64    `yaml:"maxBodyBytes,omitempty"`
}

// WorkersConfig configures the worker pool and its ingress queue.
type WorkersConfig struct {
	// Count is the fixed number of workers.
	Count int `yaml:"count"`

	// QueueSize is the ingress queue capacity.
	QueueSize int `yaml:"queueSize"`

	// Admission is the policy applied when the queue is full: block or reject.
	Admission string `yaml:"admission"`

	// SubmitTimeout bounds how long a blocked submission waits.
	SubmitTimeout Duration `yaml:"submitTimeout,omitempty"`
}

// OutboundConfig configures the outbound client.
type OutboundConfig struct {
	Scheme         string                    `yaml:"scheme,omitempty"`
	Timeout        Duration                  `yaml:"timeout,omitempty"`
	Upstreams      map[string]UpstreamConfig `yaml:"upstreams,omitempty"`
	Pool           PoolConfig                `yaml:"pool,omitempty"`
	CircuitBreaker *CircuitBreakerConfig     `yaml:"circuitBreaker,omitempty"`
}

// UpstreamConfig holds per-upstream overrides keyed by authority.
type UpstreamConfig struct {
	Timeout Duration `yaml:"timeout,omitempty"`
	Scheme  string   `yaml:"scheme,omitempty"`
}

// PoolConfig configures the shared connection pool.
type PoolConfig struct {
	MaxIdleConns        int      `yaml:"maxIdleConns,omitempty"`
	MaxIdleConnsPerHost int      `yaml:"maxIdleConnsPerHost,omitempty"`
	MaxConnsPerHost     int      `yaml:"maxConnsPerHost,omitempty"`
	IdleConnTimeout     Duration `yaml:"idleConnTimeout,omitempty"`
	DialTimeout         Duration `yaml:"dialTimeout,omitempty"`
}

// CircuitBreakerConfig configures per-upstream circuit breakers.
type CircuitBreakerConfig struct {
	Enabled     bool     `yaml:"enabled"`
	MaxFailures int      `yaml:"maxFailures,omitempty"`
	Timeout     Duration `yaml:"timeout,omitempty"`
	HalfOpenMax int      `yaml:"halfOpenMax,omitempty"`
}

// RateLimitConfig configures admission rate limiting on the listener.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerSecond int  `yaml:"requestsPerSecond"`
	Burst             int  `yaml:"burst"`
	PerClient         bool `yaml:"perClient,omitempty"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`

	// Dir enables a rolling rebound.log file in the directory.
	Dir        string `yaml:"dir,omitempty"`
	MaxSizeMB  int    `yaml:"maxSizeMB,omitempty"`
	MaxBackups int    `yaml:"maxBackups,omitempty"`
}

// MetricsConfig configures the metrics and health listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	OTLPEndpoint string  `yaml:"otlpEndpoint,omitempty"`
	SamplingRate float64 `yaml:"samplingRate,omitempty"`
	ServiceName  string  `yaml:"serviceName,omitempty"`
}

// DefaultConfig returns a configuration with every default applied and
// no rules.
func DefaultConfig() *ReboundConfig {
	cfg := &ReboundConfig{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero-valued optional settings.
func (c *ReboundConfig) ApplyDefaults() {
	if c.Listener.Address == "" {
		c.Listener.Address = DefaultListenAddress
	}
	if c.Listener.MaxBodyBytes == 0 {
		c.Listener.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.Listener.ReadTimeout == 0 {
		c.Listener.ReadTimeout = Duration(DefaultListenerReadTime)
	}

	if c.Workers.Count == 0 {
		c.Workers.Count = DefaultWorkerCount
	}
	if c.Workers.QueueSize == 0 {
		c.Workers.QueueSize = DefaultQueueSize
	}
	if c.Workers.Admission == "" {
		c.Workers.Admission = AdmissionBlock
	}
	if c.Workers.SubmitTimeout == 0 {
		c.Workers.SubmitTimeout = Duration(DefaultSubmitTimeout)
	}

	if c.Outbound.Scheme == "" {
		c.Outbound.Scheme = DefaultOutboundScheme
	}
	if c.Outbound.Timeout == 0 {
		c.Outbound.Timeout = Duration(DefaultOutboundTimeout)
	}
	if cb := c.Outbound.CircuitBreaker; cb != nil {
		if cb.MaxFailures == 0 {
			cb.MaxFailures = DefaultBreakerFailures
		}
		if cb.Timeout == 0 {
			cb.Timeout = Duration(DefaultBreakerTimeout)
		}
		if cb.HalfOpenMax == 0 {
			cb.HalfOpenMax = DefaultBreakerHalfOpen
		}
	}

	if rl := c.RateLimit; rl != nil {
		if rl.RequestsPerSecond == 0 {
			rl.RequestsPerSecond = DefaultRateLimitRPS
		}
		if rl.Burst == 0 {
			rl.Burst = DefaultRateLimitBurst
		}
	}

	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = DefaultLogMaxBackups
	}

	if c.Metrics.Address == "" {
		c.Metrics.Address = DefaultMetricsAddress
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = DefaultTracingService
	}
}

// UpstreamTimeout returns the outbound timeout for an upstream authority.
func (c *OutboundConfig) UpstreamTimeout(authority string) time.Duration {
	if u, ok := c.Upstreams[authority]; ok && u.Timeout > 0 {
		return u.Timeout.Duration()
	}
	return c.Timeout.OrDefault(DefaultOutboundTimeout)
}

// UpstreamScheme returns the URL scheme used to reach an upstream authority.
func (c *OutboundConfig) UpstreamScheme(authority string) string {
	if u, ok := c.Upstreams[authority]; ok && u.Scheme != "" {
		return u.Scheme
	}
	if c.Scheme == "" {
		return DefaultOutboundScheme
	}
	return c.Scheme
}
