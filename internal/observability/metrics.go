package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Circuit build results used as label values.
const (
	BuildResultSuccess = "success"
	BuildResultFailure = "failure"
)

// Metrics holds all Prometheus metrics for the gateway. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	requestsReceived  prometheus.Counter
	dispatchTotal     *prometheus.CounterVec
	dispatchDuration  *prometheus.HistogramVec
	upstreamErrors    *prometheus.CounterVec
	queueDepth        prometheus.Gauge
	workersBusy       prometheus.Gauge
	workerFaults      prometheus.Counter
	admissionRejected *prometheus.CounterVec
	circuitNodes      prometheus.Gauge
	circuitBuilds     *prometheus.CounterVec
	breakerState      *prometheus.GaugeVec
	registry          *prometheus.Registry
}

// NewMetrics creates a new Metrics instance on its own registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "rebound"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.requestsReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_received_total",
		Help:      "Total number of requests picked up by a worker",
	})

	m.dispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_total",
			Help:      "Total number of dispatch decisions by action and response status",
		},
		[]string{"action", "status"},
	)

	m.dispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent evaluating a request, including the outbound call",
			Buckets: []float64{
				.001, .005, .01, .025, .05,
				.1, .25, .5, 1, 2.5, 5, 10,
			},
		},
		[]string{"action"},
	)

	m.upstreamErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Total number of failed outbound calls by upstream and error kind",
		},
		[]string{"upstream", "kind"},
	)

	m.queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ingress_queue_depth",
		Help:      "Number of requests waiting in the ingress queue",
	})

	m.workersBusy = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "workers_busy",
		Help:      "Number of workers currently handling a request",
	})

	m.workerFaults = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "worker_faults_total",
		Help:      "Total number of requests that faulted inside a worker",
	})

	m.admissionRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admission_rejected_total",
			Help:      "Total number of requests rejected before reaching the ingress queue",
		},
		[]string{"reason"},
	)

	m.circuitNodes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "circuit_nodes",
		Help:      "Number of nodes in the active circuit, fallback included",
	})

	m.circuitBuilds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_builds_total",
			Help:      "Total number of circuit builds by result",
		},
		[]string{"result"},
	)

	m.breakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help: "Upstream circuit breaker state " +
				"(0=closed, 1=half-open, 2=open)",
		},
		[]string{"upstream"},
	)

	m.registerCollectors()

	return m
}

// registerCollectors registers all metric collectors with the
// Prometheus registry.
func (m *Metrics) registerCollectors() {
	m.registry.MustRegister(
		m.requestsReceived,
		m.dispatchTotal,
		m.dispatchDuration,
		m.upstreamErrors,
		m.queueDepth,
		m.workersBusy,
		m.workerFaults,
		m.admissionRejected,
		m.circuitNodes,
		m.circuitBuilds,
		m.breakerState,
	)

	m.registry.MustRegister(collectors.NewGoCollector())
	m.registry.MustRegister(
		collectors.NewProcessCollector(
			collectors.ProcessCollectorOpts{},
		),
	)
}

// RecordRequestReceived counts a request picked up by a worker.
func (m *Metrics) RecordRequestReceived() {
	if m == nil {
		return
	}
	m.requestsReceived.Inc()
}

// RecordDispatch records a completed dispatch decision.
func (m *Metrics) RecordDispatch(action string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.dispatchTotal.WithLabelValues(action, strconv.Itoa(status)).Inc()
	m.dispatchDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordUpstreamError counts a failed outbound call.
func (m *Metrics) RecordUpstreamError(upstream, kind string) {
	if m == nil {
		return
	}
	m.upstreamErrors.WithLabelValues(upstream, kind).Inc()
}

// SetQueueDepth sets the ingress queue depth.
func (m *Metrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

// WorkerBusy marks a worker as busy.
func (m *Metrics) WorkerBusy() {
	if m == nil {
		return
	}
	m.workersBusy.Inc()
}

// WorkerIdle marks a worker as idle again.
func (m *Metrics) WorkerIdle() {
	if m == nil {
		return
	}
	m.workersBusy.Dec()
}

// RecordWorkerFault counts a request that faulted inside a worker.
func (m *Metrics) RecordWorkerFault() {
	if m == nil {
		return
	}
	m.workerFaults.Inc()
}

// RecordAdmissionRejected counts a request turned away by admission control.
func (m *Metrics) RecordAdmissionRejected(reason string) {
	if m == nil {
		return
	}
	m.admissionRejected.WithLabelValues(reason).Inc()
}

// RecordCircuitBuild records a circuit build and, on success, its size.
func (m *Metrics) RecordCircuitBuild(nodes int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.circuitBuilds.WithLabelValues(BuildResultFailure).Inc()
		return
	}
	m.circuitBuilds.WithLabelValues(BuildResultSuccess).Inc()
	m.circuitNodes.Set(float64(nodes))
}

// SetCircuitBreakerState sets the breaker state for an upstream.
func (m *Metrics) SetCircuitBreakerState(upstream string, state int) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(upstream).Set(float64(state))
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(
		m.registry,
		promhttp.HandlerOpts{EnableOpenMetrics: true},
	)
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
