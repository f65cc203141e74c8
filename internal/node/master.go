package node

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/vyrodovalexey/rebound/internal/circuit"
	"github.com/vyrodovalexey/rebound/internal/config"
	"github.com/vyrodovalexey/rebound/internal/engine"
	"github.com/vyrodovalexey/rebound/internal/observability"
	"github.com/vyrodovalexey/rebound/internal/rebound"
)

// Master states.
const (
	stateIdle int32 = iota
	stateRunning
	stateStopped
)

// Master owns the ingress queue and a fixed set of workers sharing one
// engine.
type Master struct {
	cfg     config.WorkersConfig
	queue   *IngressQueue
	engine  atomic.Pointer[engine.Engine]
	workers []*Worker
	wg      sync.WaitGroup
	state   atomic.Int32
	done    chan struct{}

	sink    rebound.EventSink
	logger  observability.Logger
	metrics *observability.Metrics
}

// Option is a functional option for configuring the master.
type Option func(*Master)

// WithLogger sets the logger for the master and its workers.
func WithLogger(logger observability.Logger) Option {
	return func(m *Master) {
		m.logger = logger
	}
}

// WithSink sets the sink receiving worker events.
func WithSink(sink rebound.EventSink) Option {
	return func(m *Master) {
		m.sink = sink
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(m *Master) {
		m.metrics = metrics
	}
}

// New creates a master running cfg.Count workers over eng. The worker
// count is fixed for the lifetime of the master.
func New(cfg config.WorkersConfig, eng *engine.Engine, opts ...Option) *Master {
	if cfg.Count <= 0 {
		cfg.Count = config.DefaultWorkerCount
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}

	m := &Master{
		cfg:    cfg,
		queue:  NewIngressQueue(cfg.QueueSize),
		done:   make(chan struct{}),
		sink:   rebound.NopSink{},
		logger: observability.NopLogger(),
	}
	m.engine.Store(eng)

	for _, opt := range opts {
		opt(m)
	}

	m.workers = make([]*Worker, cfg.Count)
	for i := range m.workers {
		m.workers[i] = newWorker(WorkerName(i), m.queue, m.engine.Load, m.sink, m.logger, m.metrics)
	}

	return m
}

// Start launches the workers. It is a no-op unless the master is idle.
func (m *Master) Start() {
	if !m.state.CompareAndSwap(stateIdle, stateRunning) {
		return
	}

	m.wg.Add(len(m.workers))
	for _, w := range m.workers {
		go func(w *Worker) {
			defer m.wg.Done()
			w.Run()
		}(w)
	}

	go func() {
		m.wg.Wait()
		close(m.done)
	}()

	m.logger.Info("master node started",
		observability.Int("workers", len(m.workers)),
		observability.Int("queue_size", m.queue.Cap()),
	)
}

// Run starts the workers and blocks until all of them have exited.
func (m *Master) Run() {
	m.Start()
	m.Wait()
}

// Wait blocks until every worker has exited. It returns immediately
// for a master that was never started.
func (m *Master) Wait() {
	if m.state.Load() == stateIdle {
		return
	}
	<-m.done
}

// Done is closed once every worker has exited.
func (m *Master) Done() <-chan struct{} {
	return m.done
}

// Submit enqueues r, waiting for room until ctx is done.
func (m *Master) Submit(ctx context.Context, r *InboundRequest) error {
	if m.state.Load() != stateRunning {
		return ErrNotRunning
	}
	if err := m.queue.Submit(ctx, r); err != nil {
		return err
	}
	m.metrics.SetQueueDepth(m.queue.Len())
	return nil
}

// TrySubmit enqueues r, failing with ErrQueueFull instead of waiting.
func (m *Master) TrySubmit(r *InboundRequest) error {
	if m.state.Load() != stateRunning {
		return ErrNotRunning
	}
	if err := m.queue.TrySubmit(r); err != nil {
		return err
	}
	m.metrics.SetQueueDepth(m.queue.Len())
	return nil
}

// Shutdown stops accepting requests. Queued requests are still handled;
// use Wait or Done to observe the workers exiting.
func (m *Master) Shutdown() {
	prev := m.state.Swap(stateStopped)
	if prev == stateStopped {
		return
	}

	m.queue.Close()
	if prev == stateIdle {
		close(m.done)
	}

	m.logger.Info("master node shutting down",
		observability.Int("queued", m.queue.Len()),
	)
}

// Reload swaps the circuit evaluated by the workers. Requests already
// being evaluated finish on the circuit they started with.
func (m *Master) Reload(c *circuit.Circuit) {
	if c == nil {
		return
	}
	for {
		cur := m.engine.Load()
		if cur == nil {
			return
		}
		if m.engine.CompareAndSwap(cur, cur.WithCircuit(c)) {
			break
		}
	}
	m.logger.Info("circuit reloaded", observability.Int("nodes", c.Len()))
}

// Engine returns the current engine.
func (m *Master) Engine() *engine.Engine {
	return m.engine.Load()
}

// Running reports whether the master accepts requests.
func (m *Master) Running() bool {
	return m.state.Load() == stateRunning
}

// Workers returns the number of workers.
func (m *Master) Workers() int {
	return len(m.workers)
}

// QueueLen returns the number of queued requests.
func (m *Master) QueueLen() int {
	return m.queue.Len()
}
