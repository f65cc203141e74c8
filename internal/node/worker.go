package node

import (
	"context"
	"net/http"
	"runtime/debug"
	"strconv"

	"github.com/vyrodovalexey/rebound/internal/engine"
	"github.com/vyrodovalexey/rebound/internal/observability"
	"github.com/vyrodovalexey/rebound/internal/rebound"
)

// WorkerName returns the name of the worker with index i.
func WorkerName(i int) string {
	return "worker-" + strconv.Itoa(i)
}

// engineSource returns the engine current at the time of the call.
type engineSource func() *engine.Engine

// Worker takes requests from the ingress queue and resolves them one
// at a time.
type Worker struct {
	name    string
	queue   *IngressQueue
	engine  engineSource
	sink    rebound.EventSink
	logger  observability.Logger
	metrics *observability.Metrics
}

func newWorker(
	name string,
	queue *IngressQueue,
	source engineSource,
	sink rebound.EventSink,
	logger observability.Logger,
	metrics *observability.Metrics,
) *Worker {
	return &Worker{
		name:    name,
		queue:   queue,
		engine:  source,
		sink:    sink,
		logger:  logger.With(observability.String("worker", name)),
		metrics: metrics,
	}
}

// Name returns the worker name.
func (w *Worker) Name() string {
	return w.name
}

// Run handles requests until the queue is closed and drained.
func (w *Worker) Run() {
	w.logger.Debug("worker started")
	for {
		r, ok := w.queue.Receive()
		if !ok {
			w.logger.Debug("worker stopped")
			return
		}
		w.metrics.SetQueueDepth(w.queue.Len())
		w.handle(r)
	}
}

// handle resolves one request. A panic is recovered, reported as a
// WorkerFault and answered with 500 unless a response already went out.
func (w *Worker) handle(r *InboundRequest) {
	w.metrics.WorkerBusy()
	defer w.metrics.WorkerIdle()

	defer func() {
		if v := recover(); v != nil {
			fault := &WorkerFault{
				Worker:    w.name,
				RequestID: r.Request.ID,
				Value:     v,
				Stack:     debug.Stack(),
			}
			w.sink.WorkerFault(w.name, r.Request, fault)
			r.Respond(rebound.StatusResponse(http.StatusInternalServerError))
		}
	}()

	// The client going away must not abort a request already in flight.
	ctx := context.WithoutCancel(r.Context())
	ctx = rebound.ContextWithWorker(ctx, w.name)
	ctx = observability.ContextWithRequestID(ctx, r.Request.ID)

	w.sink.RequestReceived(w.name, r.Request)

	eng := w.engine()
	if eng == nil {
		r.Respond(rebound.StatusResponse(http.StatusServiceUnavailable))
		return
	}
	r.Respond(eng.Evaluate(ctx, r.Request))
}
