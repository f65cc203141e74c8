// Package engine evaluates requests against a circuit and executes the
// selected action.
package engine

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/rebound/internal/circuit"
	"github.com/vyrodovalexey/rebound/internal/observability"
	"github.com/vyrodovalexey/rebound/internal/outbound"
	"github.com/vyrodovalexey/rebound/internal/rebound"
)

// ErrNoSender is reported for a Forward action on an engine built
// without a Sender.
var ErrNoSender = errors.New("no outbound sender configured")

// Sender performs the outbound call of a Forward action.
type Sender interface {
	Send(ctx context.Context, req *rebound.Request, upstream string) (*rebound.Response, error)
}

// Engine owns a circuit and resolves each request to exactly one
// response. It holds no mutable state and is safe for concurrent use.
type Engine struct {
	circuit *circuit.Circuit
	sender  Sender
	sink    rebound.EventSink
	logger  observability.Logger
	tracer  *observability.Tracer
	now     func() time.Time
}

// Option is a functional option for configuring the engine.
type Option func(*Engine)

// WithLogger sets the logger for the engine.
func WithLogger(logger observability.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithSink sets the sink receiving dispatch events.
func WithSink(sink rebound.EventSink) Option {
	return func(e *Engine) {
		e.sink = sink
	}
}

// WithTracer sets the tracer for evaluation spans.
func WithTracer(tracer *observability.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// WithClock sets the time source used to measure dispatch duration.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates an engine evaluating c and forwarding through sender.
func New(c *circuit.Circuit, sender Sender, opts ...Option) *Engine {
	e := &Engine{
		circuit: c,
		sender:  sender,
		sink:    rebound.NopSink{},
		logger:  observability.NopLogger(),
		tracer:  observability.NopTracer(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// WithCircuit returns a copy of the engine evaluating c instead.
func (e *Engine) WithCircuit(c *circuit.Circuit) *Engine {
	clone := *e
	clone.circuit = c
	return &clone
}

// Circuit returns the circuit the engine evaluates.
func (e *Engine) Circuit() *circuit.Circuit {
	return e.circuit
}

// Evaluate resolves req to a response. It never fails: outbound errors
// become 502 or 504 responses and a request no node matches gets 502.
// One Dispatched event is emitted per call.
func (e *Engine) Evaluate(ctx context.Context, req *rebound.Request) *rebound.Response {
	start := e.now()

	ctx, span := e.tracer.StartSpan(ctx, "engine.evaluate",
		trace.WithAttributes(
			attribute.String("rebound.request_id", req.ID),
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.Path),
		),
	)
	defer span.End()

	d := rebound.Dispatch{
		RequestID: req.ID,
		Worker:    rebound.WorkerFromContext(ctx),
		Ordinal:   circuit.FallbackOrdinal,
		Action:    rebound.ActionDeny,
	}

	var resp *rebound.Response
	node := e.lookup(req)
	if node == nil {
		e.logger.WithContext(ctx).Warn("no circuit node matched the request",
			observability.String("request_id", req.ID),
		)
		resp = rebound.StatusResponse(http.StatusBadGateway)
	} else {
		d.Ordinal = node.Ordinal
		d.RuleName = node.Name
		d.Action = node.Action.Kind()
		resp, d.Err = e.execute(ctx, req, node.Action, &d)
	}

	d.Status = resp.Status
	d.Duration = e.now().Sub(start)

	span.SetAttributes(
		attribute.Int("rebound.rule", d.Ordinal),
		attribute.String("rebound.action", string(d.Action)),
		attribute.Int("http.response.status_code", d.Status),
	)
	if d.Err != nil {
		span.RecordError(d.Err)
		span.SetStatus(codes.Error, d.Err.Error())
	}

	e.sink.Dispatched(d)
	return resp
}

func (e *Engine) lookup(req *rebound.Request) *circuit.Node {
	if e.circuit == nil {
		return nil
	}
	return e.circuit.Lookup(req)
}

// execute runs the action. The switch covers every Action type.
func (e *Engine) execute(
	ctx context.Context,
	req *rebound.Request,
	action circuit.Action,
	d *rebound.Dispatch,
) (*rebound.Response, error) {
	switch a := action.(type) {
	case *circuit.Forward:
		d.Upstream = a.Upstream
		return e.forward(ctx, req, a)
	case *circuit.Respond:
		return a.Response(), nil
	case *circuit.Deny:
		return a.Response(), nil
	default:
		return rebound.StatusResponse(http.StatusBadGateway), nil
	}
}

func (e *Engine) forward(ctx context.Context, req *rebound.Request, f *circuit.Forward) (*rebound.Response, error) {
	if e.sender == nil {
		return rebound.StatusResponse(http.StatusBadGateway), ErrNoSender
	}

	out := f.Apply(req)
	resp, err := e.sender.Send(ctx, out, f.Upstream)
	if err != nil {
		return rebound.StatusResponse(outbound.StatusFor(err)), err
	}
	if resp == nil {
		return rebound.StatusResponse(http.StatusBadGateway), nil
	}
	return resp, nil
}
