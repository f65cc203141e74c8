package rebound

import (
	"context"
	"time"
)

// ActionKind names the kind of action a rule executes.
type ActionKind string

// Action kinds.
const (
	ActionForward ActionKind = "forward"
	ActionRespond ActionKind = "respond"
	ActionDeny    ActionKind = "deny"
)

// Dispatch describes one routing decision and its outcome.
type Dispatch struct {
	RequestID string
	Worker    string

	// Ordinal is the declaration index of the matched rule, or -1 for
	// the synthetic fallback.
	Ordinal  int
	RuleName string
	Action   ActionKind

	// Upstream is set for forward actions.
	Upstream string

	Status   int
	Duration time.Duration

	// Err is the absorbed outbound failure, if any.
	Err error
}

// EventSink receives the diagnostic events produced by the core.
// Implementations must be safe for concurrent use.
type EventSink interface {
	// RequestReceived is called once per request picked up by a worker.
	RequestReceived(worker string, req *Request)

	// Dispatched is called once per routing decision.
	Dispatched(d Dispatch)

	// WorkerFault is called when a worker recovers from a panic.
	WorkerFault(worker string, req *Request, fault error)
}

// NopSink is an EventSink that discards every event.
type NopSink struct{}

// RequestReceived implements EventSink.
func (NopSink) RequestReceived(string, *Request) {}

// Dispatched implements EventSink.
func (NopSink) Dispatched(Dispatch) {}

// WorkerFault implements EventSink.
func (NopSink) WorkerFault(string, *Request, error) {}

type workerKey struct{}

// ContextWithWorker returns ctx carrying the id of the worker handling
// the request.
func ContextWithWorker(ctx context.Context, worker string) context.Context {
	return context.WithValue(ctx, workerKey{}, worker)
}

// WorkerFromContext returns the worker id carried by ctx, if any.
func WorkerFromContext(ctx context.Context) string {
	worker, _ := ctx.Value(workerKey{}).(string)
	return worker
}
