package node

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vyrodovalexey/rebound/internal/rebound"
)

// Queue errors.
var (
	// ErrQueueClosed is returned when submitting to a closed queue.
	ErrQueueClosed = errors.New("ingress queue is closed")

	// ErrQueueFull is returned by TrySubmit when the queue has no room.
	ErrQueueFull = errors.New("ingress queue is full")
)

// DeliverFunc hands the response back to the originating connection.
type DeliverFunc func(*rebound.Response)

// InboundRequest is a request waiting for a worker together with the
// handle its response is delivered through.
type InboundRequest struct {
	Request *rebound.Request

	// Enqueued is when the request was created by the accept loop.
	Enqueued time.Time

	ctx       context.Context
	deliver   DeliverFunc
	once      sync.Once
	delivered atomic.Bool
}

// NewInboundRequest creates an inbound request. ctx carries request
// scoped values; its cancellation does not stop a worker that already
// picked the request up.
func NewInboundRequest(ctx context.Context, req *rebound.Request, deliver DeliverFunc) *InboundRequest {
	if ctx == nil {
		ctx = context.Background()
	}
	return &InboundRequest{
		Request:  req,
		Enqueued: time.Now(),
		ctx:      ctx,
		deliver:  deliver,
	}
}

// Context returns the request context.
func (r *InboundRequest) Context() context.Context {
	return r.ctx
}

// Respond delivers resp. Only the first call has any effect; it reports
// whether this call delivered.
func (r *InboundRequest) Respond(resp *rebound.Response) bool {
	first := false
	r.once.Do(func() {
		first = true
		r.delivered.Store(true)
		if r.deliver != nil {
			r.deliver(resp)
		}
	})
	return first
}

// Delivered reports whether a response has been delivered.
func (r *InboundRequest) Delivered() bool {
	return r.delivered.Load()
}

// IngressQueue is a bounded multi-producer, multi-consumer queue of
// inbound requests. Close may race with Submit safely: senders that got
// in before Close complete, later ones get ErrQueueClosed, and Receive
// keeps returning queued requests until the queue is drained.
type IngressQueue struct {
	ch   chan *InboundRequest
	done chan struct{}

	mu        sync.RWMutex
	closed    bool
	senders   sync.WaitGroup
	closeOnce sync.Once
}

// NewIngressQueue creates a queue holding up to size requests. A size
// of zero makes every submission wait for a free worker.
func NewIngressQueue(size int) *IngressQueue {
	if size < 0 {
		size = 0
	}
	return &IngressQueue{
		ch:   make(chan *InboundRequest, size),
		done: make(chan struct{}),
	}
}

// Submit enqueues r, waiting for room until ctx is done or the queue
// is closed.
func (q *IngressQueue) Submit(ctx context.Context, r *InboundRequest) error {
	if !q.enter() {
		return ErrQueueClosed
	}
	defer q.senders.Done()

	select {
	case q.ch <- r:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySubmit enqueues r without waiting.
func (q *IngressQueue) TrySubmit(r *InboundRequest) error {
	if !q.enter() {
		return ErrQueueClosed
	}
	defer q.senders.Done()

	select {
	case q.ch <- r:
		return nil
	default:
		return ErrQueueFull
	}
}

// enter registers a sender unless the queue is closed.
func (q *IngressQueue) enter() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}
	q.senders.Add(1)
	return true
}

// Receive blocks until a request is available. It returns false once
// the queue is closed and empty.
func (q *IngressQueue) Receive() (*InboundRequest, bool) {
	r, ok := <-q.ch
	return r, ok
}

// Close stops accepting requests. Already queued requests stay
// receivable. Close is idempotent.
func (q *IngressQueue) Close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()

		close(q.done)
		q.senders.Wait()
		close(q.ch)
	})
}

// Closed reports whether Close has been called.
func (q *IngressQueue) Closed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

// Len returns the number of queued requests.
func (q *IngressQueue) Len() int {
	return len(q.ch)
}

// Cap returns the queue capacity.
func (q *IngressQueue) Cap() int {
	return cap(q.ch)
}
