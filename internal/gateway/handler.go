package gateway

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/rebound/internal/config"
	"github.com/vyrodovalexey/rebound/internal/node"
	"github.com/vyrodovalexey/rebound/internal/observability"
	"github.com/vyrodovalexey/rebound/internal/rebound"
)

// RequestIDHeader carries the request identifier in both directions.
const RequestIDHeader = "X-Request-ID"

// Error bodies written by the handler itself.
const (
	errBodyTooManyRequests = `{"error":"too many requests"}`
	errBodyUnavailable     = `{"error":"service unavailable"}`
	errBodyTooLarge        = `{"error":"request entity too large"}`
	errBodyBadRequest      = `{"error":"bad request"}`
)

// Submitter accepts inbound requests for processing. *node.Master
// implements it.
type Submitter interface {
	Submit(ctx context.Context, r *node.InboundRequest) error
	TrySubmit(r *node.InboundRequest) error
}

// Handler turns each HTTP request into an InboundRequest and writes
// back the response delivered for it.
type Handler struct {
	submitter     Submitter
	admission     string
	submitTimeout time.Duration
	maxBodyBytes  int64

	limiter *RateLimiter
	logger  observability.Logger
	metrics *observability.Metrics
	newID   func() string
}

// HandlerOption is a functional option for configuring the handler.
type HandlerOption func(*Handler)

// WithHandlerLogger sets the logger for the handler.
func WithHandlerLogger(logger observability.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithHandlerMetrics sets the metrics recorder.
func WithHandlerMetrics(metrics *observability.Metrics) HandlerOption {
	return func(h *Handler) {
		h.metrics = metrics
	}
}

// WithRateLimiter enables admission rate limiting.
func WithRateLimiter(rl *RateLimiter) HandlerOption {
	return func(h *Handler) {
		h.limiter = rl
	}
}

// WithRequestIDGenerator replaces the uuid request id generator.
func WithRequestIDGenerator(gen func() string) HandlerOption {
	return func(h *Handler) {
		h.newID = gen
	}
}

// NewHandler creates a handler submitting to s.
func NewHandler(
	s Submitter,
	workers config.WorkersConfig,
	listener config.ListenerConfig,
	opts ...HandlerOption,
) (*Handler, error) {
	if s == nil {
		return nil, ErrNilSubmitter
	}

	h := &Handler{
		submitter:     s,
		admission:     workers.Admission,
		submitTimeout: workers.SubmitTimeout.OrDefault(config.DefaultSubmitTimeout),
		maxBodyBytes:  listener.MaxBodyBytes,
		logger:        observability.NopLogger(),
		newID:         func() string { return uuid.New().String() },
	}
	if h.admission == "" {
		h.admission = config.AdmissionBlock
	}
	if h.maxBodyBytes <= 0 {
		h.maxBodyBytes = config.DefaultMaxBodyBytes
	}

	for _, opt := range opts {
		opt(h)
	}

	return h, nil
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(RequestIDHeader)
	if id == "" {
		id = h.newID()
	}
	w.Header().Set(RequestIDHeader, id)

	logger := h.logger.With(
		observability.String("request_id", id),
		observability.String("method", r.Method),
		observability.String("path", r.URL.Path),
	)

	if h.limiter != nil {
		if ip := clientIP(r); !h.limiter.Allow(ip) {
			logger.Warn("rate limit exceeded", observability.String("client_ip", ip))
			h.reject(w, http.StatusTooManyRequests, errBodyTooManyRequests, ReasonRateLimited)
			return
		}
	}

	body, status := h.readBody(w, r)
	if status != 0 {
		logger.Warn("failed to read request body", observability.Int("status", status))
		if status == http.StatusRequestEntityTooLarge {
			h.reject(w, status, errBodyTooLarge, ReasonBodyTooLarge)
		} else {
			writeJSON(w, status, errBodyBadRequest)
		}
		return
	}

	req := rebound.NewRequest(id, r, body)
	req.Header.Set(RequestIDHeader, id)

	ctx := observability.ContextWithRequestID(r.Context(), id)
	delivered := make(chan *rebound.Response, 1)
	inbound := node.NewInboundRequest(ctx, req, func(resp *rebound.Response) {
		delivered <- resp
	})

	if err := h.submit(ctx, inbound); err != nil {
		if r.Context().Err() != nil {
			return
		}
		reason := rejectReason(err)
		logger.Warn("request not admitted",
			observability.String("reason", reason),
			observability.Error(err),
		)
		h.reject(w, http.StatusServiceUnavailable, errBodyUnavailable, reason)
		return
	}

	select {
	case resp := <-delivered:
		if err := resp.WriteTo(w); err != nil {
			logger.Debug("failed to write response", observability.Error(err))
		}
	case <-r.Context().Done():
		logger.Debug("client went away before the response was ready")
	}
}

func (h *Handler) submit(ctx context.Context, r *node.InboundRequest) error {
	if h.admission == config.AdmissionReject {
		return h.submitter.TrySubmit(r)
	}

	ctx, cancel := context.WithTimeout(ctx, h.submitTimeout)
	defer cancel()
	return h.submitter.Submit(ctx, r)
}

// readBody reads the whole request body. A non-zero status reports why
// it could not be read.
func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, int) {
	if r.ContentLength > h.maxBodyBytes {
		return nil, http.StatusRequestEntityTooLarge
	}
	if r.Body == nil || r.Body == http.NoBody {
		return nil, 0
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, http.StatusRequestEntityTooLarge
		}
		return nil, http.StatusBadRequest
	}
	return body, 0
}

func (h *Handler) reject(w http.ResponseWriter, status int, body, reason string) {
	h.metrics.RecordAdmissionRejected(reason)
	if status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, body)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, node.ErrQueueFull):
		return ReasonQueueFull
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonSubmitTimeout
	default:
		return ReasonShuttingDown
	}
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	resp := rebound.NewResponse(status, http.Header{"Content-Type": {"application/json"}}, []byte(body))
	_ = resp.WriteTo(w)
}

func clientIP(r *http.Request) string {
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}
