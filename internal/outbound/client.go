package outbound

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/rebound/internal/config"
	"github.com/vyrodovalexey/rebound/internal/observability"
	"github.com/vyrodovalexey/rebound/internal/rebound"
)

// hopHeaders are headers that should not be forwarded.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Client sends forwarded requests upstream. It is safe for concurrent use.
type Client struct {
	cfg       atomic.Pointer[config.OutboundConfig]
	transport http.RoundTripper
	client    *http.Client
	breakers  *breakers
	logger    observability.Logger
	metrics   *observability.Metrics
	tracer    *observability.Tracer
}

// Option is a functional option for configuring the client.
type Option func(*Client)

// WithLogger sets the logger for the client.
func WithLogger(logger observability.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics the client records upstream failures on.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(c *Client) {
		c.metrics = metrics
	}
}

// WithTracer sets the tracer for outbound spans.
func WithTracer(tracer *observability.Tracer) Option {
	return func(c *Client) {
		c.tracer = tracer
	}
}

// WithTransport replaces the pooled transport.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *Client) {
		c.transport = transport
	}
}

// NewClient creates a client holding one pooled transport for its lifetime.
func NewClient(cfg config.OutboundConfig, opts ...Option) *Client {
	c := &Client{
		logger: observability.NopLogger(),
		tracer: observability.NopTracer(),
	}
	c.cfg.Store(&cfg)

	for _, opt := range opts {
		opt(c)
	}

	if c.transport == nil {
		c.transport = newTransport(cfg.Pool)
	}
	c.client = &http.Client{
		Transport: c.transport,
		// Upstream redirects are relayed to the caller, not followed.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	if cb := cfg.CircuitBreaker; cb != nil && cb.Enabled {
		c.breakers = newBreakers(*cb, c.logger, c.metrics)
	}

	return c
}

// UpdateConfig replaces the per-upstream timeouts and schemes used by
// subsequent calls. Pool and circuit breaker settings are fixed when the
// client is created.
func (c *Client) UpdateConfig(cfg config.OutboundConfig) {
	c.cfg.Store(&cfg)
}

// Config returns the outbound configuration in effect.
func (c *Client) Config() config.OutboundConfig {
	return *c.cfg.Load()
}

// Send forwards req to the upstream authority and returns the adapted
// response. The call is bounded by the upstream's configured timeout.
// Every failure is a *TransportError.
func (c *Client) Send(ctx context.Context, req *rebound.Request, upstream string) (*rebound.Response, error) {
	cfg := c.cfg.Load()
	ctx, cancel := context.WithTimeout(ctx, cfg.UpstreamTimeout(upstream))
	defer cancel()

	ctx, span := c.tracer.StartSpan(ctx, "outbound.send",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("server.address", upstream),
			attribute.String("url.path", req.Path),
		),
	)
	defer span.End()

	resp, err := c.execute(ctx, req, upstream)
	if err != nil {
		terr := newTransportError(upstream, err)
		c.metrics.RecordUpstreamError(upstream, terr.Kind.String())
		c.logger.Debug("outbound call failed",
			observability.String("request_id", req.ID),
			observability.String("upstream", upstream),
			observability.String("kind", terr.Kind.String()),
			observability.Error(err),
		)
		span.RecordError(terr)
		span.SetStatus(codes.Error, terr.Kind.String())
		return nil, terr
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.Status))
	return resp, nil
}

// execute runs the call, through the upstream's breaker when enabled.
func (c *Client) execute(ctx context.Context, req *rebound.Request, upstream string) (*rebound.Response, error) {
	if c.breakers == nil {
		return c.do(ctx, req, upstream)
	}

	result, err := c.breakers.get(upstream).Execute(func() (interface{}, error) {
		return c.do(ctx, req, upstream)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, errors.Join(ErrCircuitOpen, err)
		}
		return nil, err
	}
	return result.(*rebound.Response), nil
}

func (c *Client) do(ctx context.Context, req *rebound.Request, upstream string) (*rebound.Response, error) {
	httpReq, err := c.newUpstreamRequest(ctx, req, upstream)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	header := resp.Header.Clone()
	removeHopHeaders(header)
	// The body is buffered, so the length is recomputed on write. A HEAD
	// response has no body to recompute it from.
	if req.Method != http.MethodHead {
		header.Del("Content-Length")
	}

	return rebound.NewResponse(resp.StatusCode, header, body), nil
}

// newUpstreamRequest builds the outbound request: the target URL from
// the upstream authority, hop-by-hop headers removed and X-Forwarded
// headers set.
func (c *Client) newUpstreamRequest(ctx context.Context, req *rebound.Request, upstream string) (*http.Request, error) {
	target := &url.URL{
		Scheme:   c.cfg.Load().UpstreamScheme(upstream),
		Host:     upstream,
		Path:     req.Path,
		RawQuery: req.RawQuery,
	}

	var body io.Reader = http.NoBody
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target.String(), body)
	if err != nil {
		return nil, err
	}

	httpReq.Header = req.Header.Clone()
	if httpReq.Header == nil {
		httpReq.Header = make(http.Header)
	}
	removeHopHeaders(httpReq.Header)

	if clientIP := req.ClientIP(); clientIP != "" {
		if prior := httpReq.Header.Get("X-Forwarded-For"); prior != "" {
			clientIP = prior + ", " + clientIP
		}
		httpReq.Header.Set("X-Forwarded-For", clientIP)
	}

	if req.TLS {
		httpReq.Header.Set("X-Forwarded-Proto", "https")
	} else {
		httpReq.Header.Set("X-Forwarded-Proto", "http")
	}

	if req.Host != "" {
		httpReq.Header.Set("X-Forwarded-Host", req.Host)
	}

	httpReq.Host = upstream
	observability.InjectTraceContext(ctx, httpReq)

	return httpReq, nil
}

// removeHopHeaders removes hop-by-hop headers, including any named in
// the Connection header.
func removeHopHeaders(h http.Header) {
	for _, v := range h.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = textproto.TrimString(name); name != "" {
				h.Del(name)
			}
		}
	}
	for _, name := range hopHeaders {
		h.Del(name)
	}
}

// CloseIdleConnections closes idle pooled connections.
func (c *Client) CloseIdleConnections() {
	c.client.CloseIdleConnections()
}
