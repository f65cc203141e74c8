package engine

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/rebound/internal/circuit"
	"github.com/vyrodovalexey/rebound/internal/config"
	"github.com/vyrodovalexey/rebound/internal/outbound"
	"github.com/vyrodovalexey/rebound/internal/rebound"
)

type sentCall struct {
	req      *rebound.Request
	upstream string
}

type fakeSender struct {
	mu    sync.Mutex
	calls []sentCall
	resp  *rebound.Response
	err   error
}

func (s *fakeSender) Send(_ context.Context, req *rebound.Request, upstream string) (*rebound.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, sentCall{req: req, upstream: upstream})
	return s.resp, s.err
}

type recordingSink struct {
	rebound.NopSink
	mu         sync.Mutex
	dispatches []rebound.Dispatch
}

func (s *recordingSink) Dispatched(d rebound.Dispatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatches = append(s.dispatches, d)
}

func (s *recordingSink) last() rebound.Dispatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dispatches[len(s.dispatches)-1]
}

func newRequest(method, path string) *rebound.Request {
	return &rebound.Request{
		ID:         "req-1",
		Method:     method,
		Host:       "gw.local",
		Path:       path,
		Header:     make(http.Header),
		RemoteAddr: "10.0.0.1:1234",
	}
}

func mustBuild(t *testing.T, rules []config.Rule) *circuit.Circuit {
	t.Helper()
	c, err := circuit.Build(rules)
	require.NoError(t, err)
	return c
}

func apiRules() []config.Rule {
	return []config.Rule{
		{
			Name:  "api",
			Match: config.MatchSpec{Path: &config.PathMatch{Prefix: "/api"}},
			Forward: &config.ForwardAction{
				Upstream: "backend:9000",
				Rewrite:  &config.PathRewrite{StripPrefix: "/api"},
				Headers:  map[string]string{"X-Gateway": "rebound"},
			},
		},
		{Respond: &config.RespondAction{Status: 404, Body: "not found"}},
	}
}

func TestEvaluate_ForwardAndRespond(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{resp: rebound.NewResponse(200, http.Header{"X-Up": {"1"}}, []byte("users"))}
	sink := &recordingSink{}
	e := New(mustBuild(t, apiRules()), sender, WithSink(sink))

	resp := e.Evaluate(context.Background(), newRequest(http.MethodGet, "/api/users"))
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "users", string(resp.Body))

	require.Len(t, sender.calls, 1)
	assert.Equal(t, "backend:9000", sender.calls[0].upstream)
	assert.Equal(t, "/users", sender.calls[0].req.Path)
	assert.Equal(t, "rebound", sender.calls[0].req.Header.Get("X-Gateway"))

	d := sink.last()
	assert.Equal(t, 0, d.Ordinal)
	assert.Equal(t, "api", d.RuleName)
	assert.Equal(t, rebound.ActionForward, d.Action)
	assert.Equal(t, "backend:9000", d.Upstream)
	assert.Equal(t, 200, d.Status)
	assert.NoError(t, d.Err)

	resp = e.Evaluate(context.Background(), newRequest(http.MethodGet, "/static/a.png"))
	assert.Equal(t, 404, resp.Status)
	assert.Equal(t, "not found", string(resp.Body))
	assert.Len(t, sender.calls, 1)

	d = sink.last()
	assert.Equal(t, 1, d.Ordinal)
	assert.Equal(t, rebound.ActionRespond, d.Action)
	assert.Equal(t, 404, d.Status)
}

func TestEvaluate_EmptyCircuitDenies(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	e := New(mustBuild(t, nil), &fakeSender{}, WithSink(sink))

	for _, path := range []string{"/", "/api", "/x/y/z"} {
		resp := e.Evaluate(context.Background(), newRequest(http.MethodGet, path))
		assert.Equal(t, http.StatusBadGateway, resp.Status)
		assert.Empty(t, resp.Body)

		d := sink.last()
		assert.Equal(t, circuit.FallbackOrdinal, d.Ordinal)
		assert.Equal(t, rebound.ActionDeny, d.Action)
	}
}

func TestEvaluate_TransportErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "timeout", err: &outbound.TransportError{Kind: outbound.Timeout}, want: 504},
		{name: "connection failed", err: &outbound.TransportError{Kind: outbound.ConnectionFailed}, want: 502},
		{name: "protocol", err: &outbound.TransportError{Kind: outbound.UpstreamProtocolError}, want: 502},
		{name: "raw deadline", err: context.DeadlineExceeded, want: 504},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sink := &recordingSink{}
			e := New(mustBuild(t, apiRules()), &fakeSender{err: tt.err}, WithSink(sink))

			resp := e.Evaluate(context.Background(), newRequest(http.MethodGet, "/api/x"))
			assert.Equal(t, tt.want, resp.Status)
			assert.Empty(t, resp.Body)

			d := sink.last()
			assert.Equal(t, tt.want, d.Status)
			assert.ErrorIs(t, d.Err, tt.err)
		})
	}
}

func TestEvaluate_NoSender(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	e := New(mustBuild(t, apiRules()), nil, WithSink(sink))

	resp := e.Evaluate(context.Background(), newRequest(http.MethodGet, "/api/x"))
	assert.Equal(t, http.StatusBadGateway, resp.Status)
	assert.ErrorIs(t, sink.last().Err, ErrNoSender)
}

func TestEvaluate_NilCircuit(t *testing.T) {
	t.Parallel()

	e := New(nil, nil)
	resp := e.Evaluate(context.Background(), newRequest(http.MethodGet, "/"))
	assert.Equal(t, http.StatusBadGateway, resp.Status)
}

func TestEvaluate_Idempotent(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	e := New(mustBuild(t, apiRules()), &fakeSender{resp: rebound.StatusResponse(200)}, WithSink(sink))
	req := newRequest(http.MethodGet, "/api/users")

	first := e.Evaluate(context.Background(), req)
	second := e.Evaluate(context.Background(), req)

	assert.Equal(t, first.Status, second.Status)
	require.Len(t, sink.dispatches, 2)
	assert.Equal(t, sink.dispatches[0].Ordinal, sink.dispatches[1].Ordinal)
	assert.Equal(t, sink.dispatches[0].Action, sink.dispatches[1].Action)
	// Forward rewrites a copy, never the inbound request.
	assert.Equal(t, "/api/users", req.Path)
}

func TestEvaluate_DispatchCarriesWorkerAndDuration(t *testing.T) {
	t.Parallel()

	var calls int
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * 10 * time.Millisecond)
	}

	sink := &recordingSink{}
	e := New(mustBuild(t, nil), nil, WithSink(sink), WithClock(clock))

	ctx := rebound.ContextWithWorker(context.Background(), "worker-2")
	e.Evaluate(ctx, newRequest(http.MethodGet, "/"))

	d := sink.last()
	assert.Equal(t, "worker-2", d.Worker)
	assert.Equal(t, "req-1", d.RequestID)
	assert.Equal(t, 10*time.Millisecond, d.Duration)
}

func TestEngine_WithCircuit(t *testing.T) {
	t.Parallel()

	original := New(mustBuild(t, nil), nil)
	swapped := original.WithCircuit(mustBuild(t, []config.Rule{{Respond: &config.RespondAction{}}}))

	req := newRequest(http.MethodGet, "/")
	assert.Equal(t, http.StatusBadGateway, original.Evaluate(context.Background(), req).Status)
	assert.Equal(t, http.StatusOK, swapped.Evaluate(context.Background(), req).Status)
	assert.NotSame(t, original.Circuit(), swapped.Circuit())
}

func TestEvaluate_UnreachableUpstream(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	c := mustBuild(t, []config.Rule{{Forward: &config.ForwardAction{Upstream: addr}}})
	client := outbound.NewClient(config.DefaultConfig().Outbound)
	e := New(c, client)

	for i := 0; i < 2; i++ {
		resp := e.Evaluate(context.Background(), newRequest(http.MethodGet, "/"))
		assert.Equal(t, http.StatusBadGateway, resp.Status)
	}
}

func TestEvaluate_UpstreamTimeout(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer upstream.Close()

	addr := strings.TrimPrefix(upstream.URL, "http://")
	cfg := config.DefaultConfig().Outbound
	cfg.Timeout = config.Duration(50 * time.Millisecond)

	c := mustBuild(t, []config.Rule{{Forward: &config.ForwardAction{Upstream: addr}}})
	sink := &recordingSink{}
	e := New(c, outbound.NewClient(cfg), WithSink(sink))

	resp := e.Evaluate(context.Background(), newRequest(http.MethodGet, "/slow"))
	assert.Equal(t, http.StatusGatewayTimeout, resp.Status)
	assert.True(t, errors.Is(sink.last().Err, &outbound.TransportError{Kind: outbound.Timeout}))
}
