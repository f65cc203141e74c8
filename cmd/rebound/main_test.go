package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vyrodovalexey/rebound/internal/config"
	"github.com/vyrodovalexey/rebound/internal/observability"
)

func TestParseFlags_Defaults(t *testing.T) {
	t.Setenv(envConfigFile, "")
	t.Setenv(envLogDir, "")
	t.Setenv(envLogLevel, "")
	t.Setenv(envLogFormat, "")

	flags := parseFlags(nil)
	assert.Equal(t, defaultConfigPath, flags.configPath)
	assert.Empty(t, flags.logLevel)
	assert.Empty(t, flags.logDir)
	assert.False(t, flags.showVersion)
}

func TestParseFlags_Env(t *testing.T) {
	t.Setenv(envConfigFile, "/etc/rebound/rebound.yaml")
	t.Setenv(envLogDir, "/var/log/rebound")
	t.Setenv(envLogLevel, "debug")
	t.Setenv(envLogFormat, "console")

	flags := parseFlags(nil)
	assert.Equal(t, "/etc/rebound/rebound.yaml", flags.configPath)
	assert.Equal(t, "/var/log/rebound", flags.logDir)
	assert.Equal(t, "debug", flags.logLevel)
	assert.Equal(t, "console", flags.logFormat)

	flags = parseFlags([]string{"-config", "other.yaml", "-log-level", "warn", "-version"})
	assert.Equal(t, "other.yaml", flags.configPath)
	assert.Equal(t, "warn", flags.logLevel)
	assert.True(t, flags.showVersion)
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("REBOUND_TEST_VALUE", "set")

	assert.Equal(t, "set", getEnvOrDefault("REBOUND_TEST_VALUE", "default"))
	assert.Equal(t, "default", getEnvOrDefault("REBOUND_TEST_UNSET_VALUE", "default"))
}

func TestLogConfigFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		flags cliFlags
		lc    config.LoggingConfig
		want  observability.LogConfig
	}{
		{
			name: "empty falls back to defaults",
			want: observability.LogConfig{Level: "info", Format: "json", Output: "stdout"},
		},
		{
			name: "config values",
			lc:   config.LoggingConfig{Level: "warn", Format: "console", Dir: "/logs", MaxSizeMB: 7, MaxBackups: 2},
			want: observability.LogConfig{
				Level: "warn", Format: "console", Output: "stdout", Dir: "/logs", MaxSizeMB: 7, MaxBackups: 2,
			},
		},
		{
			name:  "flags override config",
			flags: cliFlags{logLevel: "debug", logDir: "/override"},
			lc:    config.LoggingConfig{Level: "warn", Format: "console", Dir: "/logs"},
			want:  observability.LogConfig{Level: "debug", Format: "console", Output: "stdout", Dir: "/override"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, logConfigFor(tt.flags, tt.lc))
		})
	}
}

func testConfig(t *testing.T, rules []config.Rule) *config.ReboundConfig {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Listener.Address = "127.0.0.1:0"
	cfg.Workers.Count = 2
	cfg.Rules = rules
	require.NoError(t, config.ValidateConfig(cfg))
	return cfg
}

func TestInitApplication_BuildError(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Rules = []config.Rule{{Name: "broken"}}

	_, err := initApplication(cfg, observability.NopLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to build circuit")
}

func TestInitApplication_Readiness(t *testing.T) {
	t.Parallel()

	app, err := initApplication(testConfig(t, nil), observability.NopLogger())
	require.NoError(t, err)

	assert.Equal(t, "unhealthy", string(app.healthChecker.Readiness().Status))

	app.master.Start()
	defer app.master.Shutdown()
	assert.Equal(t, "healthy", string(app.healthChecker.Readiness().Status))
	assert.Equal(t, []string{"circuit", "master"}, app.healthChecker.CheckNames())
}

func TestApplication_Reload(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, []config.Rule{{Respond: &config.RespondAction{Body: "v1"}}})
	app, err := initApplication(cfg, observability.NopLogger())
	require.NoError(t, err)

	before := app.master.Engine().Circuit()

	// A rule without an action fails to build and is ignored.
	broken := testConfig(t, nil)
	broken.Rules = []config.Rule{{Name: "broken"}}
	app.reload(broken)
	assert.Same(t, before, app.master.Engine().Circuit())

	next := testConfig(t, []config.Rule{{Deny: &config.DenyAction{}}})
	next.Workers.Count = 8
	app.reload(next)

	after := app.master.Engine().Circuit()
	assert.NotSame(t, before, after)
	assert.Equal(t, 2, app.master.Workers())
}

func TestInitApplication_LogsCircuitOnce(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	cfg := testConfig(t, []config.Rule{{Respond: &config.RespondAction{Body: "v1"}}})

	_, err := initApplication(cfg, observability.NewLoggerFromZap(zap.New(core)))
	require.NoError(t, err)

	assert.Equal(t, 1, logs.FilterMessage("circuit built").Len())
}

func TestApplication_ReloadOutbound(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
			return
		}
		_, _ = io.WriteString(w, "slow")
	}))
	defer upstream.Close()
	host := strings.TrimPrefix(upstream.URL, "http://")

	app, err := initApplication(
		testConfig(t, []config.Rule{{Respond: &config.RespondAction{Body: "v1"}}}),
		observability.NopLogger(),
	)
	require.NoError(t, err)

	app.master.Start()
	require.NoError(t, app.listener.Start(context.Background()))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		app.shutdown(ctx, nil)
	}()

	next := testConfig(t, []config.Rule{{Forward: &config.ForwardAction{Upstream: host}}})
	next.Outbound.Upstreams = map[string]config.UpstreamConfig{
		host: {Timeout: config.Duration(50 * time.Millisecond)},
	}
	app.reload(next)

	cfg := app.client.Config()
	assert.Equal(t, 50*time.Millisecond, cfg.UpstreamTimeout(host))

	start := time.Now()
	resp, err := http.Get("http://" + app.listener.Addr() + "/")
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestWarnStatic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(cfg *config.ReboundConfig)
		want   string
	}{
		{
			name:   "pool",
			mutate: func(cfg *config.ReboundConfig) { cfg.Outbound.Pool.MaxConnsPerHost = 7 },
			want:   "outbound.pool changed; restart required to apply",
		},
		{
			name: "circuit breaker",
			mutate: func(cfg *config.ReboundConfig) {
				cfg.Outbound.CircuitBreaker = &config.CircuitBreakerConfig{Enabled: true, MaxFailures: 3}
			},
			want: "outbound.circuitBreaker changed; restart required to apply",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			core, logs := observer.New(zap.WarnLevel)
			oldCfg := testConfig(t, nil)
			newCfg := testConfig(t, nil)
			tt.mutate(newCfg)

			warnStatic(observability.NewLoggerFromZap(zap.New(core)), oldCfg, newCfg)
			assert.Equal(t, 1, logs.FilterMessage(tt.want).Len())

			logs.TakeAll()
			warnStatic(observability.NewLoggerFromZap(zap.New(core)), oldCfg, testConfig(t, nil))
			assert.Zero(t, logs.Len())
		})
	}
}

func TestRunEndToEnd(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Upstream-Path", r.URL.Path)
		_, _ = io.WriteString(w, "from upstream")
	}))
	defer upstream.Close()

	cfg := testConfig(t, []config.Rule{
		{
			Name:  "api",
			Match: config.MatchSpec{Path: &config.PathMatch{Prefix: "/api"}},
			Forward: &config.ForwardAction{
				Upstream: strings.TrimPrefix(upstream.URL, "http://"),
				Rewrite:  &config.PathRewrite{StripPrefix: "/api"},
			},
		},
		{
			Name:    "teapot",
			Match:   config.MatchSpec{Path: &config.PathMatch{Exact: "/tea"}},
			Respond: &config.RespondAction{Status: http.StatusTeapot, Body: "short and stout"},
		},
	})

	app, err := initApplication(cfg, observability.NopLogger())
	require.NoError(t, err)

	app.master.Start()
	require.NoError(t, app.listener.Start(context.Background()))

	base := "http://" + app.listener.Addr()

	tests := []struct {
		path   string
		status int
		body   string
	}{
		{path: "/api/users", status: http.StatusOK, body: "from upstream"},
		{path: "/tea", status: http.StatusTeapot, body: "short and stout"},
		{path: "/nothing", status: http.StatusBadGateway, body: ""},
	}

	for _, tt := range tests {
		resp, err := http.Get(base + tt.path)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		assert.Equal(t, tt.status, resp.StatusCode, tt.path)
		assert.Equal(t, tt.body, string(body), tt.path)
		assert.NotEmpty(t, resp.Header.Get("X-Request-ID"), tt.path)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	app.shutdown(ctx, nil)

	assert.False(t, app.listener.IsRunning())
	assert.False(t, app.master.Running())
	select {
	case <-app.master.Done():
	default:
		t.Fatal("workers still running after shutdown")
	}
}

func TestCreateMetricsServer(t *testing.T) {
	t.Parallel()

	app, err := initApplication(testConfig(t, nil), observability.NopLogger())
	require.NoError(t, err)

	server := createMetricsServer(":0", "/metrics", app.metrics, app.healthChecker)

	tests := []struct {
		path   string
		status int
	}{
		{path: "/metrics", status: http.StatusOK},
		{path: "/healthz", status: http.StatusOK},
		{path: "/readyz", status: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		assert.Equal(t, tt.status, rec.Code, tt.path)
	}
}
