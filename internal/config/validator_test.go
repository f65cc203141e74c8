package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *ReboundConfig {
	cfg := DefaultConfig()
	cfg.Rules = []Rule{
		{
			Name:    "api",
			Match:   MatchSpec{Path: &PathMatch{Prefix: "/api"}},
			Forward: &ForwardAction{Upstream: "backend:9000"},
		},
		{Respond: &RespondAction{Status: 404, Body: "not found"}},
	}
	return cfg
}

func TestValidateConfig_Valid(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateConfig(validConfig()))
}

func TestValidateConfig_Nil(t *testing.T) {
	t.Parallel()

	err := ValidateConfig(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration is nil")
}

func TestValidateConfig_Errors(t *testing.T) {
	t.Parallel()

	present := true
	tests := []struct {
		name     string
		mutate   func(cfg *ReboundConfig)
		wantPath string
	}{
		{
			name:     "zero workers",
			mutate:   func(cfg *ReboundConfig) { cfg.Workers.Count = -1 },
			wantPath: "workers.count",
		},
		{
			name:     "unknown admission",
			mutate:   func(cfg *ReboundConfig) { cfg.Workers.Admission = "drop" },
			wantPath: "workers.admission",
		},
		{
			name:     "unsupported scheme",
			mutate:   func(cfg *ReboundConfig) { cfg.Outbound.Scheme = "ftp" },
			wantPath: "outbound.scheme",
		},
		{
			name: "upstream scheme",
			mutate: func(cfg *ReboundConfig) {
				cfg.Outbound.Upstreams = map[string]UpstreamConfig{"a:1": {Scheme: "gopher"}}
			},
			wantPath: "outbound.upstreams[a:1].scheme",
		},
		{
			name: "rate limit burst",
			mutate: func(cfg *ReboundConfig) {
				cfg.RateLimit = &RateLimitConfig{Enabled: true, RequestsPerSecond: 1, Burst: 0}
			},
			wantPath: "rateLimit.burst",
		},
		{
			name:     "log level",
			mutate:   func(cfg *ReboundConfig) { cfg.Logging.Level = "loud" },
			wantPath: "logging.level",
		},
		{
			name:     "sampling rate",
			mutate:   func(cfg *ReboundConfig) { cfg.Tracing.SamplingRate = 2 },
			wantPath: "tracing.samplingRate",
		},
		{
			name:     "rule without action",
			mutate:   func(cfg *ReboundConfig) { cfg.Rules[1].Respond = nil },
			wantPath: "rules[1]",
		},
		{
			name:     "rule with two actions",
			mutate:   func(cfg *ReboundConfig) { cfg.Rules[1].Deny = &DenyAction{} },
			wantPath: "rules[1]",
		},
		{
			name:     "empty upstream",
			mutate:   func(cfg *ReboundConfig) { cfg.Rules[0].Forward.Upstream = "" },
			wantPath: "rules[0].forward.upstream",
		},
		{
			name:     "upstream with path",
			mutate:   func(cfg *ReboundConfig) { cfg.Rules[0].Forward.Upstream = "backend:9000/api" },
			wantPath: "rules[0].forward.upstream",
		},
		{
			name: "bad rewrite regex",
			mutate: func(cfg *ReboundConfig) {
				cfg.Rules[0].Forward.Rewrite = &PathRewrite{Regex: &RegexRewrite{Pattern: "("}}
			},
			wantPath: "rules[0].forward.rewrite.regex.pattern",
		},
		{
			name:     "respond status",
			mutate:   func(cfg *ReboundConfig) { cfg.Rules[1].Respond.Status = 42 },
			wantPath: "rules[1].respond.status",
		},
		{
			name: "deny status",
			mutate: func(cfg *ReboundConfig) {
				cfg.Rules[1] = Rule{Deny: &DenyAction{Status: 700}}
			},
			wantPath: "rules[1].deny.status",
		},
		{
			name: "host exact and suffix",
			mutate: func(cfg *ReboundConfig) {
				cfg.Rules[0].Match.Host = &HostMatch{Exact: "a.com", Suffix: ".a.com"}
			},
			wantPath: "rules[0].match.host",
		},
		{
			name: "relative path",
			mutate: func(cfg *ReboundConfig) {
				cfg.Rules[0].Match.Path = &PathMatch{Prefix: "api"}
			},
			wantPath: "rules[0].match.path",
		},
		{
			name: "header without name",
			mutate: func(cfg *ReboundConfig) {
				cfg.Rules[0].Match.Headers = []HeaderMatch{{Value: "x"}}
			},
			wantPath: "rules[0].match.headers[0].name",
		},
		{
			name: "header value and present",
			mutate: func(cfg *ReboundConfig) {
				cfg.Rules[0].Match.Headers = []HeaderMatch{{Name: "X", Value: "x", Present: &present}}
			},
			wantPath: "rules[0].match.headers[0]",
		},
		{
			name: "empty method",
			mutate: func(cfg *ReboundConfig) {
				cfg.Rules[0].Match.Methods = []string{"GET", ""}
			},
			wantPath: "rules[0].match.methods[1]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(cfg)

			err := ValidateConfig(cfg)
			require.Error(t, err)

			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			paths := make([]string, 0, len(verrs))
			for _, e := range verrs {
				paths = append(paths, e.Path)
			}
			assert.Contains(t, paths, tt.wantPath)
		})
	}
}

func TestValidationErrors_Error(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "no validation errors", ValidationErrors{}.Error())
	assert.Equal(t, "a: bad", ValidationErrors{{Path: "a", Message: "bad"}}.Error())
	assert.Equal(t, "bad", (&ValidationError{Message: "bad"}).Error())

	multi := ValidationErrors{{Path: "a", Message: "one"}, {Path: "b", Message: "two"}}.Error()
	assert.Contains(t, multi, "2 validation errors:")
	assert.Contains(t, multi, "1. a: one")
	assert.Contains(t, multi, "2. b: two")
}

func TestIsStandardMethod(t *testing.T) {
	t.Parallel()

	assert.True(t, IsStandardMethod("get"))
	assert.True(t, IsStandardMethod("*"))
	assert.False(t, IsStandardMethod("BREW"))
}
