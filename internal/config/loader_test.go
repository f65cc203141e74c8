package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfigYAML = `
listener:
  address: ":9000"
workers:
  count: 8
  queueSize: 64
  admission: reject
outbound:
  timeout: 2s
  upstreams:
    "backend:9000":
      timeout: 500ms
rules:
  - name: api
    match:
      path:
        prefix: /api
    forward:
      upstream: backend:9000
  - respond:
      status: 404
      body: not found
`

func TestLoader_Load(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "rebound.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(sampleConfigYAML), 0o600))

	cfg, err := NewLoader().Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Listener.Address)
	assert.Equal(t, 8, cfg.Workers.Count)
	assert.Equal(t, 64, cfg.Workers.QueueSize)
	assert.Equal(t, AdmissionReject, cfg.Workers.Admission)
	assert.Equal(t, 2*time.Second, cfg.Outbound.Timeout.Duration())
	assert.Equal(t, 500*time.Millisecond, cfg.Outbound.UpstreamTimeout("backend:9000"))
	assert.Equal(t, 2*time.Second, cfg.Outbound.UpstreamTimeout("other:80"))

	require.Len(t, cfg.Rules, 2)
	assert.Equal(t, "api", cfg.Rules[0].Name)
	require.NotNil(t, cfg.Rules[0].Forward)
	assert.Equal(t, "backend:9000", cfg.Rules[0].Forward.Upstream)
	require.NotNil(t, cfg.Rules[1].Respond)
	assert.Equal(t, 404, cfg.Rules[1].Respond.Status)
	assert.True(t, cfg.Rules[1].Match.IsEmpty())

	// Defaults fill whatever the file left out.
	assert.Equal(t, DefaultLogLevel, cfg.Logging.Level)
	assert.Equal(t, int64(DefaultMaxBodyBytes), cfg.Listener.MaxBodyBytes)
}

func TestLoader_Load_FileNotFound(t *testing.T) {
	t.Parallel()

	_, err := NewLoader().Load("/nonexistent/path/rebound.yaml")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoader_LoadFromReader_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{name: "empty document", input: "", wantErr: "configuration is empty"},
		{name: "whitespace only", input: "  \n\n", wantErr: "configuration is empty"},
		{name: "malformed yaml", input: "rules: [", wantErr: "failed to parse YAML"},
		{name: "unknown field", input: "workerz:\n  count: 2\n", wantErr: "failed to parse YAML"},
		{name: "bad duration", input: "outbound:\n  timeout: soon\n", wantErr: "failed to parse YAML"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := LoadConfigFromReader(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoader_SubstituteEnvVars(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		"UPSTREAM": "backend:9000",
		"EMPTY":    "",
	}
	loader := &Loader{lookupEnv: func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "set variable", input: "${UPSTREAM}", want: "backend:9000"},
		{name: "unset with default", input: "${MISSING:-fallback:80}", want: "fallback:80"},
		{name: "set ignores default", input: "${UPSTREAM:-fallback:80}", want: "backend:9000"},
		{name: "set but empty", input: "${EMPTY:-x}", want: ""},
		{name: "unset without default", input: "a${MISSING}b", want: "ab"},
		{name: "escaped dollar", input: "$${UPSTREAM}", want: "${UPSTREAM}"},
		{name: "no variables", input: "plain", want: "plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, loader.substituteEnvVars(tt.input))
		})
	}
}

func TestLoader_EnvVarsInDocument(t *testing.T) {
	t.Parallel()

	loader := &Loader{lookupEnv: func(key string) (string, bool) {
		if key == "WORKERS" {
			return "3", true
		}
		return "", false
	}}

	cfg, err := loader.LoadFromReader(strings.NewReader(`
workers:
  count: ${WORKERS}
outbound:
  scheme: ${SCHEME:-https}
`))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Workers.Count)
	assert.Equal(t, "https", cfg.Outbound.Scheme)
}
