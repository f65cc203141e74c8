package circuit

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpressionMatcher(t *testing.T) {
	t.Parallel()

	env, err := newExpressionEnv()
	require.NoError(t, err)

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{name: "method", expr: `method == "POST"`, want: true},
		{name: "path function", expr: `path.startsWith("/api")`, want: true},
		{name: "host without port", expr: `host == "api.example.com"`, want: true},
		{name: "query", expr: `query.contains("debug=1")`, want: true},
		{name: "header lookup", expr: `headers["x-tenant"] == "acme"`, want: true},
		{name: "missing header guarded", expr: `"x-absent" in headers`, want: false},
		{name: "missing header errors", expr: `headers["x-absent"] == "1"`, want: false},
		{name: "client in range", expr: `ip_in_range(client_ip, "10.0.0.0/8")`, want: true},
		{name: "client out of range", expr: `ip_in_range(client_ip, "192.168.0.0/16")`, want: false},
		{name: "bad cidr", expr: `ip_in_range(client_ip, "nope")`, want: false},
	}

	req := newRequest(http.MethodPost, "api.example.com:8443", "/api/users")
	req.RawQuery = "debug=1"
	req.Header.Set("X-Tenant", "acme")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m, err := NewExpressionMatcher(env, tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Match(req))
			assert.Equal(t, "expression", m.Type())
		})
	}
}

func TestNewExpressionMatcher_Errors(t *testing.T) {
	t.Parallel()

	env, err := newExpressionEnv()
	require.NoError(t, err)

	for _, expr := range []string{"path ==", "unknown_var == 1", "path", "1 + 1"} {
		_, err := NewExpressionMatcher(env, expr)
		assert.Error(t, err, expr)
	}
}
