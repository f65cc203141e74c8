package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecker_Health(t *testing.T) {
	t.Parallel()

	checker := NewChecker("1.0.0")
	response := checker.Health()

	assert.Equal(t, StatusHealthy, response.Status)
	assert.Equal(t, "1.0.0", response.Version)
	assert.NotEmpty(t, response.Uptime)
	assert.False(t, response.Timestamp.IsZero())
}

func TestChecker_Readiness(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		checks map[string]Check
		want   Status
	}{
		{name: "no checks", checks: nil, want: StatusHealthy},
		{
			name:   "all healthy",
			checks: map[string]Check{"master": Healthy(), "circuit": Healthy()},
			want:   StatusHealthy,
		},
		{
			name:   "one unhealthy",
			checks: map[string]Check{"master": Healthy(), "circuit": Unhealthy("no circuit loaded")},
			want:   StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			checker := NewChecker("test")
			for name, check := range tt.checks {
				check := check
				checker.RegisterCheck(name, func() Check { return check })
			}

			response := checker.Readiness()
			assert.Equal(t, tt.want, response.Status)
			assert.Len(t, response.Checks, len(tt.checks))
		})
	}
}

func TestChecker_CheckNames(t *testing.T) {
	t.Parallel()

	checker := NewChecker("test")
	checker.RegisterCheck("master", Healthy)
	checker.RegisterCheck("circuit", Healthy)
	checker.RegisterCheck("master", Healthy)

	assert.Equal(t, []string{"circuit", "master"}, checker.CheckNames())
}

func TestHealthHandler(t *testing.T) {
	t.Parallel()

	checker := NewChecker("1.0.0")
	rec := httptest.NewRecorder()
	checker.HealthHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var response HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, StatusHealthy, response.Status)
}

func TestReadinessHandler(t *testing.T) {
	t.Parallel()

	ready := false
	checker := NewChecker("1.0.0")
	checker.RegisterCheck("master", func() Check {
		if ready {
			return Healthy()
		}
		return Unhealthy("master node is not running")
	})

	rec := httptest.NewRecorder()
	checker.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var response ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, StatusUnhealthy, response.Status)
	assert.Equal(t, "master node is not running", response.Checks["master"].Message)

	ready = true
	rec = httptest.NewRecorder()
	checker.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
