package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"flashback/internal/services"
	"flashback/internal/structures"
	"flashback/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHealthController(t *testing.T, backend string) (*HealthController, services.HistoryServiceInterface) {
	t.Helper()
	conf := testConfig()
	conf.Persistence.Backend = backend
	history := services.NewHistoryService(testutil.NewMockStore())
	orch := services.NewOrchestrator(conf, history, &testutil.MockGenerator{}, services.NewRateGauge(conf), &testutil.MockLogger{}, &testutil.MockMetrics{})
	t.Cleanup(func() { _ = orch.Stop(context.Background()) })
	return NewHealthController(conf, history, orch), history
}

func TestHealth_ReturnsOK(t *testing.T) {
	hc, history := newHealthController(t, structures.BackendRedis)
	_, err := history.Create(context.Background(), testutil.TinyImage(), nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	hc.Health(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Contains(t, resp, "uptime")
	assert.Contains(t, resp, "uptime_seconds")
	assert.Equal(t, "redis", resp["backend"])
	assert.Equal(t, float64(1), resp["sessions"])
	assert.Equal(t, float64(0), resp["inflight"])
}

func TestHealth_DefaultBackend(t *testing.T) {
	hc, _ := newHealthController(t, "")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	hc.Health(rr, req)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "file", resp["backend"])
}

func TestHealth_MethodNotAllowed(t *testing.T) {
	hc, _ := newHealthController(t, "")

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	rr := httptest.NewRecorder()
	hc.Health(rr, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{"zero", 0, "0h0m0s"},
		{"one minute", 60 * time.Second, "0h1m0s"},
		{"one hour", time.Hour, "1h0m0s"},
		{"mixed", time.Hour + time.Minute + time.Second, "1h1m1s"},
		{"over a day", 25 * time.Hour, "25h0m0s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatDuration(tt.duration))
		})
	}
}
