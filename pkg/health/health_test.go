package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(context.Context) error { return nil }

func fail(context.Context) error { return errors.New("connection refused") }

func TestRunWorstStatusWins(t *testing.T) {
	c := NewChecker()
	c.Register("ranker", ReadyCheck(func() bool { return true }, "3 experts"))
	c.Register("postgres", PingCheck(ok, true))
	assert.Equal(t, StatusUp, c.Run(context.Background()).Status)

	c.Register("redis", PingCheck(fail, false))
	report := c.Run(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, "connection refused", report.Components["redis"].Message)

	c.Register("postgres", PingCheck(fail, true))
	assert.Equal(t, StatusDown, c.Run(context.Background()).Status)
}

func TestReadyHandler(t *testing.T) {
	ready := false
	c := NewChecker()
	c.Register("ranker", ReadyCheck(func() bool { return ready }, ""))

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	ready = true
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var report Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, StatusUp, report.Components["ranker"].Status)
	assert.NotEmpty(t, report.Components["ranker"].Latency)

	c.Register("redis", PingCheck(fail, false))
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"degraded"`)
}

func TestLiveHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker().LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"alive"}`, rec.Body.String())
}

func TestRunReportsPanickingCheckDown(t *testing.T) {
	c := NewChecker()
	c.Register("ranker", func(context.Context) ComponentHealth { panic("nil model") })
	report := c.Run(context.Background())
	assert.Equal(t, StatusDown, report.Status)
	assert.Contains(t, report.Components["ranker"].Message, "nil model")
}

func TestWithDetails(t *testing.T) {
	details := func() map[string]any { return map[string]any{"open": 2} }
	c := NewChecker()
	c.Register("postgres", WithDetails(PingCheck(ok, true), details))
	c.Register("redis", WithDetails(PingCheck(fail, false), details))
	report := c.Run(context.Background())
	assert.Equal(t, 2, report.Components["postgres"].Details["open"])
	assert.Nil(t, report.Components["redis"].Details)
}
