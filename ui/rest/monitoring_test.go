package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	coreconfig "github.com/uzzaidev/ChatBot-Oficial-sub002/core/config"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/pkg/botmonitor"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/pkg/msgworker"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/pkg/utils"
)

type fakeLogs struct {
	gotTenant string
	gotLimit  int
}

func (f *fakeLogs) Recent(_ context.Context, tenantID string, limit int) ([]botmonitor.TraceRecord, error) {
	f.gotTenant, f.gotLimit = tenantID, limit
	return []botmonitor.TraceRecord{{ID: "exec-1", TenantID: tenantID, Status: botmonitor.StatusCompleted}}, nil
}

func TestMonitoring_Traces(t *testing.T) {
	monitor := botmonitor.New(10, 0)
	tracer := botmonitor.NewTracer(monitor, nil, "test")
	tracer.Start("acme", "5511999999999").Finish(botmonitor.StatusCompleted)

	app := fiber.New()
	InitRestMonitoring(app, monitor, nil, nil)

	status, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/monitoring/traces", nil))
	require.Equal(t, http.StatusOK, status)

	var res struct {
		Results botmonitor.Stats `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &res))
	assert.Equal(t, int64(1), res.Results.TotalCompleted)
	require.Len(t, res.Results.RecentTraces, 1)
	assert.Equal(t, "acme", res.Results.RecentTraces[0].TenantID)
}

func TestMonitoring_WorkerPool(t *testing.T) {
	t.Run("uninitialized", func(t *testing.T) {
		app := fiber.New()
		InitRestMonitoring(app, botmonitor.New(1, 0), nil, nil)

		status, _ := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/monitoring/workers", nil))
		assert.Equal(t, http.StatusServiceUnavailable, status)
	})

	t.Run("initialized", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		pool := msgworker.NewMessageWorkerPool(2, 10)
		pool.Start(ctx)
		t.Cleanup(func() {
			pool.Stop()
			cancel()
		})

		app := fiber.New()
		InitRestMonitoring(app, botmonitor.New(1, 0), pool, nil)

		status, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/monitoring/workers", nil))
		require.Equal(t, http.StatusOK, status)

		var res struct {
			Results msgworker.PoolStats `json:"results"`
		}
		require.NoError(t, json.Unmarshal([]byte(body), &res))
		assert.Equal(t, 2, res.Results.NumWorkers)
	})
}

func TestMonitoring_Executions(t *testing.T) {
	logs := &fakeLogs{}
	app := fiber.New()
	InitRestMonitoring(app, botmonitor.New(1, 0), nil, logs)

	status, _ := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/monitoring/executions/acme?limit=5", nil))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "acme", logs.gotTenant)
	assert.Equal(t, 5, logs.gotLimit)

	status, _ = doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/monitoring/executions/acme?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestMonitoring_Settings(t *testing.T) {
	_, err := coreconfig.LoadConfig()
	require.NoError(t, err)

	app := fiber.New()
	InitRestMonitoring(app, botmonitor.New(1, 0), nil, nil)

	status, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/monitoring/settings", nil))
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "pipeline_debounce_window")
	assert.NotContains(t, body, "APP_SECRET_KEY")
}

func TestHealth(t *testing.T) {
	ok := HealthCheck{Name: "database", Check: func(context.Context) error { return nil }}
	down := HealthCheck{Name: "valkey", Check: func(context.Context) error { return errors.New("dial tcp: refused") }}

	t.Run("all up", func(t *testing.T) {
		app := fiber.New()
		InitRestHealth(app, time.Second, ok)

		status, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/health", nil))
		assert.Equal(t, http.StatusOK, status)

		var res utils.ResponseData
		require.NoError(t, json.Unmarshal([]byte(body), &res))
		assert.Equal(t, "SUCCESS", res.Code)
	})

	t.Run("one down", func(t *testing.T) {
		app := fiber.New()
		InitRestHealth(app, time.Second, ok, down)

		status, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/health", nil))
		assert.Equal(t, http.StatusServiceUnavailable, status)
		assert.Contains(t, body, "dial tcp: refused")
	})
}
