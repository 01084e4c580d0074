package rest

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"
	coreconfig "github.com/uzzaidev/ChatBot-Oficial-sub002/core/config"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/pkg/botmonitor"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/pkg/msgworker"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/pkg/utils"
)

type PoolStatsSource interface {
	GetStats() msgworker.PoolStats
}

// ExecutionLogReader reads persisted traces of one tenant, newest first.
type ExecutionLogReader interface {
	Recent(ctx context.Context, tenantID string, limit int) ([]botmonitor.TraceRecord, error)
}

type Monitoring struct {
	Monitor *botmonitor.Monitor
	Pool    PoolStatsSource
	Logs    ExecutionLogReader
}

// InitRestMonitoring registers the read-only monitoring routes. pool and
// logs may be nil when the process runs inline or without persistence.
func InitRestMonitoring(app fiber.Router, monitor *botmonitor.Monitor, pool PoolStatsSource, logs ExecutionLogReader) Monitoring {
	handler := Monitoring{Monitor: monitor, Pool: pool, Logs: logs}

	group := app.Group("/api/monitoring")
	group.Get("/traces", handler.GetTraces)
	group.Get("/workers", handler.GetWorkerPoolStats)
	group.Get("/executions/:tenantId", handler.GetExecutions)
	group.Get("/settings", handler.GetSettings)

	return handler
}

func (h *Monitoring) GetTraces(c *fiber.Ctx) error {
	return c.JSON(utils.ResponseData{
		Status:  fiber.StatusOK,
		Code:    "SUCCESS",
		Message: "Execution stats retrieved",
		Results: h.Monitor.GetStats(),
	})
}

func (h *Monitoring) GetWorkerPoolStats(c *fiber.Ctx) error {
	if h.Pool == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(utils.ResponseData{
			Status:  fiber.StatusServiceUnavailable,
			Code:    "POOL_DISABLED",
			Message: "Message worker pool not initialized",
		})
	}
	return c.JSON(utils.ResponseData{
		Status:  fiber.StatusOK,
		Code:    "SUCCESS",
		Message: "Worker pool stats retrieved",
		Results: h.Pool.GetStats(),
	})
}

func (h *Monitoring) GetExecutions(c *fiber.Ctx) error {
	if h.Logs == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(utils.ResponseData{
			Status:  fiber.StatusServiceUnavailable,
			Code:    "EXECUTION_LOG_DISABLED",
			Message: "Execution log persistence is disabled",
		})
	}

	limit, err := strconv.Atoi(c.Query("limit", "50"))
	if err != nil || limit <= 0 || limit > 500 {
		return c.Status(fiber.StatusBadRequest).JSON(utils.ResponseData{
			Status:  fiber.StatusBadRequest,
			Code:    "VALIDATION_ERROR",
			Message: "limit must be between 1 and 500",
		})
	}

	records, err := h.Logs.Recent(c.UserContext(), c.Params("tenantId"), limit)
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(utils.ResponseData{
		Status:  fiber.StatusOK,
		Code:    "SUCCESS",
		Message: "Executions retrieved",
		Results: records,
	})
}

// GetSettings exposes the non-secret operational settings of this process.
func (h *Monitoring) GetSettings(c *fiber.Ctx) error {
	return c.JSON(utils.ResponseData{
		Status:  fiber.StatusOK,
		Code:    "SUCCESS",
		Message: "Settings retrieved",
		Results: coreconfig.GetAllSettings(),
	})
}
