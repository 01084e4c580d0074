package rest

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/pkg/utils"
	"golang.org/x/sync/errgroup"
)

// HealthCheck is one dependency probed by GET /api/health.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type HealthRecord struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

type Health struct {
	Checks  []HealthCheck
	Timeout time.Duration
}

func InitRestHealth(app fiber.Router, timeout time.Duration, checks ...HealthCheck) Health {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	handler := Health{Checks: checks, Timeout: timeout}
	app.Get("/api/health", handler.GetStatus)
	return handler
}

func (h *Health) GetStatus(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.Timeout)
	defer cancel()

	records := make([]HealthRecord, len(h.Checks))
	var g errgroup.Group
	for i, check := range h.Checks {
		g.Go(func() error {
			start := time.Now()
			rec := HealthRecord{Name: check.Name, Status: "ok"}
			if err := check.Check(ctx); err != nil {
				rec.Status = "down"
				rec.Error = err.Error()
			}
			rec.LatencyMs = time.Since(start).Milliseconds()
			records[i] = rec
			return nil
		})
	}
	_ = g.Wait()

	for _, rec := range records {
		if rec.Status != "ok" {
			return c.Status(fiber.StatusServiceUnavailable).JSON(utils.ResponseData{
				Status:  fiber.StatusServiceUnavailable,
				Code:    "UNHEALTHY",
				Message: rec.Name + " is down",
				Results: records,
			})
		}
	}
	return c.JSON(utils.ResponseData{
		Status:  fiber.StatusOK,
		Code:    "SUCCESS",
		Message: "Health status retrieved",
		Results: records,
	})
}
