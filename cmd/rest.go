package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	coreconfig "github.com/uzzaidev/ChatBot-Oficial-sub002/core/config"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/ui/rest"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/ui/rest/middleware"
)

var restCmd = &cobra.Command{
	Use:   "rest",
	Short: "Serve the WhatsApp webhook API",
	Run:   restServer,
}

func init() {
	rootCmd.AddCommand(restCmd)
}

func restServer(_ *cobra.Command, _ []string) {
	cfg := coreconfig.Global

	app, err := NewApp(context.Background(), cfg)
	if err != nil {
		logrus.Fatalf("[REST] failed to start: %v", err)
	}

	server := newServer(cfg, app)

	// Graceful shutdown handler
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logrus.Info("[REST] Reception of termination signal, shutting down gracefully...")
		if err := server.ShutdownWithTimeout(30 * time.Second); err != nil {
			logrus.Errorf("[REST] Error during Fiber shutdown: %v", err)
		}
	}()

	if err := server.Listen(":" + cfg.App.Port); err != nil {
		logrus.Errorf("[REST] Failed to start: %v", err)
	}
	app.Close()
}

func newServer(cfg *coreconfig.Config, app *App) *fiber.App {
	fiberConfig := fiber.Config{
		EnableTrustedProxyCheck: true,
		BodyLimit:               4 * 1024 * 1024,
		Network:                 "tcp",
		AppName:                 "ChatBot Webhook Engine",
		ServerHeader:            "Hidden",
	}
	if len(cfg.App.TrustedProxies) > 0 {
		fiberConfig.TrustedProxies = cfg.App.TrustedProxies
		fiberConfig.ProxyHeader = fiber.HeaderXForwardedFor
	}

	server := fiber.New(fiberConfig)
	server.Use(requestid.New())
	server.Use(middleware.Recovery())
	if cfg.App.Debug {
		server.Use(logger.New())
	}

	base := server.Group(cfg.App.BasePath)

	// Meta authenticates with the tenant's verify token and app secret
	webhookPrefix := cfg.App.BasePath + "/api/webhook"
	rest.InitRestWebhook(base, app.Tenants, app.Service, rest.WebhookConfig{
		VerifyRateMax:    cfg.App.VerifyRateMax,
		VerifyRateWindow: cfg.App.VerifyRateTTL,
	})

	// Everything else sits behind basic auth when credentials are configured
	if account := basicAuthAccounts(cfg.App.BasicAuth); len(account) > 0 {
		base.Use(basicauth.New(basicauth.Config{
			Users: account,
			Next: func(c *fiber.Ctx) bool {
				return c.Method() == fiber.MethodOptions || strings.HasPrefix(c.Path(), webhookPrefix)
			},
		}))
	} else {
		logrus.Warn("[REST] APP_BASIC_AUTH is empty, health and monitoring endpoints are public")
	}

	checks := []rest.HealthCheck{{Name: "database", Check: app.DB.Probe}}
	if app.Valkey != nil {
		checks = append(checks, rest.HealthCheck{Name: "valkey", Check: app.Valkey.Ping})
	}
	rest.InitRestHealth(base, cfg.Database.ProbeTimeout, checks...)

	var pool rest.PoolStatsSource
	if app.Pool != nil {
		pool = app.Pool
	}
	var logs rest.ExecutionLogReader
	if app.ExecLogs != nil {
		logs = app.ExecLogs
	}
	rest.InitRestMonitoring(base, app.Monitor, pool, logs)

	return server
}

func basicAuthAccounts(credentials []string) map[string]string {
	account := make(map[string]string)
	for _, basicAuth := range credentials {
		ba := strings.SplitN(basicAuth, ":", 2)
		if len(ba) != 2 || ba[0] == "" {
			logrus.Fatalln("Basic auth is not valid, please this following format <user>:<secret>")
		}
		account[ba[0]] = ba[1]
	}
	return account
}
