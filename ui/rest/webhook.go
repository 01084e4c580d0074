package rest

import (
	"bytes"
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/sirupsen/logrus"
	clientsDomain "github.com/uzzaidev/ChatBot-Oficial-sub002/clients/domain"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/infrastructure/whatsapp"
	pkgError "github.com/uzzaidev/ChatBot-Oficial-sub002/pkg/error"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/pkg/utils"
)

// WebhookHandler turns an authenticated webhook body into its acknowledgement.
type WebhookHandler interface {
	Handle(ctx context.Context, tenant *clientsDomain.Tenant, raw []byte) string
}

type WebhookConfig struct {
	VerifyRateMax    int
	VerifyRateWindow time.Duration
}

type Webhook struct {
	Tenants clientsDomain.TenantResolver
	Service WebhookHandler
}

// InitRestWebhook registers the Meta callback routes. They authenticate with
// the tenant's verify token and app secret, never with basic auth.
func InitRestWebhook(app fiber.Router, tenants clientsDomain.TenantResolver, service WebhookHandler, cfg WebhookConfig) Webhook {
	handler := Webhook{Tenants: tenants, Service: service}

	if cfg.VerifyRateMax <= 0 {
		cfg.VerifyRateMax = 10
	}
	if cfg.VerifyRateWindow <= 0 {
		cfg.VerifyRateWindow = time.Minute
	}
	verifyLimiter := limiter.New(limiter.Config{
		Max:        cfg.VerifyRateMax,
		Expiration: cfg.VerifyRateWindow,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(utils.ResponseData{
				Status:  fiber.StatusTooManyRequests,
				Code:    "TOO_MANY_REQUESTS",
				Message: "Too many verification attempts",
			})
		},
	})

	group := app.Group("/api/webhook")
	group.Get("/:tenantId", verifyLimiter, handler.Verify)
	group.Post("/:tenantId", handler.Receive)

	return handler
}

// Verify answers Meta's subscription handshake.
func (h *Webhook) Verify(c *fiber.Ctx) error {
	tenant, err := h.resolve(c)
	if err != nil {
		return renderError(c, err)
	}

	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	if mode != "subscribe" || tenant.VerifyToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(tenant.VerifyToken)) != 1 {
		logrus.WithField("tenant_id", tenant.ID).Warn("[WEBHOOK] verification rejected")
		return renderError(c, pkgError.AuthenticationError("verification token mismatch"))
	}

	logrus.WithField("tenant_id", tenant.ID).Info("[WEBHOOK] verification accepted")
	return c.Status(fiber.StatusOK).SendString(c.Query("hub.challenge"))
}

// Receive authenticates the event and hands it to the service. Anything past
// the signature check is acknowledged with a 200.
func (h *Webhook) Receive(c *fiber.Ctx) error {
	tenant, err := h.resolve(c)
	if err != nil {
		return renderError(c, err)
	}
	if !tenant.HasAppSecret() {
		logrus.WithField("tenant_id", tenant.ID).Error("[WEBHOOK] tenant has no app secret configured")
		return renderError(c, pkgError.ConfigurationError(clientsDomain.ErrMissingAppSecret.Error()))
	}
	if !whatsapp.VerifySignature(tenant.AppSecret, c.Get(whatsapp.SignatureHeader), c.Body()) {
		logrus.WithField("tenant_id", tenant.ID).Warn("[WEBHOOK] invalid signature")
		return renderError(c, pkgError.AuthenticationError("invalid signature"))
	}

	// fasthttp reuses the request buffer once the handler returns
	raw := bytes.Clone(c.Body())
	ack := h.Service.Handle(c.UserContext(), tenant, raw)
	return c.Status(fiber.StatusOK).SendString(ack)
}

func (h *Webhook) resolve(c *fiber.Ctx) (*clientsDomain.Tenant, error) {
	tenantID := c.Params("tenantId")
	tenant, err := h.Tenants.Resolve(c.UserContext(), tenantID)
	if err != nil {
		if errors.Is(err, clientsDomain.ErrTenantNotFound) {
			return nil, pkgError.NotFoundError("tenant not found")
		}
		logrus.WithError(err).WithField("tenant_id", tenantID).Error("[WEBHOOK] tenant lookup failed")
		return nil, &pkgError.TransientInfraError{Op: "tenant.resolve", Err: err}
	}
	if !tenant.IsActive() {
		return nil, pkgError.AuthenticationError(clientsDomain.ErrTenantInactive.Error())
	}
	return tenant, nil
}

func renderError(c *fiber.Ctx, err error) error {
	res := utils.ResponseData{
		Status:  pkgError.StatusOf(err),
		Code:    "INTERNAL_SERVER_ERROR",
		Message: err.Error(),
	}
	var generic pkgError.GenericError
	if errors.As(err, &generic) {
		res.Code = generic.ErrCode()
	}
	return c.Status(res.Status).JSON(res)
}
