package rest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clientsDomain "github.com/uzzaidev/ChatBot-Oficial-sub002/clients/domain"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/infrastructure/whatsapp"
	pipelineDomain "github.com/uzzaidev/ChatBot-Oficial-sub002/pipeline/domain"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/pkg/utils"
)

type mapResolver struct {
	tenants map[string]*clientsDomain.Tenant
	err     error
}

func (r mapResolver) Resolve(_ context.Context, id string) (*clientsDomain.Tenant, error) {
	if r.err != nil {
		return nil, r.err
	}
	t, ok := r.tenants[id]
	if !ok {
		return nil, clientsDomain.ErrTenantNotFound
	}
	copied := *t
	return &copied, nil
}

type recordingHandler struct {
	mu   sync.Mutex
	ack  string
	raws []string
}

func (h *recordingHandler) Handle(_ context.Context, tenant *clientsDomain.Tenant, raw []byte) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.raws = append(h.raws, tenant.ID+":"+string(raw))
	return h.ack
}

func (h *recordingHandler) calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.raws...)
}

func newWebhookApp(t *testing.T, handler *recordingHandler, cfg WebhookConfig) *fiber.App {
	t.Helper()
	resolver := mapResolver{tenants: map[string]*clientsDomain.Tenant{
		"acme":     {ID: "acme", Status: clientsDomain.TenantActive, VerifyToken: "verify-me", AppSecret: "shh"},
		"paused":   {ID: "paused", Status: clientsDomain.TenantInactive, VerifyToken: "verify-me", AppSecret: "shh"},
		"nosecret": {ID: "nosecret", Status: clientsDomain.TenantActive, VerifyToken: "verify-me"},
	}}
	app := fiber.New()
	InitRestWebhook(app, resolver, handler, cfg)
	return app
}

func sign(t *testing.T, body, secret string) string {
	t.Helper()
	digest, err := utils.GetMessageDigestOrSignature([]byte(body), []byte(secret))
	require.NoError(t, err)
	return utils.SignaturePrefix + digest
}

func doRequest(t *testing.T, app *fiber.App, req *http.Request) (int, string) {
	t.Helper()
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func verifyRequest(tenant, mode, token, challenge string) *http.Request {
	return httptest.NewRequest(http.MethodGet,
		"/api/webhook/"+tenant+"?hub.mode="+mode+"&hub.verify_token="+token+"&hub.challenge="+challenge, nil)
}

func TestWebhookVerify(t *testing.T) {
	app := newWebhookApp(t, &recordingHandler{}, WebhookConfig{VerifyRateMax: 100})

	cases := []struct {
		name   string
		req    *http.Request
		status int
		body   string
	}{
		{"challenge echoed", verifyRequest("acme", "subscribe", "verify-me", "123"), http.StatusOK, "123"},
		{"wrong token", verifyRequest("acme", "subscribe", "nope", "123"), http.StatusForbidden, ""},
		{"wrong mode", verifyRequest("acme", "unsubscribe", "verify-me", "123"), http.StatusForbidden, ""},
		{"unknown tenant", verifyRequest("ghost", "subscribe", "verify-me", "123"), http.StatusNotFound, ""},
		{"inactive tenant", verifyRequest("paused", "subscribe", "verify-me", "123"), http.StatusForbidden, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := doRequest(t, app, tc.req)
			assert.Equal(t, tc.status, status)
			if tc.body != "" {
				assert.Equal(t, tc.body, body)
			}
		})
	}
}

func TestWebhookVerify_RateLimitedPerIP(t *testing.T) {
	app := newWebhookApp(t, &recordingHandler{}, WebhookConfig{VerifyRateMax: 2, VerifyRateWindow: time.Minute})

	for i := 0; i < 2; i++ {
		status, _ := doRequest(t, app, verifyRequest("acme", "subscribe", "nope", "1"))
		assert.Equal(t, http.StatusForbidden, status)
	}
	status, _ := doRequest(t, app, verifyRequest("acme", "subscribe", "verify-me", "1"))
	assert.Equal(t, http.StatusTooManyRequests, status)
}

func TestWebhookReceive(t *testing.T) {
	const payload = `{"object":"whatsapp_business_account","entry":[]}`

	post := func(tenant, body, signature string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/webhook/"+tenant, strings.NewReader(body))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		if signature != "" {
			req.Header.Set(whatsapp.SignatureHeader, signature)
		}
		return req
	}

	t.Run("valid signature is acknowledged", func(t *testing.T) {
		handler := &recordingHandler{ack: pipelineDomain.AckEventReceived}
		app := newWebhookApp(t, handler, WebhookConfig{})

		status, body := doRequest(t, app, post("acme", payload, sign(t, payload, "shh")))
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, pipelineDomain.AckEventReceived, body)
		assert.Equal(t, []string{"acme:" + payload}, handler.calls())
	})

	t.Run("duplicate ack passes through", func(t *testing.T) {
		handler := &recordingHandler{ack: pipelineDomain.AckDuplicateIgnored}
		app := newWebhookApp(t, handler, WebhookConfig{})

		status, body := doRequest(t, app, post("acme", payload, sign(t, payload, "shh")))
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, pipelineDomain.AckDuplicateIgnored, body)
	})

	rejected := []struct {
		name   string
		req    func() *http.Request
		status int
	}{
		{"unknown tenant", func() *http.Request { return post("ghost", payload, sign(t, payload, "shh")) }, http.StatusNotFound},
		{"inactive tenant", func() *http.Request { return post("paused", payload, sign(t, payload, "shh")) }, http.StatusForbidden},
		{"missing app secret", func() *http.Request { return post("nosecret", payload, sign(t, payload, "shh")) }, http.StatusInternalServerError},
		{"missing signature", func() *http.Request { return post("acme", payload, "") }, http.StatusForbidden},
		{"wrong secret", func() *http.Request { return post("acme", payload, sign(t, payload, "other")) }, http.StatusForbidden},
		{"tampered body", func() *http.Request { return post("acme", payload+" ", sign(t, payload, "shh")) }, http.StatusForbidden},
	}
	for _, tc := range rejected {
		t.Run(tc.name, func(t *testing.T) {
			handler := &recordingHandler{ack: pipelineDomain.AckEventReceived}
			app := newWebhookApp(t, handler, WebhookConfig{})

			status, _ := doRequest(t, app, tc.req())
			assert.Equal(t, tc.status, status)
			assert.Empty(t, handler.calls(), "rejected requests never reach the pipeline")
		})
	}
}

func TestWebhookReceive_ResolverFailure(t *testing.T) {
	app := fiber.New()
	InitRestWebhook(app, mapResolver{err: errors.New("connection refused")}, &recordingHandler{}, WebhookConfig{})

	status, _ := doRequest(t, app, httptest.NewRequest(http.MethodPost, "/api/webhook/acme", strings.NewReader("{}")))
	assert.Equal(t, http.StatusServiceUnavailable, status)
}
