package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/botengine/domain"
)

const toolCallCompletion = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4o-mini",
  "choices": [{
    "index": 0,
    "finish_reason": "tool_calls",
    "message": {
      "role": "assistant",
      "content": null,
      "tool_calls": [{
        "id": "call_1",
        "type": "function",
        "function": {"name": "transfer_to_human", "arguments": "{\"reason\":\"pediu atendente\"}"}
      }]
    }
  }],
  "usage": {"prompt_tokens": 120, "completion_tokens": 9, "total_tokens": 129}
}`

const textCompletion = `{
  "id": "chatcmpl-2",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4o-mini",
  "choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Abrimos às 9h."}}],
  "usage": {"prompt_tokens": 80, "completion_tokens": 5, "total_tokens": 85}
}`

func newGatewayServer(t *testing.T, body string, headers map[string]string, captured *map[string]any) *OpenAIGateway {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		if captured != nil {
			_ = json.Unmarshal(raw, captured)
		}
		for k, v := range headers {
			w.Header().Set(k, v)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return NewOpenAIGateway(GatewayConfig{BaseURL: srv.URL, APIKey: "test", Timeout: 5 * time.Second})
}

func TestGenerate_DecodesHandoffToolCall(t *testing.T) {
	var req map[string]any
	gw := newGatewayServer(t, toolCallCompletion, map[string]string{"Cf-Aig-Cache-Status": "MISS"}, &req)

	resp, err := gw.Generate(context.Background(), domain.GenerateRequest{
		TenantID:     "acme",
		SystemPrompt: "Você é um assistente.",
		History:      []domain.ChatTurn{{Role: domain.RoleUser, Text: "oi"}, {Role: domain.RoleAssistant, Text: "olá"}},
		UserText:     "quero falar com alguém",
		Tools:        []domain.ToolDefinition{domain.HandoffTool()},
	})
	require.NoError(t, err)

	handoff, ok := resp.Handoff()
	require.True(t, ok)
	assert.Equal(t, "pediu atendente", handoff.Reason)
	assert.Empty(t, resp.Content)
	assert.False(t, resp.Cached)
	assert.Equal(t, 120, resp.Usage.InputTokens)

	assert.Equal(t, DefaultModel, req["model"])
	messages := req["messages"].([]any)
	assert.Len(t, messages, 4)
	assert.Len(t, req["tools"].([]any), 1)
}

func TestGenerate_TextAndCacheHeader(t *testing.T) {
	gw := newGatewayServer(t, textCompletion, map[string]string{"Cf-Aig-Cache-Status": "HIT", "X-Gateway-Provider": "anthropic"}, nil)

	resp, err := gw.Generate(context.Background(), domain.GenerateRequest{UserText: "que horas abre?", Model: "gpt-4o-mini", Temperature: 0.2, MaxTokens: 256})
	require.NoError(t, err)
	assert.Equal(t, "Abrimos às 9h.", resp.Content)
	assert.True(t, resp.Cached)
	assert.Equal(t, "anthropic", resp.Provider)
	assert.Empty(t, resp.Intents)
}

func TestGenerate_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = io.WriteString(w, `{"error":{"message":"budget exceeded","type":"budget"}}`)
	}))
	defer srv.Close()

	gw := NewOpenAIGateway(GatewayConfig{BaseURL: srv.URL, APIKey: "test"})
	_, err := gw.Generate(context.Background(), domain.GenerateRequest{UserText: "oi"})
	assert.ErrorContains(t, err, "ai gateway")
}

func TestGenerate_MalformedToolArgumentsAreLogged(t *testing.T) {
	hook := test.NewGlobal()
	t.Cleanup(func() { logrus.StandardLogger().ReplaceHooks(make(logrus.LevelHooks)) })

	body := strings.Replace(toolCallCompletion, `"{\"reason\":\"pediu atendente\"}"`, `"{\"reason\": pediu"`, 1)
	require.NotEqual(t, toolCallCompletion, body)
	gw := newGatewayServer(t, body, nil, nil)

	resp, err := gw.Generate(context.Background(), domain.GenerateRequest{TenantID: "acme", UserText: "quero um humano"})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Nil(t, resp.ToolCalls[0].Args)
	assert.Equal(t, `{"reason": pediu`, resp.ToolCalls[0].RawArgs)

	var warned *logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["tool"] == "transfer_to_human" {
			warned = e
		}
	}
	require.NotNil(t, warned, "malformed arguments must leave a trace")
	assert.Equal(t, "acme", warned.Data["tenant_id"])
}
