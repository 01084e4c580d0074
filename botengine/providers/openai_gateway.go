package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sirupsen/logrus"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/botengine/domain"
)

const DefaultModel = "gpt-4o-mini"

// Response headers gateways use to flag a cache hit.
var cacheHeaders = []string{"Cf-Aig-Cache-Status", "X-Cache", "X-Gateway-Cache"}

type GatewayConfig struct {
	BaseURL      string
	APIKey       string
	DefaultModel string
	Timeout      time.Duration
	MaxRetries   int
}

// OpenAIGateway is the adapter for an OpenAI compatible AI gateway
type OpenAIGateway struct {
	client       openai.Client
	defaultModel string
	timeout      time.Duration
}

func NewOpenAIGateway(cfg GatewayConfig) *OpenAIGateway {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.DefaultModel
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIGateway{client: openai.NewClient(opts...), defaultModel: model, timeout: timeout}
}

// Generate implements domain.AIGateway
func (g *OpenAIGateway) Generate(ctx context.Context, req domain.GenerateRequest) (domain.AIResponse, error) {
	model := req.Model
	if model == "" {
		model = g.defaultModel
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: buildMessages(req),
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var httpResp *http.Response
	start := time.Now()
	completion, err := g.client.Chat.Completions.New(ctx, params, option.WithResponseInto(&httpResp))
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return domain.AIResponse{}, fmt.Errorf("ai gateway: %w", err)
	}
	if len(completion.Choices) == 0 {
		return domain.AIResponse{}, fmt.Errorf("ai gateway returned no choices")
	}

	choice := completion.Choices[0]
	resp := domain.AIResponse{
		Content:   strings.TrimSpace(choice.Message.Content),
		Model:     completion.Model,
		Provider:  providerOf(httpResp),
		Cached:    cachedResponse(httpResp),
		LatencyMs: latency,
		Usage: domain.UsageStats{
			Model:        completion.Model,
			InputTokens:  int(completion.Usage.PromptTokens),
			OutputTokens: int(completion.Usage.CompletionTokens),
			CachedTokens: int(completion.Usage.PromptTokensDetails.CachedTokens),
		},
	}
	if resp.Model == "" {
		resp.Model = model
	}

	for _, tc := range choice.Message.ToolCalls {
		args := decodeToolArgs(req.TenantID, tc.Function.Name, tc.Function.Arguments)
		resp.ToolCalls = append(resp.ToolCalls, domain.ToolCall{
			ID:      tc.ID,
			Name:    tc.Function.Name,
			Args:    args,
			RawArgs: tc.Function.Arguments,
		})
	}
	resp.Intents = domain.DecodeIntents(resp.ToolCalls)

	logrus.WithFields(logrus.Fields{
		"tenant_id":      req.TenantID,
		"model":          resp.Model,
		"provider":       resp.Provider,
		"cached":         resp.Cached,
		"input_tokens":   resp.Usage.InputTokens,
		"output_tokens":  resp.Usage.OutputTokens,
		"latency_ms":     latency,
		"has_tool_calls": len(resp.ToolCalls) > 0,
	}).Debug("[AI] Chat completed")

	return resp, nil
}

func buildMessages(req domain.GenerateRequest) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	for _, t := range req.History {
		if t.Text == "" {
			continue
		}
		if t.Role == domain.RoleAssistant {
			messages = append(messages, openai.AssistantMessage(t.Text))
		} else {
			messages = append(messages, openai.UserMessage(t.Text))
		}
	}
	if req.UserText != "" {
		messages = append(messages, openai.UserMessage(req.UserText))
	}
	return messages
}

func buildTools(defs []domain.ToolDefinition) []openai.ChatCompletionToolUnionParam {
	tools := make([]openai.ChatCompletionToolUnionParam, 0, len(defs))
	for _, t := range defs {
		tools = append(tools, openai.ChatCompletionToolUnionParam{
			OfFunction: &openai.ChatCompletionFunctionToolParam{
				Function: openai.FunctionDefinitionParam{
					Name:        t.Name,
					Description: openai.String(t.Description),
					Parameters:  openai.FunctionParameters(t.Parameters),
				},
			},
		})
	}
	return tools
}

func cachedResponse(resp *http.Response) bool {
	if resp == nil {
		return false
	}
	for _, h := range cacheHeaders {
		if strings.EqualFold(strings.TrimSpace(resp.Header.Get(h)), "hit") {
			return true
		}
	}
	return false
}

func providerOf(resp *http.Response) string {
	if resp != nil {
		if p := resp.Header.Get("X-Gateway-Provider"); p != "" {
			return p
		}
	}
	return "openai"
}

// decodeToolArgs returns nil args for a call whose arguments are not a JSON
// object; the raw text stays on the ToolCall.
func decodeToolArgs(tenantID, tool, raw string) map[string]any {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		logrus.WithFields(logrus.Fields{"tenant_id": tenantID, "tool": tool, "args": raw}).
			WithError(err).Warn("[AI] malformed tool call arguments, ignoring them")
		return nil
	}
	return args
}
