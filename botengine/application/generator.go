package application

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/botengine/domain"
	clientsDomain "github.com/uzzaidev/ChatBot-Oficial-sub002/clients/domain"
	convDomain "github.com/uzzaidev/ChatBot-Oficial-sub002/conversation/domain"
)

var ErrEmptyMessage = errors.New("nothing to generate a reply for")

type ModelDefaults struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// GenerationInput is everything one reply is generated from.
type GenerationInput struct {
	Tenant       *clientsDomain.Tenant
	Message      string
	CustomerName string
	Context      convDomain.ConversationContext
}

type Generator struct {
	gateway  domain.AIGateway
	prompter *Prompter
	defaults ModelDefaults
}

func NewGenerator(gateway domain.AIGateway, prompter *Prompter, defaults ModelDefaults) *Generator {
	if prompter == nil {
		prompter = NewPrompter("", time.UTC)
	}
	return &Generator{gateway: gateway, prompter: prompter, defaults: defaults}
}

// Generate builds the request for the gateway and returns its answer with
// tool calls already decoded into intents.
func (g *Generator) Generate(ctx context.Context, in GenerationInput) (domain.AIResponse, error) {
	if in.Message == "" {
		return domain.AIResponse{}, ErrEmptyMessage
	}

	req := g.request(in)
	resp, err := g.gateway.Generate(ctx, req)
	if err != nil {
		return domain.AIResponse{}, err
	}
	if resp.Intents == nil && len(resp.ToolCalls) > 0 {
		resp.Intents = domain.DecodeIntents(resp.ToolCalls)
	}

	for _, intent := range resp.Intents {
		if u, ok := intent.(domain.UnknownIntent); ok {
			logrus.WithFields(logrus.Fields{"tenant_id": req.TenantID, "tool": u.Name}).
				Warn("[AI] model called a tool this service does not implement, ignoring")
		}
	}
	return resp, nil
}

func (g *Generator) request(in GenerationInput) domain.GenerateRequest {
	req := domain.GenerateRequest{
		Model:       g.defaults.Model,
		Temperature: g.defaults.Temperature,
		MaxTokens:   g.defaults.MaxTokens,
		UserText:    in.Message,
		Tools:       []domain.ToolDefinition{domain.HandoffTool()},
	}

	prompt := PromptInput{
		CustomerName: in.CustomerName,
		Snippets:     in.Context.Snippets,
		RAGDegraded:  in.Context.RAGDegraded,
	}
	if t := in.Tenant; t != nil {
		req.TenantID = t.ID
		prompt.TenantPrompt = t.SystemPrompt
		if t.Model.Model != "" {
			req.Model = t.Model.Model
		}
		if t.Model.Temperature > 0 {
			req.Temperature = t.Model.Temperature
		}
		if t.Model.MaxTokens > 0 {
			req.MaxTokens = t.Model.MaxTokens
		}
	}
	req.SystemPrompt = g.prompter.BuildSystemPrompt(prompt)

	// The batch being answered is already stored as trailing user turns and
	// travels as UserText.
	history := in.Context.History
	for len(history) > 0 && history[len(history)-1].Role == convDomain.RoleUser {
		history = history[:len(history)-1]
	}
	req.History = make([]domain.ChatTurn, 0, len(history))
	for _, m := range history {
		role := domain.RoleUser
		if m.Role == convDomain.RoleAssistant {
			role = domain.RoleAssistant
		}
		req.History = append(req.History, domain.ChatTurn{Role: role, Text: m.Content})
	}
	return req
}
