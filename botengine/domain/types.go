package domain

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolCall representa una intención de la IA de llamar a una herramienta
type ToolCall struct {
	ID      string         `json:"id,omitempty"`
	Name    string         `json:"name"`
	Args    map[string]any `json:"args"`
	RawArgs string         `json:"-"`
}

// ToolDefinition describe una herramienta que el modelo puede invocar
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ChatTurn represents a single turn in a conversation
type ChatTurn struct {
	Role string `json:"role"`
	Text string `json:"text,omitempty"`
}

// UsageStats contiene estadísticas de tokens de una respuesta
type UsageStats struct {
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	CachedTokens int    `json:"cached_tokens"`
}

// GenerateRequest es una petición agnóstica al gateway de IA
type GenerateRequest struct {
	TenantID     string
	Model        string
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
	History      []ChatTurn
	UserText     string
	Tools        []ToolDefinition
}

// AIResponse es la respuesta del gateway. Intents se decodifica una sola vez
// a partir de ToolCalls en el borde del gateway.
type AIResponse struct {
	Content   string
	ToolCalls []ToolCall
	Intents   []Intent
	Usage     UsageStats
	Model     string
	Provider  string
	Cached    bool
	LatencyMs int64
}

// Handoff returns the first handoff intent of the response, if any.
func (r AIResponse) Handoff() (HandoffIntent, bool) {
	for _, in := range r.Intents {
		if h, ok := in.(HandoffIntent); ok {
			return h, true
		}
	}
	return HandoffIntent{}, false
}

// IsSilent reports a valid terminal answer with nothing to send.
func (r AIResponse) IsSilent() bool {
	_, handoff := r.Handoff()
	return !handoff && r.Content == ""
}

// AIGateway is the OpenAI compatible gateway in front of every model provider.
type AIGateway interface {
	Generate(ctx context.Context, req GenerateRequest) (AIResponse, error)
}
