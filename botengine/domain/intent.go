package domain

import "strings"

// HandoffToolName is the tool the model calls to hand the conversation to a person.
const HandoffToolName = "transfer_to_human"

// Older prompts used the Portuguese name.
var handoffAliases = map[string]bool{
	HandoffToolName:          true,
	"transferir_atendimento": true,
}

// Intent is a tool call the pipeline knows how to act upon.
type Intent interface {
	intent()
}

type HandoffIntent struct {
	Reason string
}

// UnknownIntent keeps calls to tools this service does not implement.
type UnknownIntent struct {
	Name string
	Args map[string]any
}

func (HandoffIntent) intent() {}
func (UnknownIntent) intent() {}

// DecodeIntents maps raw tool calls to intents, preserving order.
func DecodeIntents(calls []ToolCall) []Intent {
	if len(calls) == 0 {
		return nil
	}
	out := make([]Intent, 0, len(calls))
	for _, c := range calls {
		name := strings.ToLower(strings.TrimSpace(c.Name))
		if handoffAliases[name] {
			reason, _ := c.Args["reason"].(string)
			if reason == "" {
				reason, _ = c.Args["motivo"].(string)
			}
			out = append(out, HandoffIntent{Reason: strings.TrimSpace(reason)})
			continue
		}
		out = append(out, UnknownIntent{Name: c.Name, Args: c.Args})
	}
	return out
}

// HandoffTool is declared on every generation request.
func HandoffTool() ToolDefinition {
	return ToolDefinition{
		Name:        HandoffToolName,
		Description: "Transfer the conversation to a human attendant when the customer asks for a person or the request cannot be solved by the assistant.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"reason": map[string]any{
					"type":        "string",
					"description": "Short reason for the transfer.",
				},
			},
			"required":             []string{"reason"},
			"additionalProperties": false,
		},
	}
}
