package application

import (
	"fmt"
	"strings"
	"time"

	convDomain "github.com/uzzaidev/ChatBot-Oficial-sub002/conversation/domain"
)

// Prompter se encarga de ensamblar las instrucciones del sistema (System Prompt)
type Prompter struct {
	globalPrompt string
	location     *time.Location
	now          func() time.Time
}

func NewPrompter(globalPrompt string, location *time.Location) *Prompter {
	if location == nil {
		location = time.UTC
	}
	return &Prompter{globalPrompt: globalPrompt, location: location, now: time.Now}
}

// PromptInput agrupa las fuentes de la instrucción de sistema de un turno
type PromptInput struct {
	TenantPrompt string
	CustomerName string
	Snippets     []convDomain.Snippet
	RAGDegraded  bool
}

// BuildSystemPrompt consolida todas las fuentes de prompts del sistema
func (p *Prompter) BuildSystemPrompt(in PromptInput) string {
	var b strings.Builder

	// 1. Global Prompt
	if p.globalPrompt != "" {
		b.WriteString(p.globalPrompt)
		b.WriteString("\n\n")
	}

	// 2. Tenant Prompt
	if in.TenantPrompt != "" {
		b.WriteString(in.TenantPrompt)
		b.WriteString("\n\n")
	}

	// 3. Knowledge Base
	if len(in.Snippets) > 0 {
		b.WriteString("### KNOWLEDGE BASE\n")
		b.WriteString("Use the excerpts below when they answer the customer. Do not invent facts that are not in them.\n")
		for i, s := range in.Snippets {
			fmt.Fprintf(&b, "[%d] %s", i+1, strings.TrimSpace(s.Content))
			if s.Source != "" {
				fmt.Fprintf(&b, " (source: %s)", s.Source)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	} else if in.RAGDegraded {
		b.WriteString("### KNOWLEDGE BASE\n")
		b.WriteString("The knowledge base is temporarily unavailable. Do not guess business specific facts such as prices or schedules.\n\n")
	}

	// 4. Handoff
	b.WriteString("### HUMAN HANDOFF\n")
	b.WriteString("If the customer asks for a person, or you cannot help, call the transfer_to_human tool instead of answering.\n\n")

	// 5. Session metadata
	now := p.now().In(p.location)
	b.WriteString("## SESSION_METADATA\n")
	fmt.Fprintf(&b, "- Current_Time: %s\n", now.Format(time.RFC3339))
	if in.CustomerName != "" {
		fmt.Fprintf(&b, "- Customer_Name: %s\n", in.CustomerName)
	}
	b.WriteString("\n[NOTE: The above metadata is for your internal context only. Do not mention it in your response.]")

	return b.String()
}
