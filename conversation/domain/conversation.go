package domain

import (
	"context"
	"errors"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

var ErrMessageNotFound = errors.New("message not found")

// ChatMessage is one persisted conversation turn.
type ChatMessage struct {
	ID                string
	TenantID          string
	Phone             string
	Role              Role
	Content           string
	ProviderMessageID string
	DeliveryStatus    string
	Reaction          string
	ExecutionID       string
	CreatedAt         time.Time
}

// Snippet is a knowledge base fragment retrieved for a query.
type Snippet struct {
	ID      string
	Content string
	Source  string
	Score   float32
}

// ConversationContext is what the generator receives besides the new message.
type ConversationContext struct {
	History     []ChatMessage // oldest first
	Snippets    []Snippet
	RAGDegraded bool
}

type HistoryStore interface {
	Append(ctx context.Context, msg *ChatMessage) error
	// FetchRecent returns at most limit messages, oldest first.
	FetchRecent(ctx context.Context, tenantID, phone string, limit int) ([]ChatMessage, error)
	UpdateDeliveryStatus(ctx context.Context, tenantID, providerMessageID, status string) error
	SetReaction(ctx context.Context, tenantID, providerMessageID, emoji string) error
}

type KnowledgeStore interface {
	Query(ctx context.Context, tenantID, text string, topK int, threshold float32) ([]Snippet, error)
}

var deliveryRank = map[string]int{
	"accepted":  0,
	"sent":      1,
	"delivered": 2,
	"read":      3,
}

// AdvancesDelivery reports whether a receipt moves the stored status forward.
// Receipts can arrive out of order; "failed" always applies.
func AdvancesDelivery(current, next string) bool {
	if next == "failed" {
		return true
	}
	if current == "failed" {
		return false
	}
	nextRank, ok := deliveryRank[next]
	if !ok {
		return false
	}
	currentRank, ok := deliveryRank[current]
	if !ok {
		return true
	}
	return nextRank > currentRank
}
