package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Status is who currently owns the conversation with a customer.
type Status string

const (
	StatusBot         Status = "bot"
	StatusHuman       Status = "human"
	StatusTransferred Status = "transferred"
)

var (
	ErrCustomerNotFound  = errors.New("customer not found")
	ErrInvalidTransition = errors.New("invalid customer status transition")
)

type Customer struct {
	TenantID  string
	Phone     string
	Name      string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AcceptsBotReplies reports whether the AI may answer this customer.
func (c *Customer) AcceptsBotReplies() bool {
	return c.Status == StatusBot || c.Status == ""
}

// CanTransition validates automatic (pipeline driven) transitions:
// bot -> human -> transferred. Going back to bot only happens through an
// external action, see ExternalStatusSetter.
func CanTransition(from, to Status) bool {
	if from == "" {
		from = StatusBot
	}
	if from == to {
		return true
	}
	switch from {
	case StatusBot:
		return to == StatusHuman || to == StatusTransferred
	case StatusHuman:
		return to == StatusTransferred
	default:
		return false
	}
}

func ValidateTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// Store is the customer persistence used by the pipeline.
type Store interface {
	GetOrCreate(ctx context.Context, tenantID, phone, name string) (*Customer, error)
	// SetStatus applies an automatic transition and rejects a return to bot.
	SetStatus(ctx context.Context, tenantID, phone string, status Status) error
}

// ExternalStatusSetter is used by operators (dashboard, CLI) to hand a
// conversation back to the bot.
type ExternalStatusSetter interface {
	ExternalSetStatus(ctx context.Context, tenantID, phone string, status Status) error
}
