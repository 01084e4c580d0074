package application

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	clientsDomain "github.com/uzzaidev/ChatBot-Oficial-sub002/clients/domain"
	convDomain "github.com/uzzaidev/ChatBot-Oficial-sub002/conversation/domain"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/pipeline/domain"
)

// StatusPipeline applies delivery receipts to the stored outbound messages.
type StatusPipeline struct {
	history convDomain.HistoryStore
}

func NewStatusPipeline(history convDomain.HistoryStore) *StatusPipeline {
	return &StatusPipeline{history: history}
}

// Process returns how many receipts matched a stored message. Receipts for
// messages this service did not send are ignored.
func (p *StatusPipeline) Process(ctx context.Context, tenant *clientsDomain.Tenant, updates []domain.StatusUpdate) (int, error) {
	applied := 0
	var errs []error
	for _, u := range updates {
		err := p.history.UpdateDeliveryStatus(ctx, tenant.ID, u.ProviderMessageID, u.Status)
		switch {
		case err == nil:
			applied++
		case errors.Is(err, convDomain.ErrMessageNotFound):
			logrus.WithFields(logrus.Fields{"tenant_id": tenant.ID, "wamid": u.ProviderMessageID}).Debug("[STATUS] receipt for unknown message")
		default:
			errs = append(errs, err)
		}
		if u.Status == "failed" {
			logrus.WithFields(logrus.Fields{
				"tenant_id": tenant.ID,
				"wamid":     u.ProviderMessageID,
				"recipient": u.RecipientPhone,
				"error":     u.ErrorTitle,
			}).Warn("[STATUS] outbound message failed")
		}
	}
	return applied, errors.Join(errs...)
}

// ReactionPipeline records a customer's reaction on the message it targets.
type ReactionPipeline struct {
	history convDomain.HistoryStore
}

func NewReactionPipeline(history convDomain.HistoryStore) *ReactionPipeline {
	return &ReactionPipeline{history: history}
}

func (p *ReactionPipeline) Process(ctx context.Context, tenant *clientsDomain.Tenant, msg domain.ParsedMessage) error {
	if msg.Reaction == nil {
		return nil
	}
	err := p.history.SetReaction(ctx, tenant.ID, msg.Reaction.TargetMessageID, msg.Reaction.Emoji)
	if errors.Is(err, convDomain.ErrMessageNotFound) {
		logrus.WithFields(logrus.Fields{"tenant_id": tenant.ID, "wamid": msg.Reaction.TargetMessageID}).Debug("[REACTION] target message not stored")
		return nil
	}
	return err
}
