package application

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/botengine/domain"
	clientsDomain "github.com/uzzaidev/ChatBot-Oficial-sub002/clients/domain"
	customerDomain "github.com/uzzaidev/ChatBot-Oficial-sub002/customers/domain"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/notify"
)

type HandoffRequest struct {
	Tenant      *clientsDomain.Tenant
	Customer    *customerDomain.Customer
	Intent      domain.HandoffIntent
	LastMessage string
	ExecutionID string
}

// HandoffService moves a conversation out of the bot's hands.
type HandoffService struct {
	customers customerDomain.Store
	notifier  notify.Notifier
	now       func() time.Time
}

func NewHandoffService(customers customerDomain.Store, notifier notify.Notifier) *HandoffService {
	return &HandoffService{customers: customers, notifier: notifier, now: time.Now}
}

// Execute sets the customer to human and notifies the tenant's attendants.
// The customer becomes transferred once a notification was accepted. Only
// the first status change is required to succeed.
func (s *HandoffService) Execute(ctx context.Context, req HandoffRequest) (customerDomain.Status, error) {
	tenantID, phone := req.Tenant.ID, req.Customer.Phone
	if err := s.customers.SetStatus(ctx, tenantID, phone, customerDomain.StatusHuman); err != nil {
		return req.Customer.Status, fmt.Errorf("set customer status to human: %w", err)
	}
	req.Customer.Status = customerDomain.StatusHuman

	log := logrus.WithFields(logrus.Fields{
		"tenant_id":    tenantID,
		"phone":        phone,
		"execution_id": req.ExecutionID,
	})
	if s.notifier == nil {
		log.Warn("[HANDOFF] no notifier configured, customer left waiting for a human")
		return customerDomain.StatusHuman, nil
	}

	err := s.notifier.NotifyHandoff(ctx, notify.Handoff{
		TenantID:     tenantID,
		TenantName:   req.Tenant.Name,
		Phone:        phone,
		CustomerName: req.Customer.Name,
		Reason:       req.Intent.Reason,
		LastMessage:  req.LastMessage,
		ExecutionID:  req.ExecutionID,
		At:           s.now().UTC(),
		Targets:      req.Tenant.Notify,
	})
	if err != nil {
		log.WithError(err).Warn("[HANDOFF] notification failed, customer stays in human status")
		return customerDomain.StatusHuman, nil
	}

	if err := s.customers.SetStatus(ctx, tenantID, phone, customerDomain.StatusTransferred); err != nil {
		log.WithError(err).Warn("[HANDOFF] failed to mark customer as transferred")
		return customerDomain.StatusHuman, nil
	}
	req.Customer.Status = customerDomain.StatusTransferred
	log.WithField("reason", req.Intent.Reason).Info("[HANDOFF] conversation transferred to a human")
	return customerDomain.StatusTransferred, nil
}
