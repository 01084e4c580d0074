package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	clientsDomain "github.com/uzzaidev/ChatBot-Oficial-sub002/clients/domain"
)

// ErrNoTargets is returned by a notifier that has nowhere to deliver a handoff.
var ErrNoTargets = errors.New("no notification targets configured")

// Handoff is the event raised when a conversation must be taken over by a person.
type Handoff struct {
	TenantID     string                            `json:"tenant_id"`
	TenantName   string                            `json:"tenant_name"`
	Phone        string                            `json:"phone"`
	CustomerName string                            `json:"customer_name"`
	Reason       string                            `json:"reason"`
	LastMessage  string                            `json:"last_message"`
	ExecutionID  string                            `json:"execution_id"`
	At           time.Time                         `json:"at"`
	Targets      clientsDomain.NotificationTargets `json:"-"`
}

type Notifier interface {
	NotifyHandoff(ctx context.Context, h Handoff) error
}

// Multi fans a handoff out to every notifier. It succeeds when at least one
// target accepted the event; partial failures are logged.
type Multi struct {
	notifiers []Notifier
}

func NewMulti(notifiers ...Notifier) *Multi {
	out := make([]Notifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			out = append(out, n)
		}
	}
	return &Multi{notifiers: out}
}

func (m *Multi) NotifyHandoff(ctx context.Context, h Handoff) error {
	var (
		failed    []string
		attempted int
		successes int
	)
	for _, n := range m.notifiers {
		err := n.NotifyHandoff(ctx, h)
		if errors.Is(err, ErrNoTargets) {
			continue
		}
		attempted++
		if err != nil {
			failed = append(failed, err.Error())
			continue
		}
		successes++
	}

	log := logrus.WithFields(logrus.Fields{"tenant_id": h.TenantID, "phone": h.Phone})
	if attempted == 0 {
		log.Warn("[NOTIFY] handoff requested but the tenant has no notification targets")
		return ErrNoTargets
	}
	if successes == 0 {
		return fmt.Errorf("all handoff notifications failed: %s", strings.Join(failed, "; "))
	}
	if len(failed) > 0 {
		log.Warnf("[NOTIFY] some handoff notifications failed (succeeded: %d/%d): %s", successes, attempted, strings.Join(failed, "; "))
	} else {
		log.Info("[NOTIFY] handoff notified")
	}
	return nil
}

func subject(h Handoff) string {
	who := h.CustomerName
	if who == "" {
		who = h.Phone
	}
	return fmt.Sprintf("[%s] Atendimento humano solicitado: %s", tenantLabel(h), who)
}

func body(h Handoff) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tenant: %s\n", tenantLabel(h))
	fmt.Fprintf(&b, "Cliente: %s\n", h.CustomerName)
	fmt.Fprintf(&b, "Telefone: %s\n", h.Phone)
	if h.Reason != "" {
		fmt.Fprintf(&b, "Motivo: %s\n", h.Reason)
	}
	if h.LastMessage != "" {
		fmt.Fprintf(&b, "\nÚltima mensagem:\n%s\n", h.LastMessage)
	}
	fmt.Fprintf(&b, "\nExecução: %s\nHorário: %s\n", h.ExecutionID, h.At.UTC().Format(time.RFC3339))
	return b.String()
}

func tenantLabel(h Handoff) string {
	if h.TenantName != "" {
		return h.TenantName
	}
	return h.TenantID
}
