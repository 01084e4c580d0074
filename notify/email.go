package notify

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	TLS      string // none | opportunistic | mandatory
}

// EmailNotifier mails the tenant's handoff addresses over SMTP.
type EmailNotifier struct {
	cfg  SMTPConfig
	send func(ctx context.Context, m *mail.Msg) error
}

func NewEmailNotifier(cfg SMTPConfig) *EmailNotifier {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	n := &EmailNotifier{cfg: cfg}
	n.send = n.dialAndSend
	return n
}

func (n *EmailNotifier) NotifyHandoff(ctx context.Context, h Handoff) error {
	if len(h.Targets.Emails) == 0 || n.cfg.Host == "" {
		return ErrNoTargets
	}
	m, err := n.message(h)
	if err != nil {
		return err
	}
	if err := n.send(ctx, m); err != nil {
		return fmt.Errorf("send handoff email: %w", err)
	}
	return nil
}

func (n *EmailNotifier) message(h Handoff) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(n.cfg.From); err != nil {
		return nil, fmt.Errorf("set from: %w", err)
	}
	if err := m.To(h.Targets.Emails...); err != nil {
		return nil, fmt.Errorf("set to: %w", err)
	}
	m.Subject(subject(h))
	m.SetBodyString(mail.TypeTextPlain, body(h))
	m.SetMessageID()
	return m, nil
}

func (n *EmailNotifier) dialAndSend(ctx context.Context, m *mail.Msg) error {
	opts := []mail.Option{mail.WithPort(n.cfg.Port)}
	if n.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(n.cfg.Username),
			mail.WithPassword(n.cfg.Password),
		)
	}
	switch n.cfg.TLS {
	case "mandatory":
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	case "none":
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	client, err := mail.NewClient(n.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, m)
}
