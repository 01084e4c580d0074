package application

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	clientsDomain "github.com/uzzaidev/ChatBot-Oficial-sub002/clients/domain"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/dedup"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/pipeline/domain"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/pkg/botmonitor"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/pkg/msgworker"
)

type Deduplicator interface {
	CheckAndMark(ctx context.Context, tenantID, messageID string) dedup.Result
	Release(ctx context.Context, tenantID, messageID string)
}

var ErrJobRejected = errors.New("worker pool rejected the job")

// WebhookService routes an authenticated webhook body to its pipeline and
// decides the acknowledgement. It never fails: once the request is
// authenticated the answer is always a 200.
type WebhookService struct {
	dedup      Deduplicator
	messages   *MessagePipeline
	statuses   *StatusPipeline
	reactions  *ReactionPipeline
	dispatcher Dispatcher
	tracer     *botmonitor.Tracer
}

func NewWebhookService(dedup Deduplicator, messages *MessagePipeline, statuses *StatusPipeline, reactions *ReactionPipeline, dispatcher Dispatcher, tracer *botmonitor.Tracer) *WebhookService {
	if dispatcher == nil {
		dispatcher = InlineDispatcher{}
	}
	if tracer == nil {
		tracer = botmonitor.NewTracer(nil, nil, "")
	}
	return &WebhookService{
		dedup:      dedup,
		messages:   messages,
		statuses:   statuses,
		reactions:  reactions,
		dispatcher: dispatcher,
		tracer:     tracer,
	}
}

func (s *WebhookService) Tracer() *botmonitor.Tracer {
	return s.tracer
}

// Handle returns the acknowledgement body for the event.
func (s *WebhookService) Handle(ctx context.Context, tenant *clientsDomain.Tenant, raw []byte) string {
	log := logrus.WithField("tenant_id", tenant.ID)

	env, err := DecodeEnvelope(raw)
	if err != nil {
		log.WithError(err).Warn("[WEBHOOK] unparsable envelope, acknowledging")
		return domain.AckEventReceived
	}

	switch kind := Classify(env); kind {
	case KindStatus:
		updates := ParseStatuses(env)
		s.dispatch(ctx, tenant.ID, "statuses", func(ctx context.Context) error {
			_, err := s.statuses.Process(ctx, tenant, updates)
			return err
		})
		return domain.AckStatusProcessed

	case KindReaction:
		msg, err := ParseMessage(tenant.ID, env)
		if err != nil {
			log.WithError(err).Warn("[WEBHOOK] invalid reaction, acknowledging")
			return domain.AckReactionHandled
		}
		s.dispatch(ctx, tenant.ID, msg.ID, func(ctx context.Context) error {
			return s.reactions.Process(ctx, tenant, msg)
		})
		return domain.AckReactionHandled

	case KindMessage:
		return s.handleMessage(ctx, tenant, env)

	default:
		log.Debug("[WEBHOOK] envelope without messages or statuses")
		return domain.AckEventReceived
	}
}

// handleMessage acknowledges as duplicate only when every message of the
// envelope was already processed.
func (s *WebhookService) handleMessage(ctx context.Context, tenant *clientsDomain.Tenant, env *domain.Envelope) string {
	inbound := env.Messages()
	if len(inbound) > 1 {
		logrus.WithFields(logrus.Fields{"tenant_id": tenant.ID, "count": len(inbound)}).Info("[WEBHOOK] envelope carries several messages")
	}

	duplicates := 0
	for _, in := range inbound {
		if s.handleInbound(ctx, tenant, in) {
			duplicates++
		}
	}
	if duplicates > 0 && duplicates == len(inbound) {
		return domain.AckDuplicateIgnored
	}
	return domain.AckEventReceived
}

// handleInbound dedups one message and dispatches it. It reports whether
// the message was a duplicate.
func (s *WebhookService) handleInbound(ctx context.Context, tenant *clientsDomain.Tenant, in domain.InboundMessage) bool {
	log := logrus.WithField("tenant_id", tenant.ID)

	msgID := in.Message.ID
	if msgID == "" {
		log.Warn("[WEBHOOK] message without id, acknowledging")
		return false
	}

	trace := s.tracer.Start(tenant.ID, in.Message.From)
	span := trace.Span("dedup")
	res := s.dedup.CheckAndMark(ctx, tenant.ID, msgID)
	span.End(string(res.Source))
	if res.AlreadyProcessed {
		trace.Annotate("message_id", msgID)
		trace.Finish(botmonitor.StatusSkipped)
		log.WithFields(logrus.Fields{"message_id": msgID, "source": res.Source}).Info("[WEBHOOK] duplicate message ignored")
		return true
	}

	msg, err := ParseInbound(tenant.ID, in)
	if err != nil {
		trace.Annotate("message_id", msgID)
		trace.Span("parse").Fail(err)
		trace.Finish(botmonitor.StatusFailed)
		log.WithError(err).WithField("message_id", msgID).Warn("[WEBHOOK] invalid message, acknowledging")
		return false
	}

	queued := s.dispatch(ctx, tenant.ID, msg.ID, func(ctx context.Context) error {
		return s.runMessage(ctx, tenant, msg, trace)
	})
	if !queued {
		// unmarked so that the redelivery from Meta is processed
		s.dedup.Release(ctx, tenant.ID, msg.ID)
		trace.Finish(botmonitor.StatusFailed)
	}
	return false
}

// runMessage holds a worker for the intake and for the answer only. The batch
// window is waited out on a parked job, so every message of a burst reaches
// the batch before it closes.
func (s *WebhookService) runMessage(ctx context.Context, tenant *clientsDomain.Tenant, msg domain.ParsedMessage, trace *botmonitor.Trace) error {
	pending, err := s.messages.Intake(ctx, tenant, msg, trace)
	if err != nil || pending == nil {
		return err
	}
	if !pending.Batched() {
		return pending.Answer(ctx)
	}

	parked := s.dispatcher.Park(ctx, msgworker.MessageJob{TenantID: tenant.ID, MessageID: msg.ID, Handler: func(ctx context.Context) error {
		lead, err := pending.Wait(ctx)
		if err != nil || !lead {
			return err
		}
		if !s.dispatch(ctx, tenant.ID, msg.ID, pending.Answer) {
			return pending.Abort("answer", ErrJobRejected)
		}
		return nil
	}})
	if !parked {
		return pending.Abort("batch_wait", ErrJobRejected)
	}
	return nil
}

func (s *WebhookService) dispatch(ctx context.Context, tenantID, jobID string, fn func(ctx context.Context) error) bool {
	ok := s.dispatcher.Dispatch(ctx, msgworker.MessageJob{TenantID: tenantID, MessageID: jobID, Handler: fn})
	if !ok {
		logrus.WithFields(logrus.Fields{"tenant_id": tenantID, "job": jobID}).Error("[WEBHOOK] worker pool rejected the job, event dropped")
	}
	return ok
}
