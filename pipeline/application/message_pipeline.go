package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/batching"
	botApp "github.com/uzzaidev/ChatBot-Oficial-sub002/botengine/application"
	botDomain "github.com/uzzaidev/ChatBot-Oficial-sub002/botengine/domain"
	clientsDomain "github.com/uzzaidev/ChatBot-Oficial-sub002/clients/domain"
	convDomain "github.com/uzzaidev/ChatBot-Oficial-sub002/conversation/domain"
	customerDomain "github.com/uzzaidev/ChatBot-Oficial-sub002/customers/domain"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/delivery"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/pipeline/domain"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/pkg/botmonitor"
)

type MediaProcessor interface {
	Process(ctx context.Context, tenant *clientsDomain.Tenant, msg domain.ParsedMessage) (string, error)
}

type Batcher interface {
	Add(ctx context.Context, key, token, content string) error
	Wait(ctx context.Context, key, token string) (batching.Batch, error)
}

type ContextAssembler interface {
	Assemble(ctx context.Context, tenantID, phone, text string, useKnowledge bool) (convDomain.ConversationContext, error)
}

type ReplyGenerator interface {
	Generate(ctx context.Context, in botApp.GenerationInput) (botDomain.AIResponse, error)
}

type HandoffExecutor interface {
	Execute(ctx context.Context, req botApp.HandoffRequest) (customerDomain.Status, error)
}

type ReplyFormatter interface {
	Format(content string) []delivery.Segment
}

type ReplyDeliverer interface {
	Deliver(ctx context.Context, tenant *clientsDomain.Tenant, phone string, segments []delivery.Segment) delivery.Result
}

// MessageDeps are the collaborators of the message pipeline. Batcher may be
// nil, every message is then answered on its own.
type MessageDeps struct {
	Customers customerDomain.Store
	Media     MediaProcessor
	Batcher   Batcher
	History   convDomain.HistoryStore
	Assembler ContextAssembler
	Generator ReplyGenerator
	Handoff   HandoffExecutor
	Formatter ReplyFormatter
	Deliverer ReplyDeliverer
}

// MessagePipeline answers one inbound customer message. A turn runs in three
// legs: intake up to storing the message in its batch, the batch wait, and
// the answer.
type MessagePipeline struct {
	deps   MessageDeps
	intake []Stage
	wait   []Stage
	answer []Stage
}

func NewMessagePipeline(deps MessageDeps) *MessagePipeline {
	p := &MessagePipeline{deps: deps}
	p.intake = []Stage{
		{Name: "customer", Class: Critical, Run: p.loadCustomer},
		{Name: "gate", Class: Critical, Run: p.gate},
		{Name: "media", Class: Critical, Run: p.processMedia},
		{Name: "normalize", Class: Critical, Run: p.normalize},
		{Name: "batch_push", Class: Enrichment, Run: p.pushBatch},
		{Name: "save_user_message", Class: Enrichment, Run: p.saveUserMessage},
	}
	p.wait = []Stage{
		{Name: "batch_wait", Class: Critical, Run: p.waitBatch},
	}
	p.answer = []Stage{
		{Name: "recheck_customer", Class: Critical, Run: p.recheckCustomer},
		{Name: "context", Class: Critical, Run: p.assembleContext},
		{Name: "generate", Class: Critical, Run: p.generate},
		{Name: "handoff", Class: Critical, Run: p.handoff},
		{Name: "deliver", Class: Critical, Run: p.deliver},
		{Name: "save_reply", Class: Enrichment, Run: p.saveReply},
	}
	return p
}

// turn is the state of one execution.
type turn struct {
	tenant   *clientsDomain.Tenant
	msg      domain.ParsedMessage
	trace    *botmonitor.Trace
	customer *customerDomain.Customer

	normalized domain.NormalizedMessage
	batched    bool
	batch      string
	convCtx    convDomain.ConversationContext
	reply      botDomain.AIResponse
	result     delivery.Result

	status  botmonitor.Status
	note    string
	stopped bool
	start   time.Time
}

func (t *turn) log() *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"tenant_id":    t.tenant.ID,
		"phone":        t.msg.Phone,
		"message_id":   t.msg.ID,
		"execution_id": t.trace.ID(),
	})
}

// Intake runs the stages up to storing msg in its batch. A nil PendingReply
// means the turn already ended and trace is closed. A MediaProcessingError or
// any other critical failure ends the turn without a reply.
func (p *MessagePipeline) Intake(ctx context.Context, tenant *clientsDomain.Tenant, msg domain.ParsedMessage, trace *botmonitor.Trace) (*PendingReply, error) {
	t := &turn{tenant: tenant, msg: msg, trace: trace, start: time.Now()}
	trace.Annotate("message_id", msg.ID)
	trace.Annotate("type", string(msg.Type))

	failed, err := runStages(ctx, t, p.intake)
	if err != nil || t.stopped {
		return nil, p.finish(t, failed, err)
	}
	return &PendingReply{p: p, t: t}, nil
}

// PendingReply is a turn whose message has been taken in but not answered.
type PendingReply struct {
	p *MessagePipeline
	t *turn
}

// Batched reports whether the message went into a shared batch, so that
// Wait actually waits.
func (r *PendingReply) Batched() bool {
	return r.t.batched
}

// Wait blocks until the conversation goes quiet and reports whether this
// turn leads the batch. Every other outcome closes the trace.
func (r *PendingReply) Wait(ctx context.Context) (bool, error) {
	failed, err := runStages(ctx, r.t, r.p.wait)
	if err != nil || r.t.stopped {
		return false, r.p.finish(r.t, failed, err)
	}
	return true, nil
}

// Answer runs the rest of the turn and closes the trace.
func (r *PendingReply) Answer(ctx context.Context) error {
	failed, err := runStages(ctx, r.t, r.p.answer)
	return r.p.finish(r.t, failed, err)
}

// Abort closes the trace of a turn that could not be carried on.
func (r *PendingReply) Abort(stage string, err error) error {
	r.t.trace.Span(stage).Fail(err)
	return r.p.finish(r.t, stage, err)
}

func (p *MessagePipeline) finish(t *turn, failed string, err error) error {
	status := finalStatus(t, err)
	t.trace.Finish(status)

	entry := t.log().WithFields(logrus.Fields{"status": status, "duration_ms": time.Since(t.start).Milliseconds()})
	if err != nil {
		entry.WithField("stage", failed).WithError(err).Error("[PIPELINE] turn aborted")
		return fmt.Errorf("stage %s: %w", failed, err)
	}
	entry.Debug("[PIPELINE] turn finished")
	return nil
}

func (p *MessagePipeline) loadCustomer(ctx context.Context, t *turn) (Outcome, error) {
	c, err := p.deps.Customers.GetOrCreate(ctx, t.tenant.ID, t.msg.Phone, t.msg.SenderName)
	if err != nil {
		return Stop, err
	}
	t.customer = c
	t.note = string(c.Status)
	return Continue, nil
}

// gate keeps conversations owned by a human away from the AI. The message is
// still recorded so the attendant sees it.
func (p *MessagePipeline) gate(ctx context.Context, t *turn) (Outcome, error) {
	if t.customer.AcceptsBotReplies() {
		return Continue, nil
	}
	BestEffort("store message for attendant", logrus.Fields{"tenant_id": t.tenant.ID, "phone": t.msg.Phone}, func() error {
		return p.deps.History.Append(ctx, &convDomain.ChatMessage{
			TenantID:          t.tenant.ID,
			Phone:             t.msg.Phone,
			Role:              convDomain.RoleUser,
			Content:           placeholder(t.msg),
			ProviderMessageID: t.msg.ID,
			ExecutionID:       t.trace.ID(),
		})
	})
	t.status = botmonitor.StatusSkipped
	t.note = "customer status " + string(t.customer.Status)
	return Stop, nil
}

func (p *MessagePipeline) processMedia(ctx context.Context, t *turn) (Outcome, error) {
	if !t.msg.Type.IsMedia() {
		t.normalized.Content = t.msg.Text
		return Continue, nil
	}
	content, err := p.deps.Media.Process(ctx, t.tenant, t.msg)
	if err != nil {
		return Stop, err
	}
	t.normalized.Content = content
	t.note = string(t.msg.Type)
	return Continue, nil
}

func (p *MessagePipeline) normalize(_ context.Context, t *turn) (Outcome, error) {
	t.normalized.TenantID = t.tenant.ID
	t.normalized.Phone = t.msg.Phone
	t.normalized.MessageID = t.msg.ID
	t.normalized.Content = strings.TrimSpace(t.normalized.Content)
	if t.normalized.Content == "" {
		t.status = botmonitor.StatusSkipped
		t.note = "no content for " + string(t.msg.Type)
		return Stop, nil
	}
	t.batch = t.normalized.Content
	return Continue, nil
}

func (p *MessagePipeline) pushBatch(ctx context.Context, t *turn) (Outcome, error) {
	if p.deps.Batcher == nil {
		return Continue, nil
	}
	key := batching.Key(t.tenant.ID, t.msg.Phone)
	if err := p.deps.Batcher.Add(ctx, key, t.msg.ID, t.normalized.Content); err != nil {
		return Continue, err
	}
	t.batched = true
	return Continue, nil
}

func (p *MessagePipeline) saveUserMessage(ctx context.Context, t *turn) (Outcome, error) {
	return Continue, p.deps.History.Append(ctx, &convDomain.ChatMessage{
		TenantID:          t.tenant.ID,
		Phone:             t.msg.Phone,
		Role:              convDomain.RoleUser,
		Content:           t.normalized.Content,
		ProviderMessageID: t.msg.ID,
		ExecutionID:       t.trace.ID(),
		CreatedAt:         t.msg.Timestamp,
	})
}

// waitBatch blocks until the conversation goes quiet. Only the leader goes
// on; the other waiters end here.
func (p *MessagePipeline) waitBatch(ctx context.Context, t *turn) (Outcome, error) {
	if !t.batched {
		return Continue, nil
	}
	b, err := p.deps.Batcher.Wait(ctx, batching.Key(t.tenant.ID, t.msg.Phone), t.msg.ID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Stop, ctxErr
		}
		t.log().WithError(err).Warn("[PIPELINE] batch store failed during wait, answering this message alone")
		return Continue, nil
	}
	if !b.Leader {
		t.status = botmonitor.StatusSkipped
		t.note = "superseded by a newer message"
		return Stop, nil
	}
	t.batch = b.Content
	t.note = fmt.Sprintf("%d parts", len(b.Parts))
	return Continue, nil
}

// recheckCustomer catches an attendant taking over during the batch window.
func (p *MessagePipeline) recheckCustomer(ctx context.Context, t *turn) (Outcome, error) {
	c, err := p.deps.Customers.GetOrCreate(ctx, t.tenant.ID, t.msg.Phone, "")
	if err != nil {
		return Stop, err
	}
	t.customer = c
	if !c.AcceptsBotReplies() {
		t.status = botmonitor.StatusSkipped
		t.note = "customer status changed to " + string(c.Status)
		return Stop, nil
	}
	return Continue, nil
}

func (p *MessagePipeline) assembleContext(ctx context.Context, t *turn) (Outcome, error) {
	cc, err := p.deps.Assembler.Assemble(ctx, t.tenant.ID, t.msg.Phone, t.batch, t.tenant.RAGEnabled)
	if err != nil {
		return Stop, err
	}
	t.convCtx = cc
	t.note = fmt.Sprintf("%d turns, %d snippets", len(cc.History), len(cc.Snippets))
	if cc.RAGDegraded {
		t.note += ", rag degraded"
	}
	return Continue, nil
}

func (p *MessagePipeline) generate(ctx context.Context, t *turn) (Outcome, error) {
	resp, err := p.deps.Generator.Generate(ctx, botApp.GenerationInput{
		Tenant:       t.tenant,
		Message:      t.batch,
		CustomerName: t.customer.Name,
		Context:      t.convCtx,
	})
	if err != nil {
		return Stop, err
	}
	t.reply = resp
	t.note = fmt.Sprintf("%s %s, %d tokens", resp.Provider, resp.Model, resp.Usage.InputTokens+resp.Usage.OutputTokens)
	if resp.Cached {
		t.note += ", cached"
	}
	return Continue, nil
}

func (p *MessagePipeline) handoff(ctx context.Context, t *turn) (Outcome, error) {
	intent, ok := t.reply.Handoff()
	if !ok {
		if t.reply.IsSilent() {
			t.note = "empty reply"
			return Stop, nil
		}
		return Continue, nil
	}
	status, err := p.deps.Handoff.Execute(ctx, botApp.HandoffRequest{
		Tenant:      t.tenant,
		Customer:    t.customer,
		Intent:      intent,
		LastMessage: t.batch,
		ExecutionID: t.trace.ID(),
	})
	if err != nil {
		return Stop, err
	}
	t.status = botmonitor.StatusHandoff
	t.note = "customer " + string(status)
	return Stop, nil
}

func (p *MessagePipeline) deliver(ctx context.Context, t *turn) (Outcome, error) {
	segments := p.deps.Formatter.Format(t.reply.Content)
	if len(segments) == 0 {
		t.note = "nothing to send"
		return Stop, nil
	}
	t.result = p.deps.Deliverer.Deliver(ctx, t.tenant, t.msg.Phone, segments)
	t.note = fmt.Sprintf("%d/%d segments", t.result.Delivered(), len(segments))
	return Continue, nil
}

// saveReply stores every attempted segment. Failed ones keep the failed
// delivery status so they stay out of the model's history.
func (p *MessagePipeline) saveReply(ctx context.Context, t *turn) (Outcome, error) {
	var errs []error
	for _, seg := range t.result.Segments {
		status := "sent"
		if !seg.OK {
			status = "failed"
		}
		err := p.deps.History.Append(ctx, &convDomain.ChatMessage{
			ID:                seg.SegmentID,
			TenantID:          t.tenant.ID,
			Phone:             t.msg.Phone,
			Role:              convDomain.RoleAssistant,
			Content:           seg.Text,
			ProviderMessageID: seg.ProviderMessageID,
			DeliveryStatus:    status,
			ExecutionID:       t.trace.ID(),
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(t.result.Segments) > 0 && t.result.Delivered() == 0 {
		t.status = botmonitor.StatusFailed
	}
	return Continue, errors.Join(errs...)
}

func placeholder(msg domain.ParsedMessage) string {
	if msg.Type == domain.MessageText && strings.TrimSpace(msg.Text) != "" {
		return msg.Text
	}
	s := "[" + string(msg.Type) + " message]"
	if msg.Media != nil && msg.Media.Caption != "" {
		s += " " + msg.Media.Caption
	}
	return s
}
