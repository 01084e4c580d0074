package botmonitor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusHandoff   Status = "handoff"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

type SpanRecord struct {
	Stage      string    `json:"stage"`
	Status     string    `json:"status"` // ok | error
	Summary    string    `json:"summary,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
}

// TraceRecord is the finished form of a Trace.
type TraceRecord struct {
	ID         string            `json:"id"`
	InstanceID string            `json:"instance_id"`
	TenantID   string            `json:"tenant_id"`
	Phone      string            `json:"phone"`
	Status     Status            `json:"status"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Spans      []SpanRecord      `json:"spans"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	DurationMs int64             `json:"duration_ms"`
}

// Sink persists finished traces.
type Sink interface {
	Save(ctx context.Context, rec TraceRecord) error
}

type Tracer struct {
	monitor     *Monitor
	sink        Sink
	instanceID  string
	sinkTimeout time.Duration
	now         func() time.Time
}

// NewTracer records every finished trace in monitor and, when sink is not
// nil, persists it there.
func NewTracer(monitor *Monitor, sink Sink, instanceID string) *Tracer {
	if monitor == nil {
		monitor = New(0, 0)
	}
	return &Tracer{
		monitor:     monitor,
		sink:        sink,
		instanceID:  instanceID,
		sinkTimeout: 5 * time.Second,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (t *Tracer) Monitor() *Monitor {
	return t.monitor
}

// Start opens the trace of one pipeline execution.
func (t *Tracer) Start(tenantID, phone string) *Trace {
	return &Trace{
		tracer: t,
		rec: TraceRecord{
			ID:         uuid.NewString(),
			InstanceID: t.instanceID,
			TenantID:   tenantID,
			Phone:      phone,
			Status:     StatusRunning,
			StartedAt:  t.now(),
		},
	}
}

// Trace is safe for concurrent use; spans of parallel stages may be closed
// from different goroutines.
type Trace struct {
	tracer   *Tracer
	mu       sync.Mutex
	rec      TraceRecord
	finished bool
}

func (tr *Trace) ID() string {
	if tr == nil {
		return ""
	}
	return tr.rec.ID
}

// Annotate attaches a metadata value to the trace.
func (tr *Trace) Annotate(key, value string) {
	if tr == nil {
		return
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.rec.Metadata == nil {
		tr.rec.Metadata = map[string]string{}
	}
	tr.rec.Metadata[key] = value
}

func (tr *Trace) Span(stage string) *Span {
	if tr == nil {
		return &Span{}
	}
	return &Span{trace: tr, stage: stage, start: tr.tracer.now()}
}

// Spans returns a copy of the spans closed so far.
func (tr *Trace) Spans() []SpanRecord {
	if tr == nil {
		return nil
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]SpanRecord(nil), tr.rec.Spans...)
}

// Finish closes the trace. Only the first call has effect. A failing or
// panicking sink is logged and never reaches the caller.
func (tr *Trace) Finish(status Status) {
	if tr == nil {
		return
	}
	tr.mu.Lock()
	if tr.finished {
		tr.mu.Unlock()
		return
	}
	tr.finished = true
	tr.rec.Status = status
	tr.rec.FinishedAt = tr.tracer.now()
	tr.rec.DurationMs = tr.rec.FinishedAt.Sub(tr.rec.StartedAt).Milliseconds()
	rec := tr.rec
	rec.Spans = append([]SpanRecord(nil), tr.rec.Spans...)
	tr.mu.Unlock()

	tr.tracer.monitor.Record(rec)

	entry := logrus.WithFields(logrus.Fields{
		"execution_id": rec.ID,
		"tenant_id":    rec.TenantID,
		"phone":        rec.Phone,
		"status":       rec.Status,
		"duration_ms":  rec.DurationMs,
		"spans":        len(rec.Spans),
	})
	if status == StatusFailed {
		entry.Warn("[TRACE] execution finished")
	} else {
		entry.Info("[TRACE] execution finished")
	}

	tr.tracer.persist(rec)
}

func (t *Tracer) persist(rec TraceRecord) {
	if t.sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("[TRACE] sink panic for %s: %v", rec.ID, r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), t.sinkTimeout)
	defer cancel()
	if err := t.sink.Save(ctx, rec); err != nil {
		logrus.WithError(err).WithField("execution_id", rec.ID).Warn("[TRACE] failed to persist execution log")
	}
}

// Span measures one stage. End or Fail closes it; later calls are ignored.
type Span struct {
	trace *Trace
	stage string
	start time.Time
	once  sync.Once
}

func (s *Span) End(summary string) {
	s.close("ok", summary, nil)
}

func (s *Span) Fail(err error) {
	s.close("error", "", err)
}

func (s *Span) close(status, summary string, err error) {
	if s.trace == nil {
		return
	}
	s.once.Do(func() {
		rec := SpanRecord{
			Stage:      s.stage,
			Status:     status,
			Summary:    summary,
			StartedAt:  s.start,
			DurationMs: s.trace.tracer.now().Sub(s.start).Milliseconds(),
		}
		if err != nil {
			rec.Error = err.Error()
		}
		s.trace.mu.Lock()
		s.trace.rec.Spans = append(s.trace.rec.Spans, rec)
		s.trace.mu.Unlock()
	})
}
