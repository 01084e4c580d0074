package dedup

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Marker records that a message id was seen. Mark reports true when this call
// is the first sighting; Unmark forgets it.
type Marker interface {
	Mark(ctx context.Context, tenantID, messageID string) (bool, error)
	Unmark(ctx context.Context, tenantID, messageID string) error
}

type Source string

const (
	SourceNone    Source = "none"
	SourceCache   Source = "cache"
	SourceDurable Source = "durable"
)

// Record describes one processed message.
type Record struct {
	TenantID    string
	MessageID   string
	ProcessedAt time.Time
	TTL         time.Duration
}

func (r Record) Key() string {
	return r.TenantID + ":" + r.MessageID
}

type Result struct {
	AlreadyProcessed bool
	Source           Source
}

// Service combines a fast expiring marker with a durable one. Either may be nil.
type Service struct {
	cache   Marker
	durable Marker
}

func NewService(cache, durable Marker) *Service {
	return &Service{cache: cache, durable: durable}
}

// CheckAndMark marks the message as processed and tells whether it already was.
// When no marker can answer the message is let through.
func (s *Service) CheckAndMark(ctx context.Context, tenantID, messageID string) Result {
	if messageID == "" {
		return Result{Source: SourceNone}
	}
	log := logrus.WithFields(logrus.Fields{"tenant_id": tenantID, "message_id": messageID})

	cacheUp := false
	if s.cache != nil {
		first, err := s.cache.Mark(ctx, tenantID, messageID)
		if err != nil {
			log.WithError(err).Warn("[DEDUP] cache marker unavailable, falling back to durable store")
		} else {
			cacheUp = true
			if !first {
				return Result{AlreadyProcessed: true, Source: SourceCache}
			}
		}
	}

	if s.durable != nil {
		first, err := s.durable.Mark(ctx, tenantID, messageID)
		if err != nil {
			if !cacheUp {
				log.WithError(err).Error("[DEDUP] no marker available, processing without dedup")
			} else {
				log.WithError(err).Warn("[DEDUP] durable marker failed")
			}
		} else if !first {
			return Result{AlreadyProcessed: true, Source: SourceDurable}
		} else {
			return Result{Source: SourceDurable}
		}
	}

	if cacheUp {
		return Result{Source: SourceCache}
	}
	return Result{Source: SourceNone}
}

// Release forgets a message that was marked but could not be processed, so
// that a redelivery goes through. Failures are logged only.
func (s *Service) Release(ctx context.Context, tenantID, messageID string) {
	if messageID == "" {
		return
	}
	log := logrus.WithFields(logrus.Fields{"tenant_id": tenantID, "message_id": messageID})
	for name, m := range map[string]Marker{"cache": s.cache, "durable": s.durable} {
		if m == nil {
			continue
		}
		if err := m.Unmark(ctx, tenantID, messageID); err != nil {
			log.WithError(err).Errorf("[DEDUP] could not release %s mark, a redelivery will be ignored", name)
		}
	}
	log.Warn("[DEDUP] mark released")
}
