package delivery

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	clientsDomain "github.com/uzzaidev/ChatBot-Oficial-sub002/clients/domain"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/infrastructure/whatsapp"
	pkgError "github.com/uzzaidev/ChatBot-Oficial-sub002/pkg/error"
	"golang.org/x/time/rate"
)

type Sender interface {
	SendText(ctx context.Context, creds whatsapp.Credentials, phone, body string) (string, error)
}

type SegmentResult struct {
	Index             int
	SegmentID         string
	Text              string
	ProviderMessageID string
	OK                bool
	Err               error
}

// Result lists every segment in the order it was attempted.
type Result struct {
	Segments []SegmentResult
}

func (r Result) Delivered() int {
	n := 0
	for _, s := range r.Segments {
		if s.OK {
			n++
		}
	}
	return n
}

func (r Result) Failed() int {
	return len(r.Segments) - r.Delivered()
}

// ProviderMessageIDs returns the ids of the delivered segments.
func (r Result) ProviderMessageIDs() []string {
	ids := make([]string, 0, len(r.Segments))
	for _, s := range r.Segments {
		if s.OK {
			ids = append(ids, s.ProviderMessageID)
		}
	}
	return ids
}

type Deliverer struct {
	sender Sender
	gap    time.Duration
}

// NewDeliverer sends segments through sender, at most one every gap.
func NewDeliverer(sender Sender, gap time.Duration) *Deliverer {
	return &Deliverer{sender: sender, gap: gap}
}

// Deliver sends segments one after the other. A failed segment is recorded and
// the next one is still attempted.
func (d *Deliverer) Deliver(ctx context.Context, tenant *clientsDomain.Tenant, phone string, segments []Segment) Result {
	result := Result{Segments: make([]SegmentResult, 0, len(segments))}
	if len(segments) == 0 {
		return result
	}

	limit := rate.Inf
	if d.gap > 0 {
		limit = rate.Every(d.gap)
	}
	limiter := rate.NewLimiter(limit, 1)
	creds := whatsapp.Credentials{AccessToken: tenant.AccessToken, PhoneNumberID: tenant.PhoneNumberID}

	for _, seg := range segments {
		res := SegmentResult{Index: seg.Index, SegmentID: uuid.NewString(), Text: seg.Text}

		err := limiter.Wait(ctx)
		if err == nil {
			res.ProviderMessageID, err = d.sender.SendText(ctx, creds, phone, seg.Text)
		}
		if err != nil {
			res.Err = &pkgError.DeliveryError{Segment: seg.Index, Err: err}
			logrus.WithFields(logrus.Fields{
				"tenant_id": tenant.ID,
				"phone":     phone,
				"segment":   seg.Index,
			}).WithError(err).Error("[DELIVERY] segment failed")
		} else {
			res.OK = true
		}
		result.Segments = append(result.Segments, res)
	}

	logrus.WithFields(logrus.Fields{
		"tenant_id": tenant.ID,
		"phone":     phone,
		"delivered": result.Delivered(),
		"failed":    result.Failed(),
	}).Info("[DELIVERY] reply sent")
	return result
}
