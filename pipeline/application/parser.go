package application

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/pipeline/domain"
)

// EventKind is the dispatch decision taken on an authenticated envelope.
type EventKind int

const (
	KindIgnored EventKind = iota
	KindStatus
	KindReaction
	KindMessage
)

func (k EventKind) String() string {
	switch k {
	case KindStatus:
		return "status"
	case KindReaction:
		return "reaction"
	case KindMessage:
		return "message"
	default:
		return "ignored"
	}
}

var ErrEmptyEnvelope = errors.New("envelope carries no message")

// DecodeEnvelope unmarshals the raw webhook body.
func DecodeEnvelope(raw []byte) (*domain.Envelope, error) {
	var env domain.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// Classify decides which pipeline handles the envelope. Status updates win
// over messages; a reaction is only recognised when it is the sole message.
func Classify(env *domain.Envelope) EventKind {
	if env == nil {
		return KindIgnored
	}
	if len(env.Statuses()) > 0 {
		return KindStatus
	}
	inbound := env.Messages()
	if len(inbound) == 0 {
		return KindIgnored
	}
	if first := inbound[0].Message; len(inbound) == 1 && first.Type == "reaction" && first.Reaction != nil {
		return KindReaction
	}
	return KindMessage
}

// PeekMessageID returns the id of the first message in the envelope.
func PeekMessageID(env *domain.Envelope) string {
	inbound := env.Messages()
	if len(inbound) == 0 {
		return ""
	}
	return inbound[0].Message.ID
}

// ParseMessage extracts the first customer message of the envelope.
func ParseMessage(tenantID string, env *domain.Envelope) (domain.ParsedMessage, error) {
	inbound := env.Messages()
	if len(inbound) == 0 {
		return domain.ParsedMessage{}, ErrEmptyEnvelope
	}
	return ParseInbound(tenantID, inbound[0])
}

// ParseInbound turns one wire message into the pipeline's view of it.
func ParseInbound(tenantID string, in domain.InboundMessage) (domain.ParsedMessage, error) {
	wire := in.Message

	msg := domain.ParsedMessage{
		ID:        wire.ID,
		TenantID:  tenantID,
		Phone:     wire.From,
		Timestamp: parseUnix(wire.Timestamp),
	}
	for _, c := range in.Contacts {
		if c.WaID == wire.From {
			msg.SenderName = strings.TrimSpace(c.Profile.Name)
			break
		}
	}

	switch wire.Type {
	case "text":
		msg.Type = domain.MessageText
		if wire.Text != nil {
			msg.Text = wire.Text.Body
		}
	case "interactive":
		msg.Type = domain.MessageText
		msg.Text = interactiveText(wire.Interactive)
	case "button":
		msg.Type = domain.MessageText
		if wire.Button != nil {
			msg.Text = wire.Button.Text
		}
	case "audio", "voice":
		msg.Type = domain.MessageAudio
		msg.Media = mediaInfo(firstMedia(wire.Audio, wire.Voice))
	case "image":
		msg.Type = domain.MessageImage
		msg.Media = mediaInfo(wire.Image)
	case "document":
		msg.Type = domain.MessageDocument
		msg.Media = mediaInfo(wire.Document)
	case "reaction":
		msg.Type = domain.MessageReaction
		if wire.Reaction != nil {
			msg.Reaction = &domain.ReactionInfo{TargetMessageID: wire.Reaction.MessageID, Emoji: wire.Reaction.Emoji}
		}
	default:
		msg.Type = domain.MessageUnsupported
	}

	if err := validateParsed(msg); err != nil {
		return msg, err
	}
	return msg, nil
}

// ParseStatuses flattens the status updates of the envelope.
func ParseStatuses(env *domain.Envelope) []domain.StatusUpdate {
	wire := env.Statuses()
	out := make([]domain.StatusUpdate, 0, len(wire))
	for _, s := range wire {
		update := domain.StatusUpdate{
			ProviderMessageID: s.ID,
			Status:            s.Status,
			RecipientPhone:    s.RecipientID,
			Timestamp:         parseUnix(s.Timestamp),
		}
		if len(s.Errors) > 0 {
			update.ErrorTitle = s.Errors[0].Title
		}
		out = append(out, update)
	}
	return out
}

func validateParsed(msg domain.ParsedMessage) error {
	return validation.ValidateStruct(&msg,
		validation.Field(&msg.ID, validation.Required),
		validation.Field(&msg.Phone, validation.Required),
		validation.Field(&msg.Media, validation.When(msg.Type.IsMedia(), validation.Required)),
		validation.Field(&msg.Reaction, validation.When(msg.Type == domain.MessageReaction, validation.Required)),
	)
}

func interactiveText(in *domain.WireInteractive) string {
	if in == nil {
		return ""
	}
	if in.ButtonReply != nil {
		return in.ButtonReply.Title
	}
	if in.ListReply != nil {
		if in.ListReply.Description != "" {
			return in.ListReply.Title + " - " + in.ListReply.Description
		}
		return in.ListReply.Title
	}
	return ""
}

func firstMedia(candidates ...*domain.WireMedia) *domain.WireMedia {
	for _, m := range candidates {
		if m != nil {
			return m
		}
	}
	return nil
}

func mediaInfo(m *domain.WireMedia) *domain.MediaInfo {
	if m == nil || m.ID == "" {
		return nil
	}
	return &domain.MediaInfo{ID: m.ID, MimeType: m.MimeType, Caption: m.Caption, Filename: m.Filename}
}

func parseUnix(ts string) time.Time {
	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil || sec <= 0 {
		return time.Now().UTC()
	}
	return time.Unix(sec, 0).UTC()
}
