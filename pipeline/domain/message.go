package domain

import (
	"time"
)

// Webhook acknowledgement bodies. The endpoint answers 200 with one of these
// once the request is authenticated.
const (
	AckEventReceived    = "EVENT_RECEIVED"
	AckStatusProcessed  = "STATUS_UPDATE_PROCESSED"
	AckReactionHandled  = "REACTION_PROCESSED"
	AckDuplicateIgnored = "DUPLICATE_MESSAGE_IGNORED"
)

type MessageType string

const (
	MessageText        MessageType = "text"
	MessageAudio       MessageType = "audio"
	MessageImage       MessageType = "image"
	MessageDocument    MessageType = "document"
	MessageReaction    MessageType = "reaction"
	MessageStatus      MessageType = "status"
	MessageUnsupported MessageType = "unsupported"
)

// IsMedia reports whether the message content must go through the media processor.
func (t MessageType) IsMedia() bool {
	return t == MessageAudio || t == MessageImage || t == MessageDocument
}

// InboundEvent is the raw webhook POST as received.
type InboundEvent struct {
	TenantID  string
	RawBody   []byte
	Signature string
}

type MediaInfo struct {
	ID       string
	MimeType string
	Caption  string
	Filename string
}

type ReactionInfo struct {
	TargetMessageID string
	Emoji           string
}

// ParsedMessage is one inbound customer message extracted from the envelope.
type ParsedMessage struct {
	ID         string
	TenantID   string
	Phone      string
	SenderName string
	Type       MessageType
	Text       string
	Media      *MediaInfo
	Reaction   *ReactionInfo
	Timestamp  time.Time
}

// StatusUpdate is a delivery receipt for an outbound message.
type StatusUpdate struct {
	ProviderMessageID string
	Status            string
	RecipientPhone    string
	Timestamp         time.Time
	ErrorTitle        string
}

// NormalizedMessage is the text form every message type is reduced to
// before batching.
type NormalizedMessage struct {
	TenantID  string
	Phone     string
	MessageID string
	Content   string
}
