package application

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/pipeline/domain"
)

func mustDecode(t *testing.T, raw string) *domain.Envelope {
	t.Helper()
	env, err := DecodeEnvelope([]byte(raw))
	require.NoError(t, err)
	return env
}

const textPayload = `{
  "object": "whatsapp_business_account",
  "entry": [{"id": "1", "changes": [{"field": "messages", "value": {
    "messaging_product": "whatsapp",
    "metadata": {"display_phone_number": "551130000000", "phone_number_id": "100"},
    "contacts": [{"wa_id": "5511999999999", "profile": {"name": " Ana "}}],
    "messages": [{"from": "5511999999999", "id": "wamid.ABC", "timestamp": "1700000000", "type": "text", "text": {"body": "Hello"}}]
  }}]}]
}`

func TestParseMessage_Text(t *testing.T) {
	env := mustDecode(t, textPayload)
	assert.Equal(t, KindMessage, Classify(env))
	assert.Equal(t, "wamid.ABC", PeekMessageID(env))

	msg, err := ParseMessage("acme", env)
	require.NoError(t, err)
	assert.Equal(t, domain.MessageText, msg.Type)
	assert.Equal(t, "Hello", msg.Text)
	assert.Equal(t, "Ana", msg.SenderName)
	assert.Equal(t, "acme", msg.TenantID)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), msg.Timestamp)
}

func TestParseMessage_MediaKinds(t *testing.T) {
	cases := map[string]domain.MessageType{
		`{"from":"1","id":"a","type":"audio","audio":{"id":"m1","mime_type":"audio/ogg"}}`:                domain.MessageAudio,
		`{"from":"1","id":"a","type":"voice","voice":{"id":"m1","mime_type":"audio/ogg"}}`:                domain.MessageAudio,
		`{"from":"1","id":"a","type":"image","image":{"id":"m1","caption":"olha"}}`:                       domain.MessageImage,
		`{"from":"1","id":"a","type":"document","document":{"id":"m1","filename":"nota.pdf"}}`:            domain.MessageDocument,
		`{"from":"1","id":"a","type":"interactive","interactive":{"button_reply":{"id":"b","title":"Sim"}}}`: domain.MessageText,
		`{"from":"1","id":"a","type":"sticker"}`:                                                          domain.MessageUnsupported,
	}
	for wire, want := range cases {
		env := mustDecode(t, `{"entry":[{"changes":[{"value":{"messages":[`+wire+`]}}]}]}`)
		msg, err := ParseMessage("acme", env)
		require.NoError(t, err, wire)
		assert.Equal(t, want, msg.Type, wire)
		if want.IsMedia() {
			assert.Equal(t, "m1", msg.Media.ID)
		}
	}
}

func TestParseMessage_MediaWithoutReferenceIsInvalid(t *testing.T) {
	env := mustDecode(t, `{"entry":[{"changes":[{"value":{"messages":[{"from":"1","id":"a","type":"image"}]}}]}]}`)
	_, err := ParseMessage("acme", env)
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	status := mustDecode(t, `{"entry":[{"changes":[{"value":{"statuses":[{"id":"wamid.OUT","status":"read","recipient_id":"1","timestamp":"1700000000"}]}}]}]}`)
	assert.Equal(t, KindStatus, Classify(status))
	updates := ParseStatuses(status)
	require.Len(t, updates, 1)
	assert.Equal(t, "wamid.OUT", updates[0].ProviderMessageID)
	assert.Equal(t, "read", updates[0].Status)

	reaction := mustDecode(t, `{"entry":[{"changes":[{"value":{"messages":[{"from":"1","id":"r1","type":"reaction","reaction":{"message_id":"wamid.OUT","emoji":"👍"}}]}}]}]}`)
	assert.Equal(t, KindReaction, Classify(reaction))
	msg, err := ParseMessage("acme", reaction)
	require.NoError(t, err)
	assert.Equal(t, "wamid.OUT", msg.Reaction.TargetMessageID)

	assert.Equal(t, KindIgnored, Classify(mustDecode(t, `{"entry":[]}`)))
	assert.Equal(t, KindIgnored, Classify(nil))
}
