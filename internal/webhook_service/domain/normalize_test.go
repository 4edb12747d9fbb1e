package domain

import (
	"testing"
	"time"

	"github.com/relaydesk/golang_services/internal/core_domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelope_MalformedJSON(t *testing.T) {
	_, err := DecodeEnvelope([]byte(`{"event": "message",`))
	assert.Error(t, err)
}

func TestDecodeEnvelope_UnknownEventType(t *testing.T) {
	event, err := DecodeEnvelope([]byte(`{"event": "presence.update", "id": "m1"}`))
	require.NoError(t, err)
	unknown, ok := event.(UnknownEvent)
	require.True(t, ok)
	assert.Equal(t, "presence.update", unknown.Type)
}

func TestDecodeEnvelope_SingleMessageTopLevel(t *testing.T) {
	body := []byte(`{
		"event": "message",
		"id": "msg-1",
		"from": "491701234567@c.us",
		"to": "491709999999@c.us",
		"from_me": false,
		"type": "text",
		"body": "hello there",
		"push_name": "Ada",
		"timestamp": 1700000000
	}`)
	event, err := DecodeEnvelope(body)
	require.NoError(t, err)

	msgs, ok := event.(MessagesEvent)
	require.True(t, ok)
	require.Len(t, msgs.Messages, 1)

	m := msgs.Messages[0]
	assert.Equal(t, "msg-1", m.ProviderMessageID)
	// No explicit chat id: an inbound message converses with its sender.
	assert.Equal(t, "491701234567@c.us", m.RemoteJID)
	assert.False(t, m.FromMe)
	assert.Equal(t, core_domain.MessageTypeText, m.Type)
	require.NotNil(t, m.Text)
	assert.Equal(t, "hello there", *m.Text)
	require.NotNil(t, m.SenderName)
	assert.Equal(t, "Ada", *m.SenderName)
	require.NotNil(t, m.Timestamp)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), *m.Timestamp)
	assert.False(t, m.IsGroup)
}

func TestDecodeEnvelope_BatchMessages(t *testing.T) {
	body := []byte(`{
		"messages": [
			{"message_id": "a", "chat_id": "111@c.us", "text": "one"},
			{"id": "b", "chatId": "222@g.us", "fromMe": true, "body": "two"}
		]
	}`)
	event, err := DecodeEnvelope(body)
	require.NoError(t, err)

	msgs, ok := event.(MessagesEvent)
	require.True(t, ok)
	require.Len(t, msgs.Messages, 2)

	assert.Equal(t, "a", msgs.Messages[0].ProviderMessageID)
	assert.Equal(t, "111@c.us", msgs.Messages[0].RemoteJID)

	assert.Equal(t, "b", msgs.Messages[1].ProviderMessageID)
	assert.Equal(t, "222@g.us", msgs.Messages[1].RemoteJID)
	assert.True(t, msgs.Messages[1].FromMe)
	assert.True(t, msgs.Messages[1].IsGroup, "@g.us jid implies a group chat")
}

func TestDecodeEnvelope_OutboundDerivesJIDFromRecipient(t *testing.T) {
	body := []byte(`{
		"event": "message",
		"id": "m-out",
		"from": "491709999999@c.us",
		"to": "491701234567@c.us",
		"from_me": true,
		"body": "sent from phone"
	}`)
	event, err := DecodeEnvelope(body)
	require.NoError(t, err)

	msgs := event.(MessagesEvent)
	require.Len(t, msgs.Messages, 1)
	assert.Equal(t, "491701234567@c.us", msgs.Messages[0].RemoteJID)
}

func TestDecodeEnvelope_MediaTypeInference(t *testing.T) {
	body := []byte(`{
		"event": "message",
		"id": "m-img",
		"chat_id": "111@c.us",
		"image": {"url": "https://cdn.example.com/x.jpg", "mimetype": "image/jpeg", "caption": "look"}
	}`)
	event, err := DecodeEnvelope(body)
	require.NoError(t, err)

	m := event.(MessagesEvent).Messages[0]
	assert.Equal(t, core_domain.MessageTypeImage, m.Type)
	require.NotNil(t, m.MediaURL)
	assert.Equal(t, "https://cdn.example.com/x.jpg", *m.MediaURL)
	require.NotNil(t, m.MediaMimeType)
	assert.Equal(t, "image/jpeg", *m.MediaMimeType)
	require.NotNil(t, m.Text)
	assert.Equal(t, "look", *m.Text, "media caption becomes the text when no body is present")
}

func TestDecodeEnvelope_ViewOnceUnwrapped(t *testing.T) {
	body := []byte(`{
		"event": "message",
		"id": "m-vo",
		"chat_id": "111@c.us",
		"view_once": {
			"image": {"url": "https://cdn.example.com/secret.jpg", "mimetype": "image/jpeg"}
		}
	}`)
	event, err := DecodeEnvelope(body)
	require.NoError(t, err)

	m := event.(MessagesEvent).Messages[0]
	assert.True(t, m.ViewOnce)
	assert.Equal(t, core_domain.MessageTypeImage, m.Type)
	assert.Equal(t, "m-vo", m.ProviderMessageID, "outer envelope keeps identity")
	assert.Equal(t, "111@c.us", m.RemoteJID)
	require.NotNil(t, m.MediaURL)
	assert.Equal(t, "https://cdn.example.com/secret.jpg", *m.MediaURL)
}

func TestDecodeEnvelope_GroupObject(t *testing.T) {
	body := []byte(`{
		"event": "message",
		"id": "m-grp",
		"chat_id": "grp-42@g.us",
		"body": "hi all",
		"group": {"subject": "Weekend Plans", "participants": ["1@c.us", "2@c.us"]}
	}`)
	event, err := DecodeEnvelope(body)
	require.NoError(t, err)

	m := event.(MessagesEvent).Messages[0]
	assert.True(t, m.IsGroup)
	assert.Equal(t, "Weekend Plans", m.GroupSubject)
	assert.Equal(t, []string{"1@c.us", "2@c.us"}, m.GroupParticipants)
}

func TestDecodeEnvelope_StatusEventNumericAck(t *testing.T) {
	event, err := DecodeEnvelope([]byte(`{"event": "ack", "id": "m1", "ack": 2}`))
	require.NoError(t, err)

	status, ok := event.(StatusEvent)
	require.True(t, ok)
	assert.Equal(t, "m1", status.ProviderMessageID)
	assert.Equal(t, "2", status.Token)
}

func TestDecodeEnvelope_StatusEventNestedObject(t *testing.T) {
	body := []byte(`{
		"event": {"type": "message.status", "message_id": "m2", "status": "delivered"}
	}`)
	event, err := DecodeEnvelope(body)
	require.NoError(t, err)

	status, ok := event.(StatusEvent)
	require.True(t, ok)
	assert.Equal(t, "m2", status.ProviderMessageID)
	assert.Equal(t, "delivered", status.Token)
}

func TestDecodeEnvelope_EventFieldWinsOverTypeField(t *testing.T) {
	// "type" here is the message content type, not the event kind.
	body := []byte(`{"event": "message", "id": "m3", "type": "image", "image": {"url": "u"}}`)
	event, err := DecodeEnvelope(body)
	require.NoError(t, err)

	msgs, ok := event.(MessagesEvent)
	require.True(t, ok)
	assert.Equal(t, core_domain.MessageTypeImage, msgs.Messages[0].Type)
}

func TestDecodeEnvelope_EditEvent(t *testing.T) {
	event, err := DecodeEnvelope([]byte(`{"event": "message.edit", "id": "m4", "new_text": "fixed typo"}`))
	require.NoError(t, err)

	edit, ok := event.(EditEvent)
	require.True(t, ok)
	assert.Equal(t, "m4", edit.ProviderMessageID)
	assert.Equal(t, "fixed typo", edit.NewText)
}

func TestDecodeEnvelope_DeleteEvent(t *testing.T) {
	event, err := DecodeEnvelope([]byte(`{"event": "message.revoked", "message_id": "m5"}`))
	require.NoError(t, err)

	del, ok := event.(DeleteEvent)
	require.True(t, ok)
	assert.Equal(t, "m5", del.ProviderMessageID)
}

func TestDecodeEnvelope_ChatUpdateArchive(t *testing.T) {
	event, err := DecodeEnvelope([]byte(`{"event": "chat", "chat_id": "111@c.us", "archived": true}`))
	require.NoError(t, err)

	chat, ok := event.(ChatUpdateEvent)
	require.True(t, ok)
	assert.Equal(t, "111@c.us", chat.RemoteJID)
	require.NotNil(t, chat.Archived)
	assert.True(t, *chat.Archived)
}

func TestDecodeEnvelope_ChatUpdateWithoutArchiveFlag(t *testing.T) {
	event, err := DecodeEnvelope([]byte(`{"event": "chat", "chat_id": "111@c.us"}`))
	require.NoError(t, err)

	chat, ok := event.(ChatUpdateEvent)
	require.True(t, ok)
	assert.Nil(t, chat.Archived)
}

func TestDecodeEnvelope_ChannelStatus(t *testing.T) {
	event, err := DecodeEnvelope([]byte(`{"event": "connection.update", "state": "disconnected"}`))
	require.NoError(t, err)

	ch, ok := event.(ChannelStatusEvent)
	require.True(t, ok)
	assert.Equal(t, "disconnected", ch.Token)
}

func TestDecodeEnvelope_DataWrapper(t *testing.T) {
	body := []byte(`{"event": "ack", "data": {"id": "m6", "ack": "3"}}`)
	event, err := DecodeEnvelope(body)
	require.NoError(t, err)

	status, ok := event.(StatusEvent)
	require.True(t, ok)
	assert.Equal(t, "m6", status.ProviderMessageID)
	assert.Equal(t, "3", status.Token)
}
