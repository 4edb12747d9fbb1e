package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/relaydesk/golang_services/internal/core_domain"
)

// The provider sends the same concept under many field name aliases:
// the event type may live in "event" (string or nested object) or "type",
// a message id in "id" or "message_id", the chat id in "chat_id", "chatId"
// or "remote_jid", text in "body", "text" or a media caption, and so on.
// This file is the only place those aliases are allowed to appear.

type rawEnvelope struct {
	Event    json.RawMessage `json:"event"`
	Messages []rawMessage    `json:"messages"`
	Data     *rawMessage     `json:"data"`

	rawMessage // Single-event payloads carry their fields at the top level
}

type rawMessage struct {
	ID          string `json:"id"`
	MessageID   string `json:"message_id"`
	ChatID      string `json:"chat_id"`
	ChatIDAlt   string `json:"chatId"`
	RemoteJID   string `json:"remote_jid"`
	From        string `json:"from"`
	To          string `json:"to"`
	FromMe      *bool  `json:"from_me"`
	FromMeAlt   *bool  `json:"fromMe"`
	Kind        string `json:"type"`
	Body        string `json:"body"`
	Text        string `json:"text"`
	Caption     string `json:"caption"`
	NewText     string `json:"new_text"`
	PushName    string `json:"push_name"`
	PushNameAlt string `json:"pushName"`
	NotifyName  string `json:"notify_name"`
	Timestamp   int64  `json:"timestamp"`

	Ack    json.RawMessage `json:"ack"`
	Status string          `json:"status"`
	State  string          `json:"state"`

	Archived *bool     `json:"archived"`
	IsGroup  *bool     `json:"is_group"`
	Group    *rawGroup `json:"group"`

	ProfilePicURL string `json:"profile_pic_url"`
	Avatar        string `json:"avatar"`

	Image    *rawMedia    `json:"image"`
	Video    *rawMedia    `json:"video"`
	Audio    *rawMedia    `json:"audio"`
	Document *rawMedia    `json:"document"`
	Sticker  *rawMedia    `json:"sticker"`
	Location *rawLocation `json:"location"`
	Contact  *rawContact  `json:"contact"`
	ViewOnce *rawMessage  `json:"view_once"`
}

type rawGroup struct {
	Subject      string   `json:"subject"`
	Participants []string `json:"participants"`
}

type rawMedia struct {
	URL      string `json:"url"`
	MimeType string `json:"mimetype"`
	Caption  string `json:"caption"`
}

type rawLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name"`
}

type rawContact struct {
	DisplayName string `json:"display_name"`
	Vcard       string `json:"vcard"`
}

type rawNestedEvent struct {
	Type string `json:"type"`
	rawMessage
}

// DecodeEnvelope parses a webhook body into a canonical Event. The only
// error it returns is malformed JSON; unrecognized event types decode to
// UnknownEvent so the gateway can still acknowledge them.
func DecodeEnvelope(body []byte) (Event, error) {
	var env rawEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("malformed webhook body: %w", err)
	}

	kind, payload := resolveEventKind(&env)

	switch kind {
	case "message", "messages":
		return decodeMessages(&env, payload), nil
	case "message.status", "message_status", "ack", "status":
		return StatusEvent{
			ProviderMessageID: payload.providerMessageID(),
			Token:             payload.statusToken(),
		}, nil
	case "message.edit", "edit":
		return EditEvent{
			ProviderMessageID: payload.providerMessageID(),
			NewText:           payload.editedText(),
		}, nil
	case "message.revoked", "message.delete", "revoke", "delete":
		return DeleteEvent{ProviderMessageID: payload.providerMessageID()}, nil
	case "chat", "chat.update":
		return ChatUpdateEvent{
			RemoteJID: payload.remoteJID(),
			Archived:  payload.Archived,
		}, nil
	case "channel.status", "connection", "connection.update":
		return ChannelStatusEvent{Token: payload.statusToken()}, nil
	default:
		return UnknownEvent{Type: kind}, nil
	}
}

// resolveEventKind determines the event type. The "event" field wins and may
// be a plain string or a nested object carrying the real type (and often the
// real payload). Only when "event" is absent does the top-level "type" field
// name the event kind; otherwise "type" is the message content type.
func resolveEventKind(env *rawEnvelope) (string, *rawMessage) {
	payload := &env.rawMessage
	if env.Data != nil {
		payload = env.Data
	}

	if len(env.Event) > 0 {
		var s string
		if err := json.Unmarshal(env.Event, &s); err == nil {
			return strings.ToLower(strings.TrimSpace(s)), payload
		}
		var nested rawNestedEvent
		if err := json.Unmarshal(env.Event, &nested); err == nil && nested.Type != "" {
			return strings.ToLower(strings.TrimSpace(nested.Type)), &nested.rawMessage
		}
	}

	if len(env.Messages) > 0 {
		return "messages", payload
	}
	return strings.ToLower(strings.TrimSpace(env.Kind)), payload
}

func decodeMessages(env *rawEnvelope, payload *rawMessage) MessagesEvent {
	raws := env.Messages
	if len(raws) == 0 && payload != nil {
		raws = []rawMessage{*payload}
	}
	out := MessagesEvent{Messages: make([]NormalizedMessage, 0, len(raws))}
	for i := range raws {
		out.Messages = append(out.Messages, normalizeMessage(&raws[i]))
	}
	return out
}

func normalizeMessage(m *rawMessage) NormalizedMessage {
	fromMe := false
	if m.FromMe != nil {
		fromMe = *m.FromMe
	} else if m.FromMeAlt != nil {
		fromMe = *m.FromMeAlt
	}

	jid := m.remoteJID()
	if jid == "" {
		// Derivable from sender/recipient depending on direction: an
		// outbound message converses with its recipient, an inbound one
		// with its sender.
		if fromMe {
			jid = m.To
		} else {
			jid = m.From
		}
	}

	msgType, media := m.contentType()

	n := NormalizedMessage{
		ProviderMessageID: m.providerMessageID(),
		RemoteJID:         jid,
		FromMe:            fromMe,
		From:              m.From,
		To:                m.To,
		Type:              msgType,
		Text:              m.messageText(media),
		IsGroup:           strings.HasSuffix(jid, "@g.us"),
	}

	if m.ViewOnce != nil {
		inner := normalizeMessage(m.ViewOnce)
		inner.ProviderMessageID = n.ProviderMessageID
		inner.RemoteJID = n.RemoteJID
		inner.FromMe = n.FromMe
		inner.From, inner.To = n.From, n.To
		inner.ViewOnce = true
		n = inner
	}

	if media != nil {
		if media.URL != "" {
			n.MediaURL = &media.URL
		}
		if media.MimeType != "" {
			n.MediaMimeType = &media.MimeType
		}
	}

	if name := firstNonEmpty(m.PushName, m.PushNameAlt, m.NotifyName); name != "" {
		n.SenderName = &name
	}
	if photo := firstNonEmpty(m.ProfilePicURL, m.Avatar); photo != "" {
		n.ProfilePhotoURL = &photo
	}

	if m.IsGroup != nil && *m.IsGroup {
		n.IsGroup = true
	}
	if m.Group != nil {
		n.IsGroup = true
		n.GroupSubject = m.Group.Subject
		n.GroupParticipants = m.Group.Participants
	}

	if m.Timestamp > 0 {
		ts := time.Unix(m.Timestamp, 0).UTC()
		n.Timestamp = &ts
	}

	return n
}

func (m *rawMessage) providerMessageID() string {
	return firstNonEmpty(m.ID, m.MessageID)
}

func (m *rawMessage) remoteJID() string {
	return firstNonEmpty(m.ChatID, m.ChatIDAlt, m.RemoteJID)
}

// statusToken returns the raw status token: a numeric ack code (quoted or
// not) or a status/state string.
func (m *rawMessage) statusToken() string {
	if len(m.Ack) > 0 {
		return strings.Trim(string(m.Ack), `"`)
	}
	return firstNonEmpty(m.Status, m.State)
}

func (m *rawMessage) editedText() string {
	return firstNonEmpty(m.NewText, m.Body, m.Text)
}

// contentType resolves the message type: the explicit type field wins, else
// it is inferred from which media sub-object is populated.
func (m *rawMessage) contentType() (core_domain.MessageType, *rawMedia) {
	if m.Kind != "" {
		t := core_domain.MessageType(strings.ToLower(m.Kind))
		switch t {
		case core_domain.MessageTypeText, core_domain.MessageTypeImage, core_domain.MessageTypeVideo,
			core_domain.MessageTypeAudio, core_domain.MessageTypeDocument, core_domain.MessageTypeSticker,
			core_domain.MessageTypeLocation, core_domain.MessageTypeContact:
			return t, m.mediaFor(t)
		}
	}

	switch {
	case m.Image != nil:
		return core_domain.MessageTypeImage, m.Image
	case m.Video != nil:
		return core_domain.MessageTypeVideo, m.Video
	case m.Audio != nil:
		return core_domain.MessageTypeAudio, m.Audio
	case m.Document != nil:
		return core_domain.MessageTypeDocument, m.Document
	case m.Sticker != nil:
		return core_domain.MessageTypeSticker, m.Sticker
	case m.Location != nil:
		return core_domain.MessageTypeLocation, nil
	case m.Contact != nil:
		return core_domain.MessageTypeContact, nil
	default:
		return core_domain.MessageTypeText, nil
	}
}

func (m *rawMessage) mediaFor(t core_domain.MessageType) *rawMedia {
	switch t {
	case core_domain.MessageTypeImage:
		return m.Image
	case core_domain.MessageTypeVideo:
		return m.Video
	case core_domain.MessageTypeAudio:
		return m.Audio
	case core_domain.MessageTypeDocument:
		return m.Document
	case core_domain.MessageTypeSticker:
		return m.Sticker
	default:
		return nil
	}
}

// messageText extracts text preferring explicit body over a nested media
// caption. Location and contact messages fall back to their display fields.
func (m *rawMessage) messageText(media *rawMedia) *string {
	text := firstNonEmpty(m.Body, m.Text, m.Caption)
	if text == "" && media != nil {
		text = media.Caption
	}
	if text == "" && m.Location != nil {
		text = m.Location.Name
	}
	if text == "" && m.Contact != nil {
		text = m.Contact.DisplayName
	}
	if text == "" {
		return nil
	}
	return &text
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
