package core_domain

import (
	"time"
)

// ChannelStatus defines the lifecycle states of a connected WhatsApp identity.
type ChannelStatus string

const (
	ChannelStatusPendingQR   ChannelStatus = "pending_qr"
	ChannelStatusActive      ChannelStatus = "active"
	ChannelStatusNeedsReauth ChannelStatus = "needs_reauth"
	ChannelStatusStopped     ChannelStatus = "stopped"
	ChannelStatusDegraded    ChannelStatus = "degraded"
)

// MessageStatus defines delivery statuses of an outbound message.
// Inbound messages carry no status (nil in the Message struct).
type MessageStatus string

const (
	MessageStatusPending   MessageStatus = "pending"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
	MessageStatusFailed    MessageStatus = "failed"
)

// Rank returns the position of a status in the monotonic delivery order
// pending(0) < sent(1) < delivered(2) < read(3). failed is terminal and
// sits outside the order; it returns -1.
func (s MessageStatus) Rank() int {
	switch s {
	case MessageStatusPending:
		return 0
	case MessageStatusSent:
		return 1
	case MessageStatusDelivered:
		return 2
	case MessageStatusRead:
		return 3
	default:
		return -1
	}
}

// AllowsTransitionTo reports whether a stored status may be replaced by next.
// Statuses only move forward in rank; failed is a terminal sink reachable
// from any state, and nothing non-terminal may replace it.
func (s MessageStatus) AllowsTransitionTo(next MessageStatus) bool {
	if s == MessageStatusFailed {
		return false
	}
	if next == MessageStatusFailed {
		return true
	}
	return next.Rank() > s.Rank()
}

// MessageDirection distinguishes inbound from outbound messages.
type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

// MessageType is the content type of a message.
type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeImage    MessageType = "image"
	MessageTypeVideo    MessageType = "video"
	MessageTypeAudio    MessageType = "audio"
	MessageTypeDocument MessageType = "document"
	MessageTypeSticker  MessageType = "sticker"
	MessageTypeLocation MessageType = "location"
	MessageTypeContact  MessageType = "contact"
)

// OutboxStatus defines the lifecycle states of an outbox entry.
type OutboxStatus string

const (
	OutboxStatusQueued  OutboxStatus = "queued"
	OutboxStatusSending OutboxStatus = "sending"
	OutboxStatusSent    OutboxStatus = "sent"
	OutboxStatusFailed  OutboxStatus = "failed"
	OutboxStatusPaused  OutboxStatus = "paused"
)

// Channel represents one provisioned WhatsApp identity within a workspace.
type Channel struct {
	ID            string        `json:"id"` // UUID
	WorkspaceID   string        `json:"workspace_id"`
	PhoneNumber   *string       `json:"phone_number,omitempty"` // Nil until first message observed
	Status        ChannelStatus `json:"status"`
	WebhookSecret string        `json:"-"`
	// EncryptedCredential is the provisioning-time gateway credential,
	// encrypted at rest. Only the dispatcher reads it.
	EncryptedCredential *string   `json:"-"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Chat is one conversation (individual or group) scoped to a channel.
// (ChannelID, RemoteJID) is unique per channel.
type Chat struct {
	ID              string     `json:"id"` // UUID
	ChannelID       string     `json:"channel_id"`
	RemoteJID       string     `json:"remote_jid"` // Provider conversation id
	IsGroup         bool       `json:"is_group"`
	DisplayName     string     `json:"display_name"`
	PhoneNumber     *string    `json:"phone_number,omitempty"`
	PhoneHash       *string    `json:"phone_hash,omitempty"`
	ProfilePhotoURL *string    `json:"profile_photo_url,omitempty"`
	ContactID       *string    `json:"contact_id,omitempty"`
	Participants    []string   `json:"participants,omitempty"` // Group member jids
	LastMessageAt   *time.Time `json:"last_message_at,omitempty"`
	LastMessageText *string    `json:"last_message_text,omitempty"`
	UnreadCount     int        `json:"unread_count"`
	Archived        bool       `json:"archived"`
	Muted           bool       `json:"muted"`
	Pinned          bool       `json:"pinned"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Message is one message instance. (ChannelID, ProviderMessageID) is the
// sole dedup key across provider redelivery; the event envelope id must
// never be used for identity.
type Message struct {
	ID                string           `json:"id"` // UUID
	WorkspaceID       string           `json:"workspace_id"`
	ChannelID         string           `json:"channel_id"`
	ChatID            string           `json:"chat_id"`
	ProviderMessageID string           `json:"provider_message_id"`
	Direction         MessageDirection `json:"direction"`
	Type              MessageType      `json:"type"`
	Text              *string          `json:"text,omitempty"`
	MediaURL          *string          `json:"media_url,omitempty"`
	MediaMimeType     *string          `json:"media_mime_type,omitempty"`
	ViewOnce          bool             `json:"view_once"`
	Status            *MessageStatus   `json:"status,omitempty"` // Nil for inbound
	SenderJID         *string          `json:"sender_jid,omitempty"`
	SenderName        *string          `json:"sender_name,omitempty"`
	EditedAt          *time.Time       `json:"edited_at,omitempty"`
	DeletedAt         *time.Time       `json:"deleted_at,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// OutboxEntry is a durable work item for outbound delivery, paired 1:1
// with a pending Message row at enqueue time.
type OutboxEntry struct {
	ID            string       `json:"id"` // UUID
	ChannelID     string       `json:"channel_id"`
	ChatID        string       `json:"chat_id"`
	MessageID     string       `json:"message_id"` // Paired Message row
	MessageType   MessageType  `json:"message_type"`
	Payload       []byte       `json:"payload"` // JSON body handed to the gateway client
	Status        OutboxStatus `json:"status"`
	AttemptCount  int          `json:"attempt_count"`
	MaxAttempts   int          `json:"max_attempts"`
	Priority      int          `json:"priority"` // Higher dispatched first
	NextAttemptAt *time.Time   `json:"next_attempt_at,omitempty"`
	LastError     *string      `json:"last_error,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}
