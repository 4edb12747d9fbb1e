package domain

import (
	"time"

	"github.com/relaydesk/golang_services/internal/core_domain"
)

// Event is the closed union of webhook event kinds. The envelope decoder in
// normalize.go is the only code that knows about provider field aliases;
// everything downstream consumes these canonical types via a single
// exhaustive switch in the event processor.
type Event interface {
	isEvent()
}

// MessagesEvent carries one or more message payloads (a single-message event
// and a batch delivery decode to the same shape).
type MessagesEvent struct {
	Messages []NormalizedMessage
}

// StatusEvent is a delivery-status (ack) update for one outbound message.
// Token is the raw provider status token; mapping happens in the processor.
type StatusEvent struct {
	ProviderMessageID string
	Token             string
}

// EditEvent replaces the text of an existing message.
type EditEvent struct {
	ProviderMessageID string
	NewText           string
}

// DeleteEvent soft-deletes an existing message (revoke).
type DeleteEvent struct {
	ProviderMessageID string
}

// ChatUpdateEvent carries chat-level metadata changes. Only the archived
// flag is handled; other chat fields are dropped during decode.
type ChatUpdateEvent struct {
	RemoteJID string
	Archived  *bool
}

// ChannelStatusEvent carries a connection-state change for the channel.
type ChannelStatusEvent struct {
	Token string
}

// UnknownEvent is anything the decoder does not recognize. The processor
// reports it as ignored, never as a failure.
type UnknownEvent struct {
	Type string
}

func (MessagesEvent) isEvent()      {}
func (StatusEvent) isEvent()        {}
func (EditEvent) isEvent()          {}
func (DeleteEvent) isEvent()        {}
func (ChatUpdateEvent) isEvent()    {}
func (ChannelStatusEvent) isEvent() {}
func (UnknownEvent) isEvent()       {}

// NormalizedMessage is the canonical message payload produced by the
// envelope decoder. Field aliases, media sub-objects and direction
// derivation are all resolved before this struct exists.
type NormalizedMessage struct {
	ProviderMessageID string
	RemoteJID         string // May be empty if not present and not derivable
	FromMe            bool
	From              string
	To                string
	Type              core_domain.MessageType
	Text              *string
	MediaURL          *string
	MediaMimeType     *string
	ViewOnce          bool
	SenderName        *string
	ProfilePhotoURL   *string
	IsGroup           bool // Explicit group flag or group object present
	GroupSubject      string
	GroupParticipants []string
	Timestamp         *time.Time
}
