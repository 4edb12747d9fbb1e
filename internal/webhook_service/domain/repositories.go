package domain

import (
	"context"
	"time"

	"github.com/relaydesk/golang_services/internal/core_domain"
)

// ChannelRepository persists channels. Mutations here are limited to what
// the inbound pipeline needs: status transitions and phone-number backfill.
type ChannelRepository interface {
	GetByID(ctx context.Context, id string) (*core_domain.Channel, error)
	UpdateStatus(ctx context.Context, id string, status core_domain.ChannelStatus) error
	// SetPhoneNumberIfEmpty persists the channel's phone number only when no
	// number is stored yet, and flips the channel to active in the same
	// statement. Returns true when a row was updated.
	SetPhoneNumberIfEmpty(ctx context.Context, id string, phoneNumber string) (bool, error)
}

// ChatRepository persists chats. Upsert is keyed on (channel_id, remote_jid)
// so concurrent first-time events for the same conversation collapse to one
// row at the store level.
type ChatRepository interface {
	GetByRemoteJID(ctx context.Context, channelID, remoteJID string) (*core_domain.Chat, error)
	// Upsert inserts the chat or, on (channel_id, remote_jid) conflict,
	// returns the surviving row without duplicating it.
	Upsert(ctx context.Context, chat *core_domain.Chat) (*core_domain.Chat, error)
	// UpdateProfile applies a non-destructive refresh of display name,
	// profile photo and participants computed by the resolver.
	UpdateProfile(ctx context.Context, chat *core_domain.Chat) error
	SetArchived(ctx context.Context, channelID, remoteJID string, archived bool) (bool, error)
	// RecordMessageActivity updates the chat's last-message preview and
	// timestamp. When incrementUnread is true the unread counter is bumped
	// atomically in the same statement (never read-then-write).
	RecordMessageActivity(ctx context.Context, chatID string, preview string, at time.Time, incrementUnread bool) error
	// SetContactIDIfNull links a contact only when no contact is linked yet;
	// manual links take precedence. Returns true when the link was applied.
	SetContactIDIfNull(ctx context.Context, chatID, contactID string) (bool, error)
	// ListWithoutPhoneHash feeds the contact-link backfill batch.
	ListWithoutPhoneHash(ctx context.Context, limit int) ([]core_domain.Chat, error)
	SetPhoneHash(ctx context.Context, chatID, phoneNumber, phoneHash string) error
	// ListUnlinkedWithPhoneHash returns chats that have a hash but no linked
	// contact, for the backfill re-link pass.
	ListUnlinkedWithPhoneHash(ctx context.Context, limit int) ([]core_domain.Chat, error)
}

// MessageRepository persists messages. All writes are idempotent: the upsert
// is keyed on the dedup key (channel_id, provider_message_id), status moves
// only forward, and the soft delete is null-guarded.
type MessageRepository interface {
	// Upsert inserts the message or, on dedup-key conflict, updates all
	// mutable fields with the later-arriving values. inserted reports
	// whether a new row was created, so first-delivery side effects (the
	// unread counter) apply exactly once under duplicate delivery.
	Upsert(ctx context.Context, msg *core_domain.Message) (stored *core_domain.Message, inserted bool, err error)
	// ApplyStatus applies a monotonic status transition to the outbound
	// message matched by the dedup key. A miss (no such message, or the
	// transition would move backwards) returns applied=false and no error.
	ApplyStatus(ctx context.Context, channelID, providerMessageID string, status core_domain.MessageStatus) (applied bool, err error)
	// ApplyEdit sets new text and edited_at. A redelivered edit whose text is
	// already stored returns applied=false without touching the row.
	ApplyEdit(ctx context.Context, channelID, providerMessageID, newText string, editedAt time.Time) (applied bool, err error)
	// SoftDelete sets deleted_at only if currently null, so redelivery never
	// resets the timestamp.
	SoftDelete(ctx context.Context, channelID, providerMessageID string, deletedAt time.Time) (applied bool, err error)
}

// ContactIndexRepository reads the phone→contact index maintained by the
// contact module (external collaborator).
type ContactIndexRepository interface {
	FindContactIDsByPhoneHash(ctx context.Context, workspaceID, phoneHash string) ([]string, error)
}
