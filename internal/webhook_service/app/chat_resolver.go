package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/relaydesk/golang_services/internal/core_domain"
	"github.com/relaydesk/golang_services/internal/webhook_service/domain"
)

// ChatResolver finds or creates the Chat row for a (channel, remote jid)
// pair. Creation is an upsert keyed on the store's unique constraint, so
// concurrent first-time events for the same conversation race safely and
// collapse to one row.
type ChatResolver struct {
	chats      domain.ChatRepository
	linker     *ContactLinker
	normalizer PhoneNormalizer
	logger     *slog.Logger
}

// NewChatResolver creates a new ChatResolver.
func NewChatResolver(chats domain.ChatRepository, linker *ContactLinker, normalizer PhoneNormalizer, logger *slog.Logger) *ChatResolver {
	return &ChatResolver{
		chats:      chats,
		linker:     linker,
		normalizer: normalizer,
		logger:     logger.With("component", "chat_resolver"),
	}
}

// Resolve returns the Chat for the event's conversation, creating it on
// first contact and refreshing stored metadata non-destructively otherwise.
func (r *ChatResolver) Resolve(ctx context.Context, channel *core_domain.Channel, msg *domain.NormalizedMessage) (*core_domain.Chat, error) {
	if msg.RemoteJID == "" {
		return nil, &domain.ValidationError{Reason: "event has no resolvable conversation id"}
	}

	chat, err := r.chats.GetByRemoteJID(ctx, channel.ID, msg.RemoteJID)
	switch {
	case err == nil:
		return r.refresh(ctx, chat, msg)
	case errors.Is(err, domain.ErrChatNotFound):
		return r.create(ctx, channel, msg)
	default:
		return nil, fmt.Errorf("chat lookup failed: %w", err)
	}
}

// refresh overwrites stored chat metadata only with better-quality values:
// the display name is replaced only when the current one is a placeholder,
// the profile photo only when none is stored, and the participant list
// whenever the event carries one.
func (r *ChatResolver) refresh(ctx context.Context, chat *core_domain.Chat, msg *domain.NormalizedMessage) (*core_domain.Chat, error) {
	changed := false

	if name := r.candidateName(chat, msg); name != "" &&
		chat.ContactID == nil &&
		isPlaceholderName(chat) &&
		!isFormattedPhone(name) &&
		name != chat.DisplayName {
		chat.DisplayName = name
		changed = true
	}

	if chat.ProfilePhotoURL == nil && msg.ProfilePhotoURL != nil {
		chat.ProfilePhotoURL = msg.ProfilePhotoURL
		changed = true
	}

	if len(msg.GroupParticipants) > 0 {
		chat.Participants = msg.GroupParticipants
		changed = true
	}

	if !changed {
		return chat, nil
	}
	if err := r.chats.UpdateProfile(ctx, chat); err != nil {
		return nil, fmt.Errorf("chat refresh failed: %w", err)
	}
	return chat, nil
}

func (r *ChatResolver) create(ctx context.Context, channel *core_domain.Channel, msg *domain.NormalizedMessage) (*core_domain.Chat, error) {
	now := time.Now().UTC()
	chat := &core_domain.Chat{
		ID:        uuid.NewString(),
		ChannelID: channel.ID,
		RemoteJID: msg.RemoteJID,
		IsGroup:   msg.IsGroup,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if !chat.IsGroup {
		if phone := phoneFromJID(msg.RemoteJID); phone != "" {
			normalized := r.normalizer.Normalize(phone)
			hash := PhoneHash(normalized)
			chat.PhoneNumber = &normalized
			chat.PhoneHash = &hash
		}
	}

	chat.DisplayName = r.candidateName(chat, msg)
	if chat.DisplayName == "" {
		if chat.PhoneNumber != nil {
			chat.DisplayName = "+" + *chat.PhoneNumber
		} else {
			chat.DisplayName = msg.RemoteJID
		}
	}
	chat.ProfilePhotoURL = msg.ProfilePhotoURL
	chat.Participants = msg.GroupParticipants

	created, err := r.chats.Upsert(ctx, chat)
	if err != nil {
		return nil, fmt.Errorf("chat create failed: %w", err)
	}

	// Link synchronously on creation; the backfill batch re-attempts any
	// chat this misses.
	if err := r.linker.Link(ctx, channel.WorkspaceID, created); err != nil {
		r.logger.WarnContext(ctx, "Contact link on chat creation failed",
			"error", err, "chat_id", created.ID, "channel_id", channel.ID)
	}

	return created, nil
}

// isPlaceholderName reports whether the stored display name is one of the
// fallbacks create uses when no real name was available yet: empty, a
// formatted phone number, or the raw jid (groups created before their
// subject is known).
func isPlaceholderName(chat *core_domain.Chat) bool {
	return chat.DisplayName == "" ||
		isFormattedPhone(chat.DisplayName) ||
		chat.DisplayName == chat.RemoteJID
}

// candidateName picks the best display name the event offers: the group
// subject for groups, the sender's push name for inbound individual chats.
func (r *ChatResolver) candidateName(chat *core_domain.Chat, msg *domain.NormalizedMessage) string {
	if chat.IsGroup || msg.IsGroup {
		return msg.GroupSubject
	}
	if !msg.FromMe && msg.SenderName != nil {
		return *msg.SenderName
	}
	return ""
}
