package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/relaydesk/golang_services/internal/core_domain"
	"github.com/relaydesk/golang_services/internal/webhook_service/domain"
)

// ContactLinker associates chats with contacts by normalized-phone-hash
// lookup. Linking is re-runnable: it only ever sets a null contact_id, so a
// second run changes nothing and a manual link is never overwritten.
type ContactLinker struct {
	chats      domain.ChatRepository
	channels   domain.ChannelRepository
	contacts   domain.ContactIndexRepository
	normalizer PhoneNormalizer
	logger     *slog.Logger
}

// NewContactLinker creates a new ContactLinker.
func NewContactLinker(
	chats domain.ChatRepository,
	channels domain.ChannelRepository,
	contacts domain.ContactIndexRepository,
	normalizer PhoneNormalizer,
	logger *slog.Logger,
) *ContactLinker {
	return &ContactLinker{
		chats:      chats,
		channels:   channels,
		contacts:   contacts,
		normalizer: normalizer,
		logger:     logger.With("component", "contact_linker"),
	}
}

// Link attempts to link the chat to a contact in the given workspace. It is
// a no-op when the chat has no phone hash, is already linked, or the hash
// matches anything other than exactly one contact.
func (l *ContactLinker) Link(ctx context.Context, workspaceID string, chat *core_domain.Chat) error {
	if chat.ContactID != nil || chat.PhoneHash == nil {
		return nil
	}

	contactIDs, err := l.contacts.FindContactIDsByPhoneHash(ctx, workspaceID, *chat.PhoneHash)
	if err != nil {
		return fmt.Errorf("contact index lookup failed: %w", err)
	}
	if len(contactIDs) != 1 {
		l.logger.DebugContext(ctx, "No unambiguous contact match for chat",
			"chat_id", chat.ID, "matches", len(contactIDs))
		return nil
	}

	applied, err := l.chats.SetContactIDIfNull(ctx, chat.ID, contactIDs[0])
	if err != nil {
		return fmt.Errorf("contact link update failed: %w", err)
	}
	if applied {
		chat.ContactID = &contactIDs[0]
		l.logger.InfoContext(ctx, "Linked chat to contact", "chat_id", chat.ID, "contact_id", contactIDs[0])
	}
	return nil
}

// BackfillResult summarizes one batch backfill run.
type BackfillResult struct {
	Hashed int
	Linked int
}

// Backfill recomputes missing phone hashes and re-attempts linking for
// unlinked chats. Every row update is independent and idempotent, so it is
// safe to run while live event processing mutates the same chats.
func (l *ContactLinker) Backfill(ctx context.Context, batchSize int) (BackfillResult, error) {
	var res BackfillResult

	unhashed, err := l.chats.ListWithoutPhoneHash(ctx, batchSize)
	if err != nil {
		return res, fmt.Errorf("listing chats without phone hash: %w", err)
	}
	for i := range unhashed {
		chat := &unhashed[i]
		phone := ""
		if chat.PhoneNumber != nil {
			phone = *chat.PhoneNumber
		} else {
			phone = phoneFromJID(chat.RemoteJID)
		}
		if phone == "" {
			continue
		}
		normalized := l.normalizer.Normalize(phone)
		hash := PhoneHash(normalized)
		if err := l.chats.SetPhoneHash(ctx, chat.ID, normalized, hash); err != nil {
			l.logger.ErrorContext(ctx, "Failed to backfill phone hash", "error", err, "chat_id", chat.ID)
			continue
		}
		res.Hashed++
	}

	unlinked, err := l.chats.ListUnlinkedWithPhoneHash(ctx, batchSize)
	if err != nil {
		return res, fmt.Errorf("listing unlinked chats: %w", err)
	}
	for i := range unlinked {
		chat := &unlinked[i]
		channel, err := l.channels.GetByID(ctx, chat.ChannelID)
		if err != nil {
			l.logger.ErrorContext(ctx, "Failed to load channel for backfill link", "error", err, "chat_id", chat.ID)
			continue
		}
		before := chat.ContactID
		if err := l.Link(ctx, channel.WorkspaceID, chat); err != nil {
			l.logger.ErrorContext(ctx, "Backfill link attempt failed", "error", err, "chat_id", chat.ID)
			continue
		}
		if before == nil && chat.ContactID != nil {
			res.Linked++
		}
	}

	return res, nil
}
