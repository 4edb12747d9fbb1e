package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/relaydesk/golang_services/internal/core_domain"
	"github.com/relaydesk/golang_services/internal/webhook_service/domain"
)

const chatColumns = `
	id, channel_id, remote_jid, is_group, display_name, phone_number, phone_hash,
	profile_photo_url, contact_id, participants, last_message_at, last_message_text,
	unread_count, archived, muted, pinned, created_at, updated_at
`

type pgChatRepository struct {
	db DB
}

// NewPgChatRepository creates a PostgreSQL-backed ChatRepository.
func NewPgChatRepository(db DB) domain.ChatRepository {
	return &pgChatRepository{db: db}
}

func scanChat(row pgx.Row) (*core_domain.Chat, error) {
	chat := &core_domain.Chat{}
	err := row.Scan(
		&chat.ID, &chat.ChannelID, &chat.RemoteJID, &chat.IsGroup, &chat.DisplayName,
		&chat.PhoneNumber, &chat.PhoneHash, &chat.ProfilePhotoURL, &chat.ContactID,
		&chat.Participants, &chat.LastMessageAt, &chat.LastMessageText,
		&chat.UnreadCount, &chat.Archived, &chat.Muted, &chat.Pinned,
		&chat.CreatedAt, &chat.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return chat, nil
}

func (r *pgChatRepository) GetByRemoteJID(ctx context.Context, channelID, remoteJID string) (*core_domain.Chat, error) {
	query := `SELECT ` + chatColumns + ` FROM chats WHERE channel_id = $1 AND remote_jid = $2`
	chat, err := scanChat(r.db.QueryRow(ctx, query, channelID, remoteJID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrChatNotFound
		}
		return nil, fmt.Errorf("querying chat: %w", err)
	}
	return chat, nil
}

// Upsert relies on the unique (channel_id, remote_jid) constraint to resolve
// creation races: on conflict the insert degenerates to a touch and the
// surviving row is returned, never a duplicate.
func (r *pgChatRepository) Upsert(ctx context.Context, chat *core_domain.Chat) (*core_domain.Chat, error) {
	query := `
		INSERT INTO chats (
			id, channel_id, remote_jid, is_group, display_name, phone_number, phone_hash,
			profile_photo_url, contact_id, participants, unread_count, archived, muted, pinned,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, FALSE, FALSE, FALSE, $11, $12)
		ON CONFLICT (channel_id, remote_jid) DO UPDATE SET updated_at = EXCLUDED.updated_at
		RETURNING ` + chatColumns
	stored, err := scanChat(r.db.QueryRow(ctx, query,
		chat.ID, chat.ChannelID, chat.RemoteJID, chat.IsGroup, chat.DisplayName,
		chat.PhoneNumber, chat.PhoneHash, chat.ProfilePhotoURL, chat.ContactID,
		chat.Participants, chat.CreatedAt, chat.UpdatedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("upserting chat: %w", err)
	}
	return stored, nil
}

func (r *pgChatRepository) UpdateProfile(ctx context.Context, chat *core_domain.Chat) error {
	query := `
		UPDATE chats SET display_name = $2, profile_photo_url = $3, participants = $4, updated_at = $5
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, chat.ID, chat.DisplayName, chat.ProfilePhotoURL, chat.Participants, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("updating chat profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrChatNotFound
	}
	return nil
}

func (r *pgChatRepository) SetArchived(ctx context.Context, channelID, remoteJID string, archived bool) (bool, error) {
	query := `UPDATE chats SET archived = $3, updated_at = $4 WHERE channel_id = $1 AND remote_jid = $2`
	tag, err := r.db.Exec(ctx, query, channelID, remoteJID, archived, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("updating chat archived flag: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// RecordMessageActivity bumps the unread counter inside the UPDATE itself;
// concurrent webhook handlers for the same chat must never lose increments
// to a read-then-write cycle. The last-message timestamp uses GREATEST so
// out-of-order delivery can't roll the preview backwards.
func (r *pgChatRepository) RecordMessageActivity(ctx context.Context, chatID string, preview string, at time.Time, incrementUnread bool) error {
	increment := 0
	if incrementUnread {
		increment = 1
	}
	query := `
		UPDATE chats SET
			last_message_text = CASE WHEN last_message_at IS NULL OR last_message_at <= $3 THEN $2 ELSE last_message_text END,
			last_message_at = GREATEST(COALESCE(last_message_at, $3), $3),
			unread_count = unread_count + $4,
			updated_at = $5
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, chatID, preview, at, increment, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("recording chat activity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrChatNotFound
	}
	return nil
}

func (r *pgChatRepository) SetContactIDIfNull(ctx context.Context, chatID, contactID string) (bool, error) {
	query := `UPDATE chats SET contact_id = $2, updated_at = $3 WHERE id = $1 AND contact_id IS NULL`
	tag, err := r.db.Exec(ctx, query, chatID, contactID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("linking chat to contact: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *pgChatRepository) ListWithoutPhoneHash(ctx context.Context, limit int) ([]core_domain.Chat, error) {
	query := `
		SELECT ` + chatColumns + `
		FROM chats WHERE phone_hash IS NULL AND is_group = FALSE
		ORDER BY created_at LIMIT $1
	`
	return r.listChats(ctx, query, limit)
}

func (r *pgChatRepository) ListUnlinkedWithPhoneHash(ctx context.Context, limit int) ([]core_domain.Chat, error) {
	query := `
		SELECT ` + chatColumns + `
		FROM chats WHERE phone_hash IS NOT NULL AND contact_id IS NULL
		ORDER BY created_at LIMIT $1
	`
	return r.listChats(ctx, query, limit)
}

func (r *pgChatRepository) listChats(ctx context.Context, query string, limit int) ([]core_domain.Chat, error) {
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("listing chats: %w", err)
	}
	defer rows.Close()

	var chats []core_domain.Chat
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning chat row: %w", err)
		}
		chats = append(chats, *chat)
	}
	return chats, rows.Err()
}

func (r *pgChatRepository) SetPhoneHash(ctx context.Context, chatID, phoneNumber, phoneHash string) error {
	query := `UPDATE chats SET phone_number = $2, phone_hash = $3, updated_at = $4 WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, chatID, phoneNumber, phoneHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("setting chat phone hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrChatNotFound
	}
	return nil
}
