package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/relaydesk/golang_services/internal/core_domain"
	"github.com/relaydesk/golang_services/internal/outbox_service/domain"
)

type pgChatReader struct {
	db DB
}

// NewPgChatReader creates a read-only chat lookup for enqueue requests.
func NewPgChatReader(db DB) domain.ChatReader {
	return &pgChatReader{db: db}
}

func (r *pgChatReader) GetByID(ctx context.Context, id string) (*core_domain.Chat, error) {
	chat := &core_domain.Chat{}
	query := `
		SELECT id, channel_id, remote_jid, is_group, display_name, created_at, updated_at
		FROM chats WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, id).Scan(
		&chat.ID, &chat.ChannelID, &chat.RemoteJID, &chat.IsGroup,
		&chat.DisplayName, &chat.CreatedAt, &chat.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrChatNotFound
		}
		return nil, fmt.Errorf("querying chat: %w", err)
	}
	return chat, nil
}
