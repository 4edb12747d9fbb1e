package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/relaydesk/golang_services/internal/core_domain"
	"github.com/relaydesk/golang_services/internal/webhook_service/domain"
)

const messageColumns = `
	id, workspace_id, channel_id, chat_id, provider_message_id, direction, type,
	text, media_url, media_mime_type, view_once, status, sender_jid, sender_name,
	edited_at, deleted_at, created_at, updated_at
`

// statusRankSQL orders delivery statuses for the monotonic-forward guard.
// failed sits outside the order and is handled separately as a terminal sink.
const statusRankSQL = `
	CASE %s WHEN 'pending' THEN 0 WHEN 'sent' THEN 1 WHEN 'delivered' THEN 2 WHEN 'read' THEN 3 ELSE -1 END
`

type pgMessageRepository struct {
	db DB
}

// NewPgMessageRepository creates a PostgreSQL-backed MessageRepository.
func NewPgMessageRepository(db DB) domain.MessageRepository {
	return &pgMessageRepository{db: db}
}

// Upsert is keyed on the dedup key (channel_id, provider_message_id): the
// provider wraps the same message in distinct envelopes for single and batch
// delivery, so the envelope id must never participate in identity. On
// conflict all content fields take the later event's values; status is left
// to the monotonic ApplyStatus path (COALESCE keeps an already-advanced
// status from being reset by a redelivered message event). xmax = 0 only on
// freshly inserted rows, which is how a dedup-conflict update is told apart
// from a first insert.
func (r *pgMessageRepository) Upsert(ctx context.Context, msg *core_domain.Message) (*core_domain.Message, bool, error) {
	query := `
		INSERT INTO messages (
			id, workspace_id, channel_id, chat_id, provider_message_id, direction, type,
			text, media_url, media_mime_type, view_once, status, sender_jid, sender_name,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (channel_id, provider_message_id) DO UPDATE SET
			chat_id = EXCLUDED.chat_id,
			direction = EXCLUDED.direction,
			type = EXCLUDED.type,
			text = EXCLUDED.text,
			media_url = EXCLUDED.media_url,
			media_mime_type = EXCLUDED.media_mime_type,
			view_once = EXCLUDED.view_once,
			status = COALESCE(messages.status, EXCLUDED.status),
			sender_jid = EXCLUDED.sender_jid,
			sender_name = EXCLUDED.sender_name,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + messageColumns + `, (xmax = 0) AS inserted`
	stored := &core_domain.Message{}
	var inserted bool
	err := r.db.QueryRow(ctx, query,
		msg.ID, msg.WorkspaceID, msg.ChannelID, msg.ChatID, msg.ProviderMessageID,
		msg.Direction, msg.Type, msg.Text, msg.MediaURL, msg.MediaMimeType,
		msg.ViewOnce, msg.Status, msg.SenderJID, msg.SenderName,
		msg.CreatedAt, msg.UpdatedAt,
	).Scan(
		&stored.ID, &stored.WorkspaceID, &stored.ChannelID, &stored.ChatID, &stored.ProviderMessageID,
		&stored.Direction, &stored.Type, &stored.Text, &stored.MediaURL, &stored.MediaMimeType,
		&stored.ViewOnce, &stored.Status, &stored.SenderJID, &stored.SenderName,
		&stored.EditedAt, &stored.DeletedAt, &stored.CreatedAt, &stored.UpdatedAt,
		&inserted,
	)
	if err != nil {
		return nil, false, fmt.Errorf("upserting message: %w", err)
	}
	return stored, inserted, nil
}

// ApplyStatus enforces the monotonic rule in the WHERE clause itself, so
// duplicate and reordered status events resolve at the store without
// application-level locking. Only outbound messages carry delivery status.
func (r *pgMessageRepository) ApplyStatus(ctx context.Context, channelID, providerMessageID string, status core_domain.MessageStatus) (bool, error) {
	query := `
		UPDATE messages SET status = $3, updated_at = $4
		WHERE channel_id = $1 AND provider_message_id = $2
		  AND direction = 'outbound'
		  AND (status IS NULL OR status <> 'failed')
		  AND ($3 = 'failed' OR status IS NULL OR ` +
		fmt.Sprintf(statusRankSQL, "status") + ` < ` + fmt.Sprintf(statusRankSQL, "$3") + `)
	`
	tag, err := r.db.Exec(ctx, query, channelID, providerMessageID, status, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("applying message status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ApplyEdit is guarded like SoftDelete: a redelivered edit carrying the text
// already stored changes nothing and must not re-stamp edited_at.
func (r *pgMessageRepository) ApplyEdit(ctx context.Context, channelID, providerMessageID, newText string, editedAt time.Time) (bool, error) {
	query := `
		UPDATE messages SET text = $3, edited_at = $4, updated_at = $4
		WHERE channel_id = $1 AND provider_message_id = $2 AND deleted_at IS NULL
		  AND text IS DISTINCT FROM $3
	`
	tag, err := r.db.Exec(ctx, query, channelID, providerMessageID, newText, editedAt)
	if err != nil {
		return false, fmt.Errorf("applying message edit: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SoftDelete is null-guarded: redelivery of a revoke event must not reset
// the original deletion timestamp.
func (r *pgMessageRepository) SoftDelete(ctx context.Context, channelID, providerMessageID string, deletedAt time.Time) (bool, error) {
	query := `
		UPDATE messages SET deleted_at = $3, updated_at = $3
		WHERE channel_id = $1 AND provider_message_id = $2 AND deleted_at IS NULL
	`
	tag, err := r.db.Exec(ctx, query, channelID, providerMessageID, deletedAt)
	if err != nil {
		return false, fmt.Errorf("soft deleting message: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
