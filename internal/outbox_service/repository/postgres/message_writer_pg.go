package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/relaydesk/golang_services/internal/core_domain"
	"github.com/relaydesk/golang_services/internal/outbox_service/domain"
)

type pgMessageWriter struct {
	db DB
}

// NewPgMessageWriter creates the dispatcher's writer over the messages table.
func NewPgMessageWriter(db DB) domain.MessageWriter {
	return &pgMessageWriter{db: db}
}

func (w *pgMessageWriter) CreatePending(ctx context.Context, msg *core_domain.Message) error {
	query := `
		INSERT INTO messages (
			id, workspace_id, channel_id, chat_id, provider_message_id, direction, type,
			text, media_url, media_mime_type, view_once, status, sender_jid, sender_name,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := w.db.Exec(ctx, query,
		msg.ID, msg.WorkspaceID, msg.ChannelID, msg.ChatID, msg.ProviderMessageID,
		msg.Direction, msg.Type, msg.Text, msg.MediaURL, msg.MediaMimeType,
		msg.ViewOnce, msg.Status, msg.SenderJID, msg.SenderName,
		msg.CreatedAt, msg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting pending message: %w", err)
	}
	return nil
}

// ConfirmSent swaps the enqueue-time placeholder id for the provider's real
// id. Later delivery receipts arriving on the webhook side match on that id.
// The status guard keeps a racing delivered/read receipt from being demoted.
//
// The provider echoes outbound messages back through the webhook, and that
// echo can land before this confirmation. The webhook upsert then already
// created a row under the real id, so writing it onto the placeholder would
// break the dedup key. In that case the echo row wins: the placeholder is
// deleted and the echo row's status is advanced instead.
func (w *pgMessageWriter) ConfirmSent(ctx context.Context, messageID, providerMessageID string) error {
	query := `
		WITH echo AS (
			SELECT dup.id
			FROM messages placeholder
			JOIN messages dup
			  ON dup.channel_id = placeholder.channel_id
			 AND dup.provider_message_id = $2
			 AND dup.id <> placeholder.id
			WHERE placeholder.id = $1
		), absorbed AS (
			DELETE FROM messages
			WHERE id = $1 AND EXISTS (SELECT 1 FROM echo)
		)
		UPDATE messages
		SET provider_message_id = $2,
		    status = CASE WHEN status IS NULL OR status = 'pending' THEN 'sent' ELSE status END,
		    updated_at = $3
		WHERE (id = $1 AND NOT EXISTS (SELECT 1 FROM echo))
		   OR id IN (SELECT id FROM echo)
	`
	tag, err := w.db.Exec(ctx, query, messageID, providerMessageID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("confirming message sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("confirming message sent: no message with id %s", messageID)
	}
	return nil
}

func (w *pgMessageWriter) MarkFailed(ctx context.Context, messageID string) error {
	query := `UPDATE messages SET status = 'failed', updated_at = $2 WHERE id = $1`
	tag, err := w.db.Exec(ctx, query, messageID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("marking message failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("marking message failed: no message with id %s", messageID)
	}
	return nil
}
