package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/relaydesk/golang_services/internal/core_domain"
	"github.com/relaydesk/golang_services/internal/outbox_service/domain"
)

type pgChannelRepository struct {
	db DB
}

// NewPgChannelRepository creates the dispatcher's channel repository. Unlike
// the webhook side it selects the encrypted gateway credential.
func NewPgChannelRepository(db DB) domain.ChannelRepository {
	return &pgChannelRepository{db: db}
}

func (r *pgChannelRepository) GetByID(ctx context.Context, id string) (*core_domain.Channel, error) {
	channel := &core_domain.Channel{}
	query := `
		SELECT id, workspace_id, phone_number, status, webhook_secret, encrypted_credential, created_at, updated_at
		FROM channels WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, id).Scan(
		&channel.ID, &channel.WorkspaceID, &channel.PhoneNumber, &channel.Status,
		&channel.WebhookSecret, &channel.EncryptedCredential, &channel.CreatedAt, &channel.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrChannelNotFound
		}
		return nil, fmt.Errorf("querying channel: %w", err)
	}
	return channel, nil
}

func (r *pgChannelRepository) UpdateStatus(ctx context.Context, id string, status core_domain.ChannelStatus) error {
	query := `UPDATE channels SET status = $2, updated_at = $3 WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("updating channel status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrChannelNotFound
	}
	return nil
}
