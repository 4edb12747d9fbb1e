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

type pgChannelRepository struct {
	db DB
}

// NewPgChannelRepository creates a PostgreSQL-backed ChannelRepository.
func NewPgChannelRepository(db DB) domain.ChannelRepository {
	return &pgChannelRepository{db: db}
}

func (r *pgChannelRepository) GetByID(ctx context.Context, id string) (*core_domain.Channel, error) {
	channel := &core_domain.Channel{}
	query := `
		SELECT id, workspace_id, phone_number, status, webhook_secret, created_at, updated_at
		FROM channels WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, id).Scan(
		&channel.ID, &channel.WorkspaceID, &channel.PhoneNumber, &channel.Status,
		&channel.WebhookSecret, &channel.CreatedAt, &channel.UpdatedAt,
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

func (r *pgChannelRepository) SetPhoneNumberIfEmpty(ctx context.Context, id string, phoneNumber string) (bool, error) {
	// Backfill also activates the channel: a channel that produced a
	// message is evidently connected.
	query := `
		UPDATE channels SET phone_number = $2, status = $3, updated_at = $4
		WHERE id = $1 AND phone_number IS NULL
	`
	tag, err := r.db.Exec(ctx, query, id, phoneNumber, core_domain.ChannelStatusActive, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("backfilling channel phone number: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
