package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/relaydesk/golang_services/internal/core_domain"
	"github.com/relaydesk/golang_services/internal/outbox_service/domain"
)

const outboxColumns = `
	id, channel_id, chat_id, message_id, message_type, payload, status,
	attempt_count, max_attempts, priority, next_attempt_at, last_error,
	created_at, updated_at
`

type pgOutboxRepository struct {
	db DB
}

// NewPgOutboxRepository creates a PostgreSQL-backed OutboxRepository.
func NewPgOutboxRepository(db DB) domain.OutboxRepository {
	return &pgOutboxRepository{db: db}
}

func scanOutboxEntry(row pgx.Row) (*core_domain.OutboxEntry, error) {
	entry := &core_domain.OutboxEntry{}
	err := row.Scan(
		&entry.ID, &entry.ChannelID, &entry.ChatID, &entry.MessageID,
		&entry.MessageType, &entry.Payload, &entry.Status,
		&entry.AttemptCount, &entry.MaxAttempts, &entry.Priority,
		&entry.NextAttemptAt, &entry.LastError,
		&entry.CreatedAt, &entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *pgOutboxRepository) Create(ctx context.Context, entry *core_domain.OutboxEntry) error {
	query := `
		INSERT INTO outbox_entries (
			id, channel_id, chat_id, message_id, message_type, payload, status,
			attempt_count, max_attempts, priority, next_attempt_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.Exec(ctx, query,
		entry.ID, entry.ChannelID, entry.ChatID, entry.MessageID,
		entry.MessageType, entry.Payload, entry.Status,
		entry.AttemptCount, entry.MaxAttempts, entry.Priority, entry.NextAttemptAt,
		entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting outbox entry: %w", err)
	}
	return nil
}

// ClaimDue selects and flips entries in a single statement so concurrent
// dispatchers never double-claim. SKIP LOCKED keeps pollers from queueing
// behind each other's claims.
func (r *pgOutboxRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]core_domain.OutboxEntry, error) {
	query := `
		UPDATE outbox_entries SET status = 'sending', updated_at = $1
		WHERE id IN (
			SELECT id FROM outbox_entries
			WHERE status = 'queued' AND (next_attempt_at IS NULL OR next_attempt_at <= $1)
			ORDER BY priority DESC, created_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + outboxColumns
	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("claiming due outbox entries: %w", err)
	}
	defer rows.Close()

	var entries []core_domain.OutboxEntry
	for rows.Next() {
		entry, err := scanOutboxEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning claimed outbox entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

func (r *pgOutboxRepository) MarkSent(ctx context.Context, id string) error {
	query := `UPDATE outbox_entries SET status = 'sent', last_error = NULL, updated_at = $2 WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("marking outbox entry sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOutboxEntryNotFound
	}
	return nil
}

func (r *pgOutboxRepository) ScheduleRetry(ctx context.Context, id string, attemptCount int, nextAttemptAt time.Time, lastError string) error {
	query := `
		UPDATE outbox_entries
		SET status = 'queued', attempt_count = $2, next_attempt_at = $3, last_error = $4, updated_at = $5
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, id, attemptCount, nextAttemptAt, lastError, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("scheduling outbox retry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOutboxEntryNotFound
	}
	return nil
}

func (r *pgOutboxRepository) MarkFailed(ctx context.Context, id string, attemptCount int, lastError string) error {
	query := `
		UPDATE outbox_entries
		SET status = 'failed', attempt_count = $2, last_error = $3, updated_at = $4
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, id, attemptCount, lastError, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("marking outbox entry failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOutboxEntryNotFound
	}
	return nil
}

// PauseChannel also catches the in-flight sending entry that triggered the
// rate limit; its attempt is not counted against max_attempts.
func (r *pgOutboxRepository) PauseChannel(ctx context.Context, channelID string, lastError string) (int, error) {
	query := `
		UPDATE outbox_entries SET status = 'paused', last_error = $2, updated_at = $3
		WHERE channel_id = $1 AND status IN ('queued', 'sending')
	`
	tag, err := r.db.Exec(ctx, query, channelID, lastError, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("pausing channel outbox: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *pgOutboxRepository) ResumeChannel(ctx context.Context, channelID string, nextAttemptAt time.Time) (int, error) {
	query := `
		UPDATE outbox_entries SET status = 'queued', next_attempt_at = $2, updated_at = $3
		WHERE channel_id = $1 AND status = 'paused'
	`
	tag, err := r.db.Exec(ctx, query, channelID, nextAttemptAt, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("resuming channel outbox: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *pgOutboxRepository) RequeueStaleSending(ctx context.Context, staleBefore time.Time) (int, error) {
	query := `
		UPDATE outbox_entries
		SET status = 'queued', last_error = 'requeued after stale sending state', updated_at = $2
		WHERE status = 'sending' AND updated_at < $1
	`
	tag, err := r.db.Exec(ctx, query, staleBefore, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("requeueing stale sending entries: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *pgOutboxRepository) CountPausedChannels(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT channel_id FROM outbox_entries WHERE status = 'paused'`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing paused channels: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning paused channel id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
