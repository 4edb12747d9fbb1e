package domain

import (
	"context"
	"time"

	"github.com/relaydesk/golang_services/internal/core_domain"
)

// OutboxRepository persists durable outbound work items.
type OutboxRepository interface {
	// Create inserts a new queued entry.
	Create(ctx context.Context, entry *core_domain.OutboxEntry) error
	// ClaimDue atomically moves up to limit due entries (queued, next
	// attempt at or before now) to sending and returns them, highest
	// priority first, oldest first within a priority. Entries claimed by
	// one dispatcher are invisible to concurrent claimers.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]core_domain.OutboxEntry, error)
	// MarkSent finalizes a successfully delivered entry.
	MarkSent(ctx context.Context, id string) error
	// ScheduleRetry returns a sending entry to queued with the given
	// attempt count, next attempt time and error note.
	ScheduleRetry(ctx context.Context, id string, attemptCount int, nextAttemptAt time.Time, lastError string) error
	// MarkFailed moves an entry to the terminal failed state.
	MarkFailed(ctx context.Context, id string, attemptCount int, lastError string) error
	// PauseChannel moves every queued or in-flight entry of a channel to
	// paused and returns how many were affected.
	PauseChannel(ctx context.Context, channelID string, lastError string) (int, error)
	// ResumeChannel moves every paused entry of a channel back to queued,
	// due at nextAttemptAt, and returns how many were affected.
	ResumeChannel(ctx context.Context, channelID string, nextAttemptAt time.Time) (int, error)
	// RequeueStaleSending returns entries stuck in sending since before
	// staleBefore to queued. Covers dispatcher crashes mid-send.
	RequeueStaleSending(ctx context.Context, staleBefore time.Time) (int, error)
	// CountPausedChannels lists channel ids that still have paused entries.
	// Used on startup to re-arm resume timers lost in a restart.
	CountPausedChannels(ctx context.Context) ([]string, error)
}

// ChannelRepository is the dispatcher's view of channels: credential lookup
// and status flips around rate limiting.
type ChannelRepository interface {
	GetByID(ctx context.Context, id string) (*core_domain.Channel, error)
	UpdateStatus(ctx context.Context, id string, status core_domain.ChannelStatus) error
}

// ChatReader resolves the chat an enqueue request targets.
type ChatReader interface {
	GetByID(ctx context.Context, id string) (*core_domain.Chat, error)
}

// MessageWriter updates the message row paired with an outbox entry as the
// dispatch attempt resolves. Delivery receipts beyond sent arrive later
// through the webhook pipeline.
type MessageWriter interface {
	// CreatePending inserts the outbound message row created at enqueue.
	CreatePending(ctx context.Context, msg *core_domain.Message) error
	// ConfirmSent records the provider-assigned message id and advances the
	// message to sent. The provider id is what later status receipts key on.
	ConfirmSent(ctx context.Context, messageID, providerMessageID string) error
	// MarkFailed moves the message to the terminal failed status. The
	// failure reason lives on the outbox entry, not the message row.
	MarkFailed(ctx context.Context, messageID string) error
}
