package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/relaydesk/golang_services/internal/core_domain"
	"github.com/relaydesk/golang_services/internal/outbox_service/domain"
	"github.com/relaydesk/golang_services/internal/platform/messagebroker"
)

// defaultMaxAttempts bounds delivery retries per outbox entry.
const defaultMaxAttempts = 5

// EnqueueRequest describes one outbound message to queue for delivery.
type EnqueueRequest struct {
	ChannelID string
	ChatID    string
	Type      core_domain.MessageType
	Text      string
	MediaURL  string
	MimeType  string
	Caption   string
	Priority  int
}

// EnqueueService accepts sends from the API and turns each into a pending
// message row plus a queued outbox entry. Delivery itself is the
// dispatcher's job.
type EnqueueService struct {
	outbox   domain.OutboxRepository
	channels domain.ChannelRepository
	chats    domain.ChatReader
	messages domain.MessageWriter
	notifier *messagebroker.ChangeNotifier
	logger   *slog.Logger
}

// NewEnqueueService creates a new EnqueueService.
func NewEnqueueService(
	outbox domain.OutboxRepository,
	channels domain.ChannelRepository,
	chats domain.ChatReader,
	messages domain.MessageWriter,
	notifier *messagebroker.ChangeNotifier,
	logger *slog.Logger,
) *EnqueueService {
	return &EnqueueService{
		outbox:   outbox,
		channels: channels,
		chats:    chats,
		messages: messages,
		notifier: notifier,
		logger:   logger.With("component", "enqueue_service"),
	}
}

// Enqueue validates the request against the channel and chat, then persists
// the message/outbox pair. The returned message carries a local placeholder
// provider id until the gateway confirms the send. Channels outside the
// caller's workspace are indistinguishable from missing ones.
func (s *EnqueueService) Enqueue(ctx context.Context, workspaceID string, req EnqueueRequest) (*core_domain.Message, error) {
	channel, err := s.channels.GetByID(ctx, req.ChannelID)
	if err != nil {
		return nil, err
	}
	if channel.WorkspaceID != workspaceID {
		return nil, domain.ErrChannelNotFound
	}
	switch channel.Status {
	case core_domain.ChannelStatusActive, core_domain.ChannelStatusDegraded:
		// Degraded channels keep accepting sends; dispatch is what is paused.
	default:
		return nil, fmt.Errorf("%w: channel status is %s", domain.ErrChannelNotSendable, channel.Status)
	}

	chat, err := s.chats.GetByID(ctx, req.ChatID)
	if err != nil {
		return nil, err
	}
	if chat.ChannelID != channel.ID {
		return nil, domain.ErrChatNotFound
	}

	now := time.Now().UTC()
	msgID := uuid.NewString()

	msg := &core_domain.Message{
		ID:          msgID,
		WorkspaceID: channel.WorkspaceID,
		ChannelID:   channel.ID,
		ChatID:      chat.ID,
		// Placeholder until ConfirmSent swaps in the provider's id. Prefixed
		// so it can never collide with a real provider message id.
		ProviderMessageID: "local:" + msgID,
		Direction:         core_domain.DirectionOutbound,
		Type:              req.Type,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	pending := core_domain.MessageStatusPending
	msg.Status = &pending
	if req.Text != "" {
		text := req.Text
		msg.Text = &text
	}
	if req.MediaURL != "" {
		mediaURL := req.MediaURL
		msg.MediaURL = &mediaURL
		if req.MimeType != "" {
			mimeType := req.MimeType
			msg.MediaMimeType = &mimeType
		}
		if req.Caption != "" && msg.Text == nil {
			caption := req.Caption
			msg.Text = &caption
		}
	}

	payload, err := domain.EncodePayload(domain.SendPayload{
		RemoteJID: chat.RemoteJID,
		Text:      req.Text,
		MediaURL:  req.MediaURL,
		MimeType:  req.MimeType,
		Caption:   req.Caption,
	})
	if err != nil {
		return nil, err
	}

	if err := s.messages.CreatePending(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to persist pending message: %w", err)
	}

	entry := &core_domain.OutboxEntry{
		ID:          uuid.NewString(),
		ChannelID:   channel.ID,
		ChatID:      chat.ID,
		MessageID:   msg.ID,
		MessageType: req.Type,
		Payload:     payload,
		Status:      core_domain.OutboxStatusQueued,
		MaxAttempts: defaultMaxAttempts,
		Priority:    req.Priority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.outbox.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to persist outbox entry: %w", err)
	}

	enqueuedCounter.WithLabelValues(string(req.Type)).Inc()
	s.logger.InfoContext(ctx, "Message enqueued for delivery",
		"message_id", msg.ID, "channel_id", channel.ID, "chat_id", chat.ID, "type", req.Type)

	s.notifier.Notify(ctx, channel.WorkspaceID, "message.upserted", msg)
	return msg, nil
}
