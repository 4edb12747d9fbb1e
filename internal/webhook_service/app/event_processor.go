package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/relaydesk/golang_services/internal/core_domain"
	"github.com/relaydesk/golang_services/internal/platform/messagebroker"
	"github.com/relaydesk/golang_services/internal/webhook_service/domain"
)

// ItemFailure records one failed item inside a batch event.
type ItemFailure struct {
	ProviderMessageID string
	Reason            string
}

// ProcessingResult is what Process always returns: failures are captured
// here, never thrown, so the gateway can acknowledge receipt regardless.
type ProcessingResult struct {
	Success  bool
	Action   string
	Detail   string
	Failures []ItemFailure
}

func resultOK(action, detail string) ProcessingResult {
	return ProcessingResult{Success: true, Action: action, Detail: detail}
}

func resultIgnored(reason string) ProcessingResult {
	return ProcessingResult{Success: true, Action: "ignored", Detail: reason}
}

func resultFailed(action string, err error) ProcessingResult {
	return ProcessingResult{Success: false, Action: action, Detail: err.Error()}
}

// EventProcessor routes decoded webhook events to store mutations. All of
// its writes are idempotent (upsert-on-conflict, monotonic status,
// null-guarded soft delete), which is what makes concurrent, duplicate and
// reordered webhook delivery safe without locks.
type EventProcessor struct {
	channels domain.ChannelRepository
	chats    domain.ChatRepository
	messages domain.MessageRepository
	resolver *ChatResolver
	notifier *messagebroker.ChangeNotifier
	logger   *slog.Logger
}

// NewEventProcessor creates a new EventProcessor.
func NewEventProcessor(
	channels domain.ChannelRepository,
	chats domain.ChatRepository,
	messages domain.MessageRepository,
	resolver *ChatResolver,
	notifier *messagebroker.ChangeNotifier,
	logger *slog.Logger,
) *EventProcessor {
	return &EventProcessor{
		channels: channels,
		chats:    chats,
		messages: messages,
		resolver: resolver,
		notifier: notifier,
		logger:   logger.With("component", "event_processor"),
	}
}

// Process handles one decoded event for the given channel. It never panics
// or returns an error to the caller; every outcome is a ProcessingResult.
func (p *EventProcessor) Process(ctx context.Context, channel *core_domain.Channel, event domain.Event) ProcessingResult {
	var res ProcessingResult

	switch ev := event.(type) {
	case domain.MessagesEvent:
		timer := prometheus.NewTimer(eventProcessingDurationHist.WithLabelValues("message_upsert"))
		res = p.processMessages(ctx, channel, ev)
		timer.ObserveDuration()
	case domain.StatusEvent:
		res = p.processStatus(ctx, channel, ev)
	case domain.EditEvent:
		res = p.processEdit(ctx, channel, ev)
	case domain.DeleteEvent:
		res = p.processDelete(ctx, channel, ev)
	case domain.ChatUpdateEvent:
		res = p.processChatUpdate(ctx, channel, ev)
	case domain.ChannelStatusEvent:
		res = p.processChannelStatus(ctx, channel, ev)
	case domain.UnknownEvent:
		res = resultIgnored(fmt.Sprintf("unrecognized event type %q", ev.Type))
	default:
		res = resultIgnored(fmt.Sprintf("unhandled event variant %T", event))
	}

	outcome := "success"
	switch {
	case !res.Success:
		outcome = "failed"
	case res.Action == "ignored":
		outcome = "ignored"
	}
	eventsProcessedCounter.WithLabelValues(res.Action, outcome).Inc()

	if !res.Success || len(res.Failures) > 0 {
		p.logger.ErrorContext(ctx, "Event processing recorded failures",
			"channel_id", channel.ID, "action", res.Action, "detail", res.Detail, "item_failures", len(res.Failures))
	}
	return res
}

func (p *EventProcessor) processMessages(ctx context.Context, channel *core_domain.Channel, ev domain.MessagesEvent) ProcessingResult {
	if len(ev.Messages) == 0 {
		return resultIgnored("message event with no messages")
	}

	res := ProcessingResult{Success: true, Action: "messages_upserted"}
	upserted := 0
	for i := range ev.Messages {
		msg := &ev.Messages[i]
		if err := p.processOneMessage(ctx, channel, msg); err != nil {
			messageItemFailuresCounter.Inc()
			res.Failures = append(res.Failures, ItemFailure{
				ProviderMessageID: msg.ProviderMessageID,
				Reason:            err.Error(),
			})
			continue
		}
		upserted++
	}
	res.Detail = fmt.Sprintf("%d upserted, %d failed", upserted, len(res.Failures))
	return res
}

func (p *EventProcessor) processOneMessage(ctx context.Context, channel *core_domain.Channel, msg *domain.NormalizedMessage) error {
	if msg.ProviderMessageID == "" {
		return &domain.ValidationError{Reason: "message has no provider message id"}
	}
	if msg.RemoteJID == "" {
		return &domain.ValidationError{Reason: "message has no resolvable conversation id"}
	}

	chat, err := p.resolver.Resolve(ctx, channel, msg)
	if err != nil {
		return err
	}

	direction := core_domain.DirectionInbound
	if msg.FromMe {
		direction = core_domain.DirectionOutbound
	}

	now := time.Now().UTC()
	createdAt := now
	if msg.Timestamp != nil {
		createdAt = *msg.Timestamp
	}

	record := &core_domain.Message{
		ID:                uuid.NewString(),
		WorkspaceID:       channel.WorkspaceID,
		ChannelID:         channel.ID,
		ChatID:            chat.ID,
		ProviderMessageID: msg.ProviderMessageID,
		Direction:         direction,
		Type:              msg.Type,
		Text:              msg.Text,
		MediaURL:          msg.MediaURL,
		MediaMimeType:     msg.MediaMimeType,
		ViewOnce:          msg.ViewOnce,
		SenderName:        msg.SenderName,
		CreatedAt:         createdAt,
		UpdatedAt:         now,
	}
	if msg.From != "" {
		from := msg.From
		record.SenderJID = &from
	}

	stored, inserted, err := p.messages.Upsert(ctx, record)
	if err != nil {
		return fmt.Errorf("message upsert failed: %w", err)
	}

	preview := "[" + string(msg.Type) + "]"
	if msg.Text != nil && *msg.Text != "" {
		preview = *msg.Text
	}
	// The unread counter bumps only on the first insert; a redelivered
	// message event refreshes the preview but must not count twice.
	incrementUnread := inserted && direction == core_domain.DirectionInbound
	if err := p.chats.RecordMessageActivity(ctx, chat.ID, preview, createdAt, incrementUnread); err != nil {
		return fmt.Errorf("chat activity update failed: %w", err)
	}

	p.backfillChannelPhone(ctx, channel, msg, direction)

	p.notifier.Notify(ctx, channel.WorkspaceID, "message.upserted", stored)
	return nil
}

// backfillChannelPhone derives the channel's own phone number from the
// first message observed on it: the "to" side of an inbound message or the
// "from" side of an outbound one. Failure here never fails the message.
func (p *EventProcessor) backfillChannelPhone(ctx context.Context, channel *core_domain.Channel, msg *domain.NormalizedMessage, direction core_domain.MessageDirection) {
	if channel.PhoneNumber != nil {
		return
	}
	raw := msg.To
	if direction == core_domain.DirectionOutbound {
		raw = msg.From
	}
	phone := phoneFromJID(raw)
	if phone == "" {
		return
	}

	applied, err := p.channels.SetPhoneNumberIfEmpty(ctx, channel.ID, phone)
	if err != nil {
		p.logger.WarnContext(ctx, "Channel phone backfill failed", "error", err, "channel_id", channel.ID)
		return
	}
	if applied {
		channel.PhoneNumber = &phone
		channel.Status = core_domain.ChannelStatusActive
		p.logger.InfoContext(ctx, "Backfilled channel phone number", "channel_id", channel.ID, "phone_number", phone)
		p.notifier.Notify(ctx, channel.WorkspaceID, "channel.updated", channel)
	}
}

func (p *EventProcessor) processStatus(ctx context.Context, channel *core_domain.Channel, ev domain.StatusEvent) ProcessingResult {
	if ev.ProviderMessageID == "" {
		return resultFailed("status_update", &domain.ValidationError{Reason: "status event has no message id"})
	}

	status, ok := domain.MapMessageStatus(ev.Token)
	if !ok {
		return resultIgnored(fmt.Sprintf("unrecognized status token %q", ev.Token))
	}

	applied, err := p.messages.ApplyStatus(ctx, channel.ID, ev.ProviderMessageID, status)
	if err != nil {
		return resultFailed("status_update", fmt.Errorf("status update failed: %w", err))
	}
	if !applied {
		// The message may not exist yet (events race) or the stored status
		// already outranks this one. Either way a no-op is the correct
		// final state.
		return resultOK("status_noop", fmt.Sprintf("no outbound message advanced by %q", status))
	}

	p.notifier.Notify(ctx, channel.WorkspaceID, "message.status", map[string]string{
		"channel_id":          channel.ID,
		"provider_message_id": ev.ProviderMessageID,
		"status":              string(status),
	})
	return resultOK("status_updated", string(status))
}

func (p *EventProcessor) processEdit(ctx context.Context, channel *core_domain.Channel, ev domain.EditEvent) ProcessingResult {
	if ev.ProviderMessageID == "" {
		return resultFailed("message_edit", &domain.ValidationError{Reason: "edit event has no message id"})
	}

	applied, err := p.messages.ApplyEdit(ctx, channel.ID, ev.ProviderMessageID, ev.NewText, time.Now().UTC())
	if err != nil {
		return resultFailed("message_edit", fmt.Errorf("edit update failed: %w", err))
	}
	if !applied {
		return resultOK("edit_noop", "no matching message")
	}

	p.notifier.Notify(ctx, channel.WorkspaceID, "message.edited", map[string]string{
		"channel_id":          channel.ID,
		"provider_message_id": ev.ProviderMessageID,
	})
	return resultOK("message_edited", ev.ProviderMessageID)
}

func (p *EventProcessor) processDelete(ctx context.Context, channel *core_domain.Channel, ev domain.DeleteEvent) ProcessingResult {
	if ev.ProviderMessageID == "" {
		return resultFailed("message_delete", &domain.ValidationError{Reason: "delete event has no message id"})
	}

	applied, err := p.messages.SoftDelete(ctx, channel.ID, ev.ProviderMessageID, time.Now().UTC())
	if err != nil {
		return resultFailed("message_delete", fmt.Errorf("soft delete failed: %w", err))
	}
	if !applied {
		// Already deleted or never persisted; redelivery must not reset the
		// deletion timestamp.
		return resultOK("delete_noop", "no matching undeleted message")
	}

	p.notifier.Notify(ctx, channel.WorkspaceID, "message.deleted", map[string]string{
		"channel_id":          channel.ID,
		"provider_message_id": ev.ProviderMessageID,
	})
	return resultOK("message_deleted", ev.ProviderMessageID)
}

func (p *EventProcessor) processChatUpdate(ctx context.Context, channel *core_domain.Channel, ev domain.ChatUpdateEvent) ProcessingResult {
	if ev.RemoteJID == "" {
		return resultFailed("chat_update", &domain.ValidationError{Reason: "chat event has no chat id"})
	}
	if ev.Archived == nil {
		return resultIgnored("chat event carries no archive flag change")
	}

	applied, err := p.chats.SetArchived(ctx, channel.ID, ev.RemoteJID, *ev.Archived)
	if err != nil {
		return resultFailed("chat_update", fmt.Errorf("archive update failed: %w", err))
	}
	if !applied {
		return resultOK("chat_update_noop", "no matching chat")
	}

	p.notifier.Notify(ctx, channel.WorkspaceID, "chat.updated", map[string]interface{}{
		"channel_id": channel.ID,
		"remote_jid": ev.RemoteJID,
		"archived":   *ev.Archived,
	})
	return resultOK("chat_archived_updated", fmt.Sprintf("archived=%t", *ev.Archived))
}

func (p *EventProcessor) processChannelStatus(ctx context.Context, channel *core_domain.Channel, ev domain.ChannelStatusEvent) ProcessingResult {
	status, ok := domain.MapChannelStatus(ev.Token)
	if !ok {
		return resultIgnored(fmt.Sprintf("unrecognized channel status token %q", ev.Token))
	}

	if err := p.channels.UpdateStatus(ctx, channel.ID, status); err != nil {
		if errors.Is(err, domain.ErrChannelNotFound) {
			return resultOK("channel_status_noop", "channel vanished")
		}
		return resultFailed("channel_status", fmt.Errorf("channel status update failed: %w", err))
	}
	channel.Status = status

	p.notifier.Notify(ctx, channel.WorkspaceID, "channel.updated", channel)
	return resultOK("channel_status_updated", string(status))
}
