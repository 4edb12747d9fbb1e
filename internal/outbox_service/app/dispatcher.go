package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/relaydesk/golang_services/internal/core_domain"
	"github.com/relaydesk/golang_services/internal/outbox_service/adapters/gateway"
	"github.com/relaydesk/golang_services/internal/outbox_service/domain"
	"github.com/relaydesk/golang_services/internal/platform/messagebroker"
)

const (
	backoffBase = 1 * time.Minute
	backoffCap  = 16 * time.Minute

	// recoveryResumeDelay is used for channels found paused at startup,
	// whose original resume timers died with the previous process.
	recoveryResumeDelay = 1 * time.Minute
)

// retryDelay returns the backoff before the given attempt number is retried:
// 1, 2, 4, 8, 16 minutes, capped.
func retryDelay(attempt int) time.Duration {
	d := backoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= backoffCap {
			return backoffCap
		}
	}
	return d
}

// DispatcherConfig carries the dispatcher's tuning knobs.
type DispatcherConfig struct {
	PollInterval    time.Duration
	BatchSize       int
	SendTimeout     time.Duration
	StaleSendingAge time.Duration
}

// Dispatcher drains the outbox: it claims due entries, delivers them through
// the gateway client and resolves each attempt as sent, retry or failed.
// Entries for the same channel are dispatched in claim order, one at a time;
// distinct channels proceed in parallel.
type Dispatcher struct {
	cfg       DispatcherConfig
	outbox    domain.OutboxRepository
	channels  domain.ChannelRepository
	messages  domain.MessageWriter
	gateway   gateway.Client
	decryptor gateway.CredentialDecryptor
	notifier  *messagebroker.ChangeNotifier
	logger    *slog.Logger

	mu           sync.Mutex
	resumeTimers map[string]*time.Timer
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(
	cfg DispatcherConfig,
	outbox domain.OutboxRepository,
	channels domain.ChannelRepository,
	messages domain.MessageWriter,
	gwClient gateway.Client,
	decryptor gateway.CredentialDecryptor,
	notifier *messagebroker.ChangeNotifier,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		cfg:          cfg,
		outbox:       outbox,
		channels:     channels,
		messages:     messages,
		gateway:      gwClient,
		decryptor:    decryptor,
		notifier:     notifier,
		logger:       logger.With("component", "outbox_dispatcher"),
		resumeTimers: make(map[string]*time.Timer),
	}
}

// Run polls until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.InfoContext(ctx, "Outbox dispatcher starting",
		"poll_interval", d.cfg.PollInterval, "batch_size", d.cfg.BatchSize)

	d.recoverPausedChannels(ctx)

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.stopResumeTimers()
			d.logger.InfoContext(ctx, "Outbox dispatcher stopping")
			return ctx.Err()
		case <-ticker.C:
			d.runCycle(ctx)
		}
	}
}

func (d *Dispatcher) runCycle(ctx context.Context) {
	now := time.Now().UTC()

	requeued, err := d.outbox.RequeueStaleSending(ctx, now.Add(-d.cfg.StaleSendingAge))
	if err != nil {
		d.logger.ErrorContext(ctx, "Failed to requeue stale sending entries", "error", err)
	} else if requeued > 0 {
		staleRequeuedCounter.Add(float64(requeued))
		d.logger.WarnContext(ctx, "Requeued entries stuck in sending", "count", requeued)
	}

	entries, err := d.outbox.ClaimDue(ctx, now, d.cfg.BatchSize)
	if err != nil {
		d.logger.ErrorContext(ctx, "Failed to claim due outbox entries", "error", err)
		return
	}
	if len(entries) == 0 {
		return
	}

	// Group per channel; ClaimDue's ordering is preserved within each group.
	byChannel := make(map[string][]core_domain.OutboxEntry)
	for _, entry := range entries {
		byChannel[entry.ChannelID] = append(byChannel[entry.ChannelID], entry)
	}

	var wg sync.WaitGroup
	for channelID, batch := range byChannel {
		wg.Add(1)
		go func(channelID string, batch []core_domain.OutboxEntry) {
			defer wg.Done()
			d.dispatchChannelBatch(ctx, channelID, batch)
		}(channelID, batch)
	}
	wg.Wait()
}

func (d *Dispatcher) dispatchChannelBatch(ctx context.Context, channelID string, batch []core_domain.OutboxEntry) {
	channel, err := d.channels.GetByID(ctx, channelID)
	if err != nil {
		if errors.Is(err, domain.ErrChannelNotFound) {
			for i := range batch {
				d.failEntry(ctx, "", &batch[i], batch[i].AttemptCount, "channel no longer exists")
			}
			return
		}
		d.logger.ErrorContext(ctx, "Failed to load channel for dispatch", "error", err, "channel_id", channelID)
		d.returnBatchUnattempted(ctx, batch, "channel lookup failed")
		return
	}

	if channel.EncryptedCredential == nil {
		for i := range batch {
			d.failEntry(ctx, channel.WorkspaceID, &batch[i], batch[i].AttemptCount, domain.ErrMissingCredential.Error())
		}
		return
	}
	credential, err := d.decryptor.Decrypt(ctx, *channel.EncryptedCredential)
	if err != nil {
		d.logger.ErrorContext(ctx, "Failed to decrypt channel credential", "error", err, "channel_id", channelID)
		for i := range batch {
			d.failEntry(ctx, channel.WorkspaceID, &batch[i], batch[i].AttemptCount, "credential decryption failed")
		}
		return
	}

	for i := range batch {
		if rateLimited := d.dispatchEntry(ctx, channel, credential, &batch[i]); rateLimited {
			// PauseChannel already flipped the rest of this batch to paused.
			return
		}
	}
}

// returnBatchUnattempted puts claimed entries back in the queue without
// consuming an attempt. Used for transient infrastructure errors.
func (d *Dispatcher) returnBatchUnattempted(ctx context.Context, batch []core_domain.OutboxEntry, reason string) {
	nextAttempt := time.Now().UTC().Add(d.cfg.PollInterval)
	for i := range batch {
		entry := &batch[i]
		if err := d.outbox.ScheduleRetry(ctx, entry.ID, entry.AttemptCount, nextAttempt, reason); err != nil {
			d.logger.ErrorContext(ctx, "Failed to return entry to queue", "error", err, "outbox_id", entry.ID)
		}
	}
}

// dispatchEntry performs one delivery attempt. It reports true when the
// gateway rate limited the channel, telling the caller to stop the batch.
func (d *Dispatcher) dispatchEntry(ctx context.Context, channel *core_domain.Channel, credential string, entry *core_domain.OutboxEntry) bool {
	payload, err := domain.DecodePayload(entry.Payload)
	if err != nil {
		// Malformed payloads can never succeed; no point burning retries.
		d.failEntry(ctx, channel.WorkspaceID, entry, entry.AttemptCount, err.Error())
		return false
	}

	timer := prometheus.NewTimer(dispatchDurationHist)
	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	result, sendErr := d.sendOne(sendCtx, credential, entry.MessageType, payload)
	cancel()
	timer.ObserveDuration()

	var rateLimited *gateway.RateLimitedError
	if errors.As(sendErr, &rateLimited) {
		dispatchAttemptsCounter.WithLabelValues("rate_limited").Inc()
		d.pauseChannel(ctx, channel, rateLimited.RetryAfter)
		return true
	}

	attempt := entry.AttemptCount + 1
	if sendErr != nil {
		if attempt >= entry.MaxAttempts {
			d.failEntry(ctx, channel.WorkspaceID, entry, attempt, sendErr.Error())
			return false
		}
		delay := retryDelay(attempt)
		if err := d.outbox.ScheduleRetry(ctx, entry.ID, attempt, time.Now().UTC().Add(delay), sendErr.Error()); err != nil {
			d.logger.ErrorContext(ctx, "Failed to schedule retry", "error", err, "outbox_id", entry.ID)
			return false
		}
		dispatchAttemptsCounter.WithLabelValues("retry").Inc()
		d.logger.WarnContext(ctx, "Dispatch attempt failed, retry scheduled",
			"outbox_id", entry.ID, "channel_id", channel.ID, "attempt", attempt, "retry_in", delay, "error", sendErr)
		return false
	}

	if err := d.outbox.MarkSent(ctx, entry.ID); err != nil {
		d.logger.ErrorContext(ctx, "Failed to mark outbox entry sent", "error", err, "outbox_id", entry.ID)
	}
	if err := d.messages.ConfirmSent(ctx, entry.MessageID, result.ProviderMessageID); err != nil {
		d.logger.ErrorContext(ctx, "Failed to confirm message sent", "error", err, "message_id", entry.MessageID)
	}
	dispatchAttemptsCounter.WithLabelValues("sent").Inc()
	d.logger.InfoContext(ctx, "Message dispatched",
		"outbox_id", entry.ID, "message_id", entry.MessageID, "provider_message_id", result.ProviderMessageID)

	d.notifier.Notify(ctx, channel.WorkspaceID, "message.status", map[string]string{
		"channel_id":          channel.ID,
		"message_id":          entry.MessageID,
		"provider_message_id": result.ProviderMessageID,
		"status":              string(core_domain.MessageStatusSent),
	})
	return false
}

func (d *Dispatcher) sendOne(ctx context.Context, credential string, messageType core_domain.MessageType, payload domain.SendPayload) (*gateway.SendResult, error) {
	if messageType == core_domain.MessageTypeText {
		return d.gateway.SendText(ctx, credential, payload.RemoteJID, payload.Text)
	}
	return d.gateway.SendMedia(ctx, credential, payload.RemoteJID, payload.MediaURL, payload.MimeType, payload.Caption)
}

// failEntry finalizes a permanently failed attempt on both sides of the
// message/outbox pair.
func (d *Dispatcher) failEntry(ctx context.Context, workspaceID string, entry *core_domain.OutboxEntry, attemptCount int, reason string) {
	if err := d.outbox.MarkFailed(ctx, entry.ID, attemptCount, reason); err != nil {
		d.logger.ErrorContext(ctx, "Failed to mark outbox entry failed", "error", err, "outbox_id", entry.ID)
	}
	if err := d.messages.MarkFailed(ctx, entry.MessageID); err != nil {
		d.logger.ErrorContext(ctx, "Failed to mark message failed", "error", err, "message_id", entry.MessageID)
	}
	dispatchAttemptsCounter.WithLabelValues("failed").Inc()
	d.logger.ErrorContext(ctx, "Message delivery permanently failed",
		"outbox_id", entry.ID, "message_id", entry.MessageID, "attempts", attemptCount, "reason", reason)

	if workspaceID != "" {
		d.notifier.Notify(ctx, workspaceID, "message.status", map[string]string{
			"channel_id": entry.ChannelID,
			"message_id": entry.MessageID,
			"status":     string(core_domain.MessageStatusFailed),
		})
	}
}

// pauseChannel reacts to a gateway rate limit: every queued and in-flight
// entry of the channel is paused, the channel is flagged degraded, and a
// single resume timer is armed. The attempt that hit the limit is not
// counted against the entry.
func (d *Dispatcher) pauseChannel(ctx context.Context, channel *core_domain.Channel, retryAfter time.Duration) {
	paused, err := d.outbox.PauseChannel(ctx, channel.ID, "gateway rate limited")
	if err != nil {
		d.logger.ErrorContext(ctx, "Failed to pause channel outbox", "error", err, "channel_id", channel.ID)
		return
	}
	channelPausesCounter.Inc()
	d.logger.WarnContext(ctx, "Channel paused after gateway rate limit",
		"channel_id", channel.ID, "paused_entries", paused, "retry_after", retryAfter)

	if err := d.channels.UpdateStatus(ctx, channel.ID, core_domain.ChannelStatusDegraded); err != nil {
		d.logger.ErrorContext(ctx, "Failed to flag channel degraded", "error", err, "channel_id", channel.ID)
	} else {
		channel.Status = core_domain.ChannelStatusDegraded
		d.notifier.Notify(ctx, channel.WorkspaceID, "channel.updated", channel)
	}

	d.scheduleResume(channel.ID, retryAfter)
}

func (d *Dispatcher) scheduleResume(channelID string, after time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, armed := d.resumeTimers[channelID]; armed {
		return
	}
	d.resumeTimers[channelID] = time.AfterFunc(after, func() {
		d.resumeChannel(channelID)
	})
}

// resumeChannel runs off a timer, so it builds its own bounded context.
func (d *Dispatcher) resumeChannel(channelID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	d.mu.Lock()
	delete(d.resumeTimers, channelID)
	d.mu.Unlock()

	resumed, err := d.outbox.ResumeChannel(ctx, channelID, time.Now().UTC())
	if err != nil {
		d.logger.ErrorContext(ctx, "Failed to resume channel outbox", "error", err, "channel_id", channelID)
		return
	}
	d.logger.InfoContext(ctx, "Channel outbox resumed", "channel_id", channelID, "resumed_entries", resumed)

	channel, err := d.channels.GetByID(ctx, channelID)
	if err != nil {
		d.logger.WarnContext(ctx, "Failed to load channel after resume", "error", err, "channel_id", channelID)
		return
	}
	// Only clear the degraded flag the pause set; other states stand.
	if channel.Status == core_domain.ChannelStatusDegraded {
		if err := d.channels.UpdateStatus(ctx, channelID, core_domain.ChannelStatusActive); err != nil {
			d.logger.ErrorContext(ctx, "Failed to restore channel status", "error", err, "channel_id", channelID)
			return
		}
		channel.Status = core_domain.ChannelStatusActive
		d.notifier.Notify(ctx, channel.WorkspaceID, "channel.updated", channel)
	}
}

// recoverPausedChannels re-arms resume timers for channels that were paused
// when a previous process died.
func (d *Dispatcher) recoverPausedChannels(ctx context.Context) {
	channelIDs, err := d.outbox.CountPausedChannels(ctx)
	if err != nil {
		d.logger.ErrorContext(ctx, "Failed to list paused channels on startup", "error", err)
		return
	}
	for _, channelID := range channelIDs {
		d.logger.InfoContext(ctx, "Re-arming resume timer for paused channel", "channel_id", channelID)
		d.scheduleResume(channelID, recoveryResumeDelay)
	}
}

func (d *Dispatcher) stopResumeTimers() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for channelID, timer := range d.resumeTimers {
		timer.Stop()
		delete(d.resumeTimers, channelID)
	}
}
