package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/relaydesk/golang_services/internal/core_domain"
	"github.com/relaydesk/golang_services/internal/webhook_service/domain"
)

// ChannelAuthCache fronts channel lookups for webhook authentication with a
// short-TTL Redis cache, so webhook bursts don't hammer the store. A cached
// secret can outlive a rotation by at most the TTL; the provisioning flow
// calls Invalidate on rotation to shrink that window to zero.
type ChannelAuthCache struct {
	rdb      *redis.Client
	channels domain.ChannelRepository
	ttl      time.Duration
	logger   *slog.Logger
}

// NewChannelAuthCache creates a new ChannelAuthCache. rdb may be nil to
// bypass caching entirely.
func NewChannelAuthCache(rdb *redis.Client, channels domain.ChannelRepository, ttl time.Duration, logger *slog.Logger) *ChannelAuthCache {
	return &ChannelAuthCache{
		rdb:      rdb,
		channels: channels,
		ttl:      ttl,
		logger:   logger.With("component", "channel_auth_cache"),
	}
}

type cachedChannel struct {
	ID            string                    `json:"id"`
	WorkspaceID   string                    `json:"workspace_id"`
	PhoneNumber   *string                   `json:"phone_number,omitempty"`
	Status        core_domain.ChannelStatus `json:"status"`
	WebhookSecret string                    `json:"webhook_secret"`
}

func cacheKey(channelID string) string {
	return "relay:channel_auth:" + channelID
}

// GetChannel returns the channel for webhook auth, from cache when fresh.
// Unknown channels are not negatively cached.
func (c *ChannelAuthCache) GetChannel(ctx context.Context, channelID string) (*core_domain.Channel, error) {
	if c.rdb != nil {
		raw, err := c.rdb.Get(ctx, cacheKey(channelID)).Bytes()
		switch {
		case err == nil:
			var cached cachedChannel
			if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
				channelAuthCacheCounter.WithLabelValues("hit").Inc()
				return &core_domain.Channel{
					ID:            cached.ID,
					WorkspaceID:   cached.WorkspaceID,
					PhoneNumber:   cached.PhoneNumber,
					Status:        cached.Status,
					WebhookSecret: cached.WebhookSecret,
				}, nil
			}
			c.logger.WarnContext(ctx, "Corrupt channel auth cache entry, falling through", "channel_id", channelID)
		case errors.Is(err, redis.Nil):
			channelAuthCacheCounter.WithLabelValues("miss").Inc()
		default:
			// Cache trouble must not take webhook auth down.
			channelAuthCacheCounter.WithLabelValues("error").Inc()
			c.logger.WarnContext(ctx, "Channel auth cache read failed", "error", err, "channel_id", channelID)
		}
	}

	channel, err := c.channels.GetByID(ctx, channelID)
	if err != nil {
		return nil, err
	}

	if c.rdb != nil {
		data, err := json.Marshal(cachedChannel{
			ID:            channel.ID,
			WorkspaceID:   channel.WorkspaceID,
			PhoneNumber:   channel.PhoneNumber,
			Status:        channel.Status,
			WebhookSecret: channel.WebhookSecret,
		})
		if err == nil {
			if err := c.rdb.Set(ctx, cacheKey(channelID), data, c.ttl).Err(); err != nil {
				c.logger.WarnContext(ctx, "Channel auth cache write failed", "error", err, "channel_id", channelID)
			}
		}
	}
	return channel, nil
}

// Invalidate drops the cached entry for a channel. Called by the
// provisioning flow on webhook secret rotation.
func (c *ChannelAuthCache) Invalidate(ctx context.Context, channelID string) error {
	if c.rdb == nil {
		return nil
	}
	if err := c.rdb.Del(ctx, cacheKey(channelID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate channel auth cache: %w", err)
	}
	return nil
}
