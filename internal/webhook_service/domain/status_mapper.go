package domain

import (
	"strconv"
	"strings"

	"github.com/relaydesk/golang_services/internal/core_domain"
)

// MapMessageStatus maps a provider status token (numeric ack code or string)
// to the canonical message status. ok is false for unrecognized tokens; the
// caller must treat that as a no-op, not an error.
func MapMessageStatus(token string) (core_domain.MessageStatus, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}

	if ack, err := strconv.Atoi(token); err == nil {
		switch ack {
		case 0:
			return core_domain.MessageStatusPending, true
		case 1:
			return core_domain.MessageStatusSent, true
		case 2:
			return core_domain.MessageStatusDelivered, true
		case 3, 4:
			return core_domain.MessageStatusRead, true
		default:
			return "", false
		}
	}

	switch strings.ToLower(token) {
	case "pending", "clock":
		return core_domain.MessageStatusPending, true
	case "sent", "server":
		return core_domain.MessageStatusSent, true
	case "delivered", "device":
		return core_domain.MessageStatusDelivered, true
	case "read", "seen", "played":
		return core_domain.MessageStatusRead, true
	case "failed", "error":
		return core_domain.MessageStatusFailed, true
	default:
		return "", false
	}
}

// MapChannelStatus maps a provider connection-state token to the canonical
// channel status. ok is false for unrecognized tokens.
func MapChannelStatus(token string) (core_domain.ChannelStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "connected", "open", "ready":
		return core_domain.ChannelStatusActive, true
	case "disconnected", "closed":
		return core_domain.ChannelStatusStopped, true
	case "qr", "scan":
		return core_domain.ChannelStatusNeedsReauth, true
	case "loading", "connecting":
		return core_domain.ChannelStatusPendingQR, true
	default:
		return "", false
	}
}
