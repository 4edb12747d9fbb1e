package http

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/relaydesk/golang_services/internal/webhook_service/app"
	"github.com/relaydesk/golang_services/internal/webhook_service/domain"
)

// maxWebhookBodyBytes bounds provider payloads; batch message events stay
// well under this.
const maxWebhookBodyBytes = 2 << 20

// WebhookHandler receives provider webhook deliveries for a channel.
type WebhookHandler struct {
	auth      *app.ChannelAuthCache
	processor *app.EventProcessor
	logger    *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(auth *app.ChannelAuthCache, processor *app.EventProcessor, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		auth:      auth,
		processor: processor,
		logger:    logger.With("handler", "webhook"),
	}
}

// extractSecret pulls the webhook secret off the request. Precedence is
// query parameter, then X-Webhook-Secret header, then bearer token; provider
// deployments differ in which one they can be configured to send.
func extractSecret(r *http.Request) string {
	if s := r.URL.Query().Get("secret"); s != "" {
		return s
	}
	if s := r.Header.Get("X-Webhook-Secret"); s != "" {
		return s
	}
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return token
	}
	return ""
}

// HandleWebhook authenticates and processes one webhook delivery. Events the
// pipeline cannot apply still get a 202; the provider retries on non-2xx and
// a retry of an unprocessable event can never succeed.
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chi_middleware.GetReqID(ctx)
	logger := h.logger.With("request_id", requestID)

	channelID := chi.URLParam(r, "channelID")
	channel, err := h.auth.GetChannel(ctx, channelID)
	if err != nil {
		if errors.Is(err, domain.ErrChannelNotFound) {
			logger.WarnContext(ctx, "Webhook for unknown channel", "channel_id", channelID)
			http.Error(w, "Channel not found", http.StatusNotFound)
			return
		}
		logger.ErrorContext(ctx, "Channel lookup failed", "error", err, "channel_id", channelID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	secret := extractSecret(r)
	if subtle.ConstantTimeCompare([]byte(secret), []byte(channel.WebhookSecret)) != 1 {
		logger.WarnContext(ctx, "Webhook secret mismatch", "channel_id", channelID)
		http.Error(w, "Invalid webhook secret", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		logger.ErrorContext(ctx, "Failed to read webhook body", "error", err, "channel_id", channelID)
		http.Error(w, "Failed to read request body", http.StatusInternalServerError)
		return
	}
	defer r.Body.Close()

	event, err := domain.DecodeEnvelope(body)
	if err != nil {
		logger.WarnContext(ctx, "Malformed webhook payload", "error", err, "channel_id", channelID)
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}

	result := h.processor.Process(ctx, channel, event)
	logger.InfoContext(ctx, "Webhook processed",
		"channel_id", channelID, "action", result.Action, "detail", result.Detail, "item_failures", len(result.Failures))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]bool{"received": true})
}
