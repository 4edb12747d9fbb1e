package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/relaydesk/golang_services/internal/core_domain"
	"github.com/relaydesk/golang_services/internal/outbox_service/app"
	"github.com/relaydesk/golang_services/internal/outbox_service/domain"
	"github.com/relaydesk/golang_services/internal/outbox_service/middleware"
)

// SendHandler accepts outbound sends from workspace API clients.
type SendHandler struct {
	enqueue  *app.EnqueueService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewSendHandler creates a new SendHandler.
func NewSendHandler(enqueue *app.EnqueueService, validate *validator.Validate, logger *slog.Logger) *SendHandler {
	return &SendHandler{
		enqueue:  enqueue,
		validate: validate,
		logger:   logger.With("handler", "send"),
	}
}

// HandleSendMessage queues one message for delivery and returns the pending
// message record.
func (h *SendHandler) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chi_middleware.GetReqID(ctx)
	logger := h.logger.With("request_id", requestID)

	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		logger.ErrorContext(ctx, "Principal missing from context, auth middleware must run first")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	channelID := chi.URLParam(r, "channelID")

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "Failed to decode send request", "error", err)
		http.Error(w, "Invalid JSON format: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if err := h.validate.StructCtx(ctx, req); err != nil {
		logger.WarnContext(ctx, "Send request validation failed", "error", err)
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	msg, err := h.enqueue.Enqueue(ctx, principal.WorkspaceID, app.EnqueueRequest{
		ChannelID: channelID,
		ChatID:    req.ChatID,
		Type:      core_domain.MessageType(req.Type),
		Text:      req.Text,
		MediaURL:  req.MediaURL,
		MimeType:  req.MimeType,
		Caption:   req.Caption,
		Priority:  req.Priority,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrChannelNotFound):
			http.Error(w, "Channel not found", http.StatusNotFound)
		case errors.Is(err, domain.ErrChatNotFound):
			http.Error(w, "Chat not found", http.StatusNotFound)
		case errors.Is(err, domain.ErrChannelNotSendable):
			http.Error(w, "Channel cannot send messages: "+err.Error(), http.StatusConflict)
		default:
			logger.ErrorContext(ctx, "Failed to enqueue message", "error", err, "channel_id", channelID)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	logger.InfoContext(ctx, "Send accepted", "message_id", msg.ID, "channel_id", channelID, "chat_id", req.ChatID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(msg)
}
