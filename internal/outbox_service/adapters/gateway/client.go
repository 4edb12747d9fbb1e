package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// defaultRetryAfter is used when the gateway rate limits without telling us
// for how long.
const defaultRetryAfter = 60 * time.Second

// SendResult carries the provider-assigned message id of an accepted send.
type SendResult struct {
	ProviderMessageID string
}

// RateLimitedError reports a 429 from the gateway. RetryAfter is taken from
// the Retry-After header when present.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("gateway rate limited, retry after %s", e.RetryAfter)
}

// Client is the outbound surface of the WhatsApp gateway.
type Client interface {
	SendText(ctx context.Context, credential, remoteJID, text string) (*SendResult, error)
	SendMedia(ctx context.Context, credential, remoteJID, mediaURL, mimeType, caption string) (*SendResult, error)
	DeleteMessage(ctx context.Context, credential, remoteJID, providerMessageID string) error
	EditMessage(ctx context.Context, credential, remoteJID, providerMessageID, newText string) error
}

// CredentialDecryptor turns a channel's stored credential ciphertext into
// the token the gateway accepts.
type CredentialDecryptor interface {
	Decrypt(ctx context.Context, ciphertext string) (string, error)
}

// HTTPClient talks to the gateway's REST API.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPClient creates a gateway client. timeout bounds each request.
func NewHTTPClient(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "gateway_client"),
	}
}

type sendTextRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

type sendMediaRequest struct {
	To       string `json:"to"`
	MediaURL string `json:"media_url"`
	MimeType string `json:"mime_type,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

type editMessageRequest struct {
	To        string `json:"to"`
	MessageID string `json:"message_id"`
	Text      string `json:"text"`
}

type deleteMessageRequest struct {
	To        string `json:"to"`
	MessageID string `json:"message_id"`
}

type gatewayResponse struct {
	MessageID string `json:"message_id"`
	Error     string `json:"error,omitempty"`
}

func (c *HTTPClient) SendText(ctx context.Context, credential, remoteJID, text string) (*SendResult, error) {
	return c.send(ctx, credential, "/api/v1/messages/text", sendTextRequest{To: remoteJID, Text: text})
}

func (c *HTTPClient) SendMedia(ctx context.Context, credential, remoteJID, mediaURL, mimeType, caption string) (*SendResult, error) {
	return c.send(ctx, credential, "/api/v1/messages/media", sendMediaRequest{
		To: remoteJID, MediaURL: mediaURL, MimeType: mimeType, Caption: caption,
	})
}

func (c *HTTPClient) EditMessage(ctx context.Context, credential, remoteJID, providerMessageID, newText string) error {
	_, err := c.send(ctx, credential, "/api/v1/messages/edit", editMessageRequest{
		To: remoteJID, MessageID: providerMessageID, Text: newText,
	})
	return err
}

func (c *HTTPClient) DeleteMessage(ctx context.Context, credential, remoteJID, providerMessageID string) error {
	_, err := c.send(ctx, credential, "/api/v1/messages/delete", deleteMessageRequest{
		To: remoteJID, MessageID: providerMessageID,
	})
	return err
}

func (c *HTTPClient) send(ctx context.Context, credential, path string, payload interface{}) (*SendResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+credential)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		c.logger.WarnContext(ctx, "Gateway rate limited request", "path", path, "retry_after", retryAfter)
		return nil, &RateLimitedError{RetryAfter: retryAfter}
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed gatewayResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse gateway response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("gateway rejected request: %s", parsed.Error)
	}
	return &SendResult{ProviderMessageID: parsed.MessageID}, nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return defaultRetryAfter
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return defaultRetryAfter
}
