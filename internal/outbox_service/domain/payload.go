package domain

import (
	"encoding/json"
	"fmt"
)

// SendPayload is the JSON body stored on an outbox entry. It carries
// everything the gateway client needs to perform the send, so the dispatcher
// never has to re-read the paired message row.
type SendPayload struct {
	RemoteJID string `json:"remote_jid"`
	Text      string `json:"text,omitempty"`
	MediaURL  string `json:"media_url,omitempty"`
	MimeType  string `json:"mime_type,omitempty"`
	Caption   string `json:"caption,omitempty"`
}

// EncodePayload marshals a SendPayload for storage.
func EncodePayload(p SendPayload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding send payload: %w", err)
	}
	return data, nil
}

// DecodePayload unmarshals a stored outbox payload.
func DecodePayload(data []byte) (SendPayload, error) {
	var p SendPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return SendPayload{}, fmt.Errorf("decoding send payload: %w", err)
	}
	if p.RemoteJID == "" {
		return SendPayload{}, fmt.Errorf("decoding send payload: missing remote_jid")
	}
	return p, nil
}
