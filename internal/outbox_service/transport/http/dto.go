package http

// SendMessageRequest is the body of POST /api/v1/channels/{channelID}/messages.
type SendMessageRequest struct {
	ChatID   string `json:"chat_id" validate:"required,uuid4"`
	Type     string `json:"type" validate:"required,oneof=text image video audio document sticker"`
	Text     string `json:"text" validate:"required_if=Type text,omitempty,max=65536"`
	MediaURL string `json:"media_url" validate:"required_unless=Type text,omitempty,url"`
	MimeType string `json:"mime_type" validate:"omitempty,max=255"`
	Caption  string `json:"caption" validate:"omitempty,max=4096"`
	Priority int    `json:"priority" validate:"gte=0,lte=10"`
}
