package domain

import (
	"errors"
	"fmt"
)

// Authentication failures are surfaced as HTTP rejections by the gateway and
// never reach the event processor.
var (
	ErrChannelNotFound = errors.New("channel not found")
	ErrInvalidSecret   = errors.New("invalid webhook secret")
)

var (
	ErrChatNotFound    = errors.New("chat not found")
	ErrMessageNotFound = errors.New("message not found")
)

// ValidationError marks an event item missing a required correlation id.
// It is recorded as a per-item failure in the processing result and never
// fails the batch.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s", e.Reason)
}
