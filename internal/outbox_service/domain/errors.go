package domain

import "errors"

var (
	// ErrOutboxEntryNotFound is returned when an outbox entry does not exist.
	ErrOutboxEntryNotFound = errors.New("outbox entry not found")
	// ErrChannelNotFound is returned when a channel does not exist.
	ErrChannelNotFound = errors.New("channel not found")
	// ErrChatNotFound is returned when a chat does not exist.
	ErrChatNotFound = errors.New("chat not found")
	// ErrChannelNotSendable is returned when a send is requested on a channel
	// that is not in a state that can deliver messages.
	ErrChannelNotSendable = errors.New("channel is not in a sendable state")
	// ErrMissingCredential is returned when a channel has no stored gateway
	// credential.
	ErrMissingCredential = errors.New("channel has no gateway credential")
)
