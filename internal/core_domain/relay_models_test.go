package core_domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageStatusRank_Order(t *testing.T) {
	assert.Equal(t, 0, MessageStatusPending.Rank())
	assert.Equal(t, 1, MessageStatusSent.Rank())
	assert.Equal(t, 2, MessageStatusDelivered.Rank())
	assert.Equal(t, 3, MessageStatusRead.Rank())
	assert.Equal(t, -1, MessageStatusFailed.Rank())
	assert.Equal(t, -1, MessageStatus("teleported").Rank())
}

func TestAllowsTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from MessageStatus
		to   MessageStatus
		want bool
	}{
		{"pending to sent", MessageStatusPending, MessageStatusSent, true},
		{"pending to read skips ahead", MessageStatusPending, MessageStatusRead, true},
		{"sent to delivered", MessageStatusSent, MessageStatusDelivered, true},
		{"delivered to read", MessageStatusDelivered, MessageStatusRead, true},
		{"delivered back to sent", MessageStatusDelivered, MessageStatusSent, false},
		{"read back to delivered", MessageStatusRead, MessageStatusDelivered, false},
		{"same status is not a transition", MessageStatusSent, MessageStatusSent, false},
		{"failed reachable from pending", MessageStatusPending, MessageStatusFailed, true},
		{"failed reachable from read", MessageStatusRead, MessageStatusFailed, true},
		{"failed is terminal", MessageStatusFailed, MessageStatusSent, false},
		{"failed cannot re-fail", MessageStatusFailed, MessageStatusFailed, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.from.AllowsTransitionTo(tc.to))
		})
	}
}
