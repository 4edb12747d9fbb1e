package messagebroker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// SubjectPrefix is the root of the realtime change feed. Workspace-scoped
// subjects are SubjectPrefix + "." + workspaceID.
const SubjectPrefix = "relay.events"

type changeEvent struct {
	Kind       string      `json:"kind"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

// ChangeNotifier publishes workspace-scoped change events for realtime
// consumers. Publishing is strictly best effort; a broker outage must never
// fail the write that triggered the event.
type ChangeNotifier struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewChangeNotifier creates a ChangeNotifier. publisher may be nil, in which
// case Notify is a no-op (broker disabled by configuration).
func NewChangeNotifier(publisher Publisher, logger *slog.Logger) *ChangeNotifier {
	return &ChangeNotifier{
		publisher: publisher,
		logger:    logger.With("component", "change_notifier"),
	}
}

// Notify publishes a change event on the workspace's subject.
func (n *ChangeNotifier) Notify(ctx context.Context, workspaceID, kind string, payload interface{}) {
	if n.publisher == nil {
		return
	}

	data, err := json.Marshal(changeEvent{Kind: kind, OccurredAt: time.Now().UTC(), Payload: payload})
	if err != nil {
		n.logger.WarnContext(ctx, "Failed to marshal change event", "kind", kind, "error", err)
		return
	}
	subject := SubjectPrefix + "." + workspaceID
	if err := n.publisher.Publish(ctx, subject, data); err != nil {
		n.logger.WarnContext(ctx, "Failed to publish change event", "subject", subject, "kind", kind, "error", err)
	}
}
