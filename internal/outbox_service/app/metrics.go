package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	enqueuedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_messages_enqueued_total",
			Help: "Total number of messages accepted into the outbox.",
		},
		[]string{"message_type"},
	)

	dispatchAttemptsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_dispatch_attempts_total",
			Help: "Total dispatch attempts by outcome (sent, retry, failed, rate_limited).",
		},
		[]string{"outcome"},
	)

	dispatchDurationHist = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "outbox_dispatch_duration_seconds",
			Help:    "Duration of a single gateway dispatch attempt.",
			Buckets: prometheus.DefBuckets,
		},
	)

	channelPausesCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "outbox_channel_pauses_total",
			Help: "Total number of channel-wide pauses triggered by gateway rate limits.",
		},
	)

	staleRequeuedCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "outbox_stale_sending_requeued_total",
			Help: "Total entries returned to queued after being stuck in sending.",
		},
	)
)
