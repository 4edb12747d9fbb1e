package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsProcessedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "webhook_relay",
			Name:      "events_processed_total",
			Help:      "Total webhook events processed by outcome.",
		},
		[]string{"action", "outcome"}, // outcome: "success", "ignored", "failed"
	)

	eventProcessingDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "webhook_relay",
			Name:      "event_processing_duration_seconds",
			Help:      "Duration of webhook event processing.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"action"},
	)

	messageItemFailuresCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "webhook_relay",
			Name:      "message_item_failures_total",
			Help:      "Total per-item failures inside message batch events.",
		},
	)

	channelAuthCacheCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "webhook_relay",
			Name:      "channel_auth_cache_total",
			Help:      "Channel auth cache lookups.",
		},
		[]string{"result"}, // "hit", "miss", "error"
	)
)
