package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tracks the number of outbound API calls to the aggregator.
	TrocadorRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trocador_api_requests_total",
			Help: "Total number of Trocador API requests made (by endpoint and result).",
		},
		[]string{"endpoint", "result"},
	)

	// Measures duration of API requests to the aggregator.
	TrocadorRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trocador_api_request_duration_seconds",
			Help:    "Duration of Trocador API requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms → ~16s
		},
		[]string{"endpoint"},
	)

	// Tracks inbound webhook deliveries by outcome.
	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swap_webhook_events_total",
			Help: "Total number of webhook deliveries processed, by outcome.",
		},
		[]string{"outcome"}, // applied | stale | unknown | rejected | invalid
	)

	// Tracks swap initiations by result.
	SwapInitiationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swap_initiations_total",
			Help: "Total number of swap initiation attempts, by result.",
		},
		[]string{"result"}, // created | no_quote | gateway_error | persist_error | invalid
	)

	// Gauges the last successful catalog sync time (seconds since epoch).
	CatalogSyncTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_last_sync_timestamp",
			Help: "Timestamp (unix seconds) of the last successful catalog refresh.",
		},
	)

	// Counts assets upserted by the last catalog refresh.
	CatalogAssetsUpserted = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_assets_upserted",
			Help: "Number of assets upserted by the most recent catalog refresh.",
		},
	)

	// Tracks NATS messages published by subject and result.
	NATSMessageCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_messages_total",
			Help: "Total number of NATS messages published.",
		},
		[]string{"subject", "result"}, // result = "ok" | "error"
	)

	// Tracks total errors (aggregated).
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adapter_errors_total",
			Help: "Count of adapter-level errors by component.",
		},
		[]string{"component", "reason"},
	)
)

// ObserveDuration records the time taken since start on the given histogram.
func ObserveDuration(h *prometheus.HistogramVec, start time.Time, labels ...string) {
	h.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
}

func IncTrocadorRequest(endpoint, result string) {
	TrocadorRequestsTotal.WithLabelValues(endpoint, result).Inc()
}

func IncWebhookEvent(outcome string) {
	WebhookEventsTotal.WithLabelValues(outcome).Inc()
}

func IncSwapInitiation(result string) {
	SwapInitiationsTotal.WithLabelValues(result).Inc()
}

func IncNATSMessage(subject, result string) {
	NATSMessageCount.WithLabelValues(subject, result).Inc()
}

func IncError(component, reason string) {
	ErrorsTotal.WithLabelValues(component, reason).Inc()
}
