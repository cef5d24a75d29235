package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	joinTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_join_total",
			Help: "Join attempts by outcome",
		},
		[]string{"outcome"},
	)

	webhookTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_webhook_total",
			Help: "Payment webhook deliveries by outcome",
		},
		[]string{"outcome"},
	)

	providerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "booking_provider_duration_seconds",
			Help:    "Checkout session creation latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"result"},
	)

	outboxPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_outbox_published_total",
			Help: "Outbox publish attempts by result",
		},
		[]string{"result"},
	)

	intentsExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_intents_expired_total",
			Help: "Pending payment intents moved to FAILED after expiry",
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "booking_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)
)

// RecordJoin records the outcome of one join request ("free", "redirect", or an error code).
func RecordJoin(outcome string) {
	joinTotal.WithLabelValues(outcome).Inc()
}

func RecordWebhook(outcome string) {
	webhookTotal.WithLabelValues(outcome).Inc()
}

func RecordProviderCall(result string, d time.Duration) {
	providerDuration.WithLabelValues(result).Observe(d.Seconds())
}

func RecordOutboxPublish(result string) {
	outboxPublishedTotal.WithLabelValues(result).Inc()
}

func RecordIntentsExpired(n int64) {
	if n > 0 {
		intentsExpiredTotal.Add(float64(n))
	}
}

func RecordHTTPRequest(method, path, status string, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// Handler returns the Prometheus metrics handler
func Handler() http.Handler {
	return promhttp.Handler()
}
