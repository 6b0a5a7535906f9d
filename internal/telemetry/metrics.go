package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "drivopay_gateway_requests_total",
		Help: "Payment gateway calls by operation and outcome.",
	}, []string{"operation", "outcome"})

	GatewayLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "drivopay_gateway_request_duration_seconds",
		Help:    "Payment gateway call latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "drivopay_webhook_events_total",
		Help: "Inbound gateway webhooks by event and result.",
	}, []string{"event", "result"})

	PayoutTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "drivopay_payout_saga_transitions_total",
		Help: "Payout saga state transitions by target state.",
	}, []string{"to_state"})
)

// ObserveGatewayCall records one gateway call started at start.
func ObserveGatewayCall(operation string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	GatewayRequests.WithLabelValues(operation, outcome).Inc()
	GatewayLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
