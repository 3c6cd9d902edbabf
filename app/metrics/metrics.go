package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_webhook_deliveries_total",
		Help: "Inbound provider webhook deliveries by event and outcome.",
	}, []string{"event", "outcome"})

	WebhookRateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_webhook_rate_limited_total",
		Help: "Webhook deliveries rejected by the per-address rate limit.",
	})

	WebhookSignatureFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_webhook_signature_failures_total",
		Help: "Webhook deliveries rejected for a missing or invalid signature.",
	})

	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_sessions_created_total",
		Help: "Checkout sessions created with the provider.",
	})

	ApprovalFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_approval_failures_total",
		Help: "Host-platform approval calls that failed after a completion claim.",
	})
)
