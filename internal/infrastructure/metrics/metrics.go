// Package metrics exposes the billing engine's Prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"chatdesk/internal/domain/tenant"
)

const (
	namespace = "chatdesk"
	subsystem = "billing"
)

var (
	// WebhookRequestsTotal counts provider webhook requests by event type and HTTP status.
	WebhookRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "webhook_requests_total",
		Help:      "Total payment provider webhook requests by event type and HTTP status.",
	}, []string{"event_type", "status"})

	// WebhookDuration tracks webhook processing latency.
	WebhookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "webhook_duration_seconds",
		Help:      "Webhook processing duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"event_type"})

	// GracePeriodSweepTotal counts per-subscription sweeper outcomes.
	GracePeriodSweepTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "grace_period_sweep_total",
		Help:      "Grace period sweeper outcomes per subscription.",
	}, []string{"outcome"})

	EntitlementFlipsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "entitlement_flips_total",
		Help:      "Users and channels suspended or restored by entitlement sync.",
	}, []string{"kind", "status"})

	OutboxPublishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "outbox_publish_total",
		Help:      "Outbox publish attempts by routing key and result.",
	}, []string{"routing_key", "result"})

	StreamDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "stream_deliveries_total",
		Help:      "Consumer handler outcomes by routing key.",
	}, []string{"routing_key", "result"})
)

// Recorder adapts the collectors to the recorder hooks of the use cases and consumers.
type Recorder struct{}

// NewRecorder creates a recorder over the package collectors.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) RecordSweep(outcome string) {
	GracePeriodSweepTotal.WithLabelValues(outcome).Inc()
}

func (r *Recorder) RecordFlip(kind tenant.EntityKind, status tenant.EntityStatus) {
	EntitlementFlipsTotal.WithLabelValues(string(kind), string(status)).Inc()
}

func (r *Recorder) RecordPublish(routingKey string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	OutboxPublishTotal.WithLabelValues(routingKey, result).Inc()
}

func (r *Recorder) RecordDelivery(routingKey, result string) {
	StreamDeliveriesTotal.WithLabelValues(routingKey, result).Inc()
}

func (r *Recorder) ObserveWebhook(eventType string, status int, elapsed time.Duration) {
	WebhookRequestsTotal.WithLabelValues(eventType, strconv.Itoa(status)).Inc()
	WebhookDuration.WithLabelValues(eventType).Observe(elapsed.Seconds())
}
