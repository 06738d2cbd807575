package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Publish outcomes recorded by OutboxMetrics.
const (
	PublishOutcomePublished  = "published"
	PublishOutcomeRetry      = "retry"
	PublishOutcomeDeadLetter = "dead_letter"
)

// OutboxMetrics tracks the outbox publisher.
type OutboxMetrics struct {
	publishes *prometheus.CounterVec
	batches   prometheus.Counter
}

// NewOutboxMetrics registers the outbox metrics on the provided registerer.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_publish_total",
			Help:      "Outbox rows handled by event type and outcome.",
		}, []string{"event_type", "outcome"}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_batches_total",
			Help:      "Non-empty outbox batches claimed by the publisher.",
		}),
	}
	reg.MustRegister(m.publishes, m.batches)
	return m
}

func (m *OutboxMetrics) IncPublish(eventType, outcome string) {
	if m == nil || m.publishes == nil {
		return
	}
	m.publishes.WithLabelValues(normalizeLabel(eventType), outcome).Inc()
}

func (m *OutboxMetrics) IncBatch() {
	if m == nil || m.batches == nil {
		return
	}
	m.batches.Inc()
}
