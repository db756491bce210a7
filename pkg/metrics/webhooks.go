package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebhookMetrics records webhook delivery activity.
type WebhookMetrics struct {
	deliveries    *prometheus.CounterVec
	deactivations prometheus.Counter
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_deliveries_total",
		Help: "Webhook delivery attempts, labeled by outcome.",
	}, []string{"outcome"})
	deactivations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "webhook_deactivations_total",
		Help: "Webhooks deactivated by the failure circuit breaker.",
	})
	reg.MustRegister(deliveries, deactivations)
	return &WebhookMetrics{
		deliveries:    deliveries,
		deactivations: deactivations,
	}
}

// IncDelivery counts a delivery attempt by outcome.
func (m *WebhookMetrics) IncDelivery(outcome string) {
	if m == nil || m.deliveries == nil {
		return
	}
	m.deliveries.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncDeactivation counts a circuit-breaker deactivation.
func (m *WebhookMetrics) IncDeactivation() {
	if m == nil || m.deactivations == nil {
		return
	}
	m.deactivations.Inc()
}
