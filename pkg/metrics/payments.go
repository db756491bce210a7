package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics records payment ingestion and confirmation tracking activity.
type PaymentMetrics struct {
	processed    *prometheus.CounterVec
	scanDuration prometheus.Histogram
	pending      prometheus.Gauge
	settled      prometheus.Counter
	abandoned    prometheus.Counter
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_processed_total",
		Help: "Payment reports processed, labeled by outcome.",
	}, []string{"outcome"})
	scanDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "confirmation_scan_duration_seconds",
		Help:    "Duration of confirmation tracker scans in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	pending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "confirmation_pending_transactions",
		Help: "Transactions currently tracked for confirmation.",
	})
	settled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "confirmations_settled_total",
		Help: "Transactions promoted to confirmed by the tracker.",
	})
	abandoned := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "confirmations_abandoned_total",
		Help: "Tracked transactions dropped after the check cap.",
	})
	reg.MustRegister(processed, scanDuration, pending, settled, abandoned)
	return &PaymentMetrics{
		processed:    processed,
		scanDuration: scanDuration,
		pending:      pending,
		settled:      settled,
		abandoned:    abandoned,
	}
}

// IncProcessed counts a processed payment report by outcome.
func (m *PaymentMetrics) IncProcessed(outcome string) {
	if m == nil || m.processed == nil {
		return
	}
	m.processed.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveScanDuration records the duration of one tracker scan.
func (m *PaymentMetrics) ObserveScanDuration(duration time.Duration) {
	if m == nil || m.scanDuration == nil {
		return
	}
	m.scanDuration.Observe(duration.Seconds())
}

// SetPending records the current pending-set size.
func (m *PaymentMetrics) SetPending(n int) {
	if m == nil || m.pending == nil {
		return
	}
	m.pending.Set(float64(n))
}

// IncSettled counts a transaction confirmed by the tracker.
func (m *PaymentMetrics) IncSettled() {
	if m == nil || m.settled == nil {
		return
	}
	m.settled.Inc()
}

// IncAbandoned counts a tracked transaction given up on.
func (m *PaymentMetrics) IncAbandoned() {
	if m == nil || m.abandoned == nil {
		return
	}
	m.abandoned.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
