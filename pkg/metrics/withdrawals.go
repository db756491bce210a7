package metrics

import "github.com/prometheus/client_golang/prometheus"

// WithdrawalMetrics records payout creation and fee revenue.
type WithdrawalMetrics struct {
	created    prometheus.Counter
	feeRevenue prometheus.Counter
}

// NewWithdrawalMetrics registers the withdrawal metrics on the provided registerer.
func NewWithdrawalMetrics(reg prometheus.Registerer) *WithdrawalMetrics {
	if reg == nil {
		return &WithdrawalMetrics{}
	}
	created := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "withdrawals_created_total",
		Help: "Withdrawal records persisted.",
	})
	feeRevenue := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fee_revenue_sats_total",
		Help: "Service fee revenue in satoshis.",
	})
	reg.MustRegister(created, feeRevenue)
	return &WithdrawalMetrics{
		created:    created,
		feeRevenue: feeRevenue,
	}
}

// IncCreated counts a persisted withdrawal.
func (m *WithdrawalMetrics) IncCreated() {
	if m == nil || m.created == nil {
		return
	}
	m.created.Inc()
}

// AddFeeRevenue adds collected service fees in satoshis.
func (m *WithdrawalMetrics) AddFeeRevenue(sats int64) {
	if m == nil || m.feeRevenue == nil || sats <= 0 {
		return
	}
	m.feeRevenue.Add(float64(sats))
}
