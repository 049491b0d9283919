package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

var (
	DonationsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "givemart",
		Name:      "donations_recorded_total",
		Help:      "Donations recorded as pending, by donor type",
	}, []string{"donor_type"})

	PayoutsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "givemart",
		Name:      "payouts_created_total",
		Help:      "Payouts committed to the ledger",
	})

	PayoutConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "givemart",
		Name:      "payout_conflicts_total",
		Help:      "Payout requests rejected because their donations were no longer pending",
	})

	PayoutFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "givemart",
		Name:      "payout_storage_failures_total",
		Help:      "Payout requests that failed in the store and were rolled back",
	})

	AmountPaid = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "givemart",
		Name:      "amount_paid_total",
		Help:      "Sum of all committed payouts",
	})

	PayoutDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "givemart",
		Name:      "payout_tx_duration_seconds",
		Help:      "Duration of payout creation transactions",
		Buckets:   prometheus.DefBuckets,
	})

	PendingNonprofits = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "givemart",
		Name:      "pending_nonprofits",
		Help:      "Nonprofits with pending donations at the last aggregation",
	})

	ReconcileDiscrepancies = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "givemart",
		Name:      "reconcile_discrepancies",
		Help:      "Discrepancies found by the last reconciliation audit",
	})
)

// ObservePayout records a committed payout.
func ObservePayout(amount decimal.Decimal) {
	PayoutsCreated.Inc()
	AmountPaid.Add(amount.InexactFloat64())
}
