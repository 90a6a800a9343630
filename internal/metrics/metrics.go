// Package metrics exposes Prometheus collectors for the payment flow.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	providerCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webpay_calls_total",
		Help: "Calls to the payment provider by operation and outcome",
	}, []string{
		"op",      // create, commit
		"outcome", // ok, rejected, unreachable, ambiguous, invalid
	})

	providerCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "webpay_call_duration_seconds",
		Help: "Latency of payment provider calls",
		// 50ms to the 15s default timeout
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
	}, []string{"op"})

	commitsDeduplicated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webpay_commits_deduplicated_total",
		Help: "Commits answered from a stored or in-flight result instead of a new provider call",
	})

	reconcileOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_reconcile_outcomes_total",
		Help: "Terminal states reached by the payment status reconciler",
	}, []string{"state"})

	confirmedAmount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookings_confirmed_amount_total",
		Help: "Sum of committed amounts for confirmed bookings",
	})
)

// RecordProviderCall records one provider round trip.
func RecordProviderCall(op, outcome string, elapsed time.Duration) {
	providerCallsTotal.WithLabelValues(op, outcome).Inc()
	providerCallDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// RecordCommitDeduplicated counts a commit served without a provider call.
func RecordCommitDeduplicated() {
	commitsDeduplicated.Inc()
}

// RecordReconcile counts a reconciler outcome.
func RecordReconcile(state string) {
	reconcileOutcomes.WithLabelValues(state).Inc()
}

// RecordConfirmedAmount adds a confirmed booking's total.
func RecordConfirmedAmount(amount float64) {
	confirmedAmount.Add(amount)
}
