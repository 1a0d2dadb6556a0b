package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ReconcileMetrics counts reconciliation outcomes. A nil *ReconcileMetrics is a no-op.
type ReconcileMetrics struct {
	reconciliations *prometheus.CounterVec
	duration        prometheus.Histogram
	hookFailures    *prometheus.CounterVec
}

func NewReconcileMetrics(reg prometheus.Registerer) *ReconcileMetrics {
	factory := promauto.With(reg)
	return &ReconcileMetrics{
		reconciliations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coursepay_reconciliations_total",
			Help: "Payment reconciliations by outcome.",
		}, []string{"outcome"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "coursepay_reconciliation_duration_seconds",
			Help:    "Time spent reconciling one gateway payment, gateway fetch included.",
			Buckets: prometheus.DefBuckets,
		}),
		hookFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coursepay_post_commit_hook_failures_total",
			Help: "Post-commit hook errors, by hook.",
		}, []string{"hook"}),
	}
}

func (m *ReconcileMetrics) observe(outcome Outcome, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.reconciliations.WithLabelValues(string(outcome)).Inc()
	m.duration.Observe(elapsed.Seconds())
}

func (m *ReconcileMetrics) hookFailed(hook string) {
	if m == nil {
		return
	}
	m.hookFailures.WithLabelValues(hook).Inc()
}
