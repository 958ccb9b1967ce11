// Package metrics exposes Prometheus instrumentation for the money paths.
// A nil *Metrics is valid and records nothing, so tests can pass nil.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fkash/fkash-backend/internal/domain"
)

type Metrics struct {
	transactionsTotal    *prometheus.CounterVec
	gatewayAttemptsTotal *prometheus.CounterVec
	gatewayDuration      prometheus.Histogram
	callbacksTotal       *prometheus.CounterVec
	referenceRetries     prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		transactionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fkash",
				Subsystem: "transactions",
				Name:      "total",
				Help:      "Transactions reaching a recorded status, by kind and status.",
			},
			[]string{"kind", "status"},
		),
		gatewayAttemptsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fkash",
				Subsystem: "gateway",
				Name:      "attempts_total",
				Help:      "Settlement gateway attempts by outcome.",
			},
			[]string{"outcome"},
		),
		gatewayDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "fkash",
				Subsystem: "gateway",
				Name:      "attempt_duration_seconds",
				Help:      "Wall time of individual gateway attempts.",
				Buckets:   prometheus.DefBuckets,
			},
		),
		callbacksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fkash",
				Subsystem: "callbacks",
				Name:      "total",
				Help:      "Operator callbacks by reconciliation disposition.",
			},
			[]string{"disposition"},
		),
		referenceRetries: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "fkash",
				Subsystem: "references",
				Name:      "allocation_retries_total",
				Help:      "Reference allocations retried after a uniqueness collision.",
			},
		),
	}
}

func (m *Metrics) ObserveTransaction(kind domain.TransactionKind, status domain.TransactionStatus) {
	if m == nil {
		return
	}
	m.transactionsTotal.WithLabelValues(string(kind), string(status)).Inc()
}

func (m *Metrics) ObserveGatewayAttempt(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.gatewayAttemptsTotal.WithLabelValues(outcome).Inc()
	m.gatewayDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveCallback(disposition domain.CallbackDisposition) {
	if m == nil {
		return
	}
	m.callbacksTotal.WithLabelValues(string(disposition)).Inc()
}

func (m *Metrics) ObserveReferenceRetry() {
	if m == nil {
		return
	}
	m.referenceRetries.Inc()
}
