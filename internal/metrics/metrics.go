package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "booking"

// Metrics holds the collectors for the booking saga and the reconciler.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	outcomes            *prometheus.CounterVec
	duration            prometheus.Histogram
	compensations       *prometheus.CounterVec
	compensationsFailed prometheus.Counter
	reconciled          *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saga_outcomes_total",
			Help:      "Terminal states reached by booking sagas.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "saga_duration_seconds",
			Help:      "Wall time of a booking saga from start to terminal state.",
			Buckets:   prometheus.DefBuckets,
		}),
		compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compensations_total",
			Help:      "Release attempts made as compensation, by result.",
		}, []string{"result"}),
		compensationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compensation_failed_total",
			Help:      "Reservations whose release could not be applied. Inventory has drifted.",
		}),
		reconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciled_total",
			Help:      "Escalated incidents processed by the reconciler, by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.outcomes, m.duration, m.compensations, m.compensationsFailed, m.reconciled)
	return m
}

func (m *Metrics) ObserveSaga(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(outcome).Inc()
	m.duration.Observe(elapsed.Seconds())
}

func (m *Metrics) Compensation(result string) {
	if m == nil {
		return
	}
	m.compensations.WithLabelValues(result).Inc()
}

func (m *Metrics) CompensationFailed() {
	if m == nil {
		return
	}
	m.compensationsFailed.Inc()
}

func (m *Metrics) Reconciled(result string) {
	if m == nil {
		return
	}
	m.reconciled.WithLabelValues(result).Inc()
}
