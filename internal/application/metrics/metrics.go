package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the application lifecycle module.
type Metrics struct {
	ApplicationsCreated prometheus.Counter
	StatusTransitions   *prometheus.CounterVec
	Deletions           prometheus.Counter
	PartialDeletes      prometheus.Counter
	StoreTimeouts       prometheus.Counter
	OperationDuration   *prometheus.HistogramVec
}

// New registers the module metrics on reg. Tests pass a fresh
// prometheus.NewRegistry(); the server passes prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ApplicationsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "prereg_applications_created_total",
			Help: "Total number of pre-registration applications created",
		}),
		StatusTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "prereg_status_transitions_total",
			Help: "Status transitions applied, by source and target status",
		}, []string{"from", "to"}),
		Deletions: factory.NewCounter(prometheus.CounterOpts{
			Name: "prereg_applications_deleted_total",
			Help: "Total number of applications deleted",
		}),
		PartialDeletes: factory.NewCounter(prometheus.CounterOpts{
			Name: "prereg_partial_deletes_total",
			Help: "Deletes whose document purge failed and awaits reconciliation",
		}),
		StoreTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "prereg_store_timeouts_total",
			Help: "Store operations abandoned because the timeout elapsed",
		}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "prereg_operation_duration_seconds",
			Help:    "Duration of lifecycle operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"operation", "outcome"}),
	}
}

// IncrementCreated records n applications created in one batch.
func (m *Metrics) IncrementCreated(n int) {
	if m == nil {
		return
	}
	m.ApplicationsCreated.Add(float64(n))
}

// RecordTransition records a status change.
func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.StatusTransitions.WithLabelValues(from, to).Inc()
}

// RecordDelete records a delete; partial is true when the purge failed.
func (m *Metrics) RecordDelete(partial bool) {
	if m == nil {
		return
	}
	m.Deletions.Inc()
	if partial {
		m.PartialDeletes.Inc()
	}
}

func (m *Metrics) IncrementStoreTimeout() {
	if m == nil {
		return
	}
	m.StoreTimeouts.Inc()
}

// ObserveOperation records the duration of an operation started at start.
func (m *Metrics) ObserveOperation(operation, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(operation, outcome).Observe(time.Since(start).Seconds())
}
