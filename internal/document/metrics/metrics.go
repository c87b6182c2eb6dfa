package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks the document governance engine: signature outcomes,
// expiry sweeps and relationship churn.
type Metrics struct {
	SignaturesRecorded    prometheus.Counter
	SignaturesRejected    prometheus.Counter
	DocumentsFullySigned  prometheus.Counter
	DocumentsExpired      prometheus.Counter
	RelationshipsCreated  prometheus.Counter
	RelationshipsDeleted  prometheus.Counter
	SignDuration          prometheus.Histogram
	SweepDuration         prometheus.Histogram
	AvailableTargetsCount prometheus.Histogram
}

var fastBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// New registers the document metrics with the default registry. Call it
// once per process.
func New() *Metrics {
	return &Metrics{
		SignaturesRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lexflow_signatures_recorded_total",
			Help: "Total number of signatures recorded",
		}),
		SignaturesRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lexflow_signatures_rejected_total",
			Help: "Total number of signature rejections",
		}),
		DocumentsFullySigned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lexflow_documents_fully_signed_total",
			Help: "Total number of documents that became fully signed",
		}),
		DocumentsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lexflow_documents_expired_total",
			Help: "Total number of pending documents expired by a sweep",
		}),
		RelationshipsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lexflow_relationships_created_total",
			Help: "Total number of relationships created",
		}),
		RelationshipsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lexflow_relationships_deleted_total",
			Help: "Total number of relationships deleted, including cascades",
		}),
		SignDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "lexflow_sign_duration_seconds",
			Help:    "Duration of sign operations including snapshot rendering",
			Buckets: fastBuckets,
		}),
		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "lexflow_expiry_sweep_duration_seconds",
			Help:    "Duration of expiry sweeps",
			Buckets: fastBuckets,
		}),
		AvailableTargetsCount: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "lexflow_available_targets_count",
			Help:    "Number of candidate relationship targets returned",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
}

func (m *Metrics) IncrementSigned(fullySigned bool) {
	m.SignaturesRecorded.Inc()
	if fullySigned {
		m.DocumentsFullySigned.Inc()
	}
}

func (m *Metrics) IncrementRejected() {
	m.SignaturesRejected.Inc()
}

func (m *Metrics) AddExpired(n int) {
	m.DocumentsExpired.Add(float64(n))
}

func (m *Metrics) IncrementRelationshipCreated() {
	m.RelationshipsCreated.Inc()
}

func (m *Metrics) AddRelationshipsDeleted(n int) {
	m.RelationshipsDeleted.Add(float64(n))
}

// ObserveSign records the duration of a sign operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveSign(start time.Time) {
	m.SignDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveSweep(start time.Time) {
	m.SweepDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveAvailableTargets(n int) {
	m.AvailableTargetsCount.Observe(float64(n))
}
