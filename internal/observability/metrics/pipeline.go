package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics contains all Prometheus metrics for the acquisition
// pipeline: search attempts, candidate filtering and final selections.
type PipelineMetrics struct {
	AttemptsTotal      prometheus.Counter
	CandidatesAccepted prometheus.Counter
	CandidatesRejected *prometheus.CounterVec
	RecordsReturned    prometheus.Histogram
	registry           *prometheus.Registry
}

// NewPipelineMetrics creates a new instance of PipelineMetrics registered on
// the given registry.
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register pipeline metrics: %w", err)
	}
	return m, nil
}

func (m *PipelineMetrics) initMetrics() {
	m.AttemptsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_search_attempts_total",
		Help: "Total number of search attempts across all fetch requests.",
	})

	m.CandidatesAccepted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_candidates_accepted_total",
		Help: "Total number of candidates that passed metadata extraction and format validation.",
	})

	m.CandidatesRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_candidates_rejected_total",
		Help: "Total number of candidates rejected, by reason.",
	}, []string{"reason"})

	m.RecordsReturned = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pipeline_records_returned",
		Help:    "Number of photo records returned per fetch request.",
		Buckets: prometheus.LinearBuckets(0, 5, 10),
	})
}

// IncrementAttempts increases the search attempt counter by one.
func (m *PipelineMetrics) IncrementAttempts() {
	m.AttemptsTotal.Inc()
}

// IncrementAccepted increases the accepted candidate counter by one.
func (m *PipelineMetrics) IncrementAccepted() {
	m.CandidatesAccepted.Inc()
}

// IncrementRejected increases the rejection counter for the given reason.
func (m *PipelineMetrics) IncrementRejected(reason string) {
	m.CandidatesRejected.WithLabelValues(reason).Inc()
}

// ObserveRecordsReturned records the size of one completed fetch result.
func (m *PipelineMetrics) ObserveRecordsReturned(count int) {
	m.RecordsReturned.Observe(float64(count))
}

// Collect implements the prometheus.Collector interface.
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	ch <- m.AttemptsTotal
	ch <- m.CandidatesAccepted
	m.CandidatesRejected.Collect(ch)
	ch <- m.RecordsReturned
}

// Describe implements the prometheus.Collector interface.
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.AttemptsTotal.Desc()
	ch <- m.CandidatesAccepted.Desc()
	m.CandidatesRejected.Describe(ch)
	ch <- m.RecordsReturned.Desc()
}
