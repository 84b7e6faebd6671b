// Package metrics exposes Prometheus collectors for the pipeline.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pipelineRecordsWrittenTotal *prometheus.CounterVec
	pipelineRecordsDroppedTotal *prometheus.CounterVec
	pipelineBreakerTripsTotal   *prometheus.CounterVec
	pipelineStageDuration       *prometheus.HistogramVec
	pipelineValidationRate      *prometheus.GaugeVec
	pipelineDedupIndexSize      prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		pipelineRecordsWrittenTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_records_written_total",
				Help: "Total records durably appended to stage output files, labeled by stage.",
			},
			[]string{"stage"},
		)

		pipelineRecordsDroppedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_records_dropped_total",
				Help: "Total records dropped before persistence, labeled by stage and cause.",
			},
			[]string{"stage", "cause"},
		)

		pipelineBreakerTripsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_breaker_trips_total",
				Help: "Total integrity circuit breaker escalations, labeled by stage.",
			},
			[]string{"stage"},
		)

		pipelineStageDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_stage_duration_seconds",
				Help:    "Histogram of stage run durations.",
				Buckets: []float64{1, 5, 15, 60, 300, 900, 3600, 14400},
			},
			[]string{"stage"},
		)

		pipelineValidationRate = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pipeline_validation_success_rate",
				Help: "Success rate reported by the most recent schema validation gate, labeled by stage.",
			},
			[]string{"stage"},
		)

		pipelineDedupIndexSize = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "pipeline_dedup_index_size",
				Help: "Current cardinality of the dedup store index.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRecordWritten counts one durably appended record.
func ObserveRecordWritten(stage string) {
	pipelineRecordsWrittenTotal.WithLabelValues(stage).Inc()
}

// ObserveRecordDropped counts one dropped record. Cause is one of
// duplicate, empty_body, malformed, io_error, terminated.
func ObserveRecordDropped(stage, cause string) {
	pipelineRecordsDroppedTotal.WithLabelValues(stage, cause).Inc()
}

// ObserveBreakerTrip counts one integrity breaker escalation.
func ObserveBreakerTrip(stage string) {
	pipelineBreakerTripsTotal.WithLabelValues(stage).Inc()
}

// ObserveStageDuration records a finished stage's wall-clock duration.
func ObserveStageDuration(stage string, seconds float64) {
	pipelineStageDuration.WithLabelValues(stage).Observe(seconds)
}

// SetValidationSuccessRate publishes a gate's reported success rate.
func SetValidationSuccessRate(stage string, rate float64) {
	pipelineValidationRate.WithLabelValues(stage).Set(rate)
}

// SetDedupIndexSize publishes the dedup store cardinality.
func SetDedupIndexSize(n int) {
	pipelineDedupIndexSize.Set(float64(n))
}
