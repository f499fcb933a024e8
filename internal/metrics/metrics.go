// Package metrics exposes Prometheus instruments for the job coordinator.
//
// A Recorder owns its collectors and registers them on the registry it is
// given, so tests can use a private registry while the watch daemon serves
// the default one at /metrics. All Recorder methods are safe on a nil
// receiver.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stlpipe"

// Recorder records job, stage, upload, and entry metrics.
type Recorder struct {
	jobsTotal      *prometheus.CounterVec
	jobsActive     prometheus.Gauge
	stageDuration  *prometheus.HistogramVec
	uploadAttempts *prometheus.CounterVec
	entriesTotal   *prometheus.CounterVec
}

// NewRecorder creates a Recorder and registers it on reg. A nil reg leaves
// the collectors unregistered.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		jobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_total",
				Help:      "Jobs that reached a terminal state",
			},
			[]string{"state", "reason"},
		),
		jobsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "jobs_active",
				Help:      "Jobs currently running",
			},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of job stages in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900, 1800},
			},
			[]string{"stage"},
		),
		uploadAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upload_attempts_total",
				Help:      "Upload and link publish attempts by outcome",
			},
			[]string{"operation", "outcome"},
		),
		entriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entries_total",
				Help:      "Extracted archive entries by destination bucket",
			},
			[]string{"bucket"},
		),
	}
	if reg != nil {
		reg.MustRegister(r.jobsTotal, r.jobsActive, r.stageDuration, r.uploadAttempts, r.entriesTotal)
	}
	return r
}

// JobStarted increments the active job gauge.
func (r *Recorder) JobStarted() {
	if r == nil {
		return
	}
	r.jobsActive.Inc()
}

// JobFinished records a terminal state and decrements the active gauge.
func (r *Recorder) JobFinished(state, reason string, started bool) {
	if r == nil {
		return
	}
	if started {
		r.jobsActive.Dec()
	}
	r.jobsTotal.WithLabelValues(state, reason).Inc()
}

// ObserveStage records how long a stage ran.
func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// UploadAttempt counts one remote attempt. Outcome is success, retry, or
// failure.
func (r *Recorder) UploadAttempt(operation, outcome string) {
	if r == nil {
		return
	}
	r.uploadAttempts.WithLabelValues(operation, outcome).Inc()
}

// Entries adds n entries to bucket.
func (r *Recorder) Entries(bucket string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.entriesTotal.WithLabelValues(bucket).Add(float64(n))
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
