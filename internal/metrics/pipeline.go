// Package metrics exposes Prometheus instrumentation for the identification pipeline.
// A nil *Pipeline is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline records job, AI call and supplier fetch outcomes.
type Pipeline struct {
	jobs         *prometheus.CounterVec
	jobDuration  *prometheus.HistogramVec
	aiCalls      *prometheus.CounterVec
	aiDuration   *prometheus.HistogramVec
	fetches      *prometheus.CounterVec
	fetchLatency prometheus.Histogram
	inFlight     prometheus.Gauge
}

// NewPipeline registers the pipeline metrics on reg. A nil registerer yields a no-op
// recorder.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	if reg == nil {
		return &Pipeline{}
	}
	p := &Pipeline{
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "partscout_jobs_total",
			Help: "Jobs that reached a terminal status.",
		}, []string{"mode", "status", "success"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "partscout_job_duration_seconds",
			Help:    "Wall-clock duration of the AI call plus enrichment.",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 120, 300},
		}, []string{"mode"}),
		aiCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "partscout_ai_calls_total",
			Help: "AI provider calls by outcome.",
		}, []string{"provider", "outcome"}),
		aiDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "partscout_ai_call_duration_seconds",
			Help:    "Duration of AI provider calls.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}, []string{"provider"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "partscout_supplier_fetches_total",
			Help: "Supplier page fetches by outcome.",
		}, []string{"outcome"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "partscout_supplier_fetch_duration_seconds",
			Help:    "Duration of supplier page fetches including the retry.",
			Buckets: prometheus.DefBuckets,
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "partscout_jobs_in_flight",
			Help: "Jobs currently being processed.",
		}),
	}
	reg.MustRegister(p.jobs, p.jobDuration, p.aiCalls, p.aiDuration, p.fetches, p.fetchLatency, p.inFlight)
	return p
}

// ObserveJob records a terminal job.
func (p *Pipeline) ObserveJob(mode, status string, success bool, duration time.Duration) {
	if p == nil || p.jobs == nil {
		return
	}
	p.jobs.WithLabelValues(normalizeLabel(mode), normalizeLabel(status), boolLabel(success)).Inc()
	p.jobDuration.WithLabelValues(normalizeLabel(mode)).Observe(duration.Seconds())
}

// ObserveAICall records one provider call. outcome is "ok", "error" or "timeout".
func (p *Pipeline) ObserveAICall(provider, outcome string, duration time.Duration) {
	if p == nil || p.aiCalls == nil {
		return
	}
	p.aiCalls.WithLabelValues(normalizeLabel(provider), normalizeLabel(outcome)).Inc()
	p.aiDuration.WithLabelValues(normalizeLabel(provider)).Observe(duration.Seconds())
}

// ObserveFetch records one supplier fetch. outcome is "ok", "error" or "cancelled".
func (p *Pipeline) ObserveFetch(outcome string, duration time.Duration) {
	if p == nil || p.fetches == nil {
		return
	}
	p.fetches.WithLabelValues(normalizeLabel(outcome)).Inc()
	p.fetchLatency.Observe(duration.Seconds())
}

// JobStarted and JobFinished track the in-flight gauge.
func (p *Pipeline) JobStarted() {
	if p == nil || p.inFlight == nil {
		return
	}
	p.inFlight.Inc()
}

func (p *Pipeline) JobFinished() {
	if p == nil || p.inFlight == nil {
		return
	}
	p.inFlight.Dec()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
