// Package metrics collects latency measurements for model calls and
// pipeline runs, exposing them both as in-process stats for the demo
// status API and as Prometheus collectors for /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns all Prometheus collectors for the service. It is
// constructed once in main and passed to the components that record
// measurements; there is no process-wide default.
type Registry struct {
	reg *prometheus.Registry

	modelLatency *prometheus.HistogramVec
	modelRetries *prometheus.CounterVec
	pipelineRuns *prometheus.CounterVec
	pipelineTime prometheus.Histogram
}

// NewRegistry creates a registry with all collectors registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		modelLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "careloop_model_call_duration_seconds",
			Help:    "Latency of successful model API calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"model"}),
		modelRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "careloop_model_call_retries_total",
			Help: "Number of retried model API call attempts.",
		}, []string{"model"}),
		pipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "careloop_pipeline_runs_total",
			Help: "Pipeline runs by terminal outcome.",
		}, []string{"outcome"}),
		pipelineTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "careloop_pipeline_duration_seconds",
			Help:    "Wall-clock duration of complete pipeline runs.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
	}

	reg.MustRegister(r.modelLatency, r.modelRetries, r.pipelineRuns, r.pipelineTime)
	return r
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ObserveModelLatency records the latency of one successful model call.
func (r *Registry) ObserveModelLatency(model string, d time.Duration) {
	r.modelLatency.WithLabelValues(model).Observe(d.Seconds())
}

// IncModelRetry counts one retried model call attempt.
func (r *Registry) IncModelRetry(model string) {
	r.modelRetries.WithLabelValues(model).Inc()
}

// ObservePipelineRun records one completed pipeline run.
func (r *Registry) ObservePipelineRun(outcome string, d time.Duration) {
	r.pipelineRuns.WithLabelValues(outcome).Inc()
	r.pipelineTime.Observe(d.Seconds())
}
