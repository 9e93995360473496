package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	depDuration *prom.HistogramVec
	depOutcome  *prom.CounterVec
	runDuration prom.Histogram
	runOutcome  *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers the metric set on reg.
// A nil registry falls back to the default registerer.
func NewPrometheusRecorder(reg prom.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	r := &PrometheusRecorder{
		depDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "depforge_dependency_duration_seconds",
			Help:    "Wall time spent processing one dependency (repository + build + publish).",
			Buckets: prom.ExponentialBuckets(1, 2, 12),
		}, []string{"dependency"}),
		depOutcome: prom.NewCounterVec(prom.CounterOpts{
			Name: "depforge_dependency_outcomes_total",
			Help: "Per-dependency outcomes by result.",
		}, []string{"outcome"}),
		runDuration: prom.NewHistogram(prom.HistogramOpts{
			Name:    "depforge_run_duration_seconds",
			Help:    "Wall time of a whole orchestration run.",
			Buckets: prom.ExponentialBuckets(1, 2, 14),
		}),
		runOutcome: prom.NewCounterVec(prom.CounterOpts{
			Name: "depforge_run_outcomes_total",
			Help: "Run outcomes by result.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(r.depDuration, r.depOutcome, r.runDuration, r.runOutcome)
	return r
}

func (r *PrometheusRecorder) ObserveDependencyDuration(dep string, d time.Duration) {
	r.depDuration.WithLabelValues(dep).Observe(d.Seconds())
}

func (r *PrometheusRecorder) IncDependencyOutcome(outcome string) {
	r.depOutcome.WithLabelValues(outcome).Inc()
}

func (r *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	r.runDuration.Observe(d.Seconds())
}

func (r *PrometheusRecorder) IncRunOutcome(outcome string) {
	r.runOutcome.WithLabelValues(outcome).Inc()
}
