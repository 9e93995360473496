// Package metrics provides observability hooks for build runs.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics can be enabled by swapping in a real
// implementation without code changes.
package metrics

import "time"

// Recorder defines observability hooks for run and per-dependency metrics.
// Implementations may forward to Prometheus, OpenTelemetry, etc.
type Recorder interface {
	ObserveDependencyDuration(dep string, d time.Duration)
	IncDependencyOutcome(outcome string) // outcome: success|skipped|failed
	ObserveRunDuration(d time.Duration)
	IncRunOutcome(outcome string) // outcome: success|failed
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveDependencyDuration(string, time.Duration) {}
func (NoopRecorder) IncDependencyOutcome(string)                     {}
func (NoopRecorder) ObserveRunDuration(time.Duration)                {}
func (NoopRecorder) IncRunOutcome(string)                            {}
