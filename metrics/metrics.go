// Package metrics exposes prometheus collectors for validation and
// execution runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wippyai/stackvm/errors"
)

// Namespace prefixes every metric name.
const Namespace = "stackvm"

// Mode names what a run did.
type Mode string

const (
	ModeValidate Mode = "validate"
	ModeExecute  Mode = "execute"
	ModeOracle   Mode = "oracle"
)

// Metrics groups the collectors. The zero value is not usable; create one
// with New. A nil *Metrics ignores every observation.
type Metrics struct {
	runs     *prometheus.CounterVec
	failures *prometheus.CounterVec
	steps    prometheus.Histogram
	duration *prometheus.HistogramVec
}

// New creates the collectors without registering them.
func New() *Metrics {
	return &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "runs_total",
			Help:      "Programs processed, by mode and outcome.",
		}, []string{"mode", "outcome"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Failed runs, by mode and error kind.",
		}, []string{"mode", "kind"}),
		steps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "execute_steps",
			Help:      "Steps consumed per execution, skipped instructions included.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time per run, by mode.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 10, 8),
		}, []string{"mode"}),
	}
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.runs.Describe(ch)
	m.failures.Describe(ch)
	m.steps.Describe(ch)
	m.duration.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.runs.Collect(ch)
	m.failures.Collect(ch)
	m.steps.Collect(ch)
	m.duration.Collect(ch)
}

// Observe records one run. steps is only recorded for executions.
func (m *Metrics) Observe(mode Mode, steps int, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
		kind, ok := errors.KindOf(err)
		if !ok {
			kind = "other"
		}
		m.failures.WithLabelValues(string(mode), string(kind)).Inc()
	}
	m.runs.WithLabelValues(string(mode), outcome).Inc()
	m.duration.WithLabelValues(string(mode)).Observe(d.Seconds())
	if mode == ModeExecute {
		m.steps.Observe(float64(steps))
	}
}
