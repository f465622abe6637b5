// Package metrics exports evaluation progress as prometheus metrics.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/model"

	"github.com/xkilldash9x/plugin-eval/internal/executor"
	"github.com/xkilldash9x/plugin-eval/internal/progress"
	"github.com/xkilldash9x/plugin-eval/internal/scenario"
)

// Recorder holds the evaluation collectors.
type Recorder struct {
	registry *prometheus.Registry

	scenarios *prometheus.CounterVec
	tokens    *prometheus.CounterVec
	cost      prometheus.Counter
	duration  *prometheus.HistogramVec
	attempts  prometheus.Histogram
	stages    *prometheus.GaugeVec
	errors    *prometheus.CounterVec
}

// NewRecorder registers the collectors on a fresh registry under namespace.
// The namespace must be a legacy metric name so textfile output stays
// readable by node_exporter.
func NewRecorder(namespace string) (*Recorder, error) {
	if namespace != "" && !model.IsValidLegacyMetricName(namespace) {
		return nil, fmt.Errorf("invalid metrics namespace %q", namespace)
	}
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		scenarios: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenarios_total",
			Help:      "Scenarios completed, by component kind and status.",
		}, []string{"kind", "status"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_total",
			Help:      "Tokens used by scenario execution.",
		}, []string{"direction"}),
		cost: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cost_dollars_total",
			Help:      "Estimated spend in US dollars.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scenario_duration_seconds",
			Help:      "Wall time per scenario including retries.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"phase"}),
		attempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scenario_attempts",
			Help:      "Attempts needed per scenario.",
			Buckets:   prometheus.LinearBuckets(1, 1, 5),
		}),
		stages: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of the last completed pipeline stage.",
		}, []string{"stage"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Errors reported during a run, by kind.",
		}, []string{"kind"}),
	}

	for _, c := range []prometheus.Collector{r.scenarios, r.tokens, r.cost, r.duration, r.attempts, r.stages, r.errors} {
		if err := r.registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}
	return r, nil
}

// Registry exposes the registry for gathering.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// ObserveResult records one finished scenario.
func (r *Recorder) ObserveResult(res executor.ExecutionResult) {
	r.scenarios.WithLabelValues(string(res.Scenario.Component.Kind), string(res.Status)).Inc()
	r.tokens.WithLabelValues("input").Add(float64(res.Usage.InputTokens))
	r.tokens.WithLabelValues("output").Add(float64(res.Usage.OutputTokens))
	r.cost.Add(res.Cost)
	if res.Attempts > 0 {
		r.duration.WithLabelValues(string(res.Scenario.Phase)).Observe(res.Elapsed.Seconds())
		r.attempts.Observe(float64(res.Attempts))
	}
}

// Reporter returns progress hooks that feed the recorder.
func (r *Recorder) Reporter() *progress.Reporter {
	return &progress.Reporter{
		OnScenarioComplete: func(res executor.ExecutionResult, _, _ int) { r.ObserveResult(res) },
		OnStageComplete: func(stage progress.Stage, elapsed time.Duration, _ int) {
			r.stages.WithLabelValues(string(stage)).Set(elapsed.Seconds())
		},
		OnError: func(err error, _ *scenario.TestScenario) {
			r.errors.WithLabelValues(string(executor.Classify(err))).Inc()
		},
	}
}

// WriteTextfile writes the current values in text exposition format, for
// node_exporter's textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
