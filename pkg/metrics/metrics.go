// Package metrics exports run results as Prometheus metrics. A batch run has
// no scrape endpoint, so metrics are written in the node exporter textfile
// format.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/semgeo/semgeo/pkg/pipeline"
)

const namespace = "semgeo"

// Collector holds the metrics for one or more runs.
type Collector struct {
	registry *prometheus.Registry

	runs        *prometheus.CounterVec
	triples     prometheus.Gauge
	tests       *prometheus.GaugeVec
	stepDelta   *prometheus.GaugeVec
	stepSeconds *prometheus.HistogramVec
	duration    prometheus.Gauge
	lastRun     prometheus.Gauge
	scenarios   *prometheus.GaugeVec
}

// New creates a Collector with its own registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by final state.",
		}, []string{"state"}),
		triples: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_triples",
			Help:      "Triples in the graph at the end of the last run.",
		}),
		tests: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tests",
			Help:      "Test rule outcomes of the last run.",
		}, []string{"result"}),
		stepDelta: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "step_triples_added",
			Help:      "Triples added by each step of the last run.",
		}, []string{"kind", "scenario", "source"}),
		stepSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of pipeline steps.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"kind"}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
		scenarios: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scenario_triples_added",
			Help:      "Triples added by each scenario of the last run.",
		}, []string{"scenario"}),
	}

	c.registry.MustRegister(
		c.runs,
		c.triples,
		c.tests,
		c.stepDelta,
		c.stepSeconds,
		c.duration,
		c.lastRun,
		c.scenarios,
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Observe records a report. Gauges describe the latest report only; the run
// counter and step histogram accumulate.
func (c *Collector) Observe(report *pipeline.Report) {
	if report == nil {
		return
	}

	c.runs.WithLabelValues(string(report.State)).Inc()
	c.triples.Set(float64(report.Triples))
	c.tests.WithLabelValues("passed").Set(float64(report.Passed()))
	c.tests.WithLabelValues("failed").Set(float64(report.Failed()))
	c.duration.Set(report.Duration.Seconds())
	if !report.FinishedAt.IsZero() {
		c.lastRun.Set(float64(report.FinishedAt.Unix()))
	}

	c.stepDelta.Reset()
	for _, step := range report.Steps {
		if step.Kind == pipeline.StepMissing {
			continue
		}
		c.stepDelta.WithLabelValues(string(step.Kind), step.Scenario, step.Source).Add(float64(step.Delta))
		c.stepSeconds.WithLabelValues(string(step.Kind)).Observe(step.Duration.Seconds())
	}

	c.scenarios.Reset()
	for _, summary := range report.Scenarios {
		c.scenarios.WithLabelValues(summary.Name).Set(float64(summary.After - summary.Before))
	}
}

// WriteTextfile writes the metrics to path in the Prometheus text format.
// The file is replaced atomically.
func (c *Collector) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
