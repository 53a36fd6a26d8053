package core

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsRecorder observes checkpoint and validation activity.
type MetricsRecorder interface {
	ObserveCheckpoint(checkpoint string, executed, success bool, elapsed time.Duration)
	ObserveValidation(vendor string, result *ValidationOutcome)
	ObserveBatch(rows int, elapsed time.Duration)
}

// ValidationOutcome is the subset of a validation result the recorder needs.
type ValidationOutcome struct {
	Success  bool
	Passed   int
	Failed   int
	Bypassed int
}

// NoopMetrics implements MetricsRecorder without emitting anything.
type NoopMetrics struct{}

func (NoopMetrics) ObserveCheckpoint(string, bool, bool, time.Duration) {}
func (NoopMetrics) ObserveValidation(string, *ValidationOutcome)        {}
func (NoopMetrics) ObserveBatch(int, time.Duration)                      {}

// PromMetrics implements MetricsRecorder with Prometheus collectors on a private registry.
type PromMetrics struct {
	registry    *prometheus.Registry
	checkpoints *prometheus.CounterVec
	durations   *prometheus.HistogramVec
	validations *prometheus.CounterVec
	patterns    *prometheus.CounterVec
	batchRows   prometheus.Counter
	batchTime   prometheus.Gauge
}

// NewPromMetrics creates and registers the vendor-qc collectors.
func NewPromMetrics(namespace string) *PromMetrics {
	p := &PromMetrics{
		registry: prometheus.NewRegistry(),
		checkpoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoint_runs_total",
			Help:      "Checkpoint evaluations by checkpoint and outcome",
		}, []string{"checkpoint", "outcome"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkpoint_duration_seconds",
			Help:      "Duration of executed checkpoints",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"checkpoint"}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validations_total",
			Help:      "Vendor validations by vendor and result",
		}, []string{"vendor", "result"}),
		patterns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "patterns_total",
			Help:      "Required pattern outcomes by vendor and status",
		}, []string{"vendor", "status"}),
		batchRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_rows_total",
			Help:      "Delivery rows evaluated",
		}),
		batchTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_batch_duration_seconds",
			Help:      "Wall time of the most recent batch",
		}),
	}
	p.registry.MustRegister(p.checkpoints, p.durations, p.validations, p.patterns, p.batchRows, p.batchTime)
	return p
}

// Registry exposes the underlying registry for gathering.
func (p *PromMetrics) Registry() *prometheus.Registry {
	return p.registry
}

func (p *PromMetrics) ObserveCheckpoint(checkpoint string, executed, success bool, elapsed time.Duration) {
	outcome := "skipped"
	switch {
	case executed && success:
		outcome = "passed"
	case executed:
		outcome = "failed"
	}
	p.checkpoints.WithLabelValues(checkpoint, outcome).Inc()
	if executed {
		p.durations.WithLabelValues(checkpoint).Observe(elapsed.Seconds())
	}
}

func (p *PromMetrics) ObserveValidation(vendor string, o *ValidationOutcome) {
	if o == nil {
		return
	}
	result := "fail"
	if o.Success {
		result = "pass"
	}
	p.validations.WithLabelValues(vendor, result).Inc()
	p.patterns.WithLabelValues(vendor, "pass").Add(float64(o.Passed))
	p.patterns.WithLabelValues(vendor, "fail").Add(float64(o.Failed))
	p.patterns.WithLabelValues(vendor, "bypassed").Add(float64(o.Bypassed))
}

func (p *PromMetrics) ObserveBatch(rows int, elapsed time.Duration) {
	p.batchRows.Add(float64(rows))
	p.batchTime.Set(elapsed.Seconds())
}

// WriteTextfile writes the registry in the node_exporter textfile format.
func (p *PromMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, p.registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
