// Package metrics records stage and retry metrics for one kap invocation and
// writes them to a node_exporter textfile.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the metrics of a single run. A nil Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	stageTotal    *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	retryAttempts *prometheus.CounterVec
	retryTotal    *prometheus.CounterVec
	lastRun       *prometheus.GaugeVec
}

// NewRecorder creates a recorder backed by its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		stageTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kap",
				Subsystem: "stage",
				Name:      "total",
				Help:      "Number of stages run by operation, stage and result",
			},
			[]string{"operation", "stage", "result"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "kap",
				Subsystem: "stage",
				Name:      "duration_seconds",
				Help:      "Duration of a stage in seconds",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~34min
			},
			[]string{"operation", "stage"},
		),
		retryAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kap",
				Subsystem: "retry",
				Name:      "attempts_total",
				Help:      "Attempts made by retry policy",
			},
			[]string{"policy"},
		),
		retryTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kap",
				Subsystem: "retry",
				Name:      "total",
				Help:      "Completed retry loops by policy and result",
			},
			[]string{"policy", "result"},
		),
		lastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "kap",
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time of the last run by operation and result",
			},
			[]string{"operation", "result"},
		),
	}
	r.registry.MustRegister(r.stageTotal, r.stageDuration, r.retryAttempts, r.retryTotal, r.lastRun)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveStage records one finished stage.
func (r *Recorder) ObserveStage(operation, stage string, d time.Duration, err error) {
	if r == nil {
		return
	}
	r.stageTotal.WithLabelValues(operation, stage, result(err)).Inc()
	r.stageDuration.WithLabelValues(operation, stage).Observe(d.Seconds())
}

// ObserveRetry records a finished retry loop. Its signature matches
// retry.WithObserver.
func (r *Recorder) ObserveRetry(policy string, attempts int, succeeded bool) {
	if r == nil {
		return
	}
	r.retryAttempts.WithLabelValues(policy).Add(float64(attempts))
	res := "success"
	if !succeeded {
		res = "exhausted"
	}
	r.retryTotal.WithLabelValues(policy, res).Inc()
}

// ObserveRun records the end of an operation.
func (r *Recorder) ObserveRun(operation string, at time.Time, err error) {
	if r == nil {
		return
	}
	r.lastRun.WithLabelValues(operation, result(err)).Set(float64(at.Unix()))
}

// WriteTextfile writes all metrics to path in the text exposition format.
// An empty path is a no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
