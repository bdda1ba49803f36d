// Package metrics exports orchestrator counters in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder collects pipeline metrics. A nil *Recorder is valid and records
// nothing, so collaborators take it without guarding.
type Recorder struct {
	registry *prometheus.Registry

	commands            *prometheus.CounterVec
	fallbacks           *prometheus.CounterVec
	lockTimeouts        prometheus.Counter
	stageSeconds        *prometheus.HistogramVec
	deferredTransitions *prometheus.CounterVec
	audioDropped        *prometheus.CounterVec
	inflight            prometheus.Gauge
}

// Config configures the metrics recorder.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for stage latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default recorder configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}
}

// NewRecorder creates a metrics recorder and registers its collectors.
func NewRecorder(cfg Config) *Recorder {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	r := &Recorder{registry: registry}

	r.commands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aura",
			Name:      "commands_total",
			Help:      "Commands processed, by intent kind, result status, and execution method",
		},
		[]string{"intent", "status", "method"},
	)

	r.fallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aura",
			Name:      "fallback_total",
			Help:      "Intent classifications that fell back to GUI interaction",
		},
		[]string{"reason"},
	)

	r.lockTimeouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "aura",
			Name:      "lock_timeouts_total",
			Help:      "Execution lock acquisitions abandoned after timing out",
		},
	)

	r.stageSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aura",
			Name:      "stage_seconds",
			Help:      "Pipeline stage latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"stage"},
	)

	r.deferredTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aura",
			Name:      "deferred_transitions_total",
			Help:      "Deferred action state transitions",
		},
		[]string{"from", "to"},
	)

	r.audioDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aura",
			Name:      "audio_dropped_total",
			Help:      "Audio cues dropped because the queue was full",
		},
		[]string{"priority"},
	)

	r.inflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "aura",
			Name:      "commands_inflight",
			Help:      "Commands currently holding or waiting on the execution lock",
		},
	)

	registry.MustRegister(
		r.commands,
		r.fallbacks,
		r.lockTimeouts,
		r.stageSeconds,
		r.deferredTransitions,
		r.audioDropped,
		r.inflight,
	)

	return r
}

// RecordCommand records a completed command.
func (r *Recorder) RecordCommand(intent, status, method string) {
	if r == nil {
		return
	}
	r.commands.WithLabelValues(intent, status, method).Inc()
}

// RecordFallback records an intent fallback with its cause.
func (r *Recorder) RecordFallback(reason string) {
	if r == nil {
		return
	}
	r.fallbacks.WithLabelValues(reason).Inc()
}

// RecordLockTimeout records an execution lock acquisition timeout.
func (r *Recorder) RecordLockTimeout() {
	if r == nil {
		return
	}
	r.lockTimeouts.Inc()
}

// RecordStage records the latency of one pipeline stage.
func (r *Recorder) RecordStage(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.stageSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordDeferredTransition records a deferred state machine edge.
func (r *Recorder) RecordDeferredTransition(from, to string) {
	if r == nil {
		return
	}
	r.deferredTransitions.WithLabelValues(from, to).Inc()
}

// RecordAudioDropped records a dropped audio cue.
func (r *Recorder) RecordAudioDropped(priority string) {
	if r == nil {
		return
	}
	r.audioDropped.WithLabelValues(priority).Inc()
}

// CommandStarted marks a command entering the pipeline.
func (r *Recorder) CommandStarted() {
	if r == nil {
		return
	}
	r.inflight.Inc()
}

// CommandFinished marks a command leaving the pipeline.
func (r *Recorder) CommandFinished() {
	if r == nil {
		return
	}
	r.inflight.Dec()
}

// Handler returns the HTTP handler for the metrics endpoint.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying Prometheus registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}
