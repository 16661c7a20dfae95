// Package metrics holds the Prometheus instruments of the bot engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cycle outcomes.
const (
	CycleCompleted   = "completed"
	CycleContended   = "contended"
	CycleFailed      = "failed"
	CycleDisabled    = "disabled"
	CycleInterrupted = "interrupted"
)

// Pipeline outcomes.
const (
	RunOK      = "ok"
	RunFailed  = "failed"
	RunBusy    = "busy"
	RunSkipped = "skipped"
)

var (
	// cycles counts scheduler cycles.
	// Labels: action (POST, COMMENT, LIKE, CATEGORY), outcome
	cycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "social_bots",
		Subsystem: "scheduler",
		Name:      "cycles_total",
		Help:      "Scheduler cycles by action type and outcome",
	}, []string{"action", "outcome"})

	// batches counts batches started inside cycles.
	batches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "social_bots",
		Subsystem: "scheduler",
		Name:      "batches_total",
		Help:      "Batches processed by action type",
	}, []string{"action"})

	// pipelineRuns counts bot pipeline passes.
	// Labels: action (decided action), outcome
	pipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "social_bots",
		Subsystem: "pipeline",
		Name:      "runs_total",
		Help:      "Bot pipeline passes by decided action and outcome",
	}, []string{"action", "outcome"})

	// sideEffects counts calls to the social network.
	// Labels: kind (post, comment, like), status (ok, error, no_target)
	sideEffects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "social_bots",
		Subsystem: "pipeline",
		Name:      "side_effects_total",
		Help:      "Social side effects by kind and status",
	}, []string{"kind", "status"})

	// generationLatency measures text generation calls.
	generationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "social_bots",
		Subsystem: "textgen",
		Name:      "latency_seconds",
		Help:      "Text generation latency in seconds",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
	}, []string{"status"})

	// heartbeats is the number of live bot heartbeats.
	heartbeats = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "social_bots",
		Subsystem: "supervisor",
		Name:      "heartbeats",
		Help:      "Bots with a running heartbeat",
	})
)

// RecordCycle counts one scheduler cycle.
func RecordCycle(action, outcome string) {
	cycles.WithLabelValues(action, outcome).Inc()
}

// RecordBatch counts one batch.
func RecordBatch(action string) {
	batches.WithLabelValues(action).Inc()
}

// RecordRun counts one pipeline pass.
func RecordRun(action, outcome string) {
	pipelineRuns.WithLabelValues(action, outcome).Inc()
}

// RecordSideEffect counts one social call.
func RecordSideEffect(kind, status string) {
	sideEffects.WithLabelValues(kind, status).Inc()
}

// RecordGeneration observes one text generation call.
func RecordGeneration(status string, durationSec float64) {
	generationLatency.WithLabelValues(status).Observe(durationSec)
}

// SetHeartbeats sets the live heartbeat gauge.
func SetHeartbeats(n int) {
	heartbeats.Set(float64(n))
}
