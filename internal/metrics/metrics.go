// Package metrics exposes Prometheus instrumentation for the gesture
// session engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var registry = prometheus.NewRegistry()

var (
	// SamplesCollected counts landmark samples accepted into the dataset.
	SamplesCollected = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Name: "mudra_samples_collected_total",
		Help: "Number of landmark samples accepted into the dataset.",
	})

	// Predictions counts prediction requests by outcome: active, pending,
	// or error.
	Predictions = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: "mudra_predictions_total",
		Help: "Number of prediction requests served, by outcome.",
	}, []string{"outcome"})

	// TrainingRuns counts completed training jobs by status.
	TrainingRuns = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: "mudra_training_runs_total",
		Help: "Number of completed training runs, by status.",
	}, []string{"status"})

	// ActionsDispatched counts actions handed to the dispatcher.
	ActionsDispatched = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Name: "mudra_actions_dispatched_total",
		Help: "Number of actions scheduled for execution.",
	})

	// ModelReady reports whether an asset snapshot is currently installed.
	ModelReady = promauto.With(registry).NewGauge(prometheus.GaugeOpts{
		Name: "mudra_model_ready",
		Help: "1 when a model snapshot is installed, 0 otherwise.",
	})

	// Sessions tracks currently connected websocket sessions.
	Sessions = promauto.With(registry).NewGauge(prometheus.GaugeOpts{
		Name: "mudra_sessions",
		Help: "Number of connected client sessions.",
	})
)

// Handler returns the HTTP handler serving the metrics registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
