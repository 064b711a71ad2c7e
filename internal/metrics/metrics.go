// Package metrics holds the Prometheus instrumentation for a PolicyDecisionPoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector this repo exposes. Pass to
// whichever component needs to record against it; nothing in
// internal/engine or internal/broker requires Metrics to be non-nil — a
// caller that never wires one simply doesn't get instrumentation.
type Metrics struct {
	DecisionsTotal      *prometheus.CounterVec
	DecisionLatency     prometheus.Histogram
	ActiveSubscriptions prometheus.Gauge
	AttributeStreams    prometheus.Gauge
	CombinerErrors      *prometheus.CounterVec
}

// New creates and registers every collector against reg.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		DecisionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sapl",
				Name:      "decisions_total",
				Help:      "Total decisions emitted, by outcome",
			},
			[]string{"decision"}, // PERMIT/DENY/NOT_APPLICABLE/INDETERMINATE
		),
		DecisionLatency: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "sapl",
				Name:      "decision_latency_seconds",
				Help:      "Time from subscription to first decision emission",
				Buckets:   prometheus.DefBuckets,
			},
		),
		ActiveSubscriptions: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "sapl",
				Name:      "active_subscriptions",
				Help:      "Number of currently live Decide/DecideAll/DecideEach subscriptions",
			},
		),
		AttributeStreams: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "sapl",
				Name:      "attribute_streams",
				Help:      "Number of live upstream attribute streams held by the broker",
			},
		),
		CombinerErrors: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sapl",
				Name:      "combiner_errors_total",
				Help:      "Per-policy evaluation errors observed by a combiner, by error handling mode",
			},
			[]string{"error_handling"}, // PROPAGATE/TREAT_AS_INDETERMINATE/TREAT_AS_NOT_APPLICABLE
		),
	}
}

// ObserveDecision records one decision emission.
func (m *Metrics) ObserveDecision(decision string) {
	if m == nil {
		return
	}
	m.DecisionsTotal.WithLabelValues(decision).Inc()
}

// ObserveCombinerError records one per-policy evaluation error seen during
// combining, tagged by how the active CombiningAlgorithm handles it.
func (m *Metrics) ObserveCombinerError(errorHandling string) {
	if m == nil {
		return
	}
	m.CombinerErrors.WithLabelValues(errorHandling).Inc()
}
