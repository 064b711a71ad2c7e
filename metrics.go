package sapl

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sapl-go/sapl/internal/metrics"
)

// Metrics holds the Prometheus collectors a PolicyDecisionPoint can be
// instrumented with via WithMetrics (decision counts by outcome, per-policy
// combiner errors by error handling mode).
type Metrics = metrics.Metrics

// NewMetrics creates and registers a Metrics against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics { return metrics.New(reg) }
