package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the prometheus instruments for the loyalty core.
type Metrics struct {
	OperationsTotal     *prometheus.CounterVec
	GuardrailRejections *prometheus.CounterVec
	QueueDepth          prometheus.Gauge
}

// New registers the instruments on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		OperationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loyalty",
			Name:      "operations_total",
			Help:      "Submitted ledger operations by type and outcome.",
		}, []string{"type", "outcome"}),
		GuardrailRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loyalty",
			Name:      "guardrail_rejections_total",
			Help:      "Guardrail rejections by category.",
		}, []string{"category"}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "loyalty",
			Name:      "offline_queue_depth",
			Help:      "Operations currently pending in the offline queue.",
		}),
	}
}

// RecordOperation counts one submitted operation.
func (m *Metrics) RecordOperation(opType, outcome string) {
	if m == nil {
		return
	}
	m.OperationsTotal.WithLabelValues(opType, outcome).Inc()
}

// RecordGuardrailRejection counts one guardrail rejection.
func (m *Metrics) RecordGuardrailRejection(category string) {
	if m == nil {
		return
	}
	m.GuardrailRejections.WithLabelValues(category).Inc()
}

// SetQueueDepth publishes the current queue length.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}
