package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the agent.
type Metrics struct {
	RecordOperations  *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	WalletsOpen       prometheus.Gauge
	AuditDropped      prometheus.Counter
}

// New creates and registers all metrics with reg. A nil reg uses the
// Prometheus default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		RecordOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentwallet_record_operations_total",
			Help: "Record store operations by operation, record type and result",
		}, []string{"op", "type", "result"}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentwallet_record_operation_duration_seconds",
			Help:    "Latency of record store operations in seconds",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		}, []string{"op"}),
		WalletsOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "agentwallet_wallets_open",
			Help: "Number of wallets currently open",
		}),
		AuditDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "agentwallet_audit_events_dropped_total",
			Help: "Record lifecycle events that could not be delivered",
		}),
	}
}

// ObserveOperation records the outcome and latency of one record operation.
func (m *Metrics) ObserveOperation(op, typeName, result string, started time.Time) {
	m.RecordOperations.WithLabelValues(op, typeName, result).Inc()
	m.OperationDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}
