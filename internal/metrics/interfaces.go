package metrics

import (
	"time"

	"ups-metric-sender/internal/ups"
)

// MetricsCollector records the agent's own operation.
//
// Implementations:
//   - PrometheusMetrics: client_golang registry, served on /metrics
//   - NullMetrics: no-op when the HTTP server is disabled
type MetricsCollector interface {
	// IncrementCycles counts one completed acquisition cycle
	IncrementCycles()

	// RecordDelivery counts one POST attempt and, when delivered, its duration
	RecordDelivery(delivered bool, duration time.Duration)

	// SetCollectorStatus sets whether the collector is considered reachable
	SetCollectorStatus(online bool)

	// ObserveRecord exports the latest normalized values
	ObserveRecord(record *ups.MetricRecord)

	// RecordMirrorPublish counts one MQTT mirror publish
	RecordMirrorPublish(ok bool)
}

var _ MetricsCollector = (*PrometheusMetrics)(nil)
