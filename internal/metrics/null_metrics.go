package metrics

import (
	"time"

	"ups-metric-sender/internal/ups"
)

// NullMetrics is a no-op MetricsCollector used when the HTTP server is disabled
type NullMetrics struct{}

// NewNullMetrics creates a new NullMetrics instance
func NewNullMetrics() *NullMetrics {
	return &NullMetrics{}
}

func (nm *NullMetrics) IncrementCycles()                                      {}
func (nm *NullMetrics) RecordDelivery(delivered bool, duration time.Duration) {}
func (nm *NullMetrics) SetCollectorStatus(online bool)                        {}
func (nm *NullMetrics) ObserveRecord(record *ups.MetricRecord)                {}
func (nm *NullMetrics) RecordMirrorPublish(ok bool)                           {}

var _ MetricsCollector = (*NullMetrics)(nil)
