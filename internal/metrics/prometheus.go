package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ups-metric-sender/internal/ups"
)

const namespace = "ups_metric_sender"

// PrometheusMetrics tracks agent metrics on its own registry
type PrometheusMetrics struct {
	registry *prometheus.Registry

	cycles           prometheus.Counter
	deliveries       *prometheus.CounterVec
	deliveryDuration prometheus.Histogram
	collectorUp      prometheus.Gauge
	mirrorPublishes  *prometheus.CounterVec

	chargePercent    prometheus.Gauge
	chargeStateValue prometheus.Gauge
	loadPercent      prometheus.Gauge
	runtimeSeconds   prometheus.Gauge
}

// NewPrometheusMetrics creates the collector and registers every metric.
// deviceID is attached as a constant label to the UPS value gauges.
func NewPrometheusMetrics(deviceID string) *PrometheusMetrics {
	deviceLabels := prometheus.Labels{"device_id": deviceID}

	pm := &PrometheusMetrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Completed acquisition cycles",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Collector POST attempts by result (delivered, failed)",
		}, []string{"result"}),
		deliveryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_duration_seconds",
			Help:      "Time from request start to collector response",
			Buckets:   prometheus.DefBuckets,
		}),
		collectorUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "collector_up",
			Help:      "Collector reachability (1 = online, 0 = offline)",
		}),
		mirrorPublishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mirror_publishes_total",
			Help:      "MQTT mirror publishes by result (ok, failed)",
		}, []string{"result"}),
		chargePercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "charge_percent",
			Help:        "Last reported battery charge in percent",
			ConstLabels: deviceLabels,
		}),
		chargeStateValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "charge_state_value",
			Help:        "Last reported charge state code (5=OL 4=OL CHRG 3=OB DISCHRG 2=LB 1=RB -1=unknown)",
			ConstLabels: deviceLabels,
		}),
		loadPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "load_percent",
			Help:        "Last reported output load in percent",
			ConstLabels: deviceLabels,
		}),
		runtimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "runtime_seconds",
			Help:        "Last reported estimated battery runtime in seconds",
			ConstLabels: deviceLabels,
		}),
	}

	pm.registry.MustRegister(
		pm.cycles,
		pm.deliveries,
		pm.deliveryDuration,
		pm.collectorUp,
		pm.mirrorPublishes,
		pm.chargePercent,
		pm.chargeStateValue,
		pm.loadPercent,
		pm.runtimeSeconds,
	)

	// start as online until the first failure run says otherwise
	pm.collectorUp.Set(1)
	return pm
}

// IncrementCycles increments the cycle counter
func (pm *PrometheusMetrics) IncrementCycles() {
	pm.cycles.Inc()
}

// RecordDelivery counts a delivery attempt
func (pm *PrometheusMetrics) RecordDelivery(delivered bool, duration time.Duration) {
	if !delivered {
		pm.deliveries.WithLabelValues("failed").Inc()
		return
	}
	pm.deliveries.WithLabelValues("delivered").Inc()
	pm.deliveryDuration.Observe(duration.Seconds())
}

// SetCollectorStatus sets the collector gauge (1 = online, 0 = offline)
func (pm *PrometheusMetrics) SetCollectorStatus(online bool) {
	if online {
		pm.collectorUp.Set(1)
	} else {
		pm.collectorUp.Set(0)
	}
}

// ObserveRecord updates the last-value gauges
func (pm *PrometheusMetrics) ObserveRecord(record *ups.MetricRecord) {
	if record == nil {
		return
	}
	pm.chargePercent.Set(float64(record.ChargePercent))
	pm.chargeStateValue.Set(float64(record.ChargeStateValue))
	pm.loadPercent.Set(float64(record.LoadPercent))
	pm.runtimeSeconds.Set(float64(record.RuntimeSeconds))
}

// RecordMirrorPublish counts an MQTT mirror publish
func (pm *PrometheusMetrics) RecordMirrorPublish(ok bool) {
	if ok {
		pm.mirrorPublishes.WithLabelValues("ok").Inc()
	} else {
		pm.mirrorPublishes.WithLabelValues("failed").Inc()
	}
}

// Registry exposes the underlying registry
func (pm *PrometheusMetrics) Registry() *prometheus.Registry {
	return pm.registry
}

// Handler serves the registry in the Prometheus exposition format
func (pm *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{})
}
