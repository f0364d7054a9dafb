package app

import (
	"context"
	"fmt"
	"time"

	"ups-metric-sender/internal/agent"
	"ups-metric-sender/internal/config"
	"ups-metric-sender/internal/delivery"
	"ups-metric-sender/internal/diagnostics"
	"ups-metric-sender/internal/health"
	apphttp "ups-metric-sender/internal/http"
	"ups-metric-sender/internal/logger"
	"ups-metric-sender/internal/metrics"
	"ups-metric-sender/internal/mqtt"
	"ups-metric-sender/internal/recovery"
)

// ApplicationBuilder assembles an Application from configuration.
// Anything not injected is created from the config.
type ApplicationBuilder struct {
	config           *config.Config
	source           StatusSource
	deliverer        agent.Deliverer
	publisher        *mqtt.Publisher
	version          string
	errorGracePeriod time.Duration
}

// NewApplicationBuilder creates a new builder
func NewApplicationBuilder(cfg *config.Config) *ApplicationBuilder {
	return &ApplicationBuilder{
		config:           cfg,
		version:          "dev",
		errorGracePeriod: 30 * time.Second,
	}
}

// WithSource uses an already open status source
func (b *ApplicationBuilder) WithSource(src StatusSource) *ApplicationBuilder {
	b.source = src
	return b
}

// WithDeliverer replaces the HTTP delivery client
func (b *ApplicationBuilder) WithDeliverer(d agent.Deliverer) *ApplicationBuilder {
	b.deliverer = d
	return b
}

// WithPublisher replaces the MQTT mirror
func (b *ApplicationBuilder) WithPublisher(p *mqtt.Publisher) *ApplicationBuilder {
	b.publisher = p
	return b
}

// WithVersion sets the version reported by /health
func (b *ApplicationBuilder) WithVersion(version string) *ApplicationBuilder {
	b.version = version
	return b
}

// WithErrorGracePeriod sets how long delivery may fail before the collector is offline
func (b *ApplicationBuilder) WithErrorGracePeriod(period time.Duration) *ApplicationBuilder {
	b.errorGracePeriod = period
	return b
}

// Build opens the status source, checks the device name and wires the
// delivery side. A status source failure or unknown device is returned as a
// DeviceUnreachableError.
func (b *ApplicationBuilder) Build(ctx context.Context) (*Application, error) {
	if b.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := b.config

	src := b.source
	if src == nil {
		opened, err := OpenSource(ctx, config.NewSourceSettings(cfg))
		if err != nil {
			return nil, err
		}
		src = opened
	}

	if err := diagnostics.ValidateDeviceName(ctx, src, cfg.Device.Name); err != nil {
		src.Close()
		return nil, err
	}
	logger.LogInfo("✅ UPS %s found at %s", cfg.Device.Name, src.Address())

	deliverySettings := config.NewDeliverySettings(cfg)
	deliverer := b.deliverer
	if deliverer == nil {
		opts := []delivery.Option{delivery.WithTimeout(deliverySettings.Timeout)}
		if deliverySettings.CircuitBreakerEnabled {
			opts = append(opts, delivery.WithCircuitBreaker(recovery.NewCircuitBreaker(recovery.CircuitBreakerConfig{
				MaxFailures: deliverySettings.MaxFailures,
				Timeout:     deliverySettings.BreakerTimeout,
			})))
			logger.LogDebug("🔧 Circuit breaker enabled: %d failures, %v open", deliverySettings.MaxFailures, deliverySettings.BreakerTimeout)
		}
		deliverer = delivery.NewClient(deliverySettings.URL, opts...)
	}

	app := &Application{
		config:        cfg,
		source:        src,
		deliverer:     deliverer,
		healthMonitor: health.NewCollectorHealthMonitor(b.errorGracePeriod),
		metrics:       metrics.NewNullMetrics(),
	}

	if cfg.HTTP.Port > 0 {
		promMetrics := metrics.NewPrometheusMetrics(cfg.DeviceID())
		app.metrics = promMetrics
		app.server = apphttp.NewServer(cfg.HTTP.Port,
			apphttp.NewHealthHandler(app.healthMonitor, cfg.DeviceID(), b.version),
			promMetrics.Handler())
	}

	if b.publisher != nil {
		app.publisher = b.publisher
	} else if cfg.MQTT.Enabled {
		app.publisher = mqtt.NewPublisher(config.NewMQTTSettings(cfg), cfg.DeviceID())
	}

	opts := []agent.Option{
		agent.WithMetrics(app.metrics),
		agent.WithHealthMonitor(app.healthMonitor),
	}
	if app.publisher != nil {
		opts = append(opts, agent.WithMirror(app.publisher))
	}
	app.agent = agent.New(agent.Config{
		Device:   cfg.Device.Name,
		DeviceID: cfg.DeviceID(),
	}, src, deliverer, opts...)

	return app, nil
}
