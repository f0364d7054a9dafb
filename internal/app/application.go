// Package app wires the status source, the acquisition loop and the optional
// mirror, health and metrics surfaces into one process.
package app

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"ups-metric-sender/internal/agent"
	"ups-metric-sender/internal/config"
	"ups-metric-sender/internal/diagnostics"
	agenterrors "ups-metric-sender/internal/errors"
	"ups-metric-sender/internal/health"
	apphttp "ups-metric-sender/internal/http"
	"ups-metric-sender/internal/logger"
	"ups-metric-sender/internal/metrics"
	"ups-metric-sender/internal/mqtt"
)

// Application is the assembled agent process
type Application struct {
	config        *config.Config
	source        StatusSource
	deliverer     agent.Deliverer
	publisher     *mqtt.Publisher
	metrics       metrics.MetricsCollector
	healthMonitor *health.CollectorHealthMonitor
	server        *apphttp.Server
	agent         *agent.Agent
}

// GetConfig returns the application configuration
func (app *Application) GetConfig() *config.Config {
	return app.config
}

// GetHealthMonitor returns the collector health monitor
func (app *Application) GetHealthMonitor() *health.CollectorHealthMonitor {
	return app.healthMonitor
}

// Dump writes every variable of the configured UPS to w
func (app *Application) Dump(ctx context.Context, w io.Writer) error {
	return diagnostics.DumpAll(ctx, app.source, app.config.Device.Name, w)
}

// Info writes the product identity of the configured UPS to w
func (app *Application) Info(ctx context.Context, w io.Writer) error {
	return diagnostics.DumpProductInfo(ctx, app.source, app.config.Device.Name, w)
}

// Run starts the optional surfaces and runs the acquisition loop until ctx is
// cancelled (nil) or a cycle fails fatally (the error)
func (app *Application) Run(ctx context.Context) error {
	logger.LogInfo("🚀 Starting UPS metric sender for %s → %s", app.config.Device.Name, app.config.CollectorURL())

	runCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup

	if app.server != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := app.server.Run(runCtx); err != nil {
				logger.LogError("Health server error: %v", err)
			}
		}()
	}

	if app.publisher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startMirror(runCtx)
		}()
	}

	err := app.agent.Run(runCtx)
	if err != nil {
		agenterrors.NewErrorHandler(app.diagnosticPublisher()).Handle(ctx, err)
	}

	cancel()
	wg.Wait()
	return err
}

// startMirror connects in the background so a missing broker never delays
// the collector deliveries
func (app *Application) startMirror(ctx context.Context) {
	if err := app.publisher.Connect(ctx); err != nil {
		logger.LogDebug("MQTT mirror not started: %v", err)
		return
	}
	if err := app.publisher.PublishDiagnostic(ctx, agenterrors.CodeOK, "UPS metric sender started"); err != nil {
		logger.LogWarn("Error publishing startup diagnostic: %v", err)
	}

	settings := config.NewMQTTSettings(app.config)
	mqtt.NewHeartbeatService(app.publisher, settings.HeartbeatInterval).Start(ctx)
}

func (app *Application) diagnosticPublisher() agenterrors.DiagnosticPublisher {
	if app.publisher == nil {
		return nil
	}
	return app.publisher
}

// Close releases the mirror and the status source
func (app *Application) Close() error {
	logger.LogInfo("🛑 Stopping UPS metric sender...")

	if app.publisher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		app.publisher.Disconnect(ctx)
		cancel()
	}

	if err := app.source.Close(); err != nil {
		return fmt.Errorf("error closing status source: %w", err)
	}
	logger.LogInfo("✅ UPS metric sender stopped")
	return nil
}
