// Package agent runs the acquisition loop: fetch the UPS variables, normalize
// them, build the payload, deliver it, then idle for CycleInterval.
package agent

import (
	"context"
	"errors"
	"time"

	"ups-metric-sender/internal/delivery"
	agenterrors "ups-metric-sender/internal/errors"
	"ups-metric-sender/internal/health"
	"ups-metric-sender/internal/logger"
	"ups-metric-sender/internal/metrics"
	"ups-metric-sender/internal/payload"
	"ups-metric-sender/internal/ups"
)

// CycleInterval is the idle period between the end of one delivery attempt
// and the next status query
const CycleInterval = 10 * time.Second

// SummaryInterval is how often the delivered/failed summary is logged
const SummaryInterval = 30 * time.Second

// StatusFetcher returns the variables of a named UPS
type StatusFetcher interface {
	FetchDeviceVars(ctx context.Context, device string) (map[string]string, error)
}

// Deliverer sends one payload to the collector. Failures are reported in the
// Result, never returned.
type Deliverer interface {
	Send(ctx context.Context, p payload.Payload) delivery.Result
}

// Mirror receives a copy of every payload and collector diagnostics
type Mirror interface {
	PublishMetrics(ctx context.Context, p payload.Payload) error
	PublishDiagnostic(ctx context.Context, code int, message string) error
}

// Config identifies the device the agent reports on
type Config struct {
	Device   string // name known to the status source
	DeviceID string // DeviceId sent to the collector
}

// Agent is the acquisition loop
type Agent struct {
	cfg       Config
	source    StatusFetcher
	deliverer Deliverer

	mirror  Mirror
	metrics metrics.MetricsCollector
	health  *health.CollectorHealthMonitor
	tracker *metrics.PerformanceTracker
	log     logger.ILogger
	clock   Clock
}

// Option configures an Agent
type Option func(*Agent)

// WithMirror publishes every payload to m as well
func WithMirror(m Mirror) Option {
	return func(a *Agent) { a.mirror = m }
}

// WithMetrics records agent self-metrics in m
func WithMetrics(m metrics.MetricsCollector) Option {
	return func(a *Agent) { a.metrics = m }
}

// WithHealthMonitor shares the collector health monitor with the /health endpoint
func WithHealthMonitor(h *health.CollectorHealthMonitor) Option {
	return func(a *Agent) { a.health = h }
}

// WithLogger replaces the StandardLogger
func WithLogger(l logger.ILogger) Option {
	return func(a *Agent) { a.log = l }
}

// WithClock replaces the real clock
func WithClock(c Clock) Option {
	return func(a *Agent) { a.clock = c }
}

// New creates an agent. DeviceID defaults to Device.
func New(cfg Config, source StatusFetcher, deliverer Deliverer, opts ...Option) *Agent {
	if cfg.DeviceID == "" {
		cfg.DeviceID = cfg.Device
	}

	a := &Agent{
		cfg:       cfg,
		source:    source,
		deliverer: deliverer,
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.log == nil {
		a.log = logger.NewStandardLogger()
	}
	if a.clock == nil {
		a.clock = RealClock()
	}
	if a.metrics == nil {
		a.metrics = metrics.NewNullMetrics()
	}
	if a.health == nil {
		a.health = health.NewCollectorHealthMonitor(30 * time.Second).WithClock(a.clock.Now)
	}
	a.tracker = metrics.NewPerformanceTracker(SummaryInterval, a.log).WithClock(a.clock.Now)
	return a
}

// Run executes cycles until ctx is cancelled or a cycle fails fatally.
// Cancellation returns nil; a status-source or malformed-status failure is
// returned as is.
func (a *Agent) Run(ctx context.Context) error {
	a.log.LogInfo("🔄 Acquisition loop started for %s with interval: %v", a.cfg.Device, CycleInterval)

	for {
		if ctx.Err() != nil {
			a.log.LogDebug("🔄 Acquisition loop stopped")
			return nil
		}

		if err := a.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				a.log.LogDebug("🔄 Acquisition loop stopped mid-cycle: %v", err)
				return nil
			}
			return err
		}

		select {
		case <-ctx.Done():
			a.log.LogDebug("🔄 Acquisition loop stopped")
			return nil
		case <-a.clock.After(CycleInterval):
		}
	}
}

// RunCycle performs one query, normalize, build, deliver sequence.
// Only status-source and normalization failures are returned.
func (a *Agent) RunCycle(ctx context.Context) error {
	a.log.LogInfo("🔋 Retrieving UPS metrics for %s", a.cfg.Device)

	vars, err := a.source.FetchDeviceVars(ctx, a.cfg.Device)
	if err != nil {
		var unreachable *agenterrors.DeviceUnreachableError
		if errors.As(err, &unreachable) {
			return unreachable
		}
		return agenterrors.NewDeviceUnreachableError("fetch", err, a.cfg.Device, "")
	}

	record, malformed := ups.Normalize(ups.RawStatus(vars))
	if malformed != nil {
		return malformed
	}

	a.log.LogInfo("📊 Metrics: charge=%d%% state=%q (%d) load=%d%% runtime=%ds",
		record.ChargePercent, record.ChargeStateRaw, record.ChargeStateValue,
		record.LoadPercent, record.RuntimeSeconds)
	a.metrics.ObserveRecord(record)

	p := payload.Build(record, a.cfg.DeviceID)

	result := a.deliverer.Send(ctx, p)
	a.recordDelivery(ctx, result)
	a.publishMirror(ctx, p)

	a.metrics.IncrementCycles()
	a.tracker.PrintSummaryIfNeeded()
	return nil
}

func (a *Agent) recordDelivery(ctx context.Context, result delivery.Result) {
	a.metrics.RecordDelivery(result.Delivered(), result.Duration)

	if result.Delivered() {
		a.tracker.RecordSuccess()
		if a.health.RecordSuccess() {
			a.log.LogInfo("🟢 Collector %s back ONLINE", result.Endpoint)
			a.metrics.SetCollectorStatus(true)
			a.publishDiagnostic(ctx, agenterrors.CodeOK, "Collector reachable again")
		}
		return
	}

	a.tracker.RecordError()
	if a.health.GetConsecutiveErrors() == 0 {
		a.log.LogDebug("🕐 First delivery failure, starting grace period")
	}
	if a.health.RecordFailure() {
		a.log.LogError("🔴 Collector %s marked OFFLINE after %d failed deliveries",
			result.Endpoint, a.health.GetConsecutiveErrors())
		a.metrics.SetCollectorStatus(false)
		a.publishDiagnostic(ctx, result.Err.Code, result.Err.Error())
	}
}

func (a *Agent) publishMirror(ctx context.Context, p payload.Payload) {
	if a.mirror == nil {
		return
	}
	err := a.mirror.PublishMetrics(ctx, p)
	a.metrics.RecordMirrorPublish(err == nil)
	if err != nil {
		a.log.LogWarn("MQTT mirror publish failed: %v", err)
	}
}

func (a *Agent) publishDiagnostic(ctx context.Context, code int, message string) {
	if a.mirror == nil {
		return
	}
	if err := a.mirror.PublishDiagnostic(ctx, code, message); err != nil {
		a.log.LogDebug("Failed to publish diagnostic: %v", err)
	}
}

// Health returns the collector health monitor
func (a *Agent) Health() *health.CollectorHealthMonitor {
	return a.health
}
