package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"

	"ups-metric-sender/internal/config"
	"ups-metric-sender/internal/delivery"
	agenterrors "ups-metric-sender/internal/errors"
	"ups-metric-sender/internal/payload"
)

type fakeSource struct {
	names    []string
	vars     map[string]string
	fetchErr error
	closed   bool
}

func (s *fakeSource) ListDeviceNames(ctx context.Context) ([]string, error) {
	return s.names, nil
}

func (s *fakeSource) FetchDeviceVars(ctx context.Context, device string) (map[string]string, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return s.vars, nil
}

func (s *fakeSource) Address() string { return "fake:3493" }

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

type fakeDeliverer struct {
	mu       sync.Mutex
	payloads []payload.Payload
	onSend   func()
}

func (d *fakeDeliverer) Send(ctx context.Context, p payload.Payload) delivery.Result {
	d.mu.Lock()
	d.payloads = append(d.payloads, p)
	d.mu.Unlock()
	if d.onSend != nil {
		d.onSend()
	}
	return delivery.Result{Endpoint: "http://collector:8080/api/metrics", StatusCode: 200}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadConfigFromString("api:\n  host: collector\n  port: 8080\n")
	if err != nil {
		t.Fatalf("LoadConfigFromString() error = %v", err)
	}
	return cfg
}

func healthyVars() map[string]string {
	return map[string]string{
		"battery.charge":  "87",
		"ups.status":      "OL",
		"ups.load":        "12",
		"battery.runtime": "1800",
		"ups.mfr":         "APC",
		"ups.model":       "Back-UPS 700",
	}
}

func TestBuildRejectsUnknownDevice(t *testing.T) {
	src := &fakeSource{names: []string{"rack"}}
	_, err := NewApplicationBuilder(testConfig(t)).WithSource(src).Build(context.Background())

	var unreachable *agenterrors.DeviceUnreachableError
	if !errors.As(err, &unreachable) {
		t.Fatalf("Build() error = %v, want DeviceUnreachableError", err)
	}
	if !strings.Contains(err.Error(), "rack") {
		t.Errorf("error should list valid names, got %q", err.Error())
	}
	if !src.closed {
		t.Error("source should be closed when the device is unknown")
	}
}

func TestDumpAndInfo(t *testing.T) {
	src := &fakeSource{names: []string{"myups"}, vars: healthyVars()}
	app, err := NewApplicationBuilder(testConfig(t)).WithSource(src).Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	var dump bytes.Buffer
	if err := app.Dump(context.Background(), &dump); err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	if !strings.HasPrefix(dump.String(), "battery.charge: 87\n") {
		t.Errorf("dump output = %q", dump.String())
	}

	var info bytes.Buffer
	if err := app.Info(context.Background(), &info); err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	if !strings.Contains(info.String(), "Back-UPS 700") {
		t.Errorf("info output = %q", info.String())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	src := &fakeSource{names: []string{"myups"}, vars: healthyVars()}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	deliverer := &fakeDeliverer{onSend: cancel}

	app, err := NewApplicationBuilder(testConfig(t)).
		WithSource(src).
		WithDeliverer(deliverer).
		Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if err := app.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v, want nil after cancel", err)
	}
	if len(deliverer.payloads) != 1 {
		t.Fatalf("delivered %d payloads, want 1", len(deliverer.payloads))
	}
	if deliverer.payloads[0].DeviceID != "myups" {
		t.Errorf("DeviceId = %q", deliverer.payloads[0].DeviceID)
	}

	if err := app.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !src.closed {
		t.Error("Close() should close the source")
	}
}

func TestRunReturnsSourceFailure(t *testing.T) {
	src := &fakeSource{names: []string{"myups"}, fetchErr: fmt.Errorf("connection reset")}
	deliverer := &fakeDeliverer{}

	app, err := NewApplicationBuilder(testConfig(t)).
		WithSource(src).
		WithDeliverer(deliverer).
		Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	err = app.Run(context.Background())
	if !agenterrors.IsFatal(err) {
		t.Fatalf("Run() error = %v, want fatal", err)
	}
	if len(deliverer.payloads) != 0 {
		t.Errorf("nothing should be delivered, got %d", len(deliverer.payloads))
	}
}

func TestOpenSourceUnknownType(t *testing.T) {
	_, err := OpenSource(context.Background(), config.SourceSettings{Type: "modbus"})
	var cfgErr *agenterrors.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("OpenSource() error = %v, want ConfigError", err)
	}
}

func TestOpenSourceNUTRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	src, err := OpenSource(context.Background(), config.SourceSettings{
		Type: config.SourceNUT,
		NUT:  config.NUTConfig{Host: "127.0.0.1", Port: port, Timeout: 1},
	})
	if src != nil {
		t.Error("no source should be returned on failure")
	}
	var unreachable *agenterrors.DeviceUnreachableError
	if !errors.As(err, &unreachable) {
		t.Fatalf("OpenSource() error = %v, want DeviceUnreachableError", err)
	}
}
