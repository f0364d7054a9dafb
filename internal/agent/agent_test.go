package agent

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"ups-metric-sender/internal/delivery"
	agenterrors "ups-metric-sender/internal/errors"
	"ups-metric-sender/internal/health"
	"ups-metric-sender/internal/logger"
	"ups-metric-sender/internal/payload"
)

// fakeClock advances its own time by d on every After call and fires at once
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	waits []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waits = append(c.waits, d)
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func exampleVars() map[string]string {
	return map[string]string{
		"battery.charge":  "87",
		"ups.status":      "OL",
		"ups.load":        "12",
		"battery.runtime": "1800",
		"ups.mfr":         "CPS",
	}
}

// fakeSource serves vars and calls onFetch with the 1-based fetch number
type fakeSource struct {
	mu      sync.Mutex
	vars    map[string]string
	err     error
	fetches int
	onFetch func(n int)
	devices []string
}

func (s *fakeSource) FetchDeviceVars(ctx context.Context, device string) (map[string]string, error) {
	s.mu.Lock()
	s.fetches++
	n := s.fetches
	s.devices = append(s.devices, device)
	s.mu.Unlock()

	if s.onFetch != nil {
		s.onFetch(n)
	}
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]string, len(s.vars))
	for k, v := range s.vars {
		out[k] = v
	}
	return out, nil
}

type fakeDeliverer struct {
	mu       sync.Mutex
	payloads []payload.Payload
	fail     bool
	onSend   func()
}

func (d *fakeDeliverer) Send(ctx context.Context, p payload.Payload) delivery.Result {
	d.mu.Lock()
	d.payloads = append(d.payloads, p)
	d.mu.Unlock()

	if d.onSend != nil {
		d.onSend()
	}
	if d.fail {
		return delivery.Result{
			Endpoint: "http://collector/api/metrics",
			Err:      agenterrors.NewDeliveryError("post", errors.New("connection refused"), "http://collector/api/metrics"),
		}
	}
	return delivery.Result{Endpoint: "http://collector/api/metrics", StatusCode: 200}
}

type fakeMirror struct {
	mu          sync.Mutex
	payloads    []payload.Payload
	diagnostics []int
	err         error
}

func (m *fakeMirror) PublishMetrics(ctx context.Context, p payload.Payload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads = append(m.payloads, p)
	return m.err
}

func (m *fakeMirror) PublishDiagnostic(ctx context.Context, code int, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.diagnostics = append(m.diagnostics, code)
	return nil
}

func TestRunCycle_DeliversNormalizedPayload(t *testing.T) {
	source := &fakeSource{vars: exampleVars()}
	deliverer := &fakeDeliverer{}
	log := logger.NewMockLogger()

	a := New(Config{Device: "myups", DeviceID: "office"}, source, deliverer, WithLogger(log))

	if err := a.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}

	want := payload.Payload{
		DeviceID: "office",
		Metrics:  payload.Metrics{ChargePercent: 87, ChargeStateValue: 5, LoadPercent: 12, RuntimeSecond: 1800},
	}
	if len(deliverer.payloads) != 1 || deliverer.payloads[0] != want {
		t.Fatalf("delivered %+v, want [%+v]", deliverer.payloads, want)
	}
	if source.devices[0] != "myups" {
		t.Errorf("queried device %q, want myups", source.devices[0])
	}
	if !log.HasInfoContaining("Retrieving UPS metrics for myups") {
		t.Errorf("missing query log line, got %v", log.Infos())
	}
	if !log.HasInfoContaining(`state="OL" (5)`) {
		t.Errorf("missing metric record log line, got %v", log.Infos())
	}
}

func TestNew_DeviceIDDefaultsToDevice(t *testing.T) {
	deliverer := &fakeDeliverer{}
	a := New(Config{Device: "myups"}, &fakeSource{vars: exampleVars()}, deliverer, WithLogger(logger.NewMockLogger()))

	if err := a.RunCycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if deliverer.payloads[0].DeviceID != "myups" {
		t.Errorf("DeviceID = %q, want myups", deliverer.payloads[0].DeviceID)
	}
}

func TestRun_WaitsIntervalBetweenDeliveryAndNextQuery(t *testing.T) {
	clock := newFakeClock()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var fetchTimes, sendTimes []time.Time

	source := &fakeSource{vars: exampleVars()}
	source.onFetch = func(n int) {
		mu.Lock()
		fetchTimes = append(fetchTimes, clock.Now())
		mu.Unlock()
	}
	deliverer := &fakeDeliverer{}
	deliverer.onSend = func() {
		// a slow collector must not shorten the idle period
		clock.advance(3 * time.Second)
		mu.Lock()
		sendTimes = append(sendTimes, clock.Now())
		n := len(sendTimes)
		mu.Unlock()
		if n == 4 {
			cancel()
		}
	}

	a := New(Config{Device: "myups"}, source, deliverer, WithClock(clock), WithLogger(logger.NewMockLogger()))
	if err := a.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(fetchTimes) < 4 {
		t.Fatalf("fetches = %d, want at least 4", len(fetchTimes))
	}
	for i := 1; i < len(fetchTimes); i++ {
		gap := fetchTimes[i].Sub(sendTimes[i-1])
		if gap < CycleInterval {
			t.Errorf("cycle %d started %v after previous delivery, want >= %v", i, gap, CycleInterval)
		}
	}
	for _, w := range clock.waits {
		if w != CycleInterval {
			t.Errorf("idle wait = %v, want %v", w, CycleInterval)
		}
	}
}

func TestRun_ConnectionRefusedDoesNotStopLoop(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/api/metrics"
	srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := logger.NewMockLogger()
	source := &fakeSource{vars: exampleVars()}
	source.onFetch = func(n int) {
		if n == 3 {
			cancel()
		}
	}
	client := delivery.NewClient(url, delivery.WithLogger(log), delivery.WithTimeout(2*time.Second))

	a := New(Config{Device: "myups"}, source, client, WithClock(newFakeClock()), WithLogger(log))
	if err := a.Run(ctx); err != nil {
		t.Fatalf("Run() returned %v, delivery failures must not escape", err)
	}

	if source.fetches != 3 {
		t.Errorf("fetches = %d, want 3", source.fetches)
	}
	if !log.HasWarnContaining("Error posting to " + url) {
		t.Errorf("expected delivery warning, got %v", log.Warnings())
	}
}

func TestRun_StatusSourceFailureIsFatal(t *testing.T) {
	source := &fakeSource{err: errors.New("connection reset by peer")}
	deliverer := &fakeDeliverer{}

	a := New(Config{Device: "myups"}, source, deliverer, WithClock(newFakeClock()), WithLogger(logger.NewMockLogger()))
	err := a.Run(context.Background())

	var unreachable *agenterrors.DeviceUnreachableError
	if !errors.As(err, &unreachable) {
		t.Fatalf("Run() error = %v, want DeviceUnreachableError", err)
	}
	if unreachable.Device != "myups" {
		t.Errorf("Device = %q, want myups", unreachable.Device)
	}
	if !agenterrors.IsFatal(err) {
		t.Error("status source failure must be fatal")
	}
	if len(deliverer.payloads) != 0 {
		t.Errorf("delivered %d payloads after a failed query", len(deliverer.payloads))
	}
}

func TestRun_SourceErrorKeepsItsKind(t *testing.T) {
	original := agenterrors.UnknownDeviceError("myups", "localhost:3493", []string{"rack"})
	a := New(Config{Device: "myups"}, &fakeSource{err: original}, &fakeDeliverer{}, WithLogger(logger.NewMockLogger()))

	err := a.RunCycle(context.Background())
	if err != original {
		t.Errorf("RunCycle() = %v, want the source's own error", err)
	}
}

func TestRun_MalformedStatusIsFatal(t *testing.T) {
	vars := exampleVars()
	delete(vars, "battery.runtime")
	deliverer := &fakeDeliverer{}

	a := New(Config{Device: "myups"}, &fakeSource{vars: vars}, deliverer, WithClock(newFakeClock()), WithLogger(logger.NewMockLogger()))
	err := a.Run(context.Background())

	var malformed *agenterrors.MalformedStatusError
	if !errors.As(err, &malformed) {
		t.Fatalf("Run() error = %v, want MalformedStatusError", err)
	}
	if malformed.Key != "battery.runtime" {
		t.Errorf("Key = %q, want battery.runtime", malformed.Key)
	}
	if len(deliverer.payloads) != 0 {
		t.Error("no payload may be built from malformed status")
	}
}

func TestRun_MirrorReceivesPayloadAndFailureIsIgnored(t *testing.T) {
	mirror := &fakeMirror{err: errors.New("not connected")}
	log := logger.NewMockLogger()

	a := New(Config{Device: "myups"}, &fakeSource{vars: exampleVars()}, &fakeDeliverer{}, WithMirror(mirror), WithLogger(log))
	if err := a.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}

	if len(mirror.payloads) != 1 || mirror.payloads[0].DeviceID != "myups" {
		t.Errorf("mirror payloads = %+v", mirror.payloads)
	}
	if !log.HasWarnContaining("not connected") {
		t.Errorf("expected mirror warning, got %v", log.Warnings())
	}
}

func TestRun_CollectorGoesOfflineAfterGracePeriod(t *testing.T) {
	clock := newFakeClock()
	monitor := health.NewCollectorHealthMonitor(30 * time.Second).WithClock(clock.Now)
	mirror := &fakeMirror{}
	deliverer := &fakeDeliverer{fail: true}

	a := New(Config{Device: "myups"}, &fakeSource{vars: exampleVars()}, deliverer,
		WithClock(clock), WithHealthMonitor(monitor), WithMirror(mirror), WithLogger(logger.NewMockLogger()))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := a.RunCycle(ctx); err != nil {
			t.Fatal(err)
		}
		clock.advance(CycleInterval)
	}
	if !monitor.IsOnline() {
		t.Fatal("collector went offline inside the grace period")
	}

	if err := a.RunCycle(ctx); err != nil {
		t.Fatal(err)
	}
	if monitor.IsOnline() {
		t.Fatal("collector should be offline after 30s of failures")
	}
	if len(mirror.diagnostics) != 1 || mirror.diagnostics[0] != agenterrors.CodeDelivery {
		t.Errorf("diagnostics = %v, want [%d]", mirror.diagnostics, agenterrors.CodeDelivery)
	}

	deliverer.fail = false
	if err := a.RunCycle(ctx); err != nil {
		t.Fatal(err)
	}
	if !monitor.IsOnline() {
		t.Error("successful delivery should bring the collector back online")
	}
	if len(mirror.diagnostics) != 2 || mirror.diagnostics[1] != agenterrors.CodeOK {
		t.Errorf("diagnostics = %v, want recovery code %d", mirror.diagnostics, agenterrors.CodeOK)
	}
}
