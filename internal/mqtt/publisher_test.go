package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"ups-metric-sender/internal/config"
	"ups-metric-sender/internal/payload"
	"ups-metric-sender/internal/ups"
)

type fakeToken struct {
	err  error
	done chan struct{}
}

func newFakeToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	body     string
}

// fakeClient overrides only what the publisher uses
type fakeClient struct {
	paho.Client

	mu           sync.Mutex
	connected    bool
	connectErrs  []error
	connects     int
	publishErr   error
	messages     []published
	disconnected bool
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) Connect() paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	var err error
	if c.connects < len(c.connectErrs) {
		err = c.connectErrs[c.connects]
	}
	c.connects++
	if err == nil {
		c.connected = true
	}
	return newFakeToken(err)
}

func (c *fakeClient) Disconnect(quiesce uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.disconnected = true
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, body interface{}) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	var s string
	switch b := body.(type) {
	case string:
		s = b
	case []byte:
		s = string(b)
	}
	c.messages = append(c.messages, published{topic, qos, retained, s})
	return newFakeToken(c.publishErr)
}

func newTestPublisher(client *fakeClient) *Publisher {
	settings := config.MQTTSettings{TopicPrefix: "ups-metric-sender", RetryDelay: time.Millisecond}
	p := newPublisher(client, settings, Topics{Prefix: "ups-metric-sender", DeviceID: "myups"})
	p.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return p
}

func TestTopics(t *testing.T) {
	topics := Topics{Prefix: "ups", DeviceID: "rack-1"}
	if got := topics.Metrics(); got != "ups/rack-1/metrics" {
		t.Errorf("Metrics() = %q", got)
	}
	if got := topics.Status(); got != "ups/status" {
		t.Errorf("Status() = %q", got)
	}
	if got := topics.Diagnostic(); got != "ups/diagnostic" {
		t.Errorf("Diagnostic() = %q", got)
	}
}

func TestPublishMetricsMirrorsPayload(t *testing.T) {
	client := &fakeClient{connected: true}
	p := newTestPublisher(client)

	record := &ups.MetricRecord{ChargePercent: 87, ChargeStateValue: 5, ChargeStateRaw: "OL", LoadPercent: 12, RuntimeSeconds: 1800}
	pl := payload.Build(record, "myups")
	want, _ := pl.JSON()

	if err := p.PublishMetrics(context.Background(), pl); err != nil {
		t.Fatalf("PublishMetrics() error = %v", err)
	}
	if len(client.messages) != 1 {
		t.Fatalf("published %d messages, want 1", len(client.messages))
	}
	msg := client.messages[0]
	if msg.topic != "ups-metric-sender/myups/metrics" {
		t.Errorf("topic = %q", msg.topic)
	}
	if msg.retained {
		t.Error("metrics must not be retained")
	}
	if msg.body != string(want) {
		t.Errorf("body = %s, want %s", msg.body, want)
	}
}

func TestPublishDiagnostic(t *testing.T) {
	client := &fakeClient{connected: true}
	p := newTestPublisher(client)

	if err := p.PublishDiagnostic(context.Background(), 4, "Delivery failed"); err != nil {
		t.Fatalf("PublishDiagnostic() error = %v", err)
	}

	msg := client.messages[0]
	if msg.topic != "ups-metric-sender/diagnostic" {
		t.Errorf("topic = %q", msg.topic)
	}
	var got DiagnosticMessage
	if err := json.Unmarshal([]byte(msg.body), &got); err != nil {
		t.Fatalf("invalid diagnostic JSON %q: %v", msg.body, err)
	}
	want := DiagnosticMessage{Code: 4, Message: "Delivery failed", Timestamp: "2024-05-01T12:00:00Z"}
	if got != want {
		t.Errorf("diagnostic = %+v, want %+v", got, want)
	}
}

func TestPublishWhenDisconnected(t *testing.T) {
	client := &fakeClient{}
	p := newTestPublisher(client)

	if err := p.PublishStatusOnline(context.Background()); err == nil {
		t.Error("expected error when not connected")
	}
	if len(client.messages) != 0 {
		t.Errorf("nothing should be published, got %v", client.messages)
	}
}

func TestPublishErrorIsReturned(t *testing.T) {
	client := &fakeClient{connected: true, publishErr: fmt.Errorf("broker gone")}
	p := newTestPublisher(client)

	if err := p.PublishStatusOnline(context.Background()); err == nil {
		t.Error("expected publish error to be returned")
	}
}

func TestConnectRetries(t *testing.T) {
	client := &fakeClient{connectErrs: []error{fmt.Errorf("refused"), fmt.Errorf("refused")}}
	p := newTestPublisher(client)

	if err := p.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if client.connects != 3 {
		t.Errorf("connect attempts = %d, want 3", client.connects)
	}
}

func TestConnectCancelled(t *testing.T) {
	errs := make([]error, 100)
	for i := range errs {
		errs[i] = fmt.Errorf("refused")
	}
	client := &fakeClient{connectErrs: errs}
	p := newTestPublisher(client)
	p.settings.RetryDelay = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := p.Connect(ctx); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestDisconnectPublishesOffline(t *testing.T) {
	client := &fakeClient{connected: true}
	p := newTestPublisher(client)

	p.Disconnect(context.Background())

	if !client.disconnected {
		t.Error("client was not disconnected")
	}
	if len(client.messages) != 1 {
		t.Fatalf("published %d messages, want 1", len(client.messages))
	}
	msg := client.messages[0]
	if msg.topic != "ups-metric-sender/status" || msg.body != StatusOffline || !msg.retained {
		t.Errorf("offline message = %+v", msg)
	}
}

func TestHeartbeatPublishesOnline(t *testing.T) {
	client := &fakeClient{connected: true}
	p := newTestPublisher(client)
	hb := NewHeartbeatService(p, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	hb.Start(ctx)

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.messages) == 0 {
		t.Fatal("heartbeat published nothing")
	}
	for _, m := range client.messages {
		if m.topic != "ups-metric-sender/status" || m.body != StatusOnline {
			t.Errorf("unexpected heartbeat message %+v", m)
		}
	}
}
