package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"ups-metric-sender/internal/logger"
	"ups-metric-sender/internal/payload"
	"ups-metric-sender/internal/recovery"
)

func samplePayload() payload.Payload {
	return payload.Payload{
		DeviceID: "myups",
		Metrics: payload.Metrics{
			ChargePercent:    87,
			ChargeStateValue: 5,
			LoadPercent:      12,
			RuntimeSecond:    1800,
		},
	}
}

type capturedRequest struct {
	method      string
	path        string
	contentType string
	body        []byte
}

func newCollector(t *testing.T, status int) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var mu sync.Mutex
	var requests []capturedRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		requests = append(requests, capturedRequest{
			method:      r.Method,
			path:        r.URL.Path,
			contentType: r.Header.Get("Content-Type"),
			body:        body,
		})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func TestSend_PostsJSON(t *testing.T) {
	srv, requests := newCollector(t, http.StatusOK)
	log := logger.NewMockLogger()
	client := NewClient(srv.URL+"/api/metrics", WithLogger(log))

	result := client.Send(context.Background(), samplePayload())

	if !result.Delivered() {
		t.Fatalf("expected delivery, got %v", result.Err)
	}
	if result.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", result.StatusCode)
	}
	if len(*requests) != 1 {
		t.Fatalf("collector saw %d requests, want 1", len(*requests))
	}

	req := (*requests)[0]
	if req.method != http.MethodPost || req.path != "/api/metrics" {
		t.Errorf("got %s %s, want POST /api/metrics", req.method, req.path)
	}
	if req.contentType != "application/json" {
		t.Errorf("Content-Type = %q", req.contentType)
	}

	var got payload.Payload
	if err := json.Unmarshal(req.body, &got); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if got != samplePayload() {
		t.Errorf("body = %+v, want %+v", got, samplePayload())
	}

	if !log.HasInfoContaining("response code: 200") {
		t.Errorf("info messages = %v", log.Infos())
	}
}

func TestSend_ServerErrorStillDelivered(t *testing.T) {
	srv, _ := newCollector(t, http.StatusInternalServerError)
	log := logger.NewMockLogger()
	client := NewClient(srv.URL+"/api/metrics", WithLogger(log))

	result := client.Send(context.Background(), samplePayload())

	if !result.Delivered() {
		t.Fatalf("a 500 response is still delivered, got %v", result.Err)
	}
	if result.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", result.StatusCode)
	}
	if log.HasWarnMessage() {
		t.Errorf("unexpected warnings: %v", log.Warnings())
	}
}

func TestSend_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/api/metrics"
	srv.Close()

	log := logger.NewMockLogger()
	client := NewClient(url, WithLogger(log), WithTimeout(2*time.Second))

	result := client.Send(context.Background(), samplePayload())

	if result.Delivered() {
		t.Fatal("expected delivery failure against closed server")
	}
	if result.Err.Endpoint != url {
		t.Errorf("Endpoint = %q, want %q", result.Err.Endpoint, url)
	}
	if !log.HasWarnContaining("Error posting to " + url) {
		t.Errorf("warn messages = %v", log.Warnings())
	}
}

func TestSend_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	client := NewClient(srv.URL, WithLogger(logger.NewMockLogger()), WithTimeout(50*time.Millisecond))

	result := client.Send(context.Background(), samplePayload())
	if result.Delivered() {
		t.Fatal("expected timeout to be reported as a delivery failure")
	}
}

func TestSend_OpenCircuitSkipsNetwork(t *testing.T) {
	srv, requests := newCollector(t, http.StatusOK)
	cb := recovery.NewCircuitBreaker(recovery.CircuitBreakerConfig{MaxFailures: 1, Timeout: time.Hour})
	_ = cb.Call(func() error { return errors.New("earlier failure") })

	log := logger.NewMockLogger()
	client := NewClient(srv.URL, WithLogger(log), WithCircuitBreaker(cb))
	result := client.Send(context.Background(), samplePayload())

	if result.Delivered() {
		t.Fatal("open circuit should report a delivery failure")
	}
	if !errors.Is(result.Err, recovery.ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", result.Err)
	}
	if result.Err.Op != "skip" {
		t.Errorf("Op = %q, want skip", result.Err.Op)
	}
	if !log.HasWarnContaining("Skipped POST to " + srv.URL) {
		t.Errorf("warnings = %v, want a skipped line", log.Warnings())
	}
	if log.HasWarnContaining("Error posting") {
		t.Errorf("a skipped cycle must not be logged as a failed POST: %v", log.Warnings())
	}
	if len(*requests) != 0 {
		t.Errorf("collector saw %d requests, want 0", len(*requests))
	}
}
