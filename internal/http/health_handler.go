package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HealthStatus represents the health check response
type HealthStatus struct {
	Status              string    `json:"status"` // "healthy", "degraded", "unhealthy"
	Timestamp           time.Time `json:"timestamp"`
	Uptime              string    `json:"uptime"`
	DeviceID            string    `json:"device_id"`
	CollectorOnline     bool      `json:"collector_online"`
	LastSuccessfulPost  string    `json:"last_successful_post"`
	FailedDeliveries    int       `json:"failed_deliveries"`
	DeliveredPayloads   int       `json:"delivered_payloads"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Version             string    `json:"version,omitempty"`
}

// HealthChecker provides the collector health the handler reports
type HealthChecker interface {
	IsOnline() bool
	GetLastSuccessTime() time.Time
	GetErrorCount() int
	GetSuccessCount() int
	GetConsecutiveErrors() int
}

// HealthHandler serves /health
type HealthHandler struct {
	startTime     time.Time
	healthChecker HealthChecker
	deviceID      string
	version       string
	now           func() time.Time
}

// NewHealthHandler creates a new health check handler
func NewHealthHandler(healthChecker HealthChecker, deviceID, version string) *HealthHandler {
	return &HealthHandler{
		startTime:     time.Now(),
		healthChecker: healthChecker,
		deviceID:      deviceID,
		version:       version,
		now:           time.Now,
	}
}

// ServeHTTP implements http.Handler
func (hh *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := hh.getHealthStatus()

	w.Header().Set("Content-Type", "application/json")
	if status.Status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(status); err != nil {
		http.Error(w, fmt.Sprintf("Failed to encode health status: %v", err), http.StatusInternalServerError)
	}
}

func (hh *HealthHandler) getHealthStatus() HealthStatus {
	now := hh.now()

	online := hh.healthChecker.IsOnline()
	consecutive := hh.healthChecker.GetConsecutiveErrors()

	// unhealthy once the grace period has taken the collector offline,
	// degraded while failures are accumulating inside it
	status := "healthy"
	switch {
	case !online:
		status = "unhealthy"
	case consecutive > 0:
		status = "degraded"
	}

	return HealthStatus{
		Status:              status,
		Timestamp:           now,
		Uptime:              formatDuration(now.Sub(hh.startTime)),
		DeviceID:            hh.deviceID,
		CollectorOnline:     online,
		LastSuccessfulPost:  formatAgo(now, hh.healthChecker.GetLastSuccessTime()),
		FailedDeliveries:    hh.healthChecker.GetErrorCount(),
		DeliveredPayloads:   hh.healthChecker.GetSuccessCount(),
		ConsecutiveFailures: consecutive,
		Version:             hh.version,
	}
}

func formatAgo(now, t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	since := now.Sub(t)
	switch {
	case since < time.Minute:
		return fmt.Sprintf("%d seconds ago", int(since.Seconds()))
	case since < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(since.Minutes()))
	default:
		return fmt.Sprintf("%d hours ago", int(since.Hours()))
	}
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%d hours %d minutes", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("%d days %d hours", int(d.Hours())/24, int(d.Hours())%24)
	}
}
