package health

import (
	"sync"
	"time"

	"ups-metric-sender/internal/recovery"
)

// CollectorHealthMonitor decides whether the collector is online from the
// stream of delivery outcomes. A run of failures only takes the collector
// offline once it outlasts the grace period.
type CollectorHealthMonitor struct {
	isOnline        bool
	lastSuccessTime time.Time
	lastFailureTime time.Time
	successCount    int
	failureCount    int
	window          *recovery.FailureWindow
	now             func() time.Time
	mu              sync.RWMutex
}

// NewCollectorHealthMonitor creates a monitor that starts online
func NewCollectorHealthMonitor(gracePeriod time.Duration) *CollectorHealthMonitor {
	return &CollectorHealthMonitor{
		isOnline: true,
		window:   recovery.NewFailureWindow(gracePeriod),
		now:      time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (m *CollectorHealthMonitor) WithClock(now func() time.Time) *CollectorHealthMonitor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
	m.window.WithClock(now)
	return m
}

// RecordSuccess records a delivered payload. It reports true when this
// success brings the collector back online.
func (m *CollectorHealthMonitor) RecordSuccess() (cameOnline bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.successCount++
	m.lastSuccessTime = m.now()
	m.window.RecordSuccess()

	cameOnline = !m.isOnline
	m.isOnline = true
	return cameOnline
}

// RecordFailure records a failed delivery. It reports true when this failure
// takes the collector offline.
func (m *CollectorHealthMonitor) RecordFailure() (wentOffline bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failureCount++
	m.lastFailureTime = m.now()
	m.window.RecordFailure()

	if m.window.ShouldMarkOffline() {
		m.window.MarkOffline()
		m.isOnline = false
		return true
	}
	return false
}

// IsOnline returns whether the collector is currently marked as online
func (m *CollectorHealthMonitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isOnline
}

// GetLastSuccessTime returns the time of the last delivered payload
func (m *CollectorHealthMonitor) GetLastSuccessTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSuccessTime
}

// GetLastFailureTime returns the time of the last failed delivery
func (m *CollectorHealthMonitor) GetLastFailureTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastFailureTime
}

// GetErrorCount returns the total failed deliveries
func (m *CollectorHealthMonitor) GetErrorCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.failureCount
}

// GetSuccessCount returns the total delivered payloads
func (m *CollectorHealthMonitor) GetSuccessCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.successCount
}

// GetConsecutiveErrors returns the length of the current failure run
func (m *CollectorHealthMonitor) GetConsecutiveErrors() int {
	return m.window.ConsecutiveFailures()
}

// IsInGracePeriod returns true while failures have not yet taken the collector offline
func (m *CollectorHealthMonitor) IsInGracePeriod() bool {
	return m.window.InGracePeriod()
}
