package recovery

import (
	"sync"
	"time"
)

// FailureWindow tracks a run of consecutive failures and reports when the run
// has lasted longer than the grace period. A success closes the window.
type FailureWindow struct {
	consecutive   int
	firstFailure  time.Time
	gracePeriod   time.Duration
	markedOffline bool

	now func() time.Time
	mu  sync.Mutex
}

// NewFailureWindow creates a window with the given grace period (default 30s)
func NewFailureWindow(gracePeriod time.Duration) *FailureWindow {
	if gracePeriod <= 0 {
		gracePeriod = 30 * time.Second
	}
	return &FailureWindow{gracePeriod: gracePeriod, now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (w *FailureWindow) WithClock(now func() time.Time) *FailureWindow {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.now = now
	return w
}

// RecordFailure records a failure and reports whether the grace period has expired
func (w *FailureWindow) RecordFailure() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.consecutive++
	if w.firstFailure.IsZero() {
		w.firstFailure = w.now()
	}
	return w.now().Sub(w.firstFailure) >= w.gracePeriod
}

// RecordSuccess closes the window
func (w *FailureWindow) RecordSuccess() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.consecutive = 0
	w.firstFailure = time.Time{}
	w.markedOffline = false
}

// ConsecutiveFailures returns the length of the current failure run
func (w *FailureWindow) ConsecutiveFailures() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.consecutive
}

// ShouldMarkOffline is true once per failure run, after the grace period expires
func (w *FailureWindow) ShouldMarkOffline() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.markedOffline || w.firstFailure.IsZero() {
		return false
	}
	return w.now().Sub(w.firstFailure) >= w.gracePeriod
}

// MarkOffline suppresses further ShouldMarkOffline reports for this run
func (w *FailureWindow) MarkOffline() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.markedOffline = true
}

// InGracePeriod is true while a failure run is younger than the grace period
func (w *FailureWindow) InGracePeriod() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.firstFailure.IsZero() {
		return false
	}
	return w.now().Sub(w.firstFailure) < w.gracePeriod
}
