package metrics

import (
	"sync"
	"time"

	"ups-metric-sender/internal/logger"
)

// PerformanceTracker counts delivered and failed cycles between summaries
type PerformanceTracker struct {
	delivered       int
	failed          int
	lastSummaryTime time.Time
	summaryInterval time.Duration
	log             logger.ILogger
	now             func() time.Time
	mu              sync.Mutex
}

// PerformanceStats is a snapshot of the counters since the last summary
type PerformanceStats struct {
	Delivered   int
	Failed      int
	LastSummary time.Time
	SuccessRate float64
}

// NewPerformanceTracker creates a tracker that summarizes every summaryInterval
func NewPerformanceTracker(summaryInterval time.Duration, log logger.ILogger) *PerformanceTracker {
	if log == nil {
		log = logger.NewStandardLogger()
	}
	return &PerformanceTracker{
		lastSummaryTime: time.Now(),
		summaryInterval: summaryInterval,
		log:             log,
		now:             time.Now,
	}
}

// WithClock replaces the time source and restarts the summary interval from it
func (pt *PerformanceTracker) WithClock(now func() time.Time) *PerformanceTracker {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.now = now
	pt.lastSummaryTime = now()
	return pt
}

// RecordSuccess records a delivered cycle
func (pt *PerformanceTracker) RecordSuccess() {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.delivered++
}

// RecordError records a failed delivery
func (pt *PerformanceTracker) RecordError() {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.failed++
}

// GetStats returns current performance statistics
func (pt *PerformanceTracker) GetStats() PerformanceStats {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	stats := PerformanceStats{
		Delivered:   pt.delivered,
		Failed:      pt.failed,
		LastSummary: pt.lastSummaryTime,
	}
	if total := pt.delivered + pt.failed; total > 0 {
		stats.SuccessRate = float64(pt.delivered) / float64(total) * 100.0
	}
	return stats
}

// PrintSummaryIfNeeded logs and resets the counters once summaryInterval has passed.
// It reports whether a summary was printed.
func (pt *PerformanceTracker) PrintSummaryIfNeeded() bool {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	if pt.now().Sub(pt.lastSummaryTime) < pt.summaryInterval {
		return false
	}

	pt.log.LogInfo("📊 Summary - Delivered: %d, Failed: %d, Last %v",
		pt.delivered, pt.failed, pt.summaryInterval)

	pt.lastSummaryTime = pt.now()
	pt.delivered = 0
	pt.failed = 0
	return true
}
