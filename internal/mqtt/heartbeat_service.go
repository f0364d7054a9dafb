package mqtt

import (
	"context"
	"time"

	"ups-metric-sender/internal/logger"
)

// HeartbeatService republishes the retained "online" status periodically
type HeartbeatService struct {
	publisher *Publisher
	interval  time.Duration
}

// NewHeartbeatService creates a new heartbeat service
func NewHeartbeatService(publisher *Publisher, interval time.Duration) *HeartbeatService {
	if interval <= 0 {
		interval = 20 * time.Second
	}
	return &HeartbeatService{publisher: publisher, interval: interval}
}

// Start runs until ctx is cancelled
func (s *HeartbeatService) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger.LogInfo("💓 Heartbeat service started with interval: %v", s.interval)

	for {
		select {
		case <-ctx.Done():
			logger.LogDebug("🔇 Heartbeat service stopped")
			return
		case <-ticker.C:
			s.sendHeartbeat(ctx)
		}
	}
}

func (s *HeartbeatService) sendHeartbeat(ctx context.Context) {
	if err := s.publisher.PublishStatusOnline(ctx); err != nil {
		logger.LogDebug("💔 Heartbeat failed: %v", err)
		return
	}
	logger.LogDebug("💓 Heartbeat sent: online")
}
