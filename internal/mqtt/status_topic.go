package mqtt

import (
	"context"
)

// Availability payloads
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// PublishStatusOnline publishes the retained "online" availability
func (p *Publisher) PublishStatusOnline(ctx context.Context) error {
	return p.publish(ctx, p.topics.Status(), 1, true, StatusOnline)
}

// PublishStatusOffline publishes the retained "offline" availability
func (p *Publisher) PublishStatusOffline(ctx context.Context) error {
	return p.publish(ctx, p.topics.Status(), 1, true, StatusOffline)
}
