package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// DiagnosticMessage is the JSON body published on the diagnostic topic
type DiagnosticMessage struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// PublishDiagnostic publishes a diagnostic event. Code 0 means OK.
func (p *Publisher) PublishDiagnostic(ctx context.Context, code int, message string) error {
	body, err := json.Marshal(DiagnosticMessage{
		Code:      code,
		Message:   message,
		Timestamp: p.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("error serializing diagnostic: %w", err)
	}
	return p.publish(ctx, p.topics.Diagnostic(), 0, false, body)
}
