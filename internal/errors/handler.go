package errors

import (
	"context"
	"fmt"

	"ups-metric-sender/internal/logger"
)

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	diagnosticPublisher DiagnosticPublisher
}

// DiagnosticPublisher interface for publishing diagnostics
type DiagnosticPublisher interface {
	PublishDiagnostic(ctx context.Context, code int, message string) error
}

// NewErrorHandler creates a new error handler. publisher may be nil.
func NewErrorHandler(publisher DiagnosticPublisher) *ErrorHandler {
	return &ErrorHandler{
		diagnosticPublisher: publisher,
	}
}

// Handle processes an error with appropriate logging and diagnostics
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil {
		return
	}

	switch e := err.(type) {
	case *DeviceUnreachableError:
		logger.LogError("🔴 CRITICAL Status Source Error: %s", e.Error())
		h.publish(ctx, e.Code, fmt.Sprintf("UPS '%s' unreachable: %s", e.Device, e.Op))
	case *MalformedStatusError:
		logger.LogError("🔴 CRITICAL Malformed Status: %s", e.Error())
		h.publish(ctx, e.Code, fmt.Sprintf("Malformed status key '%s'", e.Key))
	case *DeliveryError:
		logger.LogWarn("Delivery Warning: %s", e.Error())
		h.publish(ctx, e.Code, fmt.Sprintf("Delivery to %s failed: %s", e.Endpoint, e.Op))
	case *ConfigError:
		logger.LogError("🔴 CRITICAL Configuration Error: %s", e.Error())
		h.publish(ctx, e.Code, fmt.Sprintf("Config field '%s': %s", e.Field, e.Op))
	case *AgentError:
		h.handleAgentError(ctx, e)
	default:
		logger.LogError("Untyped Error: %v", err)
		h.publish(ctx, CodeGeneric, err.Error())
	}
}

// handleAgentError handles generic agent errors
func (h *ErrorHandler) handleAgentError(ctx context.Context, err *AgentError) {
	switch err.Severity {
	case SeverityCritical:
		logger.LogError("🔴 CRITICAL Error: %s", err.Error())
	case SeverityError:
		logger.LogError("Error: %s", err.Error())
	case SeverityWarning:
		logger.LogWarn("Warning: %s", err.Error())
	default:
		logger.LogInfo("Info: %s", err.Error())
	}
	h.publish(ctx, err.Code, err.Op)
}

func (h *ErrorHandler) publish(ctx context.Context, code int, message string) {
	if h.diagnosticPublisher == nil {
		return
	}
	if publishErr := h.diagnosticPublisher.PublishDiagnostic(ctx, code, message); publishErr != nil {
		logger.LogDebug("Failed to publish error diagnostic: %v", publishErr)
	}
}
