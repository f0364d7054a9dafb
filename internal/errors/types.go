package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorSeverity defines the severity level of an error
type ErrorSeverity int

const (
	SeverityInfo ErrorSeverity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

// String returns the string representation of the severity
func (s ErrorSeverity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Diagnostic codes published alongside errors
const (
	CodeOK                = 0
	CodeConfig            = 1
	CodeDeviceUnreachable = 2
	CodeMalformedStatus   = 3
	CodeDelivery          = 4
	CodeGeneric           = 99
)

// AgentError is the base error type for all agent errors
type AgentError struct {
	Op       string        // Operation that failed
	Err      error         // Underlying error
	Severity ErrorSeverity // Error severity
	Code     int           // Diagnostic code
}

// Error implements the error interface
func (e *AgentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Severity, e.Op, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Severity, e.Op)
}

// Unwrap returns the underlying error
func (e *AgentError) Unwrap() error {
	return e.Err
}

// DeviceUnreachableError means the status source could not be contacted,
// or it does not know the requested device.
type DeviceUnreachableError struct {
	AgentError
	Device string
	Source string // address of the status server
}

// NewDeviceUnreachableError creates a new device-unreachable error
func NewDeviceUnreachableError(op string, err error, device, source string) *DeviceUnreachableError {
	return &DeviceUnreachableError{
		AgentError: AgentError{
			Op:       op,
			Err:      err,
			Severity: SeverityCritical,
			Code:     CodeDeviceUnreachable,
		},
		Device: device,
		Source: source,
	}
}

// Error implements the error interface
func (e *DeviceUnreachableError) Error() string {
	if e.Device == "" {
		return fmt.Sprintf("[%s] Status source %s: %s: %v", e.Severity, e.Source, e.Op, e.Err)
	}
	if e.Source != "" {
		return fmt.Sprintf("[%s] UPS '%s' at %s: %s: %v",
			e.Severity, e.Device, e.Source, e.Op, e.Err)
	}
	return fmt.Sprintf("[%s] UPS '%s': %s: %v", e.Severity, e.Device, e.Op, e.Err)
}

// MalformedStatusError means a required status variable is absent or not an integer
type MalformedStatusError struct {
	AgentError
	Key     string
	Value   string
	Missing bool
}

// NewMissingKeyError reports a required status key that was not returned
func NewMissingKeyError(key string) *MalformedStatusError {
	return &MalformedStatusError{
		AgentError: AgentError{
			Op:       "normalize",
			Err:      fmt.Errorf("required key is absent"),
			Severity: SeverityCritical,
			Code:     CodeMalformedStatus,
		},
		Key:     key,
		Missing: true,
	}
}

// NewInvalidValueError reports a status value that failed to parse
func NewInvalidValueError(key, value string, err error) *MalformedStatusError {
	return &MalformedStatusError{
		AgentError: AgentError{
			Op:       "normalize",
			Err:      err,
			Severity: SeverityCritical,
			Code:     CodeMalformedStatus,
		},
		Key:   key,
		Value: value,
	}
}

// Error implements the error interface
func (e *MalformedStatusError) Error() string {
	if e.Missing {
		return fmt.Sprintf("[%s] Status key '%s': %v", e.Severity, e.Key, e.Err)
	}
	return fmt.Sprintf("[%s] Status key '%s' has value %q: %v", e.Severity, e.Key, e.Value, e.Err)
}

// DeliveryError means a payload never reached the collector or no response came back
type DeliveryError struct {
	AgentError
	Endpoint string
}

// NewDeliveryError creates a new delivery error
func NewDeliveryError(op string, err error, endpoint string) *DeliveryError {
	return &DeliveryError{
		AgentError: AgentError{
			Op:       op,
			Err:      err,
			Severity: SeverityWarning,
			Code:     CodeDelivery,
		},
		Endpoint: endpoint,
	}
}

// Error implements the error interface
func (e *DeliveryError) Error() string {
	return fmt.Sprintf("[%s] Collector %s: %s: %v", e.Severity, e.Endpoint, e.Op, e.Err)
}

// ConfigError represents configuration errors
type ConfigError struct {
	AgentError
	Field string
}

// NewConfigError creates a new configuration error
func NewConfigError(op string, err error, field string) *ConfigError {
	return &ConfigError{
		AgentError: AgentError{
			Op:       op,
			Err:      err,
			Severity: SeverityCritical,
			Code:     CodeConfig,
		},
		Field: field,
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] Configuration field '%s': %s: %v",
			e.Severity, e.Field, e.Op, e.Err)
	}
	return fmt.Sprintf("[%s] Configuration: %s: %v", e.Severity, e.Op, e.Err)
}

// UnknownDeviceError builds the error returned when a device name is not served
// by the status source. The message lists the names that are.
func UnknownDeviceError(device, source string, valid []string) *DeviceUnreachableError {
	return NewDeviceUnreachableError("validate",
		fmt.Errorf("invalid UPS name, valid names are: [%s]", strings.Join(valid, ", ")),
		device, source)
}

// IsFatal reports whether err must stop the acquisition loop.
// Status-source, malformed-status and configuration errors are fatal;
// delivery errors and unknown errors are not.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var unreachable *DeviceUnreachableError
	var malformed *MalformedStatusError
	var cfgErr *ConfigError
	switch {
	case stderrors.As(err, &unreachable):
		return true
	case stderrors.As(err, &malformed):
		return true
	case stderrors.As(err, &cfgErr):
		return true
	}

	var agentErr *AgentError
	if stderrors.As(err, &agentErr) {
		return agentErr.Severity == SeverityCritical
	}
	return false
}

// GetDiagnosticCode extracts the diagnostic code from an error
func GetDiagnosticCode(err error) int {
	if err == nil {
		return CodeOK
	}

	switch e := err.(type) {
	case *DeviceUnreachableError:
		return e.Code
	case *MalformedStatusError:
		return e.Code
	case *DeliveryError:
		return e.Code
	case *ConfigError:
		return e.Code
	case *AgentError:
		return e.Code
	default:
		return CodeGeneric
	}
}
