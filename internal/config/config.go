package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	agenterrors "ups-metric-sender/internal/errors"
	"ups-metric-sender/internal/logger"
)

// DefaultAPIPath is appended to the collector host and port
const DefaultAPIPath = "/api/metrics"

// DefaultDeviceName is the UPS queried when neither the file nor -u names one
const DefaultDeviceName = "myups"

// Source types
const (
	SourceNUT  = "nut"
	SourceSNMP = "snmp"
)

// Config represents the complete application configuration
type Config struct {
	API     APIConfig            `yaml:"api"`
	Device  DeviceConfig         `yaml:"device"`
	Source  SourceConfig         `yaml:"source"`
	MQTT    MQTTConfig           `yaml:"mqtt"`
	HTTP    HTTPConfig           `yaml:"http"`
	Logging logger.LoggingConfig `yaml:"logging"`

	// Path is the file the configuration was read from
	Path string `yaml:"-"`
}

// APIConfig locates the collector
type APIConfig struct {
	Protocol       string               `yaml:"protocol"`
	Host           string               `yaml:"host"`
	Port           int                  `yaml:"port"`
	Path           string               `yaml:"path"`
	Timeout        int                  `yaml:"timeout"` // seconds
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig controls skipping deliveries to a failing collector
type CircuitBreakerConfig struct {
	Enabled     bool `yaml:"enabled"`
	MaxFailures int  `yaml:"max_failures"`
	Timeout     int  `yaml:"timeout"` // seconds
}

// DeviceConfig names the UPS and the identifier sent with its metrics
type DeviceConfig struct {
	Name string `yaml:"name"`
	ID   string `yaml:"id"`
}

// SourceConfig selects and configures the status source
type SourceConfig struct {
	Type string     `yaml:"type"`
	NUT  NUTConfig  `yaml:"nut"`
	SNMP SNMPConfig `yaml:"snmp"`
}

// NUTConfig contains upsd connection settings
type NUTConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Timeout  int    `yaml:"timeout"` // seconds
}

// SNMPConfig contains UPS-MIB agent settings
type SNMPConfig struct {
	Name      string `yaml:"name"` // device name served by the agent
	Target    string `yaml:"target"`
	Port      int    `yaml:"port"`
	Community string `yaml:"community"`
	Version   string `yaml:"version"`
	Timeout   int    `yaml:"timeout"` // seconds
}

// MQTTConfig contains the optional mirror broker settings
type MQTTConfig struct {
	Enabled           bool   `yaml:"enabled"`
	Broker            string `yaml:"broker"`
	Port              int    `yaml:"port"`
	Username          string `yaml:"username"`
	Password          string `yaml:"password"`
	ClientID          string `yaml:"client_id"`
	TopicPrefix       string `yaml:"topic_prefix"`
	RetryDelay        int    `yaml:"retry_delay"`        // milliseconds
	KeepAlive         int    `yaml:"keep_alive"`         // seconds
	HeartbeatInterval int    `yaml:"heartbeat_interval"` // seconds
}

// HTTPConfig controls the /health and /metrics server
type HTTPConfig struct {
	Port int `yaml:"port"` // 0 disables the server
}

// SearchPaths lists the locations tried after an explicit path
var SearchPaths = []string{
	"conf/ups-metric-sender.yaml",
	"/etc/ups-metric-sender/config.yaml",
	"./config.yaml",
}

// LoadConfig reads the first readable file among configPath and SearchPaths,
// applies defaults and environment overrides, and validates the result.
// An explicit configPath that cannot be read is an error.
func LoadConfig(configPath string) (*Config, error) {
	data, usedPath, err := readConfigFile(configPath)
	if err != nil {
		return nil, err
	}

	cfg, err := parse(data, true)
	if err != nil {
		return nil, err
	}
	cfg.Path = usedPath
	return cfg, nil
}

// LoadDiagnosticsConfig loads the configuration for the dump and info modes.
// The collector settings are not required, and when no file exists in any
// search location the defaults are used (NUT on localhost:3493, device myups).
// An explicit configPath that cannot be read is still an error.
func LoadDiagnosticsConfig(configPath string) (*Config, error) {
	data, usedPath, err := readConfigFile(configPath)
	if err != nil {
		if configPath != "" || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		data = nil
	}

	cfg, err := parse(data, false)
	if err != nil {
		return nil, err
	}
	cfg.Path = usedPath
	return cfg, nil
}

func readConfigFile(configPath string) ([]byte, string, error) {
	paths := SearchPaths
	if configPath != "" {
		paths = []string{configPath}
	}

	var data []byte
	var err error
	var usedPath string

	for _, path := range paths {
		// #nosec G304 - explicit flag value or fixed search locations
		data, err = os.ReadFile(path)
		if err == nil {
			usedPath = path
			break
		}
	}

	if err != nil {
		return nil, "", agenterrors.NewConfigError("load",
			fmt.Errorf("cannot read configuration file from any of the locations %v: %w", paths, err), "")
	}
	return data, usedPath, nil
}

// LoadConfigFromString loads configuration from a YAML string (for testing)
func LoadConfigFromString(yamlContent string) (*Config, error) {
	return parse([]byte(yamlContent), true)
}

// parse decodes data (which may be empty), applies defaults and env
// overrides, and validates. withCollector=false skips the api.* checks.
func parse(data []byte, withCollector bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, agenterrors.NewConfigError("parse", err, "")
	}

	cfg.ApplyDefaults()
	if err := ApplyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	validate := cfg.Validate
	if !withCollector {
		validate = cfg.ValidateSource
	}
	if err := validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills every unset optional field
func (c *Config) ApplyDefaults() {
	if c.API.Protocol == "" {
		c.API.Protocol = "http"
	}
	c.API.Protocol = strings.ToLower(c.API.Protocol)
	if c.API.Path == "" {
		c.API.Path = DefaultAPIPath
	}
	if !strings.HasPrefix(c.API.Path, "/") {
		c.API.Path = "/" + c.API.Path
	}
	if c.API.Timeout <= 0 {
		c.API.Timeout = 10
	}
	if c.API.CircuitBreaker.MaxFailures <= 0 {
		c.API.CircuitBreaker.MaxFailures = 5
	}
	if c.API.CircuitBreaker.Timeout <= 0 {
		c.API.CircuitBreaker.Timeout = 30
	}

	if c.Device.Name == "" {
		c.Device.Name = DefaultDeviceName
	}

	if c.Source.Type == "" {
		c.Source.Type = SourceNUT
	}
	c.Source.Type = strings.ToLower(c.Source.Type)
	if c.Source.NUT.Host == "" {
		c.Source.NUT.Host = "localhost"
	}
	if c.Source.NUT.Port == 0 {
		c.Source.NUT.Port = 3493
	}
	if c.Source.NUT.Timeout <= 0 {
		c.Source.NUT.Timeout = 5
	}
	if c.Source.SNMP.Name == "" {
		c.Source.SNMP.Name = DefaultDeviceName
	}
	if c.Source.SNMP.Port == 0 {
		c.Source.SNMP.Port = 161
	}
	if c.Source.SNMP.Community == "" {
		c.Source.SNMP.Community = "public"
	}
	if c.Source.SNMP.Version == "" {
		c.Source.SNMP.Version = "2c"
	}
	if c.Source.SNMP.Timeout <= 0 {
		c.Source.SNMP.Timeout = 5
	}

	if c.MQTT.Port == 0 {
		c.MQTT.Port = 1883
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "ups-metric-sender"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "ups-metric-sender"
	}
	c.MQTT.TopicPrefix = strings.TrimSuffix(c.MQTT.TopicPrefix, "/")
	if c.MQTT.RetryDelay <= 0 {
		c.MQTT.RetryDelay = 5000
	}
	if c.MQTT.KeepAlive <= 0 {
		c.MQTT.KeepAlive = 60
	}
	if c.MQTT.HeartbeatInterval <= 0 {
		c.MQTT.HeartbeatInterval = 20
	}

	if c.Logging.Level == "" {
		c.Logging.Level = logger.LogLevelInfo
	}
}

// ApplyEnvOverrides updates cfg in place with values from environment variables.
// Recognized variables:
//   - UPS_METRIC_SENDER_API_HOST overrides cfg.API.Host
//   - UPS_METRIC_SENDER_API_PORT overrides cfg.API.Port
//   - UPS_METRIC_SENDER_API_PROTOCOL overrides cfg.API.Protocol
//   - UPS_METRIC_SENDER_NUT_HOST overrides cfg.Source.NUT.Host
//   - UPS_METRIC_SENDER_MQTT_PASSWORD overrides cfg.MQTT.Password
func ApplyEnvOverrides(cfg *Config) error {
	if host := os.Getenv("UPS_METRIC_SENDER_API_HOST"); host != "" {
		cfg.API.Host = host
	}
	if port := os.Getenv("UPS_METRIC_SENDER_API_PORT"); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return agenterrors.NewConfigError("env override", fmt.Errorf("UPS_METRIC_SENDER_API_PORT=%q: %w", port, err), "api.port")
		}
		cfg.API.Port = n
	}
	if protocol := os.Getenv("UPS_METRIC_SENDER_API_PROTOCOL"); protocol != "" {
		cfg.API.Protocol = strings.ToLower(protocol)
	}
	if host := os.Getenv("UPS_METRIC_SENDER_NUT_HOST"); host != "" {
		cfg.Source.NUT.Host = host
	}
	if password := os.Getenv("UPS_METRIC_SENDER_MQTT_PASSWORD"); password != "" {
		cfg.MQTT.Password = password
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	invalid := func(field, format string, args ...interface{}) error {
		return agenterrors.NewConfigError("validate", fmt.Errorf(format, args...), field)
	}

	if c.API.Host == "" {
		return invalid("api.host", "is not specified")
	}
	if c.API.Protocol != "http" && c.API.Protocol != "https" {
		return invalid("api.protocol", "must be http or https, got %q", c.API.Protocol)
	}
	if c.API.Port < 1 || c.API.Port > 65535 {
		return invalid("api.port", "must be between 1 and 65535, got %d", c.API.Port)
	}
	return c.ValidateSource()
}

// ValidateSource checks everything except the collector (api.*). The dump
// and info modes never deliver, so they only need this part.
func (c *Config) ValidateSource() error {
	invalid := func(field, format string, args ...interface{}) error {
		return agenterrors.NewConfigError("validate", fmt.Errorf(format, args...), field)
	}

	switch c.Source.Type {
	case SourceNUT:
		if c.Source.NUT.Port < 1 || c.Source.NUT.Port > 65535 {
			return invalid("source.nut.port", "must be between 1 and 65535, got %d", c.Source.NUT.Port)
		}
	case SourceSNMP:
		if c.Source.SNMP.Target == "" {
			return invalid("source.snmp.target", "is not specified")
		}
		if c.Source.SNMP.Version != "1" && c.Source.SNMP.Version != "2c" {
			return invalid("source.snmp.version", "must be 1 or 2c, got %q", c.Source.SNMP.Version)
		}
	default:
		return invalid("source.type", "must be %s or %s, got %q", SourceNUT, SourceSNMP, c.Source.Type)
	}

	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return invalid("mqtt.broker", "is required when mqtt is enabled")
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return invalid("http.port", "must be between 0 and 65535, got %d", c.HTTP.Port)
	}
	if !logger.ValidLevel(c.Logging.Level) {
		return invalid("logging.level", "unknown level %q", c.Logging.Level)
	}
	return nil
}

// CollectorURL assembles {protocol}://{host}:{port}{path}
func (c *Config) CollectorURL() string {
	return c.API.Protocol + "://" + net.JoinHostPort(c.API.Host, strconv.Itoa(c.API.Port)) + c.API.Path
}

// SetDeviceName overrides device.name, e.g. from the command line
func (c *Config) SetDeviceName(name string) {
	if name != "" {
		c.Device.Name = name
	}
}

// DeviceID returns device.id, or device.name when no id is configured
func (c *Config) DeviceID() string {
	if c.Device.ID != "" {
		return c.Device.ID
	}
	return c.Device.Name
}
