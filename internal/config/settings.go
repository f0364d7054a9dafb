package config

import "time"

// DeliverySettings contains only collector delivery configuration
// Used for dependency injection to avoid coupling to full Config
type DeliverySettings struct {
	URL                   string
	Timeout               time.Duration
	CircuitBreakerEnabled bool
	MaxFailures           int
	BreakerTimeout        time.Duration
}

// NewDeliverySettings extracts delivery settings from full config
func NewDeliverySettings(cfg *Config) DeliverySettings {
	return DeliverySettings{
		URL:                   cfg.CollectorURL(),
		Timeout:               time.Duration(cfg.API.Timeout) * time.Second,
		CircuitBreakerEnabled: cfg.API.CircuitBreaker.Enabled,
		MaxFailures:           cfg.API.CircuitBreaker.MaxFailures,
		BreakerTimeout:        time.Duration(cfg.API.CircuitBreaker.Timeout) * time.Second,
	}
}

// SourceSettings contains only status source configuration
type SourceSettings struct {
	Type string
	NUT  NUTConfig
	SNMP SNMPConfig
}

// NewSourceSettings extracts status source settings from full config
func NewSourceSettings(cfg *Config) SourceSettings {
	return SourceSettings{
		Type: cfg.Source.Type,
		NUT:  cfg.Source.NUT,
		SNMP: cfg.Source.SNMP,
	}
}

// MQTTSettings contains only MQTT-specific configuration
// Used for dependency injection to avoid coupling to full Config
type MQTTSettings struct {
	Broker            string
	Port              int
	Username          string
	Password          string
	ClientID          string
	TopicPrefix       string
	RetryDelay        time.Duration
	KeepAlive         time.Duration
	HeartbeatInterval time.Duration
}

// NewMQTTSettings extracts MQTT settings from full config
func NewMQTTSettings(cfg *Config) MQTTSettings {
	return MQTTSettings{
		Broker:            cfg.MQTT.Broker,
		Port:              cfg.MQTT.Port,
		Username:          cfg.MQTT.Username,
		Password:          cfg.MQTT.Password,
		ClientID:          cfg.MQTT.ClientID,
		TopicPrefix:       cfg.MQTT.TopicPrefix,
		RetryDelay:        time.Duration(cfg.MQTT.RetryDelay) * time.Millisecond,
		KeepAlive:         time.Duration(cfg.MQTT.KeepAlive) * time.Second,
		HeartbeatInterval: time.Duration(cfg.MQTT.HeartbeatInterval) * time.Second,
	}
}
