package main

import (
	"fmt"
	"os"

	"ups-metric-sender/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: validate_config <config-file>")
		os.Exit(1)
	}

	configPath := os.Args[1]
	fmt.Printf("📄 Loading config from: %s\n", configPath)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("❌ Error loading config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✅ Config loaded successfully!\n")
	fmt.Printf("   Collector: %s\n", cfg.CollectorURL())
	fmt.Printf("   Device: %s (id %s)\n", cfg.Device.Name, cfg.DeviceID())

	switch cfg.Source.Type {
	case config.SourceNUT:
		fmt.Printf("   Source: nut %s:%d\n", cfg.Source.NUT.Host, cfg.Source.NUT.Port)
	case config.SourceSNMP:
		fmt.Printf("   Source: snmp v%s %s:%d (%s)\n", cfg.Source.SNMP.Version,
			cfg.Source.SNMP.Target, cfg.Source.SNMP.Port, cfg.Source.SNMP.Name)
	}

	if cfg.MQTT.Enabled {
		fmt.Printf("   MQTT mirror: %s:%d prefix %s\n", cfg.MQTT.Broker, cfg.MQTT.Port, cfg.MQTT.TopicPrefix)
	} else {
		fmt.Printf("   MQTT mirror: disabled\n")
	}
	if cfg.HTTP.Port > 0 {
		fmt.Printf("   Health/metrics: :%d\n", cfg.HTTP.Port)
	}
	if cfg.API.CircuitBreaker.Enabled {
		fmt.Printf("   Circuit breaker: %d failures, %ds open\n",
			cfg.API.CircuitBreaker.MaxFailures, cfg.API.CircuitBreaker.Timeout)
	}
}
