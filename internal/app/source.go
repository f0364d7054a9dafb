package app

import (
	"context"
	"fmt"
	"time"

	"ups-metric-sender/internal/config"
	agenterrors "ups-metric-sender/internal/errors"
	"ups-metric-sender/internal/nut"
	"ups-metric-sender/internal/snmp"
)

// StatusSource is a NUT or SNMP connection
type StatusSource interface {
	ListDeviceNames(ctx context.Context) ([]string, error)
	FetchDeviceVars(ctx context.Context, device string) (map[string]string, error)
	Address() string
	Close() error
}

// OpenSource connects to the status source selected by settings.Type
func OpenSource(ctx context.Context, settings config.SourceSettings) (StatusSource, error) {
	switch settings.Type {
	case config.SourceNUT:
		client, err := nut.Dial(ctx, nut.Config{
			Host:     settings.NUT.Host,
			Port:     settings.NUT.Port,
			Username: settings.NUT.Username,
			Password: settings.NUT.Password,
			Timeout:  time.Duration(settings.NUT.Timeout) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.SourceSNMP:
		client, err := snmp.Dial(snmp.Config{
			Name:      settings.SNMP.Name,
			Target:    settings.SNMP.Target,
			Port:      settings.SNMP.Port,
			Community: settings.SNMP.Community,
			Version:   settings.SNMP.Version,
			Timeout:   time.Duration(settings.SNMP.Timeout) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, agenterrors.NewConfigError("open source",
			fmt.Errorf("unknown source type %q", settings.Type), "source.type")
	}
}
