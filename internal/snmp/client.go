// Package snmp reads UPS status from an SNMP agent implementing the UPS-MIB
// (RFC 1628) and reports it under the same variable names upsd uses.
package snmp

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gosnmp/gosnmp"

	agenterrors "ups-metric-sender/internal/errors"
	"ups-metric-sender/internal/logger"
	"ups-metric-sender/internal/ups"
)

// UPS-MIB objects
const (
	oidManufacturer     = "1.3.6.1.2.1.33.1.1.1.0"
	oidModel            = "1.3.6.1.2.1.33.1.1.2.0"
	oidBatteryStatus    = "1.3.6.1.2.1.33.1.2.1.0"
	oidMinutesRemaining = "1.3.6.1.2.1.33.1.2.3.0"
	oidChargeRemaining  = "1.3.6.1.2.1.33.1.2.4.0"
	oidOutputSource     = "1.3.6.1.2.1.33.1.4.1.0"
	oidOutputLoad       = "1.3.6.1.2.1.33.1.4.4.1.5.1"
)

var statusOIDs = []string{
	oidManufacturer,
	oidModel,
	oidBatteryStatus,
	oidMinutesRemaining,
	oidChargeRemaining,
	oidOutputSource,
	oidOutputLoad,
}

// upsBatteryStatus values
const batteryLow = 3

// upsOutputSource values
const (
	sourceOther   = 1
	sourceNone    = 2
	sourceNormal  = 3
	sourceBypass  = 4
	sourceBattery = 5
	sourceBooster = 6
	sourceReducer = 7
)

// Config holds the SNMP agent settings
type Config struct {
	Name      string // device name the agent is known by
	Target    string
	Port      int
	Community string
	Version   string // "1" or "2c"
	Timeout   time.Duration
}

// Client queries one SNMP agent, which serves exactly one UPS
type Client struct {
	cfg  Config
	addr string
	snmp *gosnmp.GoSNMP
	mu   sync.Mutex
}

// Dial opens the UDP socket for the agent
func Dial(cfg Config) (*Client, error) {
	if cfg.Name == "" {
		cfg.Name = "myups"
	}
	if cfg.Port == 0 {
		cfg.Port = 161
	}
	if cfg.Community == "" {
		cfg.Community = "public"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	version := gosnmp.Version2c
	if cfg.Version == "1" {
		version = gosnmp.Version1
	}

	c := &Client{
		cfg:  cfg,
		addr: net.JoinHostPort(cfg.Target, strconv.Itoa(cfg.Port)),
		snmp: &gosnmp.GoSNMP{
			Target:    cfg.Target,
			Port:      uint16(cfg.Port),
			Community: cfg.Community,
			Version:   version,
			Timeout:   cfg.Timeout,
			Retries:   1,
		},
	}

	if err := c.snmp.Connect(); err != nil {
		return nil, agenterrors.NewDeviceUnreachableError("connect", err, "", c.addr)
	}
	logger.LogDebug("🔌 SNMP session opened to %s (v%v)", c.addr, version)
	return c, nil
}

// Address returns host:port of the SNMP agent
func (c *Client) Address() string {
	return c.addr
}

// ListDeviceNames returns the single configured device name
func (c *Client) ListDeviceNames(ctx context.Context) ([]string, error) {
	return []string{c.cfg.Name}, nil
}

// FetchDeviceVars reads the UPS-MIB objects and returns them as NUT variables
func (c *Client) FetchDeviceVars(ctx context.Context, device string) (map[string]string, error) {
	if device != c.cfg.Name {
		return nil, agenterrors.UnknownDeviceError(device, c.addr, []string{c.cfg.Name})
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.snmp.Context = ctx
	result, err := c.snmp.Get(statusOIDs)
	if err != nil {
		return nil, agenterrors.NewDeviceUnreachableError("get", err, device, c.addr)
	}
	if result.Error != gosnmp.NoError {
		return nil, agenterrors.NewDeviceUnreachableError("get",
			fmt.Errorf("agent returned %v", result.Error), device, c.addr)
	}

	return VarsFromPDUs(result.Variables), nil
}

// Close closes the UDP socket
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snmp.Conn == nil {
		return nil
	}
	err := c.snmp.Conn.Close()
	c.snmp.Conn = nil
	return err
}

// VarsFromPDUs maps UPS-MIB values to NUT variable names. Objects the agent
// does not implement are left out.
func VarsFromPDUs(pdus []gosnmp.SnmpPDU) map[string]string {
	values := make(map[string]gosnmp.SnmpPDU, len(pdus))
	for _, pdu := range pdus {
		if pdu.Type == gosnmp.NoSuchObject || pdu.Type == gosnmp.NoSuchInstance || pdu.Type == gosnmp.Null {
			continue
		}
		values[strings.TrimPrefix(pdu.Name, ".")] = pdu
	}

	vars := make(map[string]string)

	if pdu, ok := values[oidManufacturer]; ok {
		vars[ups.KeyManufacturer] = octetString(pdu)
	}
	if pdu, ok := values[oidModel]; ok {
		vars[ups.KeyModel] = octetString(pdu)
	}
	if pdu, ok := values[oidChargeRemaining]; ok {
		vars[ups.KeyBatteryCharge] = strconv.FormatInt(integer(pdu), 10)
	}
	if pdu, ok := values[oidMinutesRemaining]; ok {
		vars[ups.KeyBatteryRuntime] = strconv.FormatInt(integer(pdu)*60, 10)
	}
	if pdu, ok := values[oidOutputLoad]; ok {
		vars[ups.KeyLoad] = strconv.FormatInt(integer(pdu), 10)
	}

	if src, ok := values[oidOutputSource]; ok {
		batteryStatus := int64(0)
		if pdu, ok := values[oidBatteryStatus]; ok {
			batteryStatus = integer(pdu)
		}
		charge := int64(-1)
		if pdu, ok := values[oidChargeRemaining]; ok {
			charge = integer(pdu)
		}
		vars[ups.KeyStatus] = statusPhrase(integer(src), batteryStatus, charge)
	}

	return vars
}

// statusPhrase builds the upsd-style ups.status phrase
func statusPhrase(outputSource, batteryStatus, charge int64) string {
	if batteryStatus == batteryLow {
		return "LB"
	}
	switch outputSource {
	case sourceNormal:
		if charge >= 0 && charge < 100 {
			return "OL CHRG"
		}
		return "OL"
	case sourceBattery:
		return "OB DISCHRG"
	case sourceBypass:
		return "BYPASS"
	case sourceBooster:
		return "OL BOOST"
	case sourceReducer:
		return "OL TRIM"
	case sourceOther, sourceNone:
		return "OFF"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", outputSource)
	}
}

func integer(pdu gosnmp.SnmpPDU) int64 {
	return gosnmp.ToBigInt(pdu.Value).Int64()
}

func octetString(pdu gosnmp.SnmpPDU) string {
	switch v := pdu.Value.(type) {
	case []byte:
		return strings.TrimSpace(string(v))
	case string:
		return strings.TrimSpace(v)
	default:
		return fmt.Sprint(v)
	}
}
