// Package ups turns the raw variable set reported for a UPS into the typed
// metric record published by the agent.
package ups

import (
	"strconv"
	"strings"

	agenterrors "ups-metric-sender/internal/errors"
)

// Status variable keys read by the normalizer
const (
	KeyBatteryCharge  = "battery.charge"
	KeyStatus         = "ups.status"
	KeyLoad           = "ups.load"
	KeyBatteryRuntime = "battery.runtime"
)

// Product identity keys used by the info dump
const (
	KeyManufacturer = "ups.mfr"
	KeyModel        = "ups.model"
	KeyProductID    = "ups.productid"
	KeySerial       = "ups.serial"
	KeyVendorID     = "ups.vendorid"
)

// RawStatus maps variable names to their textual values, exactly as the
// status source returned them. Any key may be absent.
type RawStatus map[string]string

// MetricRecord is the normalized result of one acquisition cycle
type MetricRecord struct {
	ChargePercent    int
	ChargeStateValue int
	ChargeStateRaw   string
	LoadPercent      int
	RuntimeSeconds   int
}

// Normalize converts raw into a MetricRecord. A missing key or a numeric
// field that is not a base-10 integer yields a *MalformedStatusError naming
// the key; the returned record is nil in that case.
func Normalize(raw RawStatus) (*MetricRecord, *agenterrors.MalformedStatusError) {
	charge, err := intField(raw, KeyBatteryCharge)
	if err != nil {
		return nil, err
	}

	state, ok := raw[KeyStatus]
	if !ok {
		return nil, agenterrors.NewMissingKeyError(KeyStatus)
	}

	load, err := intField(raw, KeyLoad)
	if err != nil {
		return nil, err
	}

	runtime, err := intField(raw, KeyBatteryRuntime)
	if err != nil {
		return nil, err
	}

	return &MetricRecord{
		ChargePercent:    charge,
		ChargeStateValue: ChargeStateCode(state),
		ChargeStateRaw:   state,
		LoadPercent:      load,
		RuntimeSeconds:   runtime,
	}, nil
}

func intField(raw RawStatus, key string) (int, *agenterrors.MalformedStatusError) {
	value, ok := raw[key]
	if !ok {
		return 0, agenterrors.NewMissingKeyError(key)
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, agenterrors.NewInvalidValueError(key, value, err)
	}
	return n, nil
}
