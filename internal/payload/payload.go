package payload

import (
	"encoding/json"

	"ups-metric-sender/internal/ups"
)

// Metrics is the transmitted subset of a ups.MetricRecord.
// The raw charge-state phrase is diagnostic only and has no field here.
type Metrics struct {
	ChargePercent    int `json:"charge.percent"`
	ChargeStateValue int `json:"charge.state.value"`
	LoadPercent      int `json:"load.percent"`
	RuntimeSecond    int `json:"runtime.second"`
}

// Payload is the body POSTed to the collector
type Payload struct {
	DeviceID string  `json:"DeviceId"`
	Metrics  Metrics `json:"metrics"`
}

// Build copies the transmitted fields of record and tags them with deviceID.
// record is only read.
func Build(record *ups.MetricRecord, deviceID string) Payload {
	return Payload{
		DeviceID: deviceID,
		Metrics: Metrics{
			ChargePercent:    record.ChargePercent,
			ChargeStateValue: record.ChargeStateValue,
			LoadPercent:      record.LoadPercent,
			RuntimeSecond:    record.RuntimeSeconds,
		},
	}
}

// JSON encodes the payload as it goes on the wire
func (p Payload) JSON() ([]byte, error) {
	return json.Marshal(p)
}
