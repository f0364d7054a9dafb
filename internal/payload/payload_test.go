package payload

import (
	"encoding/json"
	"testing"

	"ups-metric-sender/internal/ups"
)

func exampleRecord() *ups.MetricRecord {
	return &ups.MetricRecord{
		ChargePercent:    87,
		ChargeStateValue: 5,
		ChargeStateRaw:   "OL",
		LoadPercent:      12,
		RuntimeSeconds:   1800,
	}
}

func TestBuild_WireShape(t *testing.T) {
	p := Build(exampleRecord(), "myups")

	body, err := p.JSON()
	if err != nil {
		t.Fatalf("JSON() error = %v", err)
	}

	want := `{"DeviceId":"myups","metrics":{"charge.percent":87,"charge.state.value":5,"load.percent":12,"runtime.second":1800}}`
	if string(body) != want {
		t.Errorf("JSON() =\n%s\nwant\n%s", body, want)
	}
}

func TestBuild_OmitsRawPhraseAndLeavesRecordIntact(t *testing.T) {
	phrases := []string{"OL", "OL CHRG", "OB DISCHRG", "LB", "RB", "BYPASS", ""}

	for _, phrase := range phrases {
		rec := exampleRecord()
		rec.ChargeStateRaw = phrase
		rec.ChargeStateValue = ups.ChargeStateCode(phrase)
		before := *rec

		body, err := Build(rec, "rack-1").JSON()
		if err != nil {
			t.Fatalf("JSON() error = %v", err)
		}

		var decoded struct {
			DeviceID string                 `json:"DeviceId"`
			Metrics  map[string]interface{} `json:"metrics"`
		}
		if err := json.Unmarshal(body, &decoded); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}

		if _, ok := decoded.Metrics["charge.state.raw"]; ok {
			t.Errorf("phrase %q: payload carries charge.state.raw", phrase)
		}
		if len(decoded.Metrics) != 4 {
			t.Errorf("phrase %q: payload has %d metrics, want 4", phrase, len(decoded.Metrics))
		}
		if *rec != before {
			t.Errorf("phrase %q: record changed from %+v to %+v", phrase, before, *rec)
		}
	}
}

func TestBuild_UnknownStateSendsSentinel(t *testing.T) {
	rec := exampleRecord()
	rec.ChargeStateRaw = "BYPASS"
	rec.ChargeStateValue = ups.ChargeStateCode("BYPASS")

	p := Build(rec, "myups")
	if p.Metrics.ChargeStateValue != -1 {
		t.Errorf("ChargeStateValue = %d, want -1", p.Metrics.ChargeStateValue)
	}
	if p.DeviceID != "myups" {
		t.Errorf("DeviceID = %q, want myups", p.DeviceID)
	}
}
