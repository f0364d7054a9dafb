package mqtt

// Topics builds the topic names under the configured prefix
type Topics struct {
	Prefix   string
	DeviceID string
}

// Metrics is where every payload is mirrored: <prefix>/<device id>/metrics
func (t Topics) Metrics() string {
	return t.Prefix + "/" + t.DeviceID + "/metrics"
}

// Status carries the retained online/offline availability and the LWT
func (t Topics) Status() string {
	return t.Prefix + "/status"
}

// Diagnostic carries {code,message,timestamp} events
func (t Topics) Diagnostic() string {
	return t.Prefix + "/diagnostic"
}
