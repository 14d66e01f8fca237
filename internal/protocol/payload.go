package protocol

import (
	"encoding/json"
	"fmt"
	"math"
)

// Payload keys shared by client and server.
const (
	KeyDeviceID        = "deviceID"
	KeyDeviceName      = "deviceName"
	KeyRAMUsed         = "ramUsed"
	KeyRAMTotal        = "ramTotal"
	KeyCPUUsage        = "cpuUsage"
	KeyProcesses       = "processes"
	KeyNetworkIn       = "networkIn"
	KeyNetworkOut      = "networkOut"
	KeyTime            = "time"
	KeyRemovedDeviceID = "removedDeviceID"
	KeyRenamedDeviceID = "renamedDeviceID"
)

// Payload is a decoded JSON object. Values keep their raw encoding until a
// typed accessor asks for them.
type Payload map[string]json.RawMessage

func (p Payload) lookup(key string) (json.RawMessage, error) {
	raw, ok := p[key]
	if !ok || string(raw) == "null" {
		return nil, fmt.Errorf("%w: %q", ErrMissingField, key)
	}
	return raw, nil
}

// String returns a string field.
func (p Payload) String(key string) (string, error) {
	raw, err := p.lookup(key)
	if err != nil {
		return "", err
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%w: %q is not a string", ErrTypeMismatch, key)
	}
	return s, nil
}

// Int returns an integer field. Whole-valued floats are accepted.
func (p Payload) Int(key string) (int64, error) {
	raw, err := p.lookup(key)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrTypeMismatch, key)
	}
	return int64(f), nil
}

// Float returns a numeric field.
func (p Payload) Float(key string) (float64, error) {
	raw, err := p.lookup(key)
	if err != nil {
		return 0, err
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrTypeMismatch, key)
	}
	return f, nil
}

// OptionalInt returns an integer field, or 0 when it is absent.
func (p Payload) OptionalInt(key string) (int64, error) {
	if raw, ok := p[key]; !ok || string(raw) == "null" {
		return 0, nil
	}
	return p.Int(key)
}

// Set stores v under key.
func (p Payload) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	p[key] = raw
	return nil
}
