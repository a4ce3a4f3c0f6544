package services

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/homedash/power-monitor/internal/models"
)

// ValidationError reports which payload fields failed the schema check,
// field by field, so a rejected message can be diagnosed from the log.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, e.Fields[name]))
	}
	return "invalid heartbeat payload: " + strings.Join(parts, ", ")
}

// DecodeHeartbeat parses raw payload bytes into an untyped field map.
// A decode failure means the message is malformed, not merely invalid.
func DecodeHeartbeat(raw []byte) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("malformed heartbeat payload: %w", err)
	}
	if fields == nil {
		return nil, fmt.Errorf("malformed heartbeat payload: not an object")
	}
	return fields, nil
}

// ValidateHeartbeat checks the decoded fields against the heartbeat
// schema. All six fields are mandatory and must have the expected
// primitive type; any failure rejects the payload as a whole.
func ValidateHeartbeat(fields map[string]any) (models.HeartbeatPayload, *ValidationError) {
	failures := make(map[string]string)

	device := stringField(fields, "device", failures)
	if device == "" {
		if _, reported := failures["device"]; !reported {
			failures["device"] = "must be non-empty"
		}
	}
	counter := intField(fields, "counter", failures)
	uptime := intField(fields, "uptime", failures)
	ip := stringField(fields, "ip", failures)
	rssi := intField(fields, "rssi", failures)
	timestamp := intField(fields, "timestamp", failures)

	if uptime < 0 {
		failures["uptime"] = "must be >= 0"
	}

	if len(failures) > 0 {
		return models.HeartbeatPayload{}, &ValidationError{Fields: failures}
	}

	return models.HeartbeatPayload{
		Device:    device,
		Counter:   counter,
		UptimeMs:  uptime,
		IP:        ip,
		RSSI:      int(rssi),
		Timestamp: timestamp,
	}, nil
}

func stringField(fields map[string]any, name string, failures map[string]string) string {
	value, ok := fields[name]
	if !ok {
		failures[name] = "missing"
		return ""
	}
	s, ok := value.(string)
	if !ok {
		failures[name] = fmt.Sprintf("expected string, got %T", value)
		return ""
	}
	return s
}

func intField(fields map[string]any, name string, failures map[string]string) int64 {
	value, ok := fields[name]
	if !ok {
		failures[name] = "missing"
		return 0
	}
	// encoding/json decodes every JSON number into float64.
	f, ok := value.(float64)
	if !ok {
		failures[name] = fmt.Sprintf("expected number, got %T", value)
		return 0
	}
	if f != float64(int64(f)) {
		failures[name] = "expected integer"
		return 0
	}
	return int64(f)
}
