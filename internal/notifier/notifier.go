package notifier

import "time"

// Notifier delivers outage alerts to the operator. Implementations are
// stateless; a delivery failure is reported to the caller for logging
// but must never be treated as fatal.
type Notifier interface {
	// SendPowerOffAlert announces a detected outage, carrying the time
	// of the last known-good heartbeat.
	SendPowerOffAlert(lastHeartbeat time.Time) error

	// SendPowerOnAlert announces recovery, carrying the downtime in
	// whole minutes.
	SendPowerOnAlert(downtimeMinutes int) error
}

// NopNotifier discards all alerts. Useful in tests and when alerting is
// not configured.
type NopNotifier struct{}

func (NopNotifier) SendPowerOffAlert(_ time.Time) error { return nil }
func (NopNotifier) SendPowerOnAlert(_ int) error        { return nil }
