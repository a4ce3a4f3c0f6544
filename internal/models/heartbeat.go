package models

import "time"

// Heartbeat status values. The pipeline only ever writes StatusOnline;
// offline-ness is inferred from record age by the monitor, never stored.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// HeartbeatPayload is the wire format published by the device.
// All six fields are mandatory; the device timestamp is unsynchronized
// and kept as metadata only.
type HeartbeatPayload struct {
	Device    string `json:"device"`
	Counter   int64  `json:"counter"`
	UptimeMs  int64  `json:"uptime"`
	IP        string `json:"ip"`
	RSSI      int    `json:"rssi"`
	Timestamp int64  `json:"timestamp"`
}

// HeartbeatRecord is the persisted form of an accepted heartbeat.
// Immutable once written.
type HeartbeatRecord struct {
	ID         string           `json:"id"`
	ReceivedAt time.Time        `json:"timestamp"`
	Payload    HeartbeatPayload `json:"data"`
	Status     string           `json:"status"`
}

// StoreStats is the rolling summary kept alongside the record set.
// TotalHeartbeats is cumulative and survives retention pruning, so it
// can exceed DBSize.
type StoreStats struct {
	TotalHeartbeats int64      `json:"totalHeartbeats"`
	LastPing        *time.Time `json:"lastPing"`
	DBSize          int        `json:"dbSize"`
}

// UptimePoint is one bar of the uptime chart: a calendar day label and
// the day's uptime percentage formatted with one decimal.
type UptimePoint struct {
	Label  string `json:"label"`
	Uptime string `json:"uptime"`
}
