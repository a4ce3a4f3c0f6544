package models

// Fan-out event names emitted to connected dashboard viewers.
const (
	EventWelcome           = "welcome"
	EventHeartbeatReceived = "heartbeat_received"
	EventMQTTDisconnected  = "mqtt_disconnected"
	EventPong              = "pong"
)

// HeartbeatEvent is broadcast to viewers for every accepted heartbeat.
// Real distinguishes genuine device data from simulated test traffic.
type HeartbeatEvent struct {
	ID        string `json:"id"`
	Counter   int64  `json:"counter"`
	Timestamp string `json:"timestamp"`
	IP        string `json:"ip"`
	RSSI      int    `json:"rssi"`
	UptimeMs  int64  `json:"uptime"`
	Device    string `json:"device"`
	Real      bool   `json:"real"`
}

// WelcomeEvent greets a freshly connected viewer.
type WelcomeEvent struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	ClientID  string `json:"clientId"`
}

// DisconnectedEvent tells viewers the backend lost its broker
// connection, so they can distinguish a quiet device from a dead link.
type DisconnectedEvent struct {
	Timestamp string `json:"timestamp"`
}

// PongEvent answers a viewer-initiated ping.
type PongEvent struct {
	Timestamp  string `json:"timestamp"`
	ServerTime int64  `json:"serverTime"`
}
