package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HeartbeatsReceived tracks every accepted heartbeat that made it
	// through validation and into the store
	HeartbeatsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "powermon_heartbeats_received_total",
		Help: "Total number of heartbeats accepted and persisted",
	})

	// MessagesDropped counts inbound MQTT messages rejected before
	// persistence, labelled by the stage that dropped them
	MessagesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "powermon_messages_dropped_total",
		Help: "Total number of inbound messages dropped before persistence",
	}, []string{"reason"})

	// AlertsSent counts operator notifications by kind (power_off /
	// power_restored) and outcome
	AlertsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "powermon_alerts_sent_total",
		Help: "Total number of outage alerts attempted",
	}, []string{"kind", "status"})

	// ConnectedViewers is the number of live dashboard websocket clients
	ConnectedViewers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "powermon_connected_viewers",
		Help: "Current number of connected live dashboard viewers",
	})

	// MQTTConnected provides a binary 0/1 signal for the broker link
	MQTTConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "powermon_mqtt_connected",
		Help: "Whether the MQTT broker connection is up (1) or down (0)",
	})

	// DeviceOffline mirrors the outage monitor state: 1 while an outage
	// episode is open, 0 otherwise
	DeviceOffline = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "powermon_device_offline",
		Help: "Whether the monitored device is currently considered offline",
	})
)
