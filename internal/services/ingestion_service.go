package services

import (
	"errors"
	"fmt"
	"sync"
	"time"

	mqttLib "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/homedash/power-monitor/internal/fanout"
	"github.com/homedash/power-monitor/internal/models"
	"github.com/homedash/power-monitor/internal/store"
	"github.com/homedash/power-monitor/pkg/metrics"
	"github.com/homedash/power-monitor/pkg/mqtt"
)

// Connection states of the ingestion pipeline, kept for observability.
const (
	StateDisconnected = "disconnected"
	StateConnecting   = "connecting"
	StateConnected    = "connected"
	StateSubscribed   = "subscribed"
)

// willPayload is announced by the broker on an abrupt disconnect of
// this subscriber. A clean shutdown suppresses it.
const willPayload = "backend disconnected"

// Connector is the slice of the MQTT layer the ingestion service
// drives: connect once with options, subscribe, disconnect.
type Connector interface {
	Initialize(opts mqtt.Options) error
	Subscribe(topic string, qos byte, callback mqttLib.MessageHandler) mqttLib.Token
	Disconnect(quiesce uint)
	IsConnected() bool
}

// IngestionStatus mirrors the connection introspection the dashboard
// shows.
type IngestionStatus struct {
	Connected         bool    `json:"connected"`
	State             string  `json:"state"`
	Host              string  `json:"host"`
	Port              int     `json:"port"`
	Topic             string  `json:"topic"`
	ClientID          string  `json:"clientId"`
	LastHeartbeat     *string `json:"lastHeartbeat"`
	ReconnectAttempts int     `json:"reconnectAttempts"`
}

// IngestionStats is the connection-level statistics block.
type IngestionStats struct {
	Connected              bool       `json:"connected"`
	LastHeartbeat          *time.Time `json:"lastHeartbeat"`
	TimeSinceLastHeartbeat *int64     `json:"timeSinceLastHeartbeat"`
	ReconnectAttempts      int        `json:"reconnectAttempts"`
}

// IngestionService owns the MQTT subscription for the heartbeat topic.
// Every inbound message is filtered, decoded, validated, persisted and
// fanned out to live viewers; any rejection is logged and dropped
// without affecting the subscription.
type IngestionService struct {
	host              string
	port              int
	topic             string
	clientID          string
	qos               int
	maxConnectRetries int
	connectRetryDelay time.Duration

	connector Connector
	store     store.Store
	publisher fanout.Publisher
	logger    zerolog.Logger

	mu                sync.Mutex
	state             string
	lastHeartbeat     *time.Time
	reconnectAttempts int
	running           bool
}

// NewIngestionService initializes a new IngestionService.
func NewIngestionService(host string, port int, topic, clientID string, qos int,
	maxConnectRetries int, connectRetryDelay time.Duration,
	connector Connector, heartbeatStore store.Store, publisher fanout.Publisher,
	logger zerolog.Logger) *IngestionService {

	return &IngestionService{
		host:              host,
		port:              port,
		topic:             topic,
		clientID:          clientID,
		qos:               qos,
		maxConnectRetries: maxConnectRetries,
		connectRetryDelay: connectRetryDelay,
		connector:         connector,
		store:             heartbeatStore,
		publisher:         publisher,
		logger:            logger,
		state:             StateDisconnected,
	}
}

// Start connects to the broker and subscribes to the heartbeat topic.
// The first connect is retried up to the configured attempt count; only
// exhaustion is fatal. Mid-session drops are handled by the transport's
// automatic reconnection and mirrored onto the fan-out channel.
func (s *IngestionService) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("ingestion service is already running")
	}
	s.running = true
	s.mu.Unlock()

	opts := mqtt.Options{
		Host:          s.host,
		Port:          s.port,
		ClientID:      s.clientID,
		WillTopic:     s.topic + "/status",
		WillPayload:   willPayload,
		WillQOS:       1,
		AutoReconnect: true,
		CleanSession:  true,
		OnConnect:     s.onConnect,
		OnConnectionLost: func(err error) {
			s.onConnectionLost(err)
		},
	}

	var lastErr error
	for attempt := 1; attempt <= s.maxConnectRetries; attempt++ {
		s.setState(StateConnecting)
		s.logger.Info().
			Int("attempt", attempt).
			Int("max_attempts", s.maxConnectRetries).
			Str("broker", fmt.Sprintf("%s:%d", s.host, s.port)).
			Msg("Connecting to MQTT broker")

		lastErr = s.connector.Initialize(opts)
		if lastErr == nil {
			return nil
		}

		s.setState(StateDisconnected)
		s.logger.Warn().Err(lastErr).Int("attempt", attempt).Msg("MQTT connect failed")
		if attempt < s.maxConnectRetries {
			time.Sleep(s.connectRetryDelay * time.Duration(attempt))
		}
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return fmt.Errorf("failed to connect to MQTT broker after %d attempts: %w", s.maxConnectRetries, lastErr)
}

// Stop closes the broker connection cleanly so the registered last-will
// does not fire.
func (s *IngestionService) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return errors.New("ingestion service is not running")
	}
	s.running = false
	s.mu.Unlock()

	s.connector.Disconnect(250)
	s.setState(StateDisconnected)
	metrics.MQTTConnected.Set(0)
	s.logger.Info().Msg("IngestionService stopped successfully")
	return nil
}

// onConnect runs on every successful (re)connection and establishes the
// heartbeat subscription.
func (s *IngestionService) onConnect() {
	s.setState(StateConnected)
	metrics.MQTTConnected.Set(1)
	s.logger.Info().Str("client_id", s.clientID).Msg("Connected to MQTT broker")

	token := s.connector.Subscribe(s.topic, byte(s.qos), s.handleMessage)
	token.Wait()
	if err := token.Error(); err != nil {
		s.logger.Error().Err(err).Str("topic", s.topic).Msg("Failed to subscribe to heartbeat topic")
		return
	}

	s.setState(StateSubscribed)
	s.logger.Info().Str("topic", s.topic).Msg("Subscribed to heartbeat topic")
}

// onConnectionLost mirrors a broker drop onto the fan-out channel so
// viewers can tell a dead backend link from a quiet device.
func (s *IngestionService) onConnectionLost(err error) {
	s.setState(StateDisconnected)
	metrics.MQTTConnected.Set(0)

	s.mu.Lock()
	s.reconnectAttempts++
	attempts := s.reconnectAttempts
	s.mu.Unlock()

	s.logger.Warn().Err(err).Int("reconnect_attempts", attempts).Msg("MQTT connection lost")
	s.publisher.Broadcast(models.EventMQTTDisconnected, models.DisconnectedEvent{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// handleMessage is the ingestion pipeline for one inbound message:
// topic filter, decode, validate, normalize and persist, fan out.
func (s *IngestionService) handleMessage(_ mqttLib.Client, msg mqttLib.Message) {
	if msg.Topic() != s.topic {
		s.logger.Debug().Str("topic", msg.Topic()).Msg("Message from unexpected topic, dropped")
		metrics.MessagesDropped.WithLabelValues("topic").Inc()
		return
	}

	fields, err := DecodeHeartbeat(msg.Payload())
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to decode heartbeat message, dropped")
		metrics.MessagesDropped.WithLabelValues("decode").Inc()
		return
	}

	payload, validationErr := ValidateHeartbeat(fields)
	if validationErr != nil {
		s.logger.Warn().
			Fields(map[string]any{"failures": validationErr.Fields}).
			Msg("Invalid heartbeat received, dropped")
		metrics.MessagesDropped.WithLabelValues("validation").Inc()
		return
	}

	now := time.Now().UTC()
	record := models.HeartbeatRecord{
		ID:         fmt.Sprintf("%d-%d", now.UnixMilli(), payload.Counter),
		ReceivedAt: now,
		Payload:    payload,
		Status:     models.StatusOnline,
	}

	if err := s.store.SaveHeartbeat(record); err != nil {
		// Storage trouble must not take the subscription down; the
		// record is lost but the live view keeps working.
		s.logger.Error().Err(err).Str("id", record.ID).Msg("Failed to persist heartbeat")
	}

	s.mu.Lock()
	s.lastHeartbeat = &now
	s.mu.Unlock()
	metrics.HeartbeatsReceived.Inc()

	s.logger.Info().
		Str("device", payload.Device).
		Int64("counter", payload.Counter).
		Str("ip", payload.IP).
		Int("rssi", payload.RSSI).
		Msg("Heartbeat processed")

	s.publisher.Broadcast(models.EventHeartbeatReceived, models.HeartbeatEvent{
		ID:        record.ID,
		Counter:   payload.Counter,
		Timestamp: now.Format(time.RFC3339Nano),
		IP:        payload.IP,
		RSSI:      payload.RSSI,
		UptimeMs:  payload.UptimeMs,
		Device:    payload.Device,
		Real:      true,
	})
}

// Status returns the connection introspection block. Read-only.
func (s *IngestionService) Status() IngestionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	var last *string
	if s.lastHeartbeat != nil {
		formatted := s.lastHeartbeat.Format(time.RFC3339Nano)
		last = &formatted
	}

	return IngestionStatus{
		Connected:         s.connector.IsConnected(),
		State:             s.state,
		Host:              s.host,
		Port:              s.port,
		Topic:             s.topic,
		ClientID:          s.clientID,
		LastHeartbeat:     last,
		ReconnectAttempts: s.reconnectAttempts,
	}
}

// Stats returns connection-level statistics. Read-only.
func (s *IngestionService) Stats() IngestionStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := IngestionStats{
		Connected:         s.connector.IsConnected(),
		LastHeartbeat:     s.lastHeartbeat,
		ReconnectAttempts: s.reconnectAttempts,
	}
	if s.lastHeartbeat != nil {
		since := time.Since(*s.lastHeartbeat).Milliseconds()
		stats.TimeSinceLastHeartbeat = &since
	}
	return stats
}

func (s *IngestionService) setState(state string) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}
