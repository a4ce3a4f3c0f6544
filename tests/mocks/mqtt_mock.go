package mocks

import (
	"time"

	mqttLib "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/mock"

	"github.com/homedash/power-monitor/pkg/mqtt"
)

// MockConnector is a mock implementation of the services.Connector interface
type MockConnector struct {
	mock.Mock
}

func (m *MockConnector) Initialize(opts mqtt.Options) error {
	args := m.Called(opts)
	return args.Error(0)
}

func (m *MockConnector) Subscribe(topic string, qos byte, callback mqttLib.MessageHandler) mqttLib.Token {
	args := m.Called(topic, qos, callback)
	return args.Get(0).(mqttLib.Token)
}

func (m *MockConnector) Disconnect(quiesce uint) {
	m.Called(quiesce)
}

func (m *MockConnector) IsConnected() bool {
	args := m.Called()
	return args.Bool(0)
}

// MockToken implements MQTT.Token for testing
type MockToken struct {
	Err error
}

func (t *MockToken) Wait() bool                       { return true }
func (t *MockToken) WaitTimeout(_ time.Duration) bool { return true }
func (t *MockToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *MockToken) Error() error { return t.Err }

// MockMessage implements MQTT.Message for testing
type MockMessage struct {
	payload []byte
	topic   string
}

// NewMockMessage creates a new mock MQTT message
func NewMockMessage(topic string, payload []byte) *MockMessage {
	return &MockMessage{
		payload: payload,
		topic:   topic,
	}
}

func (m *MockMessage) Payload() []byte   { return m.payload }
func (m *MockMessage) Topic() string     { return m.topic }
func (m *MockMessage) Duplicate() bool   { return false }
func (m *MockMessage) Qos() byte         { return 1 }
func (m *MockMessage) Retained() bool    { return false }
func (m *MockMessage) MessageID() uint16 { return 1 }
func (m *MockMessage) Ack()              {} // No-op for testing
