package mqtt

import (
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTClient defines the interface for an MQTT client.
type MQTTClient interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
	Disconnect(quiesce uint)
	IsConnected() bool
}

// ConnectionLostHandler is invoked when an established broker connection drops.
type ConnectionLostHandler func(err error)

// OnConnectHandler is invoked on every successful (re)connection.
type OnConnectHandler func()

// Options carries the connection settings for Initialize.
type Options struct {
	Host        string
	Port        int
	ClientID    string
	WillTopic   string
	WillPayload string
	WillQOS     byte

	OnConnect        OnConnectHandler
	OnConnectionLost ConnectionLostHandler
	AutoReconnect    bool
	CleanSession     bool
}

// MqttService provides methods for MQTT operations.
type MqttService struct {
	client MQTTClient
}

// NewMqttService creates a new MqttService instance.
func NewMqttService() *MqttService {
	return &MqttService{}
}

// Initialize sets up the MQTT client and starts the connection. The
// last-will message is registered so the broker announces an abrupt
// disconnect of this subscriber; a clean Disconnect suppresses it.
func (s *MqttService) Initialize(opts Options) error {
	clientOpts := mqtt.NewClientOptions()
	clientOpts.AddBroker(fmt.Sprintf("tcp://%s:%d", opts.Host, opts.Port))
	clientOpts.SetClientID(opts.ClientID)
	clientOpts.SetAutoReconnect(opts.AutoReconnect)
	clientOpts.SetCleanSession(opts.CleanSession)

	if opts.WillTopic != "" {
		clientOpts.SetWill(opts.WillTopic, opts.WillPayload, opts.WillQOS, false)
	}
	if opts.OnConnect != nil {
		clientOpts.SetOnConnectHandler(func(mqtt.Client) {
			opts.OnConnect()
		})
	}
	if opts.OnConnectionLost != nil {
		clientOpts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			opts.OnConnectionLost(err)
		})
	}

	s.client = mqtt.NewClient(clientOpts)

	token := s.Connect()
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}

	return nil
}

// Connect connects to the MQTT broker.
func (s *MqttService) Connect() mqtt.Token {
	return s.client.Connect()
}

// Publish sends a message to the specified topic.
func (s *MqttService) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	return s.client.Publish(topic, qos, retained, payload)
}

// Subscribe subscribes to the specified topic with a message handler.
func (s *MqttService) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	return s.client.Subscribe(topic, qos, callback)
}

// Unsubscribe unsubscribes from the specified topics.
func (s *MqttService) Unsubscribe(topics ...string) mqtt.Token {
	return s.client.Unsubscribe(topics...)
}

// Disconnect gracefully disconnects the MQTT client.
func (s *MqttService) Disconnect(quiesce uint) {
	s.client.Disconnect(quiesce)
}

// IsConnected reports whether the client currently holds a broker connection.
func (s *MqttService) IsConnected() bool {
	return s.client != nil && s.client.IsConnected()
}
