package utils

import (
	"github.com/homedash/power-monitor/pkg/file"
)

// Config represents the structure of the configuration file.
// Intervals are plain integers in the unit their comment states.
type Config struct {
	MQTT struct {
		Host              string `yaml:"host"`                // MQTT broker host
		Port              int    `yaml:"port"`                // MQTT broker port
		Topic             string `yaml:"topic"`               // Heartbeat topic to subscribe to
		ClientID          string `yaml:"client_id"`           // MQTT client ID prefix
		QOS               int    `yaml:"qos"`                 // MQTT QoS level for the subscription
		MaxConnectRetries int    `yaml:"max_connect_retries"` // Maximum first-connect attempts before giving up
		ConnectRetryDelay int    `yaml:"connect_retry_delay"` // Base delay between first-connect attempts (in seconds)
	} `yaml:"mqtt"`

	Server struct {
		Host            string `yaml:"host"`             // HTTP listen host
		Port            int    `yaml:"port"`             // HTTP listen port
		ShutdownTimeout int    `yaml:"shutdown_timeout"` // Grace period for in-flight requests on shutdown (in seconds)
	} `yaml:"server"`

	Storage struct {
		Path           string `yaml:"path"`             // Path of the heartbeat database file
		RetentionDays  int    `yaml:"retention_days"`   // Days a record stays queryable
		ExpectedPerDay int    `yaml:"expected_per_day"` // Heartbeats expected per day at nominal cadence
	} `yaml:"storage"`

	Monitoring struct {
		CheckInterval     int `yaml:"check_interval"`     // Period of the outage check timer (in seconds)
		DowntimeThreshold int `yaml:"downtime_threshold"` // Heartbeat age beyond which the device is offline (in seconds)
	} `yaml:"monitoring"`

	Telegram struct {
		Enabled bool `yaml:"enabled"` // Enable/disable Telegram alerting
	} `yaml:"telegram"`
}

// LoadConfig loads the YAML configuration from the specified file.
// It returns a pointer to the Config struct and an error if loading fails.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	// Use the ReadYamlFile method from fileClient
	var config Config
	err := fileClient.ReadYamlFile(filename, &config)
	if err != nil {
		return nil, err
	}

	config.applyDefaults()
	return &config, nil
}

// applyDefaults fills in the values the original deployment assumed when
// the corresponding keys are absent from the file.
func (c *Config) applyDefaults() {
	if c.MQTT.Host == "" {
		c.MQTT.Host = "localhost"
	}
	if c.MQTT.Port == 0 {
		c.MQTT.Port = 1883
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = "casa/power/heartbeat"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "home-dashboard"
	}
	if c.MQTT.MaxConnectRetries == 0 {
		c.MQTT.MaxConnectRetries = 5
	}
	if c.MQTT.ConnectRetryDelay == 0 {
		c.MQTT.ConnectRetryDelay = 1
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "data/db.json"
	}
	if c.Storage.RetentionDays == 0 {
		c.Storage.RetentionDays = 30
	}
	if c.Storage.ExpectedPerDay == 0 {
		c.Storage.ExpectedPerDay = 8640
	}
	if c.Monitoring.CheckInterval == 0 {
		c.Monitoring.CheckInterval = 120
	}
	if c.Monitoring.DowntimeThreshold == 0 {
		c.Monitoring.DowntimeThreshold = 1200
	}
}
