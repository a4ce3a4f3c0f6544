package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/homedash/power-monitor/internal/api"
	"github.com/homedash/power-monitor/internal/fanout"
	"github.com/homedash/power-monitor/internal/notifier"
	"github.com/homedash/power-monitor/internal/service_registry"
	"github.com/homedash/power-monitor/internal/services"
	"github.com/homedash/power-monitor/internal/store"
	"github.com/homedash/power-monitor/internal/utils"
	"github.com/homedash/power-monitor/pkg/file"
	"github.com/homedash/power-monitor/pkg/mqtt"
)

func main() {
	// Set up structured logging with JSON output
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Secrets (Telegram credentials) come from the environment; .env is
	// optional and only used in development.
	_ = godotenv.Load()

	// Initialize file operations handler
	fileClient := file.NewFileService()

	// Load configuration from file
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}
	config, err := utils.LoadConfig(configPath, fileClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Generate a unique MQTT Client ID by appending a UUID
	clientID := config.MQTT.ClientID + "-" + uuid.New().String()
	logger.Info().Str("client_id", clientID).Msg("Using MQTT Client ID")

	// Record store
	heartbeatStore := store.NewFileStore(
		config.Storage.Path,
		config.Storage.RetentionDays,
		config.Storage.ExpectedPerDay,
		fileClient,
		logger,
	)
	if err := heartbeatStore.Init(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize heartbeat store")
	}

	// Alert notifier
	var alertNotifier notifier.Notifier = notifier.NopNotifier{}
	if config.Telegram.Enabled {
		telegramNotifier, err := notifier.NewTelegramNotifier(
			os.Getenv("TELEGRAM_BOT_TOKEN"),
			os.Getenv("TELEGRAM_CHAT_ID"),
			logger,
		)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create Telegram notifier")
		}
		alertNotifier = telegramNotifier
	}

	// Live fan-out hub for dashboard viewers
	hub := fanout.NewHub(logger)

	// Heartbeat ingestion pipeline
	mqttClient := mqtt.NewMqttService()
	ingestion := services.NewIngestionService(
		config.MQTT.Host,
		config.MQTT.Port,
		config.MQTT.Topic,
		clientID,
		config.MQTT.QOS,
		config.MQTT.MaxConnectRetries,
		time.Duration(config.MQTT.ConnectRetryDelay)*time.Second,
		mqttClient,
		heartbeatStore,
		hub,
		logger,
	)

	// Outage monitor
	monitor := services.NewMonitorService(
		time.Duration(config.Monitoring.CheckInterval)*time.Second,
		time.Duration(config.Monitoring.DowntimeThreshold)*time.Second,
		heartbeatStore,
		alertNotifier,
		logger,
	)

	// Read-only query surface
	apiServer := api.NewServer(
		api.Addr(config.Server.Host, config.Server.Port),
		heartbeatStore,
		ingestion,
		monitor,
		hub.HandleWebsocket,
		logger,
	)

	// Create a new service registry to manage service lifecycles
	serviceRegistry := service_registry.NewServiceRegistry(logger)
	serviceRegistry.RegisterService("api", apiServer)
	serviceRegistry.RegisterService("ingestion", ingestion)
	serviceRegistry.RegisterService("monitor", monitor)

	if err := serviceRegistry.StartServices(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start services")
	}
	logger.Info().Msg("All services started successfully")

	// Handle graceful shutdown
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	logger.Info().Msg("Shutting down gracefully...")
	if err := serviceRegistry.StopServices(); err != nil {
		logger.Error().Err(err).Msg("Shutdown finished with errors")
	}
}
